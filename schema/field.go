// Package schema defines typed fields and table layouts for records stored
// on a remote tabular backend.
//
// The backend only speaks flat column-name to string mappings. A Field binds
// one raw column to a domain kind and converts between the two worlds,
// optionally running custom hooks and a validation predicate. A Table groups
// the Fields of one named backend table and is registered once, at
// definition time, in the process-global registry.
package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// DefaultTimeLayout is the raw representation used for time-valued columns
// unless a Field specifies its own Layout.
const DefaultTimeLayout = "2006-01-02 15:04:05"

var timeType = reflect.TypeOf(time.Time{})

// A Field is a typed accessor bound to one raw column. Fields are stateless
// and shared across all records of a table; they only ever read and write
// through the record they are invoked on.
type Field struct {
	// Column is the raw column name on the backend.
	Column string
	// Kind is the domain type of decoded values.
	Kind Kind
	// Layout overrides DefaultTimeLayout for TimeKind fields.
	Layout string

	// DecodeHook, if set, transforms the raw string before coercion to the
	// domain kind.
	DecodeHook func(raw string) (interface{}, error)
	// EncodeHook, if set, transforms the scalar value before it is
	// stringified for the backend.
	EncodeHook func(value interface{}) (interface{}, error)
	// Validate, if set, must accept a value before it is encoded.
	Validate func(value interface{}) bool
}

func (f *Field) timeLayout() string {
	if f.Layout != "" {
		return f.Layout
	}
	return DefaultTimeLayout
}

// Decode converts a raw backend value to the field's domain kind. It applies
// the decode hook first, then coerces the result if it is not already of the
// domain kind.
func (f *Field) Decode(raw string) (interface{}, error) {
	var value interface{} = raw
	if f.DecodeHook != nil {
		hooked, err := f.DecodeHook(raw)
		if err != nil {
			return nil, &DecodeError{Column: f.Column, Raw: raw, Err: err}
		}
		value = hooked
	}

	coerced, err := f.coerce(value)
	if err != nil {
		return nil, &DecodeError{Column: f.Column, Raw: raw, Err: err}
	}
	return coerced, nil
}

func (f *Field) coerce(value interface{}) (interface{}, error) {
	rv := reflect.ValueOf(value)

	switch f.Kind {
	case StringKind:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}

	case IntKind:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint()), nil
		case reflect.String:
			return strconv.ParseInt(rv.String(), 10, 64)
		}

	case UintKind:
		switch rv.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return rv.Uint(), nil
		case reflect.String:
			return strconv.ParseUint(rv.String(), 10, 64)
		}

	case FloatKind:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		case reflect.String:
			return strconv.ParseFloat(rv.String(), 64)
		}

	case BoolKind:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}

	case TimeKind:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			return time.Parse(f.timeLayout(), v)
		}
	}

	return nil, fmt.Errorf("cannot coerce %T to %s", value, f.Kind)
}

// Encode converts a domain value to its raw backend representation. The
// value must match the field's kind, pass validation, and is reduced to its
// underlying scalar before the encode hook and stringification run.
func (f *Field) Encode(value interface{}) (string, error) {
	if !f.kindMatches(value) {
		return "", &TypeMismatchError{
			Column:   f.Column,
			Expected: f.Kind.String(),
			Got:      fmt.Sprintf("%T", value),
		}
	}

	if f.Validate != nil && !f.Validate(value) {
		return "", &ValidationError{Column: f.Column, Value: value}
	}

	// Named types, such as enumerations over integers, are reduced to their
	// underlying scalar here.
	scalar := f.reduce(value)

	if f.EncodeHook != nil {
		hooked, err := f.EncodeHook(scalar)
		if err != nil {
			return "", fmt.Errorf("field %s: encode hook: %w", f.Column, err)
		}
		scalar = hooked
	}

	return f.stringify(scalar), nil
}

func (f *Field) kindMatches(value interface{}) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)

	switch f.Kind {
	case StringKind:
		return rv.Kind() == reflect.String
	case IntKind:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		}
	case UintKind:
		switch rv.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
	case FloatKind:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return true
		}
	case BoolKind:
		return rv.Kind() == reflect.Bool
	case TimeKind:
		return rv.Kind() == reflect.Struct && rv.Type().ConvertibleTo(timeType)
	}
	return false
}

func (f *Field) reduce(value interface{}) interface{} {
	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return rv.Convert(timeType).Interface()
		}
	}
	return value
}

func (f *Field) stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(f.timeLayout())
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(value)
	}
}
