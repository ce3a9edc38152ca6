package record

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/gatewise/tabular/schema"
)

// JSON renders the record's decoded values as a JSON object, with fields in
// schema declaration order. Unset columns are omitted. Time values use the
// field's raw layout.
func (r *Record) JSON() (string, error) {
	result := "{}"

	for _, field := range r.table.Fields() {
		raw, ok := r.raw[field.Column]
		if !ok {
			continue
		}
		value, err := field.Decode(raw)
		if err != nil {
			return "", err
		}
		if _, ok := value.(time.Time); ok {
			// Keep the raw layout instead of Go's default time encoding.
			value = raw
		}

		result, err = sjson.Set(result, field.Column, value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field.Column, err)
		}
	}

	return result, nil
}

// FromJSON creates a detached record from a JSON object. Every member must
// name a schema field; values run through the usual encode and validation
// path.
func FromJSON(table *schema.Table, data string) (*Record, error) {
	parsed := gjson.Parse(data)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("table %s: expected a JSON object", table.Name())
	}

	r := New(table)
	var firstErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		field, err := table.Field(key.String())
		if err != nil {
			firstErr = err
			return false
		}

		var domain interface{}
		switch field.Kind {
		case schema.IntKind:
			domain = value.Int()
		case schema.UintKind:
			domain = value.Uint()
		case schema.FloatKind:
			domain = value.Float()
		case schema.BoolKind:
			domain = value.Bool()
		case schema.TimeKind:
			decoded, err := field.Decode(value.String())
			if err != nil {
				firstErr = err
				return false
			}
			domain = decoded
		default:
			domain = value.String()
		}

		if err := r.Set(field.Column, domain); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return r, nil
}
