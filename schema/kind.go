package schema

import "fmt"

// Kind describes the domain type of a Field.
type Kind uint8

// Field kinds.
const (
	InvalidKind Kind = iota
	StringKind
	IntKind
	UintKind
	FloatKind
	BoolKind
	TimeKind
)

func (k Kind) String() string {
	switch k {
	case StringKind:
		return "string"
	case IntKind:
		return "int"
	case UintKind:
		return "uint"
	case FloatKind:
		return "float"
	case BoolKind:
		return "bool"
	case TimeKind:
		return "time"
	default:
		return "invalid"
	}
}

// ParseKind returns the Kind with the given name.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "string":
		return StringKind, nil
	case "int":
		return IntKind, nil
	case "uint":
		return UintKind, nil
	case "float":
		return FloatKind, nil
	case "bool":
		return BoolKind, nil
	case "time":
		return TimeKind, nil
	}
	return InvalidKind, fmt.Errorf("unknown field kind %q", name)
}
