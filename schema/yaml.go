package schema

import (
	"fmt"

	"github.com/ghodss/yaml"
)

type fieldDef struct {
	Column string `json:"column"`
	Kind   string `json:"kind"`
	Layout string `json:"layout"`
}

type tableDef struct {
	Name   string     `json:"name"`
	Fields []fieldDef `json:"fields"`
}

// LoadYAML builds a table layout from a YAML declaration:
//
//	name: users
//	fields:
//	  - column: Id
//	    kind: uint
//	  - column: Name
//	    kind: string
//	  - column: LastSeen
//	    kind: time
//	    layout: "2006-01-02 15:04:05"
//
// Hooks and validation predicates cannot be declared in YAML; attach them to
// the returned table's fields in code if needed.
func LoadYAML(data []byte) (*Table, error) {
	def := &tableDef{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("parse table declaration: %w", err)
	}

	fields := make([]*Field, 0, len(def.Fields))
	for _, fd := range def.Fields {
		kind, err := ParseKind(fd.Kind)
		if err != nil {
			return nil, fmt.Errorf("table %s, column %s: %w", def.Name, fd.Column, err)
		}
		fields = append(fields, &Field{
			Column: fd.Column,
			Kind:   kind,
			Layout: fd.Layout,
		})
	}

	return New(def.Name, fields...)
}
