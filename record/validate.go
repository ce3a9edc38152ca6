package record

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/gatewise/tabular/schema"
)

// Validate runs every stored column through its field's decode and
// validation path and reports all failures at once. Batch writes are not
// rolled back on failure, so callers should validate whole batches before
// sending them.
func (r *Record) Validate() error {
	var result *multierror.Error

	for column, raw := range r.raw {
		field, err := r.table.Field(column)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		value, err := field.Decode(raw)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if field.Validate != nil && !field.Validate(value) {
			result = multierror.Append(result, &schema.ValidationError{Column: column, Value: value})
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("record of table %s is invalid: %w", r.table.Name(), err)
	}
	return nil
}
