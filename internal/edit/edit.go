// Package edit sets library item fields from string input, coercing values
// to the field's type.
package edit

import (
	"fmt"
	"strconv"

	"github.com/lgrenard/melo/internal/library"
)

// Error indicates a field that does not exist, is not editable, or rejected
// the given value.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot edit field %q: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// nonEditable lists fields whose values are managed by the library itself.
var nonEditable = map[string]struct{}{
	"path": {},
}

// EditItem sets item's field to value, converting the string to the field's
// current type. Custom fields take the string as-is.
func EditItem(item library.Item, field, value string) error {
	if _, ok := nonEditable[field]; ok {
		return &Error{Field: field, Err: fmt.Errorf("%q is not an editable field", field)}
	}

	current, ok := item.Field(field)
	if !ok {
		return &Error{Field: field, Err: fmt.Errorf("not a valid %s field", item.Kind())}
	}

	switch current.(type) {
	case string, nil:
		if err := item.SetField(field, value); err != nil {
			return &Error{Field: field, Err: err}
		}
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return &Error{Field: field, Err: fmt.Errorf("value %q is not an integer", value)}
		}
		if err := item.SetField(field, n); err != nil {
			return &Error{Field: field, Err: err}
		}
	default:
		return &Error{Field: field, Err: fmt.Errorf("editing fields of type %T is not supported", current)}
	}
	return nil
}
