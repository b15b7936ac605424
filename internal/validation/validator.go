// Package validation checks request payloads and add-form drafts with validator/v10.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lucidlyapp/lucidly/internal/domain"
	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names as field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Dates validate as their string form so "required" rejects the zero Date.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(domain.Date); ok {
			return d.String()
		}
		return nil
	}, domain.Date{})

	return &Validator{v: v}
}

// Validate validates a struct and returns a VALIDATION domain error listing
// every failing field in declaration order.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(s, err)
	}
	return nil
}

// Fields returns the per-field messages of a validation error, keyed by field name.
// Errors of any other kind yield nil.
func Fields(err error) map[string]string {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		return nil
	}
	fields, ok := domainErr.Details.([]domainerrors.FieldError)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Field] = f.Message
	}
	return out
}

func (v *Validator) formatError(s any, err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	fields := make([]domainerrors.FieldError, 0, len(validationErrs))
	for _, e := range validationErrs {
		fields = append(fields, domainerrors.FieldError{
			Field:   e.Field(),
			Message: friendlyMessage(label(t, e), e),
		})
	}
	return domainerrors.ValidationWithDetails("validation failed", fields)
}

// label returns the human name of a field: its label tag, or its JSON name.
func label(t reflect.Type, e validator.FieldError) string {
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(e.StructField()); ok {
			if l := f.Tag.Get("label"); l != "" {
				return l
			}
		}
	}
	return e.Field()
}

func friendlyMessage(name string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return name + " is required."
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters.", name, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", name, e.Param())
	default:
		return name + " is invalid."
	}
}
