package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ErrChildNotFound is returned when a sub-record id does not belong to the patient.
var ErrChildNotFound = errors.New("entry not found")

var personNamePattern = regexp.MustCompile(`^[A-Za-z. ]+$`)

// validate holds the schema rules every model is checked against before a save.
var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("notblank", validators.NotBlank))
	must(v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := ParseWeekday(fl.Field().String())
		return ok
	}))
	must(v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	}))

	v.RegisterStructValidation(availabilityRules, Availability{})
	v.RegisterStructValidation(identityRules, Identity{})
	return v
}

// availabilityRules enforces the two modes: emergency with no schedule, or
// a non-empty set of weekdays with a window where start < end.
func availabilityRules(sl validator.StructLevel) {
	a := sl.Current().Interface().(Availability)
	if a.Emergency {
		if len(a.Days) > 0 || a.StartTime != "" || a.EndTime != "" {
			sl.ReportError(a.Emergency, "emergency", "Emergency", "noschedule", "")
		}
		return
	}
	if len(a.Days) == 0 {
		sl.ReportError(a.Days, "days", "Days", "required", "")
	}
	if a.StartTime == "" {
		sl.ReportError(a.StartTime, "startTime", "StartTime", "required", "")
	}
	if a.EndTime == "" {
		sl.ReportError(a.EndTime, "endTime", "EndTime", "required", "")
	}
	start, startErr := ParseClock(a.StartTime)
	end, endErr := ParseClock(a.EndTime)
	if startErr == nil && endErr == nil && start >= end {
		sl.ReportError(a.EndTime, "endTime", "EndTime", "gtfield", "startTime")
	}
}

// Google sign-ups arrive without a phone number.
func identityRules(sl validator.StructLevel) {
	i := sl.Current().Interface().(Identity)
	if i.Phone == "" && i.GoogleID == "" {
		sl.ReportError(i.Phone, "phone", "Phone", "required", "")
	}
}

// FieldError names one field that failed schema validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field that failed validation before a save.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// check runs the struct rules on s and collects the failures.
func check(s any) *ValidationError {
	verr := &ValidationError{}
	err := validate.Struct(s)
	if err == nil {
		return verr
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		verr.add("", "%v", err)
		return verr
	}
	for _, fe := range errs {
		field, leaf := fieldOf(fe)
		msg := DescribeRule(fe)
		if leaf != field {
			msg = leaf + " " + msg
		}
		verr.Fields = append(verr.Fields, FieldError{Field: field, Message: msg})
	}
	return verr
}

// fieldOf returns the top-level json name of fe ("history" for
// "Patient.history[2].details") and the name of the failing leaf.
func fieldOf(fe validator.FieldError) (field, leaf string) {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	field = parts[0]
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	if len(parts) == 1 {
		return field, field
	}
	return field, fe.Field()
}

// DescribeRule renders the rule fe broke, without the field name.
func DescribeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "eqfield":
		return fmt.Sprintf("must match %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be later than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "weekday":
		return fmt.Sprintf("%q is not a weekday", fe.Value())
	case "clock":
		return "must be in HH:MM format"
	case "personname":
		return "may only contain letters, spaces and dots"
	case "noschedule":
		return "emergency availability cannot carry days or times"
	}
	return "is invalid"
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// titleWord turns "monday" or "MONDAY" into "Monday".
func titleWord(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
