package student

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// field binds a Record struct field to its wire key.
type field struct {
	name  string
	key   string
	value func(Record) any
}

var (
	fieldID     = field{name: "ID", key: "id", value: func(r Record) any { return r.ID }}
	fieldName   = field{name: "Name", key: "name", value: func(r Record) any { return r.Name }}
	fieldAge    = field{name: "Age", key: "age", value: func(r Record) any { return r.Age }}
	fieldGrade  = field{name: "Grade", key: "grade", value: func(r Record) any { return r.Grade }}
	fieldStatus = field{name: "Status", key: "status", value: func(r Record) any { return r.Status }}

	fullRecord = []field{fieldID, fieldName, fieldAge, fieldGrade, fieldStatus}
	idOnly     = []field{fieldID}
)

// operations maps each operation to the exact field set sent as input.
var operations = map[Operation][]field{
	OpCreate: fullRecord,
	OpRead:   idOnly,
	OpUpdate: fullRecord,
	OpDelete: idOnly,
}

// RequiredFields returns the wire keys sent for op, or nil for an unknown
// operation.
func RequiredFields(op Operation) []string {
	fields, ok := operations[op]
	if !ok {
		return nil
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// checkInput validates rec against the field set of op.
func checkInput(op Operation, rec Record) error {
	fields, ok := operations[op]
	if !ok {
		return &ValidationError{Operation: op, Reason: fmt.Sprintf("unknown operation %q", string(op))}
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}

	err := validate.StructPartial(rec, names...)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Operation: op, Reason: err.Error()}
	}

	var (
		offending = make([]string, 0, len(verrs))
		missing   []string
		invalid   []string
	)
	for _, fe := range verrs {
		key := keyFor(fields, fe.StructField())
		offending = append(offending, key)
		if n, ok := fe.Value().(int); ok && fe.Tag() == "gt" && n < 0 {
			invalid = append(invalid, fmt.Sprintf("%s must be positive, got %d", key, n))
			continue
		}
		missing = append(missing, key)
	}
	verr := &ValidationError{Operation: op, Fields: offending}
	if len(invalid) > 0 {
		reason := strings.Join(invalid, "; ")
		if len(missing) > 0 {
			reason += "; missing required fields: " + strings.Join(missing, ", ")
		}
		verr.Reason = reason
	}
	return verr
}

// ParseRecord builds the input for op from text fields, as typed into a form
// or passed on a command line. Age must be a whole number; an empty age is
// left at zero and reported as missing by the client's validation.
func ParseRecord(op Operation, id, name, age, grade, status string) (Record, error) {
	rec := Record{ID: id, Name: name, Grade: grade, Status: status}
	age = strings.TrimSpace(age)
	if age == "" {
		return rec, nil
	}
	n, err := strconv.Atoi(age)
	if err != nil {
		return Record{}, &ValidationError{
			Operation: op,
			Fields:    []string{fieldAge.key},
			Reason:    fmt.Sprintf("age must be a whole number, got %q", age),
			Err:       err,
		}
	}
	rec.Age = n
	return rec, nil
}

func keyFor(fields []field, name string) string {
	for _, f := range fields {
		if f.name == name {
			return f.key
		}
	}
	return strings.ToLower(name)
}

// buildInput returns the {"input": {...}} envelope for op.
func buildInput(op Operation, rec Record) map[string]any {
	fields := operations[op]
	input := make(map[string]any, len(fields))
	for _, f := range fields {
		input[f.key] = f.value(rec)
	}
	return map[string]any{"input": input}
}
