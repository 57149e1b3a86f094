package job

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/printmerge/internal/dataset"
)

// Validation error codes (E200-E299)
const (
	ErrMalformedYAML    = "E200" // YAML does not decode into a job
	ErrSchemaViolation  = "E201" // value rejected by the CUE schema
	ErrNoRowSource      = "E202" // neither rows nor csv given
	ErrTwoRowSources    = "E203" // both rows and csv given
	ErrInvalidSelection = "E204" // selection text does not parse
	ErrEmptyJob         = "E205" // nothing to decode
	ErrDuplicateField   = "E206" // field declared twice
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one problem found in a job.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in one job.
type ValidationErrors struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "invalid job: " + strings.Join(msgs, "; ")
}

var compiledSchema = sync.OnceValues(func() (cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, err
	}
	return v.LookupPath(cue.ParsePath("#Job")), nil
})

// Validate checks a decoded job against the schema and the rules the
// schema cannot express. Returns all errors found (does not fail-fast).
func Validate(j *Job) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateSchema(j)...)

	switch {
	case len(j.Data.Rows) == 0 && j.Data.CSV == "":
		errs = append(errs, ValidationError{
			Field: "data", Message: "either rows or csv is required", Code: ErrNoRowSource,
		})
	case len(j.Data.Rows) > 0 && j.Data.CSV != "":
		errs = append(errs, ValidationError{
			Field: "data", Message: "rows and csv are mutually exclusive", Code: ErrTwoRowSources,
		})
	}

	if _, err := dataset.ParseSelection(j.Selection); err != nil {
		errs = append(errs, ValidationError{
			Field: "selection", Message: err.Error(), Code: ErrInvalidSelection,
		})
	}

	seen := make(map[string]bool, len(j.Document.Fields))
	for _, f := range j.Document.Fields {
		if seen[f] {
			errs = append(errs, ValidationError{
				Field: "document.fields", Message: fmt.Sprintf("field %q declared twice", f), Code: ErrDuplicateField,
			})
		}
		seen[f] = true
	}
	return errs
}

// validateSchema unifies the job with #Job. The job goes through JSON so
// the CUE value sees exactly the keys a file would have.
func validateSchema(j *Job) []ValidationError {
	schema, err := compiledSchema()
	if err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error(), Code: ErrSchemaViolation}}
	}
	data, err := json.Marshal(j)
	if err != nil {
		return []ValidationError{{Field: "job", Message: err.Error(), Code: ErrSchemaViolation}}
	}

	v := schema.Context().CompileBytes(data)
	err = schema.Unify(v).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []ValidationError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		field := strings.Join(e.Path(), ".")
		if field == "" {
			field = "job"
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    ErrSchemaViolation,
		})
	}
	return errs
}
