// Package job loads merge job files.
//
// A job file is YAML describing one merge: the document template, where the
// rows come from, which rows to select, the ordered print functions and
// the output. Files are decoded strictly (unknown keys are errors) and then
// validated against an embedded CUE schema.
package job

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Output kinds.
const (
	OutputFile    = "file"
	OutputPrinter = "printer"
)

// Job is one decoded job file.
type Job struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Document    Document `yaml:"document" json:"document"`
	Data        Data     `yaml:"data" json:"data"`

	// Selection is user-facing, 1-based selection text ("all", "3-7",
	// "1,4,9"). Empty selects every row.
	Selection string `yaml:"selection,omitempty" json:"selection,omitempty"`

	// Functions are the print functions to add to the chain. Their run
	// order comes from the registry, not from this list.
	Functions []string `yaml:"functions,omitempty" json:"functions,omitempty"`

	Copies   int    `yaml:"copies,omitempty" json:"copies,omitempty"`
	Simulate bool   `yaml:"simulate,omitempty" json:"simulate,omitempty"`
	Output   Output `yaml:"output,omitempty" json:"output,omitempty"`

	// dir is the directory of the job file; relative CSV paths resolve
	// against it.
	dir string
}

// Document describes the template rows are merged into.
type Document struct {
	Body       string            `yaml:"body" json:"body"`
	Fields     []string          `yaml:"fields,omitempty" json:"fields,omitempty"`
	Derived    map[string]string `yaml:"derived,omitempty" json:"derived,omitempty"`
	Conditions map[string]string `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Data is the row source: inline rows or a CSV file, never both.
type Data struct {
	Fields []string            `yaml:"fields,omitempty" json:"fields,omitempty"`
	Rows   []map[string]string `yaml:"rows,omitempty" json:"rows,omitempty"`
	CSV    string              `yaml:"csv,omitempty" json:"csv,omitempty"`
}

// Output configures the terminal action.
type Output struct {
	Kind       string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Dir        string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Pattern    string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Printer    string `yaml:"printer,omitempty" json:"printer,omitempty"`
	StampField string `yaml:"stamp_field,omitempty" json:"stamp_field,omitempty"`
}

// Dir returns the directory the job was loaded from.
func (j *Job) Dir() string { return j.dir }

// Load reads, decodes and validates a job file.
func Load(path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	defer f.Close()

	j, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	j.dir = filepath.Dir(path)
	return j, nil
}

// Parse decodes and validates a job from r. Relative CSV paths resolve
// against the working directory.
func Parse(r io.Reader) (*Job, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	// Strict decoding catches typos like "selections:".
	var j Job
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&j); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationErrors{Errors: []ValidationError{{
				Field: "job", Message: "job file is empty", Code: ErrEmptyJob,
			}}}
		}
		return nil, &ValidationErrors{Errors: []ValidationError{{
			Field: "job", Message: err.Error(), Code: ErrMalformedYAML,
		}}}
	}

	if errs := Validate(&j); len(errs) > 0 {
		return nil, &ValidationErrors{Errors: errs}
	}
	return &j, nil
}
