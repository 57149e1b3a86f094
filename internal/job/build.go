package job

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/roach88/printmerge/internal/dataset"
	"github.com/roach88/printmerge/internal/document"
)

// Plan is a job resolved into the values a merge run needs.
type Plan struct {
	Name      string
	Template  document.Template
	Source    *dataset.MemorySource
	Selection dataset.Selection
	Functions []string
	Copies    int
	Simulate  bool
	Output    Output
}

// Build loads the job's rows and resolves its defaults.
//
// The template's field list is the declared document fields, or the data
// fields when none are declared, plus the implicit RecordNumber,
// SelectionNumber and stamp fields so they can always be bound.
func (j *Job) Build() (*Plan, error) {
	source, err := j.source()
	if err != nil {
		return nil, err
	}
	sel, err := dataset.ParseSelection(j.Selection)
	if err != nil {
		return nil, fmt.Errorf("selection: %w", err)
	}

	out := j.Output
	if out.Kind == "" {
		out.Kind = OutputFile
	}
	if out.StampField == "" {
		out.StampField = dataset.DefaultStampField
	}

	fields := slices.Clone(j.Document.Fields)
	if len(fields) == 0 {
		fields = source.Fields()
	}
	for _, f := range []string{dataset.RecordNumberField, dataset.SelectionNumberField, out.StampField} {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}

	functions := slices.Clone(j.Functions)
	if len(functions) == 0 {
		functions = []string{"mailmerge"}
	}
	copies := j.Copies
	if copies < 1 {
		copies = 1
	}

	return &Plan{
		Name: j.Name,
		Template: document.Template{
			Body:       j.Document.Body,
			Fields:     fields,
			Derived:    j.Document.Derived,
			Conditions: j.Document.Conditions,
		},
		Source:    source,
		Selection: sel,
		Functions: functions,
		Copies:    copies,
		Simulate:  j.Simulate,
		Output:    out,
	}, nil
}

func (j *Job) source() (*dataset.MemorySource, error) {
	if j.Data.CSV == "" {
		var fields []string
		if len(j.Data.Fields) > 0 {
			fields = slices.Clone(j.Data.Fields)
		}
		return dataset.NewMemorySource(fields, j.Data.Rows), nil
	}

	path := j.Data.CSV
	if !filepath.IsAbs(path) && j.dir != "" {
		path = filepath.Join(j.dir, path)
	}
	src, err := dataset.LoadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	return src, nil
}
