// Package document holds the in-memory document model that print runs bind
// data into.
//
// A Document is NOT safe for concurrent use. Every access after construction
// must happen on the engine worker goroutine (see engine.Worker.Call).
package document

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnknownField is returned when binding a field the document does
	// not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrReadOnlyField is returned when binding a derived field directly.
	ErrReadOnlyField = errors.New("derived field is read-only")
)

// Template describes a document before any data is bound.
type Template struct {
	// Body is the document text. {{Field}} placeholders are replaced by
	// field values; {{#Group}}...{{/Group}} sections are kept only while
	// the group is visible.
	Body string

	// Fields lists the bindable fields. Binding anything else fails with
	// ErrUnknownField.
	Fields []string

	// Derived maps a field name to a template over other fields. Derived
	// fields are re-evaluated after every mutation.
	Derived map[string]string

	// Conditions maps a visibility group to its controlling field. A group
	// is visible while that field is non-empty.
	Conditions map[string]string
}

// Snapshot is a copy of the bound state of a document.
type Snapshot struct {
	Fields     map[string]string
	Visibility map[string]bool
}

// Document is a body template plus the current field values.
type Document struct {
	name          string
	body          string
	fields        map[string]string
	declared      []string
	derived       map[string]string
	derivedValues map[string]string
	conditions    map[string]string
	evaluations   int
}

// New creates a document with every declared field empty.
func New(name string, tpl Template) *Document {
	d := &Document{
		name:          name,
		body:          tpl.Body,
		fields:        make(map[string]string, len(tpl.Fields)),
		declared:      slices.Clone(tpl.Fields),
		derived:       make(map[string]string, len(tpl.Derived)),
		derivedValues: make(map[string]string, len(tpl.Derived)),
		conditions:    make(map[string]string, len(tpl.Conditions)),
	}
	for _, f := range tpl.Fields {
		d.fields[f] = ""
	}
	for k, v := range tpl.Derived {
		d.derived[k] = v
	}
	for k, v := range tpl.Conditions {
		d.conditions[k] = v
	}
	d.evaluate()
	return d
}

// Name returns the document name.
func (d *Document) Name() string {
	return d.name
}

// SetField assigns value (NFC-normalised) to a declared field and
// re-evaluates derived fields.
func (d *Document) SetField(name, value string) error {
	if err := d.checkBindable(name); err != nil {
		return err
	}
	d.fields[name] = norm.NFC.String(value)
	d.evaluate()
	return nil
}

// ClearField empties a declared field and re-evaluates derived fields.
func (d *Document) ClearField(name string) error {
	if err := d.checkBindable(name); err != nil {
		return err
	}
	d.fields[name] = ""
	d.evaluate()
	return nil
}

func (d *Document) checkBindable(name string) error {
	if _, ok := d.derived[name]; ok {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
	}
	if _, ok := d.fields[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// Field returns the value of a plain or derived field.
func (d *Document) Field(name string) (string, bool) {
	if v, ok := d.derivedValues[name]; ok {
		return v, true
	}
	v, ok := d.fields[name]
	return v, ok
}

// FieldNames returns the declared bindable fields in declaration order.
func (d *Document) FieldNames() []string {
	return slices.Clone(d.declared)
}

// Visible reports whether a visibility group is currently shown. Unknown
// groups are hidden.
func (d *Document) Visible(group string) bool {
	field, ok := d.conditions[group]
	if !ok {
		return false
	}
	v, _ := d.Field(field)
	return strings.TrimSpace(v) != ""
}

// Evaluations counts derived-field evaluation passes since construction.
// Every SetField and ClearField performs one pass.
func (d *Document) Evaluations() int {
	return d.evaluations
}

// Snapshot copies the current field values (plain and derived) and group
// visibility.
func (d *Document) Snapshot() Snapshot {
	s := Snapshot{
		Fields:     make(map[string]string, len(d.fields)+len(d.derivedValues)),
		Visibility: make(map[string]bool, len(d.conditions)),
	}
	for k, v := range d.fields {
		s.Fields[k] = v
	}
	for k, v := range d.derivedValues {
		s.Fields[k] = v
	}
	for g := range d.conditions {
		s.Visibility[g] = d.Visible(g)
	}
	return s
}

// Render produces the document text for the current field values.
func (d *Document) Render() string {
	body := d.body
	for _, group := range sortedKeys(d.conditions) {
		body = applySection(body, group, d.Visible(group))
	}
	return Expand(body, func(name string) string {
		v, _ := d.Field(name)
		return v
	})
}

// evaluate recomputes derived fields in name order. A derived field may
// refer to plain fields and to derived fields that sort before it.
func (d *Document) evaluate() {
	d.evaluations++
	clear(d.derivedValues)
	for _, name := range sortedKeys(d.derived) {
		d.derivedValues[name] = Expand(d.derived[name], func(ref string) string {
			v, _ := d.Field(ref)
			return v
		})
	}
}

// Expand replaces every {{Name}} placeholder in tpl with lookup(Name).
// Unterminated placeholders are copied verbatim.
func Expand(tpl string, lookup func(name string) string) string {
	var b strings.Builder
	for {
		i := strings.Index(tpl, "{{")
		if i < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		j := strings.Index(tpl[i+2:], "}}")
		if j < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		b.WriteString(tpl[:i])
		b.WriteString(lookup(strings.TrimSpace(tpl[i+2 : i+2+j])))
		tpl = tpl[i+2+j+2:]
	}
}

func applySection(body, group string, visible bool) string {
	open := "{{#" + group + "}}"
	end := "{{/" + group + "}}"
	for {
		i := strings.Index(body, open)
		if i < 0 {
			return body
		}
		rest := body[i+len(open):]
		j := strings.Index(rest, end)
		if j < 0 {
			return body
		}
		inner := rest[:j]
		if !visible {
			inner = ""
		}
		body = body[:i] + inner + rest[j+len(end):]
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
