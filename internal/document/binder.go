package document

import "context"

// Binder applies values to named document placeholders.
//
// Implementations are invoked on the engine worker goroutine; callers never
// call a Binder directly from another goroutine.
type Binder interface {
	SetField(ctx context.Context, name, value string) error
	ClearField(ctx context.Context, name string) error
}

// FieldReader is implemented by binders that can report a field's current
// value.
type FieldReader interface {
	Field(name string) (string, bool)
}

// DocBinder binds into an in-memory Document.
type DocBinder struct {
	Doc *Document
}

// NewBinder returns a Binder for doc.
func NewBinder(doc *Document) *DocBinder {
	return &DocBinder{Doc: doc}
}

// SetField implements Binder.
func (b *DocBinder) SetField(_ context.Context, name, value string) error {
	return b.Doc.SetField(name, value)
}

// ClearField implements Binder.
func (b *DocBinder) ClearField(_ context.Context, name string) error {
	return b.Doc.ClearField(name)
}

// Field implements FieldReader.
func (b *DocBinder) Field(name string) (string, bool) {
	return b.Doc.Field(name)
}
