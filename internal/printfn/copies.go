package printfn

import "context"

// CopiesOrder is the chain position key of the copies function.
const CopiesOrder = 60

// Copies advances the chain once per requested copy (prop "copies",
// default 1), reporting progress per copy.
func Copies(ctx context.Context, s *Stage) error {
	n := s.Props().Int(PropCopies, 1)
	if n < 1 {
		n = 1
	}
	s.SetProgressMax(n)
	defer s.SetProgressMax(0)

	for i := 0; i < n; i++ {
		if s.Cancelled() {
			return ErrCancelled
		}
		if err := s.Advance(ctx); err != nil {
			return err
		}
		s.SetProgressValue(i + 1)
	}
	return nil
}

// RegisterBuiltins registers the print functions this package provides.
func RegisterBuiltins(r *Registry) error {
	return r.Register("copies", CopiesOrder, Copies)
}
