package testutil

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/printmerge/internal/canon"
)

// AssertCanonicalGolden marshals v as canonical JSON and compares it with
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run the package tests with -update.
func AssertCanonicalGolden(t *testing.T, name string, v any) {
	t.Helper()

	data, err := canon.MarshalCanonical(v)
	if err != nil {
		t.Fatalf("canonical marshal: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
