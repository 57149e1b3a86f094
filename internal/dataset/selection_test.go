package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSelection_Resolve(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		rows int
		want []int
	}{
		{"all", All(), 4, []int{0, 1, 2, 3}},
		{"all empty", All(), 0, []int{}},
		{"range swapped", Range(5, 2), 10, []int{1, 2, 3, 4}},
		{"range clamped", Range(0, 100), 10, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"range start past end of data", Range(12, 3), 10, []int{2, 3, 4, 5, 6, 7, 8, 9}},
		{"range single", Range(3, 3), 10, []int{2}},
		{"range negative end", Range(8, -1), 10, []int{7, 8, 9}},
		{"range on empty source", Range(1, 5), 0, []int{}},
		{"individual verbatim", Individual(2, 0, 7), 5, []int{2, 0, 7}},
		{"individual duplicates", Individual(1, 1), 5, []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.Resolve(tt.rows))
		})
	}
}

func TestSelection_ResolveDoesNotAliasIndices(t *testing.T) {
	sel := Individual(4, 5)
	got := sel.Resolve(10)
	got[0] = 99
	assert.Equal(t, []int{4, 5}, sel.Indices)
}

func TestSelection_AllProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 500).Draw(rt, "rows")
		got := All().Resolve(n)
		require.Len(rt, got, n)
		for i, v := range got {
			require.Equal(rt, i, v)
		}
	})
}

func TestSelection_RangeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(rt, "rows")
		start := rapid.IntRange(-50, 300).Draw(rt, "start")
		end := rapid.IntRange(-50, 300).Draw(rt, "end")

		got := Range(start, end).Resolve(n)

		require.NotEmpty(rt, got)
		require.LessOrEqual(rt, len(got), n)
		for i, v := range got {
			require.GreaterOrEqual(rt, v, 0)
			require.Less(rt, v, n)
			if i > 0 {
				require.Equal(rt, got[i-1]+1, v, "range must be contiguous and ascending")
			}
		}
	})
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in   string
		want Selection
	}{
		{"", All()},
		{"ALL", All()},
		{"3-7", Range(3, 7)},
		{" 7 - 3 ", Range(7, 3)},
		{"1,4,9", Individual(0, 3, 8)},
		{"4", Individual(3)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSelection(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"a-b", "1,x", "3-"} {
		_, err := ParseSelection(bad)
		assert.Error(t, err, bad)
	}
}

func TestSelection_StringRoundTrip(t *testing.T) {
	for _, sel := range []Selection{All(), Range(2, 9), Individual(0, 3, 8)} {
		parsed, err := ParseSelection(sel.String())
		require.NoError(t, err)
		assert.Equal(t, sel, parsed)
	}
}
