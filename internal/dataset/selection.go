package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// SelectionKind tags a Selection.
type SelectionKind int

const (
	// SelectAll selects every row.
	SelectAll SelectionKind = iota
	// SelectRange selects a contiguous 1-based inclusive range.
	SelectRange
	// SelectIndividual selects an explicit list of 0-based indices.
	SelectIndividual
)

// String returns the kind name.
func (k SelectionKind) String() string {
	switch k {
	case SelectAll:
		return "all"
	case SelectRange:
		return "range"
	case SelectIndividual:
		return "individual"
	default:
		return fmt.Sprintf("SelectionKind(%d)", int(k))
	}
}

// Selection describes which rows a merge processes.
//
// RANGE endpoints are 1-based, the way they are shown to a user, and are
// clamped on Resolve. INDIVIDUAL indices are already 0-based and are used
// verbatim, without clamping or validation.
type Selection struct {
	Kind    SelectionKind
	Start   int
	End     int
	Indices []int
}

// All selects every row.
func All() Selection {
	return Selection{Kind: SelectAll}
}

// Range selects rows start..end (1-based, inclusive).
func Range(start, end int) Selection {
	return Selection{Kind: SelectRange, Start: start, End: end}
}

// Individual selects the given 0-based indices in the given order.
func Individual(indices ...int) Selection {
	return Selection{Kind: SelectIndividual, Indices: append([]int(nil), indices...)}
}

// Resolve turns the selection into the ordered 0-based row indices to
// process against a source of rowCount rows.
//
// RANGE clamping, applied in order: start < 1 becomes 1; end < 1 or
// end > rowCount becomes rowCount; start > rowCount becomes rowCount;
// start > end swaps the two.
func (s Selection) Resolve(rowCount int) []int {
	switch s.Kind {
	case SelectRange:
		if rowCount <= 0 {
			return []int{}
		}
		start, end := s.Start, s.End
		if start < 1 {
			start = 1
		}
		if end < 1 || end > rowCount {
			end = rowCount
		}
		if start > rowCount {
			start = rowCount
		}
		if start > end {
			start, end = end, start
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i-1)
		}
		return out

	case SelectIndividual:
		return append([]int{}, s.Indices...)

	default:
		if rowCount < 0 {
			rowCount = 0
		}
		out := make([]int, rowCount)
		for i := range out {
			out[i] = i
		}
		return out
	}
}

// String renders the selection in the syntax ParseSelection accepts.
func (s Selection) String() string {
	switch s.Kind {
	case SelectRange:
		return fmt.Sprintf("%d-%d", s.Start, s.End)
	case SelectIndividual:
		parts := make([]string, len(s.Indices))
		for i, idx := range s.Indices {
			parts[i] = strconv.Itoa(idx + 1)
		}
		return strings.Join(parts, ",")
	default:
		return "all"
	}
}

// ParseSelection parses user-facing, 1-based selection text:
//
//	"" or "all"  every row
//	"3-7"        rows 3 through 7
//	"1,4,9"      rows 1, 4 and 9, in that order
//	"4"          row 4 only
//
// Individual row numbers are converted to 0-based indices here; nothing is
// range-checked.
func ParseSelection(text string) (Selection, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "all") {
		return All(), nil
	}

	if start, end, ok := strings.Cut(text, "-"); ok && !strings.Contains(text, ",") && start != "" {
		a, err := strconv.Atoi(strings.TrimSpace(start))
		if err != nil {
			return Selection{}, fmt.Errorf("invalid range start %q: %w", start, err)
		}
		b, err := strconv.Atoi(strings.TrimSpace(end))
		if err != nil {
			return Selection{}, fmt.Errorf("invalid range end %q: %w", end, err)
		}
		return Range(a, b), nil
	}

	parts := strings.Split(text, ",")
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Selection{}, fmt.Errorf("invalid row number %q: %w", p, err)
		}
		indices = append(indices, n-1)
	}
	return Individual(indices...), nil
}
