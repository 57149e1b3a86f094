package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"strings", []string{"b", "a"}, `["b","a"]`},
		{"ints", []int{3, 1}, "[3,1]"},
		{"string map", map[string]string{"b": "2", "a": "1"}, `{"a":"1","b":"2"}`},
		{"bool map", map[string]bool{"vip": true}, `{"vip":true}`},
		{"no html escaping", "<a & b>", `"<a & b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNested(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"z": map[string]int{"b": 1, "a": 2},
		"a": []any{"x", 1, false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",1,false],"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair D800 DC00, which sorts before
	// U+E000 in UTF-16 but after it in UTF-8.
	result, err := MarshalCanonical(map[string]int{
		"\uE000":     1,
		"\U00010000": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	result, err := MarshalCanonical("Cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"Caf\u00e9\"", string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(`x\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for _, v := range []any{nil, 1.5, float32(2), struct{}{}, []any{nil}} {
		_, err := MarshalCanonical(v)
		assert.Error(t, err, "%#v", v)
	}
}

func TestCaptureID(t *testing.T) {
	fields := map[string]string{"Name": "Ada"}
	vis := map[string]bool{"company": false}

	id1, err := CaptureID("run-1", 0, fields, vis)
	require.NoError(t, err)
	id2, err := CaptureID("run-1", 0, map[string]string{"Name": "Ada"}, map[string]bool{"company": false})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)

	other, err := CaptureID("run-1", 1, fields, vis)
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)

	otherRun, err := CaptureID("run-2", 0, fields, vis)
	require.NoError(t, err)
	assert.NotEqual(t, id1, otherRun)

	empty, err := CaptureID("run-1", 0, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, empty)
}
