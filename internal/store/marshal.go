package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/printmerge/internal/canon"
)

// marshalFields converts field values to canonical JSON TEXT for storage.
func marshalFields(fields map[string]string) (string, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := canon.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// marshalVisibility converts visibility flags to canonical JSON TEXT.
func marshalVisibility(vis map[string]bool) (string, error) {
	if vis == nil {
		vis = map[string]bool{}
	}
	data, err := canon.MarshalCanonical(vis)
	if err != nil {
		return "", fmt.Errorf("marshal visibility: %w", err)
	}
	return string(data), nil
}

func unmarshalFields(data string) (map[string]string, error) {
	fields := map[string]string{}
	if data == "" || data == "{}" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}

func unmarshalVisibility(data string) (map[string]bool, error) {
	vis := map[string]bool{}
	if data == "" || data == "{}" {
		return vis, nil
	}
	if err := json.Unmarshal([]byte(data), &vis); err != nil {
		return nil, fmt.Errorf("unmarshal visibility: %w", err)
	}
	return vis, nil
}
