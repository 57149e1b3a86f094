package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainCapture separates capture ids from any other hash of the same
// bytes. The version suffix allows the algorithm to change later.
const DomainCapture = "printmerge/capture/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureID computes the content-addressed id of one captured row.
// The same run, row index and captured values always give the same id.
func CaptureID(runID string, index int, fields map[string]string, visibility map[string]bool) (string, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	if visibility == nil {
		visibility = map[string]bool{}
	}
	data, err := MarshalCanonical(map[string]any{
		"run_id":     runID,
		"index":      index,
		"fields":     fields,
		"visibility": visibility,
	})
	if err != nil {
		return "", fmt.Errorf("capture id: %w", err)
	}
	return hashWithDomain(DomainCapture, data), nil
}
