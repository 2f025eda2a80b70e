package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeData converts platform-agnostic structured data (as produced by
// JSON decoding: map[string]any, string, numbers) into a typed value via a
// JSON round trip. Unknown fields are rejected so credential typos fail
// loudly instead of silently sending with defaults.
func DecodeData(data any, out any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode platform data: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode platform data: %w", err)
	}
	return nil
}
