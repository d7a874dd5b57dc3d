package script

import (
	"encoding/json"
	"fmt"
)

// Parse decodes a script file in the wast2json command format (the JSON
// sidecar wast2json produces alongside the per-command .wasm files).
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return &s, nil
}
