package module

import (
	"fmt"

	"github.com/wasmcore/wasmcore/binary"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/rewrite"
	"github.com/wasmcore/wasmcore/validate"
)

// Compile runs the full decode -> index -> rewrite -> validate -> build
// pipeline over a binary-encoded module, returning the immutable record
// link.Link and interp.Machine operate on.
func Compile(bin []byte) (*Module, error) {
	raw, err := binary.Decode(bin)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	ix, err := indexer.Index(raw)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	if _, err := rewrite.Rewrite(ix); err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}
	if _, err := validate.Validate(ix); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return Build(ix), nil
}
