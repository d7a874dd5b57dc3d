package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmcore/wasmcore/leb128"
)

// NameSection holds the decoded contents of the standard custom "name"
// section (§12 supplement): diagnostics only, never consulted by
// validate/link/interp.
type NameSection struct {
	ModuleName    string
	FunctionNames map[uint32]string
	LocalNames    map[uint32]map[uint32]string
}

// DecodeNameSection parses the raw bytes of a "name" custom section, as
// retained verbatim in ast.RawModule.CustomSections["name"].
func DecodeNameSection(data []byte) (*NameSection, error) {
	r := bytes.NewReader(data)
	ns := &NameSection{FunctionNames: map[uint32]string{}, LocalNames: map[uint32]map[uint32]string{}}
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read subsection id: %w", err)
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read subsection %d size: %w", id, err)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("read subsection %d body: %w", id, err)
		}
		br := bytes.NewReader(body)
		switch id {
		case 0:
			name, err := readName(br)
			if err != nil {
				return nil, fmt.Errorf("module name: %w", err)
			}
			ns.ModuleName = name
		case 1:
			if err := readNameMap(br, ns.FunctionNames); err != nil {
				return nil, fmt.Errorf("function names: %w", err)
			}
		case 2:
			n, err := readVectorLen(br)
			if err != nil {
				return nil, fmt.Errorf("local names count: %w", err)
			}
			for i := uint32(0); i < n; i++ {
				fnIdx, _, err := leb128.DecodeUint32(br)
				if err != nil {
					return nil, fmt.Errorf("local names func index: %w", err)
				}
				m := map[uint32]string{}
				if err := readNameMap(br, m); err != nil {
					return nil, fmt.Errorf("local names for func %d: %w", fnIdx, err)
				}
				ns.LocalNames[fnIdx] = m
			}
		}
		// Unknown subsection ids are skipped (already consumed via body).
	}
	return ns, nil
}

func readNameMap(r *bytes.Reader, into map[uint32]string) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return fmt.Errorf("%d-th index: %w", i, err)
		}
		name, err := readName(r)
		if err != nil {
			return fmt.Errorf("%d-th name: %w", i, err)
		}
		into[idx] = name
	}
	return nil
}
