// Package binary decodes (and, for round-trip testing, re-encodes) the
// canonical WebAssembly binary format into an ast.RawModule.
package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/leb128"
)

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}
var version = [4]byte{0x01, 0x00, 0x00, 0x00}

// sectionID enumerates the 12 canonical section kinds plus custom (0),
// in their required binary order.
type sectionID byte

const (
	sectionCustom   sectionID = 0
	sectionType     sectionID = 1
	sectionImport   sectionID = 2
	sectionFunction sectionID = 3
	sectionTable    sectionID = 4
	sectionMemory   sectionID = 5
	sectionGlobal   sectionID = 6
	sectionExport   sectionID = 7
	sectionStart    sectionID = 8
	sectionElement  sectionID = 9
	sectionDataCnt  sectionID = 12
	sectionCode     sectionID = 10
	sectionData     sectionID = 11
)

// canonicalOrder lists the standard (non-custom) sections in the order
// the binary format requires them to appear; custom sections may appear
// between any two of these.
var canonicalOrder = []sectionID{
	sectionType, sectionImport, sectionFunction, sectionTable, sectionMemory,
	sectionGlobal, sectionExport, sectionStart, sectionElement, sectionDataCnt,
	sectionCode, sectionData,
}

func canonicalRank(id sectionID) int {
	for i, s := range canonicalOrder {
		if s == id {
			return i
		}
	}
	return -1
}

// Decode parses a complete binary module into a raw, not-yet-indexed AST.
func Decode(bin []byte) (*ast.RawModule, error) {
	r := bytes.NewReader(bin)

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil || hdr != magic {
		return nil, ErrMalformedMagic
	}
	if _, err := io.ReadFull(r, hdr[:]); err != nil || hdr != version {
		return nil, ErrUnknownVersion
	}

	d := &decoderState{r: r, mod: &ast.RawModule{CustomSections: map[string][]byte{}}}
	if err := d.readSections(); err != nil {
		return nil, err
	}
	if len(d.funcTypeRefs) != len(d.mod.Funcs) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths")
	}
	for i, tr := range d.funcTypeRefs {
		d.mod.Funcs[i].TypeRef = tr
	}
	return d.mod, nil
}

// decoderState threads the declared function-section type indices through
// to the point where code-section bodies are attached to them.
type decoderState struct {
	r            *bytes.Reader
	mod          *ast.RawModule
	funcTypeRefs []ast.Ref
	lastRank     int
}

func (d *decoderState) readSections() error {
	for {
		if d.r.Len() == 0 {
			return nil
		}
		if err := d.readSection(); err != nil {
			return err
		}
	}
}

func (d *decoderState) readSection() error {
	idByte, err := d.r.ReadByte()
	if err != nil {
		return fmt.Errorf("read section id: %w", err)
	}
	id := sectionID(idByte)

	size, _, err := leb128.DecodeUint32(d.r)
	if err != nil {
		return fmt.Errorf("read size of section %d: %w", id, err)
	}
	if uint64(d.r.Len()) < uint64(size) {
		return ErrUnexpectedEnd
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return fmt.Errorf("read section %d body: %w", id, err)
	}
	br := bytes.NewReader(body)

	if id != sectionCustom {
		rank := canonicalRank(id)
		if rank < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidSectionID, id)
		}
		if rank < d.lastRank {
			return fmt.Errorf("section %d out of canonical order", id)
		}
		d.lastRank = rank
	}

	switch id {
	case sectionCustom:
		name, err := readName(br)
		if err != nil {
			return fmt.Errorf("read custom section name: %w", err)
		}
		rest := make([]byte, br.Len())
		if _, err := io.ReadFull(br, rest); err != nil {
			return fmt.Errorf("read custom section body: %w", err)
		}
		d.mod.CustomSections[name] = rest
		return nil
	case sectionType:
		err = d.readTypeSection(br)
	case sectionImport:
		err = d.readImportSection(br)
	case sectionFunction:
		err = d.readFunctionSection(br)
	case sectionTable:
		err = d.readTableSection(br)
	case sectionMemory:
		err = d.readMemorySection(br)
	case sectionGlobal:
		err = d.readGlobalSection(br)
	case sectionExport:
		err = d.readExportSection(br)
	case sectionStart:
		err = d.readStartSection(br)
	case sectionElement:
		err = d.readElementSection(br)
	case sectionDataCnt:
		// Data-count section: only used to preallocate; this core decodes
		// eagerly, so the declared count is read and discarded.
		_, _, err = leb128.DecodeUint32(br)
	case sectionCode:
		err = d.readCodeSection(br)
	case sectionData:
		err = d.readDataSection(br)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidSectionID, id)
	}
	if err != nil {
		return fmt.Errorf("section %d: %w", id, err)
	}
	if br.Len() != 0 {
		return fmt.Errorf("%w: section %d has %d unread trailing bytes", ErrSectionSizeMismatch, id, br.Len())
	}
	return nil
}

func readName(r *bytes.Reader) (string, error) {
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", fmt.Errorf("read name length: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read name bytes: %w", err)
	}
	return string(buf), nil
}

func readVectorLen(r *bytes.Reader) (uint32, error) {
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return 0, fmt.Errorf("read vector length: %w", err)
	}
	return n, nil
}

func readIndexRef(r *bytes.Reader) (ast.Ref, error) {
	i, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return ast.Ref{}, err
	}
	return ast.ByIndex(i), nil
}
