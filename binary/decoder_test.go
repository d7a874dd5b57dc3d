package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

// emptyModuleBytes is the minimal valid binary module: just the header.
func emptyModuleBytes() []byte {
	return append(append([]byte{}, magic[:]...), version[:]...)
}

func TestDecodeEmptyModule(t *testing.T) {
	m, err := Decode(emptyModuleBytes())
	require.NoError(t, err)
	assert.Empty(t, m.Types)
	assert.Empty(t, m.Funcs)
	assert.Nil(t, m.Start)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	bad := append([]byte{0x00, 0x61, 0x73, 0x6e}, version[:]...)
	_, err := Decode(bad)
	assert.ErrorIs(t, err, ErrMalformedMagic)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	bad := append(append([]byte{}, magic[:]...), 0x02, 0x00, 0x00, 0x00)
	_, err := Decode(bad)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestDecodeRejectsSectionSizeMismatch(t *testing.T) {
	// A type section declaring a larger size than its body actually needs:
	// one byte of vector-length (0, meaning no types) followed by a
	// dangling extra byte the size prefix claims belongs to the section.
	body := []byte{0x00, 0xff}
	b := emptyModuleBytes()
	b = append(b, byte(sectionType), byte(len(body)))
	b = append(b, body...)
	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrSectionSizeMismatch)
}

func TestDecodeRejectsOutOfOrderSections(t *testing.T) {
	b := emptyModuleBytes()
	b = append(b, byte(sectionFunction), 0x01, 0x00) // function section first
	b = append(b, byte(sectionType), 0x01, 0x00)     // then type section: out of order
	_, err := Decode(b)
	require.Error(t, err)
}

func TestDecodeKeepsCustomSectionsBetweenCanonicalOnes(t *testing.T) {
	b := emptyModuleBytes()
	b = append(b, byte(sectionType), 0x01, 0x00) // empty type section
	custom := append([]byte{4}, []byte("name")...)
	custom = append(custom, 0x00) // subsection 0 (module name), zero-length body marker elided for this test
	b = append(b, byte(sectionCustom), byte(len(custom)))
	b = append(b, custom...)
	b = append(b, byte(sectionFunction), 0x01, 0x00) // empty function section

	m, err := Decode(b)
	require.NoError(t, err)
	_, ok := m.CustomSections["name"]
	assert.True(t, ok)
}

// buildAddOneModule constructs, by hand, a module exporting a single
// function `(func (param i32) (result i32) (i32.add (local.get 0) (i32.const 1)))`
// named "addOne", to exercise a realistic round trip through Encode/Decode.
func buildAddOneModule() *ast.RawModule {
	fn := wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	return &ast.RawModule{
		Types: []ast.RawType{{Type: fn}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeI32Const, I32: 1},
				{Op: wasm.OpcodeI32Add},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "addOne", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
		CustomSections: map[string][]byte{},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := buildAddOneModule()
	encoded := Encode(original)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.Len(t, decoded.Types, 1)
	assert.True(t, decoded.Types[0].Type.Equal(&original.Types[0].Type))

	require.Len(t, decoded.Funcs, 1)
	assert.Equal(t, original.Funcs[0].Body, decoded.Funcs[0].Body)

	require.Len(t, decoded.Exports, 1)
	assert.Equal(t, "addOne", decoded.Exports[0].Name)
}
