package validate

import "github.com/wasmcore/wasmcore/wasm"

type frameKind byte

const (
	frameBlock frameKind = iota
	frameLoop
	frameIf
	frameElse
	frameFunc
)

// frame is one entry of the control-frame stack: block/loop/if/else push
// one each; the function body itself is represented as the bottom frame
// so `br` targeting the outermost depth behaves like an implicit return.
type frame struct {
	kind        frameKind
	params      []StackType
	results     []StackType
	startHeight int
	unreachable bool
}

// branchTarget returns the types a `br` to this frame must leave on the
// stack: a block/if/function frame's own results, a loop frame's params
// (since branching to a loop re-enters it at the top).
func (f *frame) branchTarget() []StackType {
	if f.kind == frameLoop {
		return f.params
	}
	return f.results
}

func toStackTypes(vs []wasm.ValueType) []StackType {
	out := make([]StackType, len(vs))
	for i, v := range vs {
		out[i] = fromValueType(v)
	}
	return out
}
