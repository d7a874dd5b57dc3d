package link

import (
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasmlog"
)

// Registry resolves a module's imports to host/extern definitions,
// keyed by module name then item name. A single Registry typically holds
// one HostModule per extern namespace plus the exports of previously
// linked modules (script/ registers those under their own module name).
type Registry struct {
	modules map[string]*HostModule

	// Log receives linker progress (import resolution, allocation,
	// init-segment application). Nil is treated as a no-op logger so
	// Registry is usable without a CLI-provided handle.
	Log *wasmlog.Logger
}

func NewRegistry() *Registry {
	return &Registry{modules: map[string]*HostModule{}}
}

func (r *Registry) log() *wasmlog.Logger {
	if r.Log == nil {
		return wasmlog.Nop()
	}
	return r.Log
}

// HostModule is a named bag of externs a Registry exposes to importers.
type HostModule struct {
	name    string
	exports map[string]ExportValue
}

func NewHostModule(name string) *HostModule {
	return &HostModule{name: name, exports: map[string]ExportValue{}}
}

func (h *HostModule) DefineFunc(name string, ft *wasm.FunctionType, fn HostFunc) *HostModule {
	h.exports[name] = ExportValue{Kind: wasm.ExternKindFunc, Func: &FuncInstance{Type: ft, Host: fn}}
	return h
}

// DefineFuncAlgebraic is DefineFunc for a host function that needs
// algebra-level access instead of only concrete arguments.
func (h *HostModule) DefineFuncAlgebraic(name string, ft *wasm.FunctionType, fn AlgebraicHostFunc) *HostModule {
	h.exports[name] = ExportValue{Kind: wasm.ExternKindFunc, Func: &FuncInstance{Type: ft, HostAlgebraic: fn}}
	return h
}

func (h *HostModule) DefineTable(name string, t *TableInstance) *HostModule {
	h.exports[name] = ExportValue{Kind: wasm.ExternKindTable, Table: t}
	return h
}

func (h *HostModule) DefineMemory(name string, m *MemoryInstance) *HostModule {
	h.exports[name] = ExportValue{Kind: wasm.ExternKindMemory, Memory: m}
	return h
}

func (h *HostModule) DefineGlobal(name string, g *GlobalInstance) *HostModule {
	h.exports[name] = ExportValue{Kind: wasm.ExternKindGlobal, Global: g}
	return h
}

// Register installs a HostModule into the registry under its own name.
// Linked instances are exposed through RegisterInstance instead.
func (r *Registry) Register(h *HostModule) { r.modules[h.name] = h }

// RegisterInstance exposes inst's exports under name, so later modules
// can import from an already-linked module.
func (r *Registry) RegisterInstance(name string, inst *Instance) {
	h := NewHostModule(name)
	for k, v := range inst.Exports {
		h.exports[k] = v
	}
	r.modules[name] = h
}

func (r *Registry) lookup(module, item string) (ExportValue, bool) {
	h, ok := r.modules[module]
	if !ok {
		return ExportValue{}, false
	}
	v, ok := h.exports[item]
	return v, ok
}
