package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wasmcore/wasmcore/interp"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/solver"
	"github.com/wasmcore/wasmcore/wasm"
)

// maxSymPaths bounds how many forked paths sym will replay, since
// BruteForce's search is not guaranteed to terminate the fork queue in
// any particular number of steps and a module can branch on more
// symbols than any fixed budget can enumerate exhaustively.
const maxSymPaths = 64

var symCommand = &cobra.Command{
	Use:   "sym <module.wasm> <export>",
	Short: "Explore the feasible paths through an export symbolically (at most 64 runs)",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSym(args[0], args[1], os.Stdout)
	},
}

func init() {
	RootCommand.AddCommand(symCommand)
}

// runSym links mod and calls export once per feasible path, introducing
// one fresh symbol of each parameter's declared type on every run and
// replaying with each recorded fork's predicate pre-assumed until no
// unexplored fork remains or maxSymPaths is reached.
func runSym(path, export string, out *os.File) error {
	log := logger()
	bin, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	mod, err := module.Compile(bin)
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}

	reg := link.NewRegistry()
	reg.Log = log
	reg.Register(interp.NewSymbolicHostModule())
	inst, err := link.Link(mod, reg)
	if err != nil {
		return fmt.Errorf("link %s: %w", path, err)
	}
	ex, ok := inst.Exports[export]
	if !ok || ex.Kind != wasm.ExternKindFunc {
		return fmt.Errorf("export %q not found", export)
	}

	sv := solver.NewBruteForce()
	pending := [][]solver.Expr{nil}
	explored := 0

	for len(pending) > 0 && explored < maxSymPaths {
		assumed := pending[0]
		pending = pending[1:]
		explored++

		alg := interp.NewSymbolic(sv)
		alg.Path = append([]solver.Expr{}, assumed...)

		args := make([]interp.Value, len(ex.Func.Type.Params))
		for i, pt := range ex.Func.Type.Params {
			args[i] = alg.Symbol(pt, "")
		}

		m := interp.NewMachine(inst, alg)
		m.Log = log
		results, callErr := m.CallExported(export, args)

		fmt.Fprintf(out, "path %d (assuming %d predicates): ", explored, len(assumed))
		if callErr != nil {
			fmt.Fprintf(out, "trap: %v\n", callErr)
		} else {
			fmt.Fprintf(out, "ok, %d result(s)\n", len(results))
		}

		for _, fork := range alg.Forks {
			pending = append(pending, append(append([]solver.Expr{}, assumed...), fork))
		}
	}

	if len(pending) > 0 {
		fmt.Fprintf(out, "stopped after %d paths with %d unexplored fork(s) remaining\n", explored, len(pending))
	}
	return nil
}
