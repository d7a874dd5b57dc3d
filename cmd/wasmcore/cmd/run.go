package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasmcore/wasmcore/interp"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/module"
)

var runCommand = &cobra.Command{
	Use:   "run <module.wasm> [export]",
	Short: "Link and run a module concretely, optionally invoking a zero-argument export",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		return runModule(args[0], args[1:], os.Stdout)
	},
}

func init() {
	RootCommand.AddCommand(runCommand)
}

func runModule(path string, rest []string, out *os.File) error {
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
	alg := interp.Concrete{}
	var m *interp.Machine

	runStart := func(inst *link.Instance, idx uint32) error {
		m = interp.NewMachine(inst, alg)
		m.Log = log
		_, err := m.CallByIndex(idx, nil)
		return err
	}
	inst, err := link.Instantiate(mod, reg, runStart)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", path, err)
	}
	if m == nil {
		m = interp.NewMachine(inst, alg)
		m.Log = log
	}

	if len(rest) == 0 {
		fmt.Fprintln(out, "ok")
		return nil
	}

	started := time.Now()
	results, err := m.CallExported(rest[0], nil)
	if flags.profiling {
		log.Infof("call %s took %s", rest[0], time.Since(started))
	}
	if err != nil {
		return fmt.Errorf("call %s: %w", rest[0], err)
	}
	fmt.Fprintln(out, results)
	return nil
}
