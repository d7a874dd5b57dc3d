package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/wasmcore/wasmcore/interp"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasmlog"
)

// Runner drives a Script's commands sequentially against a shared
// link.Registry, so a later module can import from an earlier one via
// register. One Runner corresponds to one .wast-derived script file.
type Runner struct {
	Reg *link.Registry
	Alg interp.Algebra
	Log *wasmlog.Logger

	baseDir  string
	modules  map[string]*link.Instance
	machines map[*link.Instance]*interp.Machine
	last     *link.Instance
}

// NewRunner builds a Runner whose module/assert_malformed/assert_invalid
// filenames resolve relative to baseDir (the script file's directory).
func NewRunner(baseDir string) *Runner {
	return &Runner{
		Reg:      link.NewRegistry(),
		Alg:      interp.Concrete{},
		Log:      wasmlog.Nop(),
		baseDir:  baseDir,
		modules:  map[string]*link.Instance{},
		machines: map[*link.Instance]*interp.Machine{},
	}
}

func (r *Runner) log() *wasmlog.Logger {
	if r.Log == nil {
		return wasmlog.Nop()
	}
	return r.Log
}

// Run executes every command, collecting failures via multierr rather
// than stopping at the first one: each assertion is independent, unlike
// the fail-fast decode/index/rewrite/validate/link pipeline stages.
func (r *Runner) Run(s *Script) error {
	var errs error
	for i := range s.Commands {
		c := &s.Commands[i]
		if err := r.runCommand(c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d (%s): %w", c.Line, c.Type, err))
		}
	}
	return errs
}

func (r *Runner) runCommand(c *Command) error {
	switch c.Type {
	case "module":
		return r.doModule(c)
	case "register":
		return r.doRegister(c)
	case "action":
		_, _, err := r.doAction(&c.Action)
		return err
	case "assert_return":
		return r.doAssertReturn(c)
	case "assert_trap":
		return r.doAssertTrap(c)
	case "assert_malformed":
		return r.doAssertMalformed(c)
	case "assert_invalid":
		return r.doAssertInvalid(c)
	default:
		return fmt.Errorf("unsupported command type %q", c.Type)
	}
}

func (r *Runner) readModule(filename string) (*module.Module, error) {
	bin, err := os.ReadFile(filepath.Join(r.baseDir, filename))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return module.Compile(bin)
}

func (r *Runner) doModule(c *Command) error {
	mod, err := r.readModule(c.Filename)
	if err != nil {
		return err
	}
	inst, err := link.Instantiate(mod, r.Reg, r.runStart)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", c.Filename, err)
	}
	r.last = inst
	if c.Name != "" {
		r.modules[c.Name] = inst
	}
	r.log().Debugf("loaded module %s", c.Filename)
	return nil
}

func (r *Runner) runStart(inst *link.Instance, idx uint32) error {
	m := r.machineFor(inst)
	_, err := m.CallByIndex(idx, nil)
	return err
}

func (r *Runner) doRegister(c *Command) error {
	inst, err := r.resolve(c.Name)
	if err != nil {
		return err
	}
	r.Reg.RegisterInstance(c.As, inst)
	return nil
}

func (r *Runner) resolve(name string) (*link.Instance, error) {
	if name == "" {
		if r.last == nil {
			return nil, fmt.Errorf("no module defined yet")
		}
		return r.last, nil
	}
	inst, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	return inst, nil
}

func (r *Runner) machineFor(inst *link.Instance) *interp.Machine {
	m, ok := r.machines[inst]
	if !ok {
		m = interp.NewMachine(inst, r.Alg)
		m.Log = r.log()
		r.machines[inst] = m
	}
	return m
}

// doAction runs an invoke or get action and returns its results as
// link.Value (converted out of whatever algebra the machine runs
// under) for the caller to compare or discard.
func (r *Runner) doAction(a *Action) ([]link.Value, *wasm.Trap, error) {
	inst, err := r.resolve(a.Module)
	if err != nil {
		return nil, nil, err
	}
	m := r.machineFor(inst)

	switch a.Type {
	case "invoke":
		linkArgs, err := argsToLink(a.Args)
		if err != nil {
			return nil, nil, err
		}
		results, err := m.CallExported(a.Field, argsToInterp(r.Alg, linkArgs))
		if err != nil {
			if trap, ok := err.(*wasm.Trap); ok {
				return nil, trap, nil
			}
			return nil, nil, err
		}
		out := make([]link.Value, len(results))
		for i, v := range results {
			lv, ok := interp.ToLink(r.Alg, v)
			if !ok {
				return nil, nil, fmt.Errorf("result %d has no concrete witness", i)
			}
			out[i] = lv
		}
		return out, nil, nil

	case "get":
		ex, ok := inst.Exports[a.Field]
		if !ok || ex.Kind != wasm.ExternKindGlobal {
			return nil, nil, fmt.Errorf("exported global %q not found", a.Field)
		}
		return []link.Value{ex.Global.Value}, nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported action type %q", a.Type)
}

func (r *Runner) doAssertReturn(c *Command) error {
	results, trap, err := r.doAction(&c.Action)
	if err != nil {
		return err
	}
	if trap != nil {
		return fmt.Errorf("expected return, trapped: %v", trap)
	}
	if len(results) != len(c.Expected) {
		return fmt.Errorf("expected %d results, got %d", len(c.Expected), len(results))
	}
	for i, want := range c.Expected {
		ok, err := valsEqual(results[i], want)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("result %d: expected %s %s, got %v", i, want.Type, want.Value, results[i])
		}
	}
	return nil
}

func (r *Runner) doAssertTrap(c *Command) error {
	_, trap, err := r.doAction(&c.Action)
	if err != nil {
		return err
	}
	if trap == nil {
		return fmt.Errorf("expected trap %q, call returned normally", c.Text)
	}
	if c.Text != "" && !strings.Contains(trap.Reason, c.Text) {
		return fmt.Errorf("expected trap containing %q, got %q", c.Text, trap.Reason)
	}
	return nil
}

func (r *Runner) doAssertMalformed(c *Command) error {
	_, err := r.readModule(c.Filename)
	if err == nil {
		return fmt.Errorf("expected malformed module %s to fail decoding", c.Filename)
	}
	return nil
}

func (r *Runner) doAssertInvalid(c *Command) error {
	_, err := r.readModule(c.Filename)
	if err == nil {
		return fmt.Errorf("expected invalid module %s to fail validation", c.Filename)
	}
	return nil
}
