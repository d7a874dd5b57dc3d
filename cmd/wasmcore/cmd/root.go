package cmd

import (
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/wasmcore/wasmcore/wasmlog"
)

// sharedFlags are accepted by every subcommand. debug selects wasmlog's
// development logger; profiling makes run log the wall-clock time of its
// export call; optimize is accepted and has no effect.
type sharedFlags struct {
	debug      bool
	optimize   bool
	profiling  bool
}

var flags sharedFlags

// RootCommand is the base CLI command every subcommand attaches to.
var RootCommand = &cobra.Command{
	Use:           path.Base(os.Args[0]),
	Short:         "wasmcore - a WebAssembly decode/link/interpret toolchain",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	RootCommand.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable verbose logging")
	RootCommand.PersistentFlags().BoolVar(&flags.optimize, "optimize", false, "accepted; has no effect")
	RootCommand.PersistentFlags().BoolVar(&flags.profiling, "profiling", false, "log wall-clock timing for interpretation")
}

func logger() *wasmlog.Logger { return wasmlog.New(flags.debug) }
