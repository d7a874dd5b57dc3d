package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wasmcore/wasmcore/script"
)

var scriptCommand = &cobra.Command{
	Use:   "script <script.json>",
	Short: "Run a reference test-suite script (module/register/invoke/assert_* directives)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runScript(args[0], os.Stdout)
	},
}

func init() {
	RootCommand.AddCommand(scriptCommand)
}

func runScript(path string, out *os.File) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	s, err := script.Parse(data)
	if err != nil {
		return err
	}

	r := script.NewRunner(filepath.Dir(path))
	r.Log = logger()
	if err := r.Run(s); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d commands passed\n", len(s.Commands))
	return nil
}
