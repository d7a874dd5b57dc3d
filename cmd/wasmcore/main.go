package main

import (
	"os"

	"github.com/wasmcore/wasmcore/cmd/wasmcore/cmd"
)

func main() {
	if err := cmd.RootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
