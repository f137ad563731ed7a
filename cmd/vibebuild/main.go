// Package main provides the entry point for the vibe-build CLI.
package main

import (
	"fmt"
	"os"

	"github.com/WilliamStanton/vibe-build/cmd/vibebuild/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
