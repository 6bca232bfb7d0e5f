package main

import (
	"fmt"
	"os"

	"github.com/ctcdecode/ctcdecode/cmd/ctcdecode/cmd"
	"github.com/ctcdecode/ctcdecode/internal/version"
)

func main() {
	v, commit, date := version.Info()
	cmd.SetVersionInfo(fmt.Sprintf("%s (commit: %s, built: %s)", v, commit, date))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
