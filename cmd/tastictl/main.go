package main

import (
	"fmt"
	"os"

	"github.com/tasti/api/internal/cli"
)

// version is set by build flags.
var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
