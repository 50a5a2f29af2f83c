package main

import (
	"fmt"
	"os"

	"github.com/aescanero/dagrun/internal/cli"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := cli.NewRootCommand(Version, BuildTime).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
