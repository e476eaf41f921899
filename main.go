package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mrlokans/annotator/internal/cli"
	"github.com/mrlokans/annotator/internal/config"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cfg := config.NewConfig()

	if err := cli.RootCommand(cfg, Version+" ("+Commit+")").ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
