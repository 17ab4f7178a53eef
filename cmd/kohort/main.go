package main

import (
	_ "embed"
	"strings"

	"github.com/seuros/kohort/internal/cli"
	"github.com/seuros/kohort/internal/logging"
)

//go:embed VERSION
var versionFile string

var executeCLI = cli.Execute

func run() error {
	return executeCLI(strings.TrimSpace(versionFile))
}

func main() {
	if err := run(); err != nil {
		logging.Fatal("kohort execution failed", "error", err)
	}
}
