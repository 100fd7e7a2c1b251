// Package main is the entry point for the monitor CLI.
package main

import (
	"os"

	"github.com/KafClaw/monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
