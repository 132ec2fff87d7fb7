// Package main is the entry point for the emberwatch CLI.
package main

import (
	"os"

	"github.com/emberwatch-io/emberwatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
