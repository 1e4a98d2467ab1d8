// Package main provides the sommelier command-line client
package main

import (
	"os"

	"github.com/sommekat/sommelier/internal/infrastructure/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
