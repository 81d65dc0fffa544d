// Package main provides the DashQL command-line interface.
package main

import (
	"os"

	"github.com/leapstack-labs/dashql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
