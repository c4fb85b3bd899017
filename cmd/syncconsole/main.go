// Package main is the entry point for the replication console.
package main

import (
	"os"

	"github.com/goliatone/go-syncconsole/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
