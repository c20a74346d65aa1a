// Package main is the entry point for surplus-ml.
package main

import (
	"os"

	"github.com/donaldgifford/surplus-ml/cmd/surplus-ml/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
