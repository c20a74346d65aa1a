// Package main writes the surplus-ml CLI reference as markdown or man pages.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/donaldgifford/surplus-ml/cmd/surplus-ml/cmd"
)

func main() {
	output := flag.String("output", "docs/cli", "output directory")
	format := flag.String("format", "markdown", "output format (markdown, man)")
	flag.Parse()

	if err := run(*output, *format); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("CLI %s docs generated in %s/\n", *format, *output)
}

func run(dir, format string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	root := cmd.Root()
	root.DisableAutoGenTag = true

	switch format {
	case "markdown":
		return doc.GenMarkdownTree(root, dir)
	case "man":
		return doc.GenManTree(root, &doc.GenManHeader{
			Title:   "SURPLUS-ML",
			Section: "1",
			Source:  "surplus-ml " + cmd.Version,
		}, dir)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
