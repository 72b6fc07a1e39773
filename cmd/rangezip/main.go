package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rangezip/rangezip/internal/cli"
)

func main() {
	p, err := cli.NewParser()
	if err != nil {
		os.Exit(1)
	}

	if _, err = p.Parse(); err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
