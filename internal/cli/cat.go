package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rangezip/rangezip"
)

type Cat struct {
	commonOptions
	Args struct {
		URL     string   `positional-arg-name:"url" description:"https:// or s3://bucket/key location of the archive" required:"yes"`
		Entries []string `positional-arg-name:"entry" description:"names of the entries to print, in order" required:"yes"`
	} `positional-args:"yes"`

	configLoader
}

func (c *Cat) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	a, err := c.openArchive(ctx, c.Args.URL, c.archiveOptions())
	if err != nil {
		return err
	}
	defer a.Close()

	// one catalog build serves every lookup.
	entries, err := a.Entries(ctx)
	if err != nil {
		return fmt.Errorf("read catalog error: %w", err)
	}

	byName := make(map[string]rangezip.Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	for _, name := range c.Args.Entries {
		e, ok := byName[name]
		if !ok {
			return fmt.Errorf("no entry named %q in the archive", name)
		}

		data, err := a.ExtractEntry(ctx, e)
		if err != nil {
			return fmt.Errorf("extract %q error: %w", name, err)
		}
		if _, err = os.Stdout.Write(data); err != nil {
			return fmt.Errorf("write %q error: %w", name, err)
		}
	}

	return nil
}
