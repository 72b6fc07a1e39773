package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rangezip/rangezip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Get struct {
	commonOptions
	Dir            string `short:"d" long:"dir" description:"directory receiving the extracted files; a fresh directory named after the archive when not given"`
	MaxConcurrency int    `short:"P" long:"max-concurrency" default:"4" description:"ranged GETs in flight at a time"`
	Stream         bool   `long:"stream" description:"walk the archive sequentially in a single request instead of one ranged GET per entry; fewer requests but possibly more bytes"`
	Args           struct {
		URL     string   `positional-arg-name:"url" description:"https:// or s3://bucket/key location of the archive" required:"yes"`
		Entries []string `positional-arg-name:"entry" description:"names of the entries to extract; every file in the archive if none are given"`
	} `positional-args:"yes"`

	configLoader
}

func (c *Get) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max-concurrency must be at least 1")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	a, err := c.openArchive(ctx, c.Args.URL, c.archiveOptions())
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.Entries(ctx)
	if err != nil {
		return fmt.Errorf("read catalog error: %w", err)
	}

	selected, err := c.pick(entries)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		log.Printf("nothing to extract")
		return nil
	}

	if c.Dir == "" {
		if c.Dir, err = mkExclDir(".", archiveStem(c.Args.URL)); err != nil {
			return err
		}
		log.Printf(`extracting into "%s"`, c.Dir)
	}

	if c.Stream {
		return c.streamExtract(ctx, a, selected)
	}
	return c.parallelExtract(ctx, a, selected)
}

// pick resolves the requested entry names against the catalog, or picks
// every file in the archive when no names were given.
func (c *Get) pick(entries []rangezip.Entry) ([]rangezip.Entry, error) {
	if len(c.Args.Entries) == 0 {
		selected := make([]rangezip.Entry, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				selected = append(selected, e)
			}
		}
		return selected, nil
	}

	byName := make(map[string]rangezip.Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	selected := make([]rangezip.Entry, 0, len(c.Args.Entries))
	for _, name := range c.Args.Entries {
		e, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no entry named %q in the archive", name)
		}
		if e.IsDir() {
			return nil, fmt.Errorf("entry %q is a directory", name)
		}
		selected = append(selected, e)
	}
	return selected, nil
}

// parallelExtract issues one ranged GET per entry, up to MaxConcurrency at
// a time. Entries that fail to extract are logged and skipped; the batch
// stops early only on interrupt.
func (c *Get) parallelExtract(ctx context.Context, a *rangezip.Archive, selected []rangezip.Entry) error {
	var total int64
	for _, e := range selected {
		total += int64(e.CompressedSize)
	}
	bar := defaultBytes(total, fmt.Sprintf("extracting %d entries", len(selected)))

	var success atomic.Int32
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.MaxConcurrency)
	for _, e := range selected {
		g.Go(func() error {
			data, err := a.ExtractEntry(ctx, e)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Printf(`extract "%s" error: %v`, e.Name, err)
				return nil
			}

			if err = c.write(e.Name, data); err != nil {
				return err
			}

			success.Add(1)
			_ = bar.Add64(int64(e.CompressedSize))
			return nil
		})
	}

	err := g.Wait()
	_ = bar.Close()
	log.Printf("successfully extracted %d/%d entries", success.Load(), len(selected))
	return err
}

// streamExtract walks the archive once, starting at the earliest selected
// entry, and writes the selected entries as the walk reaches them.
func (c *Get) streamExtract(ctx context.Context, a *rangezip.Archive, selected []rangezip.Entry) error {
	first := selected[0]
	wanted := make(map[string]bool, len(selected))
	for _, e := range selected {
		wanted[e.Name] = true
		if e.HeaderOffset < first.HeaderOffset {
			first = e
		}
	}

	sometimes := rate.Sometimes{Interval: 5 * time.Second}
	success := 0
	err := a.StreamFrom(ctx, first.Name, func(name string, data []byte) error {
		if !wanted[name] {
			return nil
		}

		// a returned error is logged by the walk, which keeps going.
		if err := c.write(name, data); err != nil {
			return err
		}

		success++
		sometimes.Do(func() {
			log.Printf(`[%d/%d] done extracting "%s"`, success, len(selected), name)
		})
		return nil
	})
	log.Printf("successfully extracted %d/%d entries", success, len(selected))
	return err
}

func (c *Get) write(name string, data []byte) error {
	path, err := entryPath(c.Dir, name)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf(`create directory for "%s" error: %w`, path, err)
	}
	if err = os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf(`write file "%s" error: %w`, path, err)
	}
	return nil
}

// entryPath joins name under dir, rejecting names that walk out of it.
func entryPath(dir, name string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(name))
	if rel, err := filepath.Rel(dir, path); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry name %q escapes the output directory", name)
	}
	return path, nil
}
