package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
)

type Ls struct {
	commonOptions
	Long bool `short:"l" long:"long" description:"print sizes and modification times along with names"`
	Args struct {
		URLs []string `positional-arg-name:"url" description:"https:// or s3://bucket/key locations of the archives" required:"yes"`
	} `positional-args:"yes"`

	configLoader
	logger *log.Logger
}

func (c *Ls) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success := 0
	n := len(c.Args.URLs)
	for i, target := range c.Args.URLs {
		c.logger = newTargetLogger(i, n, target)

		if err := c.ls(ctx, target); err == nil {
			success++
			continue
		} else if errors.Is(err, context.Canceled) {
			break
		} else {
			c.logger.Printf("list error: %v", err)
		}
	}

	log.Printf("successfully listed %d/%d archives", success, n)
	return nil
}

func (c *Ls) ls(ctx context.Context, target string) error {
	a, err := c.openArchive(ctx, target, c.archiveOptions())
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.Entries(ctx)
	if err != nil {
		return err
	}

	var total uint64
	for _, e := range entries {
		total += uint64(e.UncompressedSize)
		if c.Long {
			fmt.Printf("%10s  %s  %s\n", humanize.IBytes(uint64(e.UncompressedSize)), e.Modified.Format("2006-01-02 15:04:05"), e.Name)
		} else {
			fmt.Println(e.Name)
		}
	}

	c.logger.Printf("%d entries, %s uncompressed in total", len(entries), humanize.IBytes(total))
	return nil
}
