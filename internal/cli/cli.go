// Package cli implements the rangezip command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rangezip/rangezip"
	"github.com/rs/zerolog"
)

// RangeZip is the top-level command set.
type RangeZip struct {
	Profile string `short:"p" long:"profile" description:"override AWS_PROFILE for s3:// targets"`
	Ls      Ls     `command:"ls" alias:"list" description:"list the entries of remote archives"`
	Cat     Cat    `command:"cat" description:"write entries of a remote archive to stdout"`
	Get     Get    `command:"get" alias:"x" description:"extract entries of a remote archive into local files"`
}

// NewParser returns the command line parser for the rangezip binary.
func NewParser() (*flags.Parser, error) {
	opts := &RangeZip{}

	p := flags.NewNamedParser("rangezip", flags.Default)
	if _, err := p.AddGroup("Global Options", "", opts); err != nil {
		return nil, err
	}

	p.CommandHandler = func(command flags.Commander, args []string) error {
		if opts.Profile != "" {
			if err := os.Setenv("AWS_PROFILE", opts.Profile); err != nil {
				return fmt.Errorf("set AWS_PROFILE error: %w", err)
			}
		}

		return command.Execute(args)
	}

	return p, nil
}

// commonOptions are the flags shared by every command that opens a remote
// archive.
type commonOptions struct {
	Verbose     bool  `short:"v" long:"verbose" description:"log every range request and fail-soft degradation to stderr"`
	MaxAttempts int   `long:"max-attempts" default:"3" description:"tries per range request before giving up"`
	TailWindow  int64 `long:"tail-window" default:"1048576" description:"trailing bytes fetched to locate the central directory; raise this for archives with huge comments"`
}

func (o *commonOptions) logger() zerolog.Logger {
	if !o.Verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// archiveOptions translates the flags into rangezip options.
func (o *commonOptions) archiveOptions() func(*rangezip.Options) {
	return func(opts *rangezip.Options) {
		opts.MaxAttempts = o.MaxAttempts
		opts.TailWindow = o.TailWindow
		opts.Logger = o.logger()
	}
}
