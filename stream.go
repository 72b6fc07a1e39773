package rangezip

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/krolaw/zipstream"
	"github.com/rangezip/rangezip/httprange"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"
)

// StreamFunc receives one decoded entry at a time. The data slice is pooled
// and reused between calls; implementations must not retain it.
type StreamFunc func(name string, data []byte) error

// StreamEntries decodes consecutive ZIP entries from r, which must be
// positioned at the start of a local file header, and calls fn once per file
// in stream order. Directory entries are skipped. An entry whose payload
// cannot be read, or whose callback returns an error, does not stop the
// walk; the walk ends cleanly at the central directory, or with a
// FormatError on a header that does not decode.
func StreamEntries(r io.Reader, fn StreamFunc) error {
	return streamEntries(zerolog.Nop(), r, fn)
}

// StreamFrom opens an open-ended ranged GET at the named entry's local file
// header and walks every entry from there to the end of the archive,
// calling fn per [StreamEntries]. The catalog is consulted (and built if
// needed) only to resolve the starting offset.
func (a *Archive) StreamFrom(ctx context.Context, name string, fn StreamFunc) error {
	entries, err := a.entries(ctx)
	if err != nil {
		return err
	}

	e, ok := findEntry(entries, name)
	if !ok {
		return NotFoundError{Name: name}
	}

	body, err := a.fetcher.FetchStream(ctx, a.url, httprange.From(int64(e.HeaderOffset)))
	if err != nil {
		return fmt.Errorf("open stream at entry %q error: %w", name, err)
	}
	defer body.Close()

	return streamEntries(a.logger, body, fn)
}

func streamEntries(logger zerolog.Logger, r io.Reader, fn StreamFunc) error {
	zr := zipstream.NewReader(r)

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	for {
		fh, err := zr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return FormatError{Reason: "undecodable local header in stream", Err: err}
		}

		if strings.HasSuffix(fh.Name, "/") {
			continue
		}

		bb.Reset()
		if _, err = bb.ReadFrom(zr); err != nil {
			logger.Warn().Err(err).Str("entry", fh.Name).Msg("skipping unreadable entry in stream")
			continue
		}

		if err = fn(fh.Name, bb.B); err != nil {
			logger.Warn().Err(err).Str("entry", fh.Name).Msg("stream callback failed")
		}
	}
}
