// Package rangezip extracts individual files from ZIP archives that live on
// HTTP servers, using Range requests to fetch only the bytes each operation
// needs instead of downloading whole archives.
//
// An [Archive] first locates the end-of-central-directory record in the
// archive's tail, decodes the central directory into a catalog of entries,
// then serves per-entry extractions with one ranged GET each. Only the
// stored (0) and deflate (8) compression methods are supported; ZIP64,
// encryption and multi-volume archives are not.
package rangezip

import (
	"context"
	"errors"
	"fmt"

	"github.com/rangezip/rangezip/httprange"
	"github.com/rs/zerolog"
)

// Archive reads files out of one remote ZIP archive.
//
// An Archive does no internal locking. Building the catalog, which happens
// on Entries, List, or the first name-based operation, must not race with
// other calls; once built, the extraction methods are safe to use
// concurrently.
type Archive struct {
	url     string
	opts    *Options
	fetcher *httprange.Client
	// ownFetcher is set when New built the fetcher; Close only closes what
	// the Archive owns.
	ownFetcher bool
	logger     zerolog.Logger

	catalog   []Entry
	cataloged bool
}

// New returns an Archive for the ZIP file at url. No HTTP traffic happens
// until the first operation.
func New(url string, optFns ...func(*Options)) (*Archive, error) {
	if url == "" {
		return nil, errors.New("url must not be empty")
	}

	opts := &Options{
		ConnectTimeout: httprange.DefaultConnectTimeout,
		RequestTimeout: httprange.DefaultRequestTimeout,
		MaxAttempts:    httprange.DefaultMaxAttempts,
		BaseDelay:      httprange.DefaultBaseDelay,
		TailWindow:     DefaultTailWindow,
		ChunkSize:      DefaultChunkSize,
		SafetyMargin:   DefaultSafetyMargin,
		Logger:         zerolog.Nop(),
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.TailWindow < eocdFixedSize {
		return nil, fmt.Errorf("tailWindow (%d) must be at least %d", opts.TailWindow, eocdFixedSize)
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize (%d) must be greater than 0", opts.ChunkSize)
	}
	if opts.SafetyMargin < 0 {
		return nil, fmt.Errorf("safetyMargin (%d) must not be negative", opts.SafetyMargin)
	}

	a := &Archive{
		url:    url,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "rangezip").Str("url", url).Logger(),
	}

	if a.fetcher = opts.Fetcher; a.fetcher == nil {
		fetcher, err := httprange.New(func(c *httprange.Client) {
			c.ConnectTimeout = opts.ConnectTimeout
			c.RequestTimeout = opts.RequestTimeout
			c.MaxAttempts = opts.MaxAttempts
			c.BaseDelay = opts.BaseDelay
			c.Limiter = opts.Limiter
			c.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		a.fetcher, a.ownFetcher = fetcher, true
	}

	return a, nil
}

// Entries fetches the archive's central directory and decodes it into the
// catalog, replacing any previously built one. The catalog is retained on
// the handle so later name lookups need no HTTP traffic.
func (a *Archive) Entries(ctx context.Context) ([]Entry, error) {
	dir, err := a.locateDirectory(ctx)
	if err != nil {
		return nil, err
	}

	result, err := a.fetcher.Fetch(ctx, a.url, httprange.At(int64(dir.cdOffset), int64(dir.cdSize)))
	if err != nil {
		return nil, fmt.Errorf("fetch central directory error: %w", err)
	}

	entries := a.parseDirectory(result.Body, dir.archiveSize)
	a.catalog, a.cataloged = entries, true

	a.logger.Debug().Int("entries", len(entries)).Msg("built catalog")
	return entries, nil
}

// List is the forgiving form of Entries: discovery failures are logged and
// degrade to an empty catalog, so an unreachable or non-ZIP resource looks
// exactly like an empty archive. Use Entries to tell the two apart.
func (a *Archive) List(ctx context.Context) []Entry {
	entries, err := a.Entries(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("listing entries failed")
		return []Entry{}
	}
	return entries
}

// entries returns the retained catalog, building it on first use.
func (a *Archive) entries(ctx context.Context) ([]Entry, error) {
	if a.cataloged {
		return a.catalog, nil
	}
	return a.Entries(ctx)
}

// Extract returns the decompressed contents of the named entry.
//
// A name that is not in the catalog is the one hard failure, reported as
// [NotFoundError] without any HTTP traffic when the catalog is already
// built. Every other failure, catalog discovery included, degrades to an
// empty payload with a logged diagnostic.
func (a *Archive) Extract(ctx context.Context, name string) ([]byte, error) {
	entries, err := a.entries(ctx)
	if err != nil {
		a.logger.Error().Err(err).Str("entry", name).Msg("extracting entry failed")
		return []byte{}, nil
	}

	e, ok := findEntry(entries, name)
	if !ok {
		return nil, NotFoundError{Name: name}
	}

	data, err := a.ExtractEntry(ctx, e)
	if err != nil {
		a.logger.Error().Err(err).Str("entry", name).Msg("extracting entry failed")
		return []byte{}, nil
	}
	return data, nil
}

// ExtractAll extracts every catalog entry, returning payloads aligned with
// the catalog order. Entries that fail to extract come back as empty
// payloads with a logged diagnostic; the batch never stops early.
func (a *Archive) ExtractAll(ctx context.Context) [][]byte {
	entries, err := a.entries(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("extracting all entries failed")
		return [][]byte{}
	}

	contents := make([][]byte, len(entries))
	for i, e := range entries {
		data, err := a.ExtractEntry(ctx, e)
		if err != nil {
			a.logger.Error().Err(err).Str("entry", e.Name).Msg("extracting entry failed")
			data = []byte{}
		}
		contents[i] = data
	}
	return contents
}

// Close releases the underlying range client if the Archive owns it;
// injected fetchers stay open. Safe to call multiple times.
func (a *Archive) Close() error {
	if a.ownFetcher {
		return a.fetcher.Close()
	}
	return nil
}
