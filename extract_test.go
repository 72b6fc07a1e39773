package rangezip

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/rangezip/rangezip/internal/ziptest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestExtractRoundTrip(t *testing.T) {
	server, requests := serveImage(t, ziptest.Build(testFiles()))
	a := newTestArchive(t, server.URL)

	tests := []struct {
		name     string
		expected []byte
	}{
		{name: "a.txt", expected: []byte("0123456789")},
		{name: "b.bin", expected: bytes.Repeat([]byte("deflate shrinks repetition "), 19)[:500]},
		{name: "c.dat", expected: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := a.Extract(context.Background(), tt.name)
			assert.NoErrorf(t, err, "Extract(%q) error = %v", tt.name, err)
			assert.Equal(t, tt.expected, data)
		})
	}

	// two requests built the catalog, then one ranged GET per non-empty
	// entry; the empty entry costs nothing.
	assert.EqualValues(t, 4, requests.Load())
}

func TestExtractEntryConcurrent(t *testing.T) {
	// once the catalog is built, entries extract concurrently; every
	// goroutine must get its own entry's bytes back intact.
	files := make([]ziptest.File, 16)
	for i := range files {
		files[i] = ziptest.File{
			Name:    fmt.Sprintf("part-%02d.bin", i),
			Data:    bytes.Repeat([]byte{byte('a' + i)}, 64*(i+1)),
			Deflate: i%2 == 1,
		}
	}
	server, _ := serveImage(t, ziptest.Build(files))
	a := newTestArchive(t, server.URL)

	entries, err := a.Entries(context.Background())
	assert.NoErrorf(t, err, "Entries() error = %v", err)
	assert.Len(t, entries, len(files))

	contents := make([][]byte, len(entries))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(8)
	for i, e := range entries {
		g.Go(func() error {
			data, err := a.ExtractEntry(ctx, e)
			contents[i] = data
			return err
		})
	}

	err = g.Wait()
	assert.NoErrorf(t, err, "Wait() error = %v", err)
	for i, f := range files {
		assert.Equalf(t, f.Data, contents[i], "entry %s", f.Name)
	}
}

func TestExtractEntryEmptyEntrySkipsHTTP(t *testing.T) {
	server, requests := serveImage(t, ziptest.Build(testFiles()))
	a := newTestArchive(t, server.URL)

	entries, err := a.Entries(context.Background())
	assert.NoErrorf(t, err, "Entries() error = %v", err)
	before := requests.Load()

	e, ok := findEntry(entries, "c.dat")
	assert.True(t, ok)

	data, err := a.ExtractEntry(context.Background(), e)
	assert.NoErrorf(t, err, "ExtractEntry() error = %v", err)
	assert.Equal(t, []byte{}, data)
	assert.Equal(t, before, requests.Load())
}

func TestExtractNotFound(t *testing.T) {
	server, requests := serveImage(t, ziptest.Build(testFiles()))
	a := newTestArchive(t, server.URL)

	_, err := a.Entries(context.Background())
	assert.NoErrorf(t, err, "Entries() error = %v", err)
	before := requests.Load()

	_, err = a.Extract(context.Background(), "missing.txt")

	var nfe NotFoundError
	assert.ErrorAsf(t, err, &nfe, "Extract() error = %v, expected NotFoundError", err)
	assert.Equal(t, "missing.txt", nfe.Name)

	// the catalog already answered the lookup; no request went out.
	assert.Equal(t, before, requests.Load())
}

func TestExtractEntryDataDescriptor(t *testing.T) {
	data := bytes.Repeat([]byte("streamed entries have no sizes up front. "), 12)
	server, _ := serveImage(t, ziptest.Build([]ziptest.File{
		{Name: "dd.bin", Data: data, Deflate: true, DataDescriptor: true},
	}))
	a := newTestArchive(t, server.URL)

	got, err := a.Extract(context.Background(), "dd.bin")
	assert.NoErrorf(t, err, "Extract() error = %v", err)
	assert.Equal(t, data, got)
}

func TestExtractEntrySafetyMargin(t *testing.T) {
	// the local extra field is longer than the central directory's copy, so
	// the payload sits past the window computed from catalog metadata alone
	// and only the margin brings it in.
	data := bytes.Repeat([]byte{0xab}, 100)
	server, _ := serveImage(t, ziptest.Build([]ziptest.File{
		{Name: "x.bin", Data: data, LocalExtra: make([]byte, 64)},
	}))

	a := newTestArchive(t, server.URL)
	got, err := a.Extract(context.Background(), "x.bin")
	assert.NoErrorf(t, err, "Extract() error = %v", err)
	assert.Equal(t, data, got)

	a = newTestArchive(t, server.URL, func(o *Options) { o.SafetyMargin = 0 })
	entries, err := a.Entries(context.Background())
	assert.NoErrorf(t, err, "Entries() error = %v", err)

	_, err = a.ExtractEntry(context.Background(), entries[0])

	var fe FormatError
	assert.ErrorAsf(t, err, &fe, "ExtractEntry() error = %v, expected FormatError", err)
	assert.ErrorContains(t, err, "payload runs past the fetched window")
}

func TestExtractEntryUnsupportedMethod(t *testing.T) {
	server, _ := serveImage(t, ziptest.Build([]ziptest.File{
		{Name: "weird.bin", Data: []byte("raw bytes"), MethodOverride: 99},
	}))
	a := newTestArchive(t, server.URL)

	entries, err := a.Entries(context.Background())
	assert.NoErrorf(t, err, "Entries() error = %v", err)

	_, err = a.ExtractEntry(context.Background(), entries[0])

	var uce UnsupportedCompressionError
	assert.ErrorAsf(t, err, &uce, "ExtractEntry() error = %v, expected UnsupportedCompressionError", err)
	assert.Equal(t, "weird.bin", uce.Entry)
	assert.EqualValues(t, 99, uce.Method)

	// the forgiving form degrades the same failure to an empty payload.
	data, err := a.Extract(context.Background(), "weird.bin")
	assert.NoErrorf(t, err, "Extract() error = %v", err)
	assert.Equal(t, []byte{}, data)
}

func TestExtractEntryBrokenDeflate(t *testing.T) {
	// stored garbage marked as deflate: the first byte selects a reserved
	// block type, so inflation fails on the spot.
	server, _ := serveImage(t, ziptest.Build([]ziptest.File{
		{Name: "bad.bin", Data: []byte{0xff, 0xff, 0xff, 0xff}, MethodOverride: 8},
	}))
	a := newTestArchive(t, server.URL)

	entries, err := a.Entries(context.Background())
	assert.NoErrorf(t, err, "Entries() error = %v", err)

	_, err = a.ExtractEntry(context.Background(), entries[0])

	var fe FormatError
	assert.ErrorAsf(t, err, &fe, "ExtractEntry() error = %v, expected FormatError", err)
	assert.Equal(t, "bad.bin", fe.Entry)
}

func TestExtractEntryCorruptLocalHeader(t *testing.T) {
	img := ziptest.Build(testFiles())
	img.Bytes[img.LocalOffsets["a.txt"]] ^= 0xff
	server, _ := serveImage(t, img)
	a := newTestArchive(t, server.URL)

	entries, err := a.Entries(context.Background())
	assert.NoErrorf(t, err, "Entries() error = %v", err)

	e, ok := findEntry(entries, "a.txt")
	assert.True(t, ok)

	_, err = a.ExtractEntry(context.Background(), e)
	assert.ErrorContains(t, err, "mismatched local header signature")

	data, err := a.Extract(context.Background(), "a.txt")
	assert.NoErrorf(t, err, "Extract() error = %v", err)
	assert.Equal(t, []byte{}, data)
}

func TestDecodeEntryWindowTooShort(t *testing.T) {
	a := newTestArchive(t, "http://archives.test/a.zip")

	_, err := a.decodeEntry(Entry{Name: "t.bin", CompressedSize: 4}, []byte{0x50, 0x4b})

	var fe FormatError
	assert.ErrorAsf(t, err, &fe, "decodeEntry() error = %v, expected FormatError", err)
}
