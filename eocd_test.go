package rangezip

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rangezip/rangezip/internal/ziptest"
	"github.com/stretchr/testify/assert"
)

// newTestArchive returns an Archive that retries without sleeping.
func newTestArchive(t *testing.T, url string, optFns ...func(*Options)) *Archive {
	t.Helper()

	a, err := New(url, append([]func(*Options){func(o *Options) {
		o.BaseDelay = 0
	}}, optFns...)...)
	assert.NoErrorf(t, err, "New() error = %v", err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// serveImage serves an archive image with range support and counts requests.
func serveImage(t *testing.T, img ziptest.Image) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(img.Bytes))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func testFiles() []ziptest.File {
	return []ziptest.File{
		{Name: "a.txt", Data: []byte("0123456789")},
		{Name: "b.bin", Data: bytes.Repeat([]byte("deflate shrinks repetition "), 19)[:500], Deflate: true},
		{Name: "c.dat", Data: []byte{}},
	}
}

func TestFindEOCD(t *testing.T) {
	img := ziptest.Build(testFiles())
	sig := []byte{0x50, 0x4b, 0x05, 0x06}

	tests := []struct {
		name     string
		buf      []byte
		expected int
	}{
		{
			name:     "record is the last 22 bytes",
			buf:      img.Bytes,
			expected: len(img.Bytes) - 22,
		},
		{
			name:     "record followed by a comment",
			buf:      ziptest.Build(testFiles(), func(o *ziptest.Options) { o.Comment = bytes.Repeat([]byte("x"), 100) }).Bytes,
			expected: len(img.Bytes) - 22,
		},
		{
			name:     "signature bytes inside the final comment bytes are skipped",
			buf:      ziptest.Build(testFiles(), func(o *ziptest.Options) { o.Comment = append(bytes.Repeat([]byte("x"), 6), sig...) }).Bytes,
			expected: len(img.Bytes) - 22,
		},
		{
			name:     "no record",
			buf:      bytes.Repeat([]byte("not a zip file at all, "), 50),
			expected: -1,
		},
		{
			name:     "buffer shorter than a record",
			buf:      sig,
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, findEOCD(tt.buf))
		})
	}
}

func TestLocateDirectory(t *testing.T) {
	img := ziptest.Build(testFiles())
	server, _ := serveImage(t, img)
	a := newTestArchive(t, server.URL)

	dir, err := a.locateDirectory(context.Background())
	assert.NoErrorf(t, err, "locateDirectory() error = %v", err)
	assert.EqualValues(t, img.CDOffset, dir.cdOffset)
	assert.EqualValues(t, img.CDSize, dir.cdSize)
	assert.EqualValues(t, len(img.Bytes), dir.archiveSize)
}

func TestLocateDirectoryTailWindowBoundary(t *testing.T) {
	// a 100-byte comment puts the record's first byte exactly at the start
	// of a 122-byte tail window.
	img := ziptest.Build(testFiles(), func(o *ziptest.Options) {
		o.Comment = bytes.Repeat([]byte("c"), 100)
	})
	server, _ := serveImage(t, img)

	a := newTestArchive(t, server.URL, func(o *Options) { o.TailWindow = 122 })
	dir, err := a.locateDirectory(context.Background())
	assert.NoErrorf(t, err, "locateDirectory() error = %v", err)
	assert.EqualValues(t, img.CDOffset, dir.cdOffset)

	// one byte less truncates the signature.
	a = newTestArchive(t, server.URL, func(o *Options) { o.TailWindow = 121 })
	_, err = a.locateDirectory(context.Background())

	var se StructureError
	assert.ErrorAsf(t, err, &se, "locateDirectory() error = %v, expected StructureError", err)
}

func TestLocateDirectoryNotAZip(t *testing.T) {
	data := bytes.Repeat([]byte("just some text. "), 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "notes.txt", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	a := newTestArchive(t, server.URL)
	_, err := a.locateDirectory(context.Background())

	var se StructureError
	assert.ErrorAsf(t, err, &se, "locateDirectory() error = %v, expected StructureError", err)
}

func TestLocateDirectoryEmptyArchive(t *testing.T) {
	// an archive with no entries reports a zero-size central directory,
	// which discovery rejects.
	img := ziptest.Build(nil)
	server, _ := serveImage(t, img)

	a := newTestArchive(t, server.URL)
	_, err := a.locateDirectory(context.Background())

	var se StructureError
	assert.ErrorAsf(t, err, &se, "locateDirectory() error = %v, expected StructureError", err)
}
