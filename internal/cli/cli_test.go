package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-ini/ini"
	"github.com/rangezip/rangezip"
	"github.com/rangezip/rangezip/internal/ziptest"
	"github.com/stretchr/testify/assert"
)

func TestArchiveStem(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{
			name:     "plain https url",
			target:   "https://example.com/builds/app.zip",
			expected: "app",
		},
		{
			name:     "presigned url with query",
			target:   "https://bucket.s3.amazonaws.com/nightly/app.zip?X-Amz-Signature=abc",
			expected: "app",
		},
		{
			name:     "s3 url",
			target:   "s3://bucket/releases/v1/core.zip",
			expected: "core",
		},
		{
			name:     "no extension",
			target:   "https://example.com/artifacts/bundle",
			expected: "bundle",
		},
		{
			name:     "nothing usable",
			target:   "https://example.com/",
			expected: "archive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, archiveStem(tt.target))
		})
	}
}

func TestMkExclDir(t *testing.T) {
	parent := t.TempDir()

	name, err := mkExclDir(parent, "out")
	assert.NoErrorf(t, err, "mkExclDir() error = %v", err)
	assert.Equal(t, filepath.Join(parent, "out"), name)

	name, err = mkExclDir(parent, "out")
	assert.NoErrorf(t, err, "mkExclDir() error = %v", err)
	assert.Equal(t, filepath.Join(parent, "out-1"), name)

	fi, err := os.Stat(name)
	assert.NoErrorf(t, err, "Stat() error = %v", err)
	assert.True(t, fi.IsDir())
}

func TestEntryPath(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		expected string
		wantErr  bool
	}{
		{name: "plain file", entry: "readme.txt", expected: filepath.Join("out", "readme.txt")},
		{name: "nested file", entry: "docs/guide/setup.md", expected: filepath.Join("out", "docs", "guide", "setup.md")},
		{name: "dot segments that stay inside", entry: "docs/../readme.txt", expected: filepath.Join("out", "readme.txt")},
		{name: "escape by dot dot", entry: "../outside.txt", wantErr: true},
		{name: "deep escape", entry: "docs/../../outside.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := entryPath("out", tt.entry)
			if tt.wantErr {
				assert.Errorf(t, err, "entryPath() = %q, expected an error", path)
				return
			}
			assert.NoErrorf(t, err, "entryPath() error = %v", err)
			assert.Equal(t, tt.expected, path)
		})
	}
}

func TestTruncateRight(t *testing.T) {
	assert.Equal(t, "short", truncateRight("short", 48, "..."))
	assert.Equal(t, "abc...", truncateRight("abcdefgh", 3, "..."))
	assert.Equal(t, "...", truncateRight("abcdefgh", 0, "..."))
}

func TestResolveTargetPassthrough(t *testing.T) {
	var c configLoader

	resolved, err := c.resolveTarget(context.Background(), "https://example.com/a.zip")
	assert.NoErrorf(t, err, "resolveTarget() error = %v", err)
	assert.Equal(t, "https://example.com/a.zip", resolved)

	_, err = c.resolveTarget(context.Background(), "s3://bucket-only")
	assert.Error(t, err)

	_, err = c.resolveTarget(context.Background(), "s3:///key-only")
	assert.Error(t, err)
}

func TestForBucket(t *testing.T) {
	old := cfgFile
	t.Cleanup(func() { cfgFile = old })

	var err error
	cfgFile, err = ini.Load([]byte(`
[s3://releases]
aws-profile = media
expected-bucket-owner = 123456789012
`))
	assert.NoErrorf(t, err, "ini.Load() error = %v", err)

	c := forBucket("releases")
	assert.Equal(t, "releases", c.Bucket)
	assert.Equal(t, "media", c.AWSProfile)
	if assert.NotNil(t, c.ExpectedBucketOwner) {
		assert.Equal(t, "123456789012", *c.ExpectedBucketOwner)
	}

	c = forBucket("unknown")
	assert.Empty(t, c.AWSProfile)
	assert.Nil(t, c.ExpectedBucketOwner)
}

func TestGetExecute(t *testing.T) {
	content := bytes.Repeat([]byte("deflate shrinks repetition "), 19)[:500]
	img := ziptest.Build([]ziptest.File{
		{Name: "a.txt", Data: []byte("0123456789")},
		{Name: "docs/"},
		{Name: "docs/b.bin", Data: content, Deflate: true},
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(img.Bytes))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	c := &Get{Dir: dir, MaxConcurrency: 4}
	c.MaxAttempts = 3
	c.TailWindow = 1048576
	c.Args.URL = server.URL

	err := c.Execute(nil)
	assert.NoErrorf(t, err, "Execute() error = %v", err)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	assert.NoErrorf(t, err, "ReadFile() error = %v", err)
	assert.Equal(t, []byte("0123456789"), data)

	data, err = os.ReadFile(filepath.Join(dir, "docs", "b.bin"))
	assert.NoErrorf(t, err, "ReadFile() error = %v", err)
	assert.Equal(t, content, data)
}

func TestGetPick(t *testing.T) {
	entries := []rangezip.Entry{
		{Name: "a.txt", CompressedSize: 10},
		{Name: "dir/"},
		{Name: "dir/b.txt", CompressedSize: 20},
	}

	c := &Get{}
	selected, err := c.pick(entries)
	assert.NoErrorf(t, err, "pick() error = %v", err)
	assert.Len(t, selected, 2)

	c.Args.Entries = []string{"dir/b.txt"}
	selected, err = c.pick(entries)
	assert.NoErrorf(t, err, "pick() error = %v", err)
	assert.Equal(t, "dir/b.txt", selected[0].Name)

	c.Args.Entries = []string{"missing"}
	_, err = c.pick(entries)
	assert.Error(t, err)

	c.Args.Entries = []string{"dir/"}
	_, err = c.pick(entries)
	assert.Error(t, err)
}
