package rangezip

import (
	"strings"
	"time"
)

// Entry describes one file recorded in an archive's central directory.
//
// The compression method is deliberately absent: it is read from the entry's
// local file header at extraction time, which is the copy that sits right
// next to the payload.
type Entry struct {
	// Name is the entry path exactly as recorded in the central directory,
	// interpreted as UTF-8.
	Name string

	// CompressedSize is the length of the entry's payload inside the archive.
	CompressedSize uint32

	// UncompressedSize is the length of the payload after decompression.
	UncompressedSize uint32

	// HeaderOffset is where the entry's local file header starts, relative
	// to the start of the archive.
	HeaderOffset uint32

	// NameLen, ExtraLen and CommentLen are the sizes of the central
	// directory record's variable-length fields.
	NameLen    uint16
	ExtraLen   uint16
	CommentLen uint16

	// Modified is the entry's MS-DOS timestamp in UTC, at 2s resolution.
	Modified time.Time
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// findEntry returns the first entry whose name matches exactly.
func findEntry(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}
