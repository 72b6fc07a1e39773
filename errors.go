package rangezip

import (
	"fmt"
)

// Transport failures are reported as [httprange.Error] values wrapped with
// call-site context; use errors.As to recover the attempt count and last
// HTTP status. The types below cover everything that can go wrong after the
// bytes have arrived.

// StructureError is returned when the archive's end-of-central-directory
// record or central directory cannot be located or decoded, which usually
// means the remote resource is not a ZIP file.
type StructureError struct {
	Reason string
	Err    error
}

func (e StructureError) Unwrap() error {
	return e.Err
}

func (e StructureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid archive structure: %s, cause: %v", e.Reason, e.Err)
	}
	return "invalid archive structure: " + e.Reason
}

// FormatError is returned when fetched bytes do not decode as the record or
// payload they are supposed to be. Retrying cannot help: the archive itself
// is malformed, or the server returned bytes for the wrong offsets.
type FormatError struct {
	// Entry is the name of the entry being decoded, empty at stream level.
	Entry  string
	Reason string
	Err    error
}

func (e FormatError) Unwrap() error {
	return e.Err
}

func (e FormatError) Error() string {
	s := "malformed entry"
	if e.Entry != "" {
		s = fmt.Sprintf("malformed entry %q", e.Entry)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s, cause: %v", s, e.Reason, e.Err)
	}
	return s + ": " + e.Reason
}

// UnsupportedCompressionError is returned when an entry's local file header
// names a compression method other than stored (0) or deflate (8).
type UnsupportedCompressionError struct {
	Entry  string
	Method uint16
}

func (e UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("unsupported compression method %d for entry %q", e.Method, e.Entry)
}

// NotFoundError is returned when the archive's catalog has no entry with the
// requested name.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no entry named %q in the archive", e.Name)
}
