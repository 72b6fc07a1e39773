package httprange

import "fmt"

// form selects how a Spec renders its Range header.
type form int

const (
	// formClosed is bytes=start-end, both ends inclusive.
	formClosed form = iota
	// formSuffix is bytes=-n, the last n bytes of the resource.
	formSuffix
	// formOpen is bytes=start-, everything from start to the end.
	formOpen
)

// Spec identifies the bytes requested from a remote resource.
//
// The zero value requests the single byte at offset 0; use Tail, At or From
// to construct meaningful specs.
type Spec struct {
	// start is the first byte offset for the closed and open forms.
	start int64
	// length is the number of bytes for the closed and suffix forms; it is
	// ignored by the open form.
	length int64
	form   form
}

// Tail requests the last n bytes of the resource (Range: bytes=-n).
//
// Servers clamp n to the resource size, so asking for more bytes than exist
// returns the entire resource.
func Tail(n int64) Spec {
	return Spec{length: n, form: formSuffix}
}

// At requests n bytes starting at offset off (Range: bytes=off-(off+n-1)).
func At(off, n int64) Spec {
	return Spec{start: off, length: n, form: formClosed}
}

// From requests every byte from offset off to the end of the resource
// (Range: bytes=off-).
func From(off int64) Spec {
	return Spec{start: off, form: formOpen}
}

// WithMargin widens a closed range by m extra bytes past its end. Servers
// clamp ranges that overshoot the resource, so the response may carry fewer
// bytes than start+len(spec)+m. Suffix and open ranges are returned unchanged.
func (s Spec) WithMargin(m int64) Spec {
	if s.form == formClosed {
		s.length += m
	}
	return s
}

// Header renders the value of the Range request header.
func (s Spec) Header() string {
	switch s.form {
	case formSuffix:
		return fmt.Sprintf("bytes=-%d", s.length)
	case formOpen:
		return fmt.Sprintf("bytes=%d-", s.start)
	default:
		return fmt.Sprintf("bytes=%d-%d", s.start, s.start+s.length-1)
	}
}

// Len returns the number of bytes requested, or -1 for an open-ended range.
func (s Spec) Len() int64 {
	if s.form == formOpen {
		return -1
	}
	return s.length
}

func (s Spec) String() string {
	return s.Header()
}

// validate rejects specs that cannot render a well-formed Range header.
func (s Spec) validate() error {
	switch {
	case s.form != formOpen && s.length <= 0:
		return fmt.Errorf("invalid range %q: non-positive length %d", s.Header(), s.length)
	case s.form != formSuffix && s.start < 0:
		return fmt.Errorf("invalid range %q: negative offset %d", s.Header(), s.start)
	}
	return nil
}
