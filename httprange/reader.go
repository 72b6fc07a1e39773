package httprange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultReaderBufferSize is the default value of [ReaderOptions.BufferSize].
const DefaultReaderBufferSize = 64 * 1024

// ReaderOptions customises NewReader and NewReaderWithSize.
type ReaderOptions struct {
	// CtxFn returns the context used for the ranged GETs behind Read,
	// ReadAt and Seek, which take no context of their own.
	//
	// By default, context.Background is used.
	CtxFn func() context.Context

	// BufferSize is the minimum number of bytes fetched per ranged GET
	// during sequential reads, so many small reads do not each pay for a
	// round trip.
	//
	// Defaults to DefaultReaderBufferSize. Cannot be non-positive.
	BufferSize int
}

// Reader reads a remote resource of known size through ranged GETs,
// implementing io.Reader, io.Seeker and io.ReaderAt. Sequential reads are
// served from an internal buffer; ReadAt always costs one ranged GET.
//
// ReadAt does not touch the sequential position and is safe to call
// concurrently. Read and Seek are not.
type Reader struct {
	c       *Client
	url     string
	ctxFn   func() context.Context
	bufSize int
	size    int64

	// pos is the absolute offset of the next sequential byte; buf holds
	// fetched bytes starting exactly at pos.
	pos int64
	buf bytes.Buffer
}

// NewReader returns a Reader for the resource at url, probing the
// resource's size with a one-byte ranged GET.
func (c *Client) NewReader(url string, optFns ...func(*ReaderOptions)) (*Reader, error) {
	opts, err := readerOptions(optFns)
	if err != nil {
		return nil, err
	}

	result, err := c.Fetch(opts.CtxFn(), url, Tail(1))
	if err != nil {
		return nil, fmt.Errorf("determine resource size error: %w", err)
	}
	if result.Size < 0 {
		return nil, fmt.Errorf("server reported no size for %s", url)
	}

	return &Reader{c: c, url: url, ctxFn: opts.CtxFn, bufSize: opts.BufferSize, size: result.Size}, nil
}

// NewReaderWithSize returns a Reader for the resource at url whose size is
// already known, skipping the probe request.
func (c *Client) NewReaderWithSize(url string, size int64, optFns ...func(*ReaderOptions)) (*Reader, error) {
	opts, err := readerOptions(optFns)
	if err != nil {
		return nil, err
	}

	if size < 0 {
		return nil, fmt.Errorf("size (%d) must not be negative", size)
	}

	return &Reader{c: c, url: url, ctxFn: opts.CtxFn, bufSize: opts.BufferSize, size: size}, nil
}

func readerOptions(optFns []func(*ReaderOptions)) (*ReaderOptions, error) {
	opts := &ReaderOptions{
		CtxFn:      context.Background,
		BufferSize: DefaultReaderBufferSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.BufferSize <= 0 {
		return nil, fmt.Errorf("bufferSize (%d) must be greater than 0", opts.BufferSize)
	}
	return opts, nil
}

// Size returns the size of the remote resource, which is what
// archive/zip's NewReader wants alongside an io.ReaderAt.
func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if r.buf.Len() == 0 {
		remaining := r.size - r.pos
		if remaining <= 0 {
			return 0, io.EOF
		}

		want := max(int64(len(p)), int64(r.bufSize))
		if want > remaining {
			want = remaining
		}

		result, err := r.c.Fetch(r.ctxFn(), r.url, At(r.pos, want))
		if err != nil {
			return 0, err
		}
		// a 206 with an empty body must not read as (0, nil) forever.
		if len(result.Body) == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		r.buf.Write(result.Body)
	}

	n, _ := r.buf.Read(p)
	r.pos += int64(n)
	return n, nil
}

func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, errors.New("read at negative offset")
	}
	if off >= r.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if remaining := r.size - off; want > remaining {
		want = remaining
	}

	result, err := r.c.Fetch(r.ctxFn(), r.url, At(off, want))
	if err != nil {
		return 0, err
	}

	if n := copy(p, result.Body); n < len(p) {
		return n, io.EOF
	}
	return len(p), nil
}

func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("seek before start of resource")
	}

	// a short forward seek can stay inside the buffered bytes.
	if d := abs - r.pos; d > 0 && d <= int64(r.buf.Len()) {
		r.buf.Next(int(d))
	} else if d != 0 {
		r.buf.Reset()
	}

	r.pos = abs
	return abs, nil
}
