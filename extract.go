package rangezip

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/rangezip/rangezip/httprange"
)

// ExtractEntry fetches and decodes a single entry's payload.
//
// The fetched window spans the entry's local file header, its variable-length
// fields sized per the central directory, and the compressed payload, widened
// by SafetyMargin to absorb local fields that are longer than the central
// directory claims. Entries recorded with a zero compressed size return an
// empty payload without any HTTP traffic.
func (a *Archive) ExtractEntry(ctx context.Context, e Entry) ([]byte, error) {
	if e.CompressedSize == 0 {
		return []byte{}, nil
	}

	window := int64(lfhFixedSize) + int64(e.NameLen) + int64(e.ExtraLen) + int64(e.CompressedSize)
	result, err := a.fetcher.Fetch(ctx, a.url, httprange.At(int64(e.HeaderOffset), window).WithMargin(a.opts.SafetyMargin))
	if err != nil {
		return nil, fmt.Errorf("fetch entry %q error: %w", e.Name, err)
	}

	return a.decodeEntry(e, result.Body)
}

// decodeEntry parses the local file header at the start of window and
// decompresses the payload that follows it.
func (a *Archive) decodeEntry(e Entry, window []byte) ([]byte, error) {
	if len(window) < lfhFixedSize {
		return nil, FormatError{Entry: e.Name, Reason: fmt.Sprintf("local header needs %d bytes, got %d", lfhFixedSize, len(window))}
	}

	rec := &fixedSizeLocalFileHeader{}
	if err := binary.Read(bytes.NewReader(window[:lfhFixedSize]), binary.LittleEndian, rec); err != nil {
		return nil, FormatError{Entry: e.Name, Reason: "undecodable local header", Err: err}
	}
	if rec.Signature != lfhSig {
		return nil, FormatError{Entry: e.Name, Reason: fmt.Sprintf("mismatched local header signature, got 0x%08x, expected 0x%08x", rec.Signature, lfhSig)}
	}

	// the local size field is zero when a data descriptor carries the real
	// value; the central directory's copy is authoritative then.
	compressedSize := rec.CompressedSize
	if compressedSize == 0 && rec.Flags&flagDataDescriptor != 0 {
		compressedSize = e.CompressedSize
	}

	payloadStart := lfhFixedSize + int(rec.FileNameLength) + int(rec.ExtraFieldLength)
	payloadEnd := payloadStart + int(compressedSize)
	if payloadEnd > len(window) {
		return nil, FormatError{Entry: e.Name, Reason: fmt.Sprintf("payload runs past the fetched window, need %d bytes, got %d", payloadEnd, len(window))}
	}
	payload := window[payloadStart:payloadEnd]

	switch rec.Method {
	case methodStored:
		return append([]byte(nil), payload...), nil
	case methodDeflate:
		return a.inflate(e.Name, payload)
	default:
		return nil, UnsupportedCompressionError{Entry: e.Name, Method: rec.Method}
	}
}

// inflate decompresses a raw deflate stream in ChunkSize reads.
func (a *Archive) inflate(name string, payload []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(payload))
	defer fr.Close()

	var out bytes.Buffer
	buf := make([]byte, a.opts.ChunkSize)
	for {
		n, err := fr.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, FormatError{Entry: name, Reason: "broken deflate stream", Err: err}
		}
	}
}
