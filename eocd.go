package rangezip

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rangezip/rangezip/httprange"
)

// directory locates the central directory within the remote archive.
type directory struct {
	cdSize   uint32
	cdOffset uint32
	// archiveSize is the total archive length reported by the server's
	// Content-Range header, or -1 when unknown.
	archiveSize int64
}

// locateDirectory fetches the archive's tail and finds the
// end-of-central-directory record inside it. Archives whose trailing comment
// pushes the record outside the tail window are not located; retry with a
// larger TailWindow option if that is expected.
func (a *Archive) locateDirectory(ctx context.Context) (directory, error) {
	result, err := a.fetcher.Fetch(ctx, a.url, httprange.Tail(a.opts.TailWindow))
	if err != nil {
		return directory{}, fmt.Errorf("fetch archive tail error: %w", err)
	}

	i := findEOCD(result.Body)
	if i == -1 {
		return directory{}, StructureError{Reason: fmt.Sprintf("no end of central directory record in the last %d bytes", len(result.Body))}
	}

	rec := &fixedSizeEOCDRecord{}
	if err = binary.Read(bytes.NewReader(result.Body[i:i+eocdFixedSize]), binary.LittleEndian, rec); err != nil {
		return directory{}, StructureError{Reason: "bad end of central directory record", Err: err}
	}
	if rec.CDSize == 0 {
		return directory{}, StructureError{Reason: "central directory size is 0"}
	}

	a.logger.Debug().
		Uint32("cd_size", rec.CDSize).
		Uint32("cd_offset", rec.CDOffset).
		Uint16("cd_count", rec.CDCount).
		Int64("archive_size", result.Size).
		Msg("located central directory")

	return directory{cdSize: rec.CDSize, cdOffset: rec.CDOffset, archiveSize: result.Size}, nil
}

// findEOCD returns the offset within buf of the last end-of-central-directory
// signature whose 22 fixed bytes fit before the end of the buffer, or -1.
// The fit requirement rules out signature look-alikes sitting in the final
// bytes of a trailing archive comment.
func findEOCD(buf []byte) int {
	if len(buf) < eocdFixedSize {
		return -1
	}
	return bytes.LastIndex(buf[:len(buf)-eocdFixedSize+len(eocdSigBytes)], eocdSigBytes)
}
