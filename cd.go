package rangezip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// parseDirectory decodes central directory file headers from block, which
// holds the archive's central directory starting at its first record.
//
// The walk is forgiving: the first record that does not decode cleanly ends
// it, and whatever was decoded before that point is returned. A clean
// archive consumes the entire block. archiveSize, when not -1, lets each
// record's local header position be checked for plausibility before the
// record is admitted to the catalog.
func (a *Archive) parseDirectory(block []byte, archiveSize int64) []Entry {
	entries := make([]Entry, 0, 16)

	for off := 0; ; {
		if len(block)-off < cdfhFixedSize {
			if off != len(block) {
				a.logger.Warn().
					Int("offset", off).
					Int("remaining", len(block)-off).
					Msg("central directory ends in a truncated record")
			}
			return entries
		}

		rec := &fixedSizeCDFileHeader{}
		if err := binary.Read(bytes.NewReader(block[off:off+cdfhFixedSize]), binary.LittleEndian, rec); err != nil {
			a.logger.Warn().Err(err).Int("offset", off).Msg("stopping central directory walk on undecodable record")
			return entries
		}
		if rec.Signature != cdfhSig {
			a.logger.Warn().
				Int("offset", off).
				Str("signature", fmt.Sprintf("0x%08x", rec.Signature)).
				Msg("stopping central directory walk on mismatched signature")
			return entries
		}

		nameStart := off + cdfhFixedSize
		nameEnd := nameStart + int(rec.FileNameLength)
		if nameEnd > len(block) {
			a.logger.Warn().
				Int("offset", off).
				Uint16("name_len", rec.FileNameLength).
				Msg("stopping central directory walk on name running past the block")
			return entries
		}

		name := block[nameStart:nameEnd]
		if !utf8.Valid(name) {
			a.logger.Warn().
				Int("offset", off).
				Hex("name", name).
				Msg("stopping central directory walk on non-UTF-8 name")
			return entries
		}

		// the entry's local header and its variable fields must fit inside
		// the archive for the offset to be usable.
		window := int64(rec.Offset) + lfhFixedSize + int64(rec.FileNameLength) + int64(rec.ExtraFieldLength)
		if archiveSize >= 0 && window > archiveSize {
			a.logger.Warn().
				Int("offset", off).
				Str("name", string(name)).
				Uint32("local_header_offset", rec.Offset).
				Int64("archive_size", archiveSize).
				Msg("stopping central directory walk on implausible local header offset")
			return entries
		}

		entries = append(entries, Entry{
			Name:             string(name),
			CompressedSize:   rec.CompressedSize,
			UncompressedSize: rec.UncompressedSize,
			HeaderOffset:     rec.Offset,
			NameLen:          rec.FileNameLength,
			ExtraLen:         rec.ExtraFieldLength,
			CommentLen:       rec.FileCommentLength,
			Modified:         msDosTimeToTime(rec.ModifiedDate, rec.ModifiedTime),
		})

		off = nameEnd + int(rec.ExtraFieldLength) + int(rec.FileCommentLength)
	}
}
