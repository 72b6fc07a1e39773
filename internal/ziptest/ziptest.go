// Package ziptest renders ZIP archives byte by byte so tests control every
// header field, including the ones real writers never get wrong.
package ziptest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/klauspost/compress/flate"
)

// ModTime is the MS-DOS timestamp written into every header, at the
// format's 2s resolution.
var ModTime = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

const (
	// 2024-03-15 and 10:30:00 in MS-DOS date/time encoding.
	dosDate uint16 = (2024-1980)<<9 | 3<<5 | 15
	dosTime uint16 = 10<<11 | 30<<5
)

// File is one entry to place in a built archive.
type File struct {
	Name string

	// Data is the uncompressed content.
	Data []byte

	// Deflate compresses the payload with raw deflate; otherwise the
	// payload is stored as is.
	Deflate bool

	// MethodOverride, when non-zero, replaces the compression method field
	// in both headers without changing how the payload was produced.
	MethodOverride uint16

	// DataDescriptor writes the entry the streaming way: general purpose
	// flag bit 3 set, zero sizes and CRC in the local header, and a data
	// descriptor after the payload. The central directory record still
	// carries the real values.
	DataDescriptor bool

	// LocalExtra is the local header's extra field; Extra and Comment are
	// the central directory record's. Keeping them separate lets tests
	// desynchronize the two headers.
	LocalExtra []byte
	Extra      []byte
	Comment    string
}

// Options customises Build.
type Options struct {
	// Comment is the archive-level trailing comment, raw bytes so tests
	// can embed signature look-alikes.
	Comment []byte
}

// Image is a rendered archive plus the offsets tests need to poke at it.
type Image struct {
	Bytes []byte

	// CDOffset and CDSize locate the central directory image.
	CDOffset int
	CDSize   int

	// LocalOffsets maps entry name to its local file header offset.
	LocalOffsets map[string]int

	// CDRecordOffsets maps entry name to its central directory record
	// offset within Bytes.
	CDRecordOffsets map[string]int
}

// Build renders a complete single-volume archive holding files in order.
func Build(files []File, optFns ...func(*Options)) Image {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	var (
		buf          bytes.Buffer
		localOffsets = make(map[string]int, len(files))
		payloads     = make([][]byte, len(files))
		methods      = make([]uint16, len(files))
		flags        = make([]uint16, len(files))
		crcs         = make([]uint32, len(files))
	)

	for i, f := range files {
		payload, method := f.Data, methodStored
		if f.Deflate {
			payload, method = deflate(f.Data), methodDeflate
		}
		if f.MethodOverride != 0 {
			method = f.MethodOverride
		}

		var flag uint16
		crc := crc32.ChecksumIEEE(f.Data)
		lfhCRC, lfhCompressed, lfhUncompressed := crc, uint32(len(payload)), uint32(len(f.Data))
		if f.DataDescriptor {
			flag |= 0x0008
			lfhCRC, lfhCompressed, lfhUncompressed = 0, 0, 0
		}

		localOffsets[f.Name] = buf.Len()

		hdr := make([]byte, 30)
		binary.LittleEndian.PutUint32(hdr[0:4], lfhSig)
		binary.LittleEndian.PutUint16(hdr[4:6], 20)
		binary.LittleEndian.PutUint16(hdr[6:8], flag)
		binary.LittleEndian.PutUint16(hdr[8:10], method)
		binary.LittleEndian.PutUint16(hdr[10:12], dosTime)
		binary.LittleEndian.PutUint16(hdr[12:14], dosDate)
		binary.LittleEndian.PutUint32(hdr[14:18], lfhCRC)
		binary.LittleEndian.PutUint32(hdr[18:22], lfhCompressed)
		binary.LittleEndian.PutUint32(hdr[22:26], lfhUncompressed)
		binary.LittleEndian.PutUint16(hdr[26:28], uint16(len(f.Name)))
		binary.LittleEndian.PutUint16(hdr[28:30], uint16(len(f.LocalExtra)))
		buf.Write(hdr)
		buf.WriteString(f.Name)
		buf.Write(f.LocalExtra)
		buf.Write(payload)

		if f.DataDescriptor {
			dd := make([]byte, 16)
			binary.LittleEndian.PutUint32(dd[0:4], ddSig)
			binary.LittleEndian.PutUint32(dd[4:8], crc)
			binary.LittleEndian.PutUint32(dd[8:12], uint32(len(payload)))
			binary.LittleEndian.PutUint32(dd[12:16], uint32(len(f.Data)))
			buf.Write(dd)
		}

		payloads[i], methods[i], flags[i], crcs[i] = payload, method, flag, crc
	}

	cdOffset := buf.Len()
	cdRecordOffsets := make(map[string]int, len(files))
	for i, f := range files {
		cdRecordOffsets[f.Name] = buf.Len()

		rec := make([]byte, 46)
		binary.LittleEndian.PutUint32(rec[0:4], cdfhSig)
		binary.LittleEndian.PutUint16(rec[4:6], 20)
		binary.LittleEndian.PutUint16(rec[6:8], 20)
		binary.LittleEndian.PutUint16(rec[8:10], flags[i])
		binary.LittleEndian.PutUint16(rec[10:12], methods[i])
		binary.LittleEndian.PutUint16(rec[12:14], dosTime)
		binary.LittleEndian.PutUint16(rec[14:16], dosDate)
		binary.LittleEndian.PutUint32(rec[16:20], crcs[i])
		binary.LittleEndian.PutUint32(rec[20:24], uint32(len(payloads[i])))
		binary.LittleEndian.PutUint32(rec[24:28], uint32(len(f.Data)))
		binary.LittleEndian.PutUint16(rec[28:30], uint16(len(f.Name)))
		binary.LittleEndian.PutUint16(rec[30:32], uint16(len(f.Extra)))
		binary.LittleEndian.PutUint16(rec[32:34], uint16(len(f.Comment)))
		binary.LittleEndian.PutUint32(rec[42:46], uint32(localOffsets[f.Name]))
		buf.Write(rec)
		buf.WriteString(f.Name)
		buf.Write(f.Extra)
		buf.WriteString(f.Comment)
	}
	cdSize := buf.Len() - cdOffset

	eocd := make([]byte, 22)
	binary.LittleEndian.PutUint32(eocd[0:4], eocdSig)
	binary.LittleEndian.PutUint16(eocd[8:10], uint16(len(files)))
	binary.LittleEndian.PutUint16(eocd[10:12], uint16(len(files)))
	binary.LittleEndian.PutUint32(eocd[12:16], uint32(cdSize))
	binary.LittleEndian.PutUint32(eocd[16:20], uint32(cdOffset))
	binary.LittleEndian.PutUint16(eocd[20:22], uint16(len(opts.Comment)))
	buf.Write(eocd)
	buf.Write(opts.Comment)

	return Image{
		Bytes:           buf.Bytes(),
		CDOffset:        cdOffset,
		CDSize:          cdSize,
		LocalOffsets:    localOffsets,
		CDRecordOffsets: cdRecordOffsets,
	}
}

const (
	lfhSig  uint32 = 0x04034b50
	cdfhSig uint32 = 0x02014b50
	eocdSig uint32 = 0x06054b50
	ddSig   uint32 = 0x08074b50

	methodStored  uint16 = 0
	methodDeflate uint16 = 8
)

// deflate produces a raw deflate stream, no zlib or gzip framing.
func deflate(data []byte) []byte {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		panic(err)
	}
	if _, err = fw.Write(data); err != nil {
		panic(err)
	}
	if err = fw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
