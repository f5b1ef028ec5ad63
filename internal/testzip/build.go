// Package testzip builds small, byte-exact ZIP archives for tests of the
// parser and rebuilder. Unlike a general-purpose zip writer it never
// compresses anything (method is always "store") and gives the caller raw
// control over filename bytes, flags, and extra fields, since those are
// exactly what the parser and rebuilder must exercise.
package testzip

import (
	"encoding/binary"
	"hash/crc32"
	"time"
)

const (
	sigLocalFileHeader  = 0x04034b50
	sigCentralDirectory = 0x02014b50
	sigEndOfCentralDir  = 0x06054b50
	sigZip64EOCD        = 0x06064b50
	sigZip64EOCDLocator = 0x07064b50
	sigDataDescriptor   = 0x08074b50
)

// Entry describes one member of a built archive. Data is stored
// uncompressed (CompressionMethod 0); CRC32 and sizes are computed from
// Data; the CRC-32 can be overridden via RawCRC32 for constructing
// deliberately-inconsistent fixtures.
type Entry struct {
	Name   []byte
	Data   []byte
	UTF8   bool
	Extra  []byte // raw LFH+CDH shared extra field bytes (identical in both headers unless overridden)
	LFHExtraOverride []byte
	CDHExtraOverride []byte
	Comment []byte

	// DataDescriptor, when true, appends a data descriptor after the
	// payload and clears the LFH's inline sizes in favor of it.
	DataDescriptor bool
	// DataDescriptorNoSignature omits the 0x08074b50 signature word.
	DataDescriptorNoSignature bool
	// DataDescriptorZip64 writes 8-byte size fields in the descriptor.
	DataDescriptorZip64 bool

	// ForceZip64Sizes writes the 32-bit size fields as the sentinel and
	// prepends a 0x0001 extra carrying the real sizes, regardless of
	// whether Data is actually large. LFH and CDH are both affected.
	ForceZip64Sizes bool
	// ForceZip64LocalOffset writes the CDH's local-header-offset field as
	// the sentinel and carries the real offset in a 0x0001 extra, as if
	// the local header lived past the 32-bit offset range.
	ForceZip64LocalOffset bool

	ModTime time.Time

	// RawCRC32, if non-nil, overrides the computed CRC-32 (for Broken
	// fixtures where the declared CRC must not match the data).
	RawCRC32 *uint32
}

func (e *Entry) crc32() uint32 {
	if e.RawCRC32 != nil {
		return *e.RawCRC32
	}
	return crc32.ChecksumIEEE(e.Data)
}

func msdosTime(t time.Time) (date uint16, tm uint16) {
	if t.IsZero() {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	date = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	tm = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return date, tm
}

type cursor struct{ b []byte }

func (c *cursor) u16(v uint16)   { c.b = binary.LittleEndian.AppendUint16(c.b, v) }
func (c *cursor) u32(v uint32)   { c.b = binary.LittleEndian.AppendUint32(c.b, v) }
func (c *cursor) u64(v uint64)   { c.b = binary.LittleEndian.AppendUint64(c.b, v) }
func (c *cursor) bytes(p []byte) { c.b = append(c.b, p...) }

// Build concatenates entries into a complete single-disk archive. Comment
// is the archive-level EOCD comment.
func Build(entries []*Entry, comment []byte) []byte {
	var out cursor
	type cdInfo struct {
		lfhOffset int64
		entry     *Entry
	}
	var cdEntries []cdInfo

	for _, e := range entries {
		lfhOffset := int64(len(out.b))
		date, tm := msdosTime(e.ModTime)

		flags := uint16(0)
		if e.UTF8 {
			flags |= 1 << 11
		}
		if e.DataDescriptor {
			flags |= 1 << 3
		}

		lfhExtra := e.Extra
		if e.LFHExtraOverride != nil {
			lfhExtra = e.LFHExtraOverride
		}

		compressedSize := uint32(len(e.Data))
		uncompressedSize := uint32(len(e.Data))
		crcField := e.crc32()
		versionNeeded := uint16(20)

		if e.DataDescriptor {
			compressedSize = 0
			uncompressedSize = 0
			crcField = 0
		}

		if e.ForceZip64Sizes {
			versionNeeded = 45
			data := make([]byte, 0, 16)
			data = binary.LittleEndian.AppendUint64(data, uint64(len(e.Data)))
			data = binary.LittleEndian.AppendUint64(data, uint64(len(e.Data)))
			var merged cursor
			merged.u16(0x0001)
			merged.u16(uint16(len(data)))
			merged.bytes(data)
			merged.bytes(lfhExtra)
			lfhExtra = merged.b
			compressedSize = 0xFFFFFFFF
			uncompressedSize = 0xFFFFFFFF
		}

		out.u32(sigLocalFileHeader)
		out.u16(versionNeeded)
		out.u16(flags)
		out.u16(0) // compression method: store
		out.u16(tm)
		out.u16(date)
		out.u32(crcField)
		out.u32(compressedSize)
		out.u32(uncompressedSize)
		out.u16(uint16(len(e.Name)))
		out.u16(uint16(len(lfhExtra)))
		out.bytes(e.Name)
		out.bytes(lfhExtra)

		out.bytes(e.Data)

		if e.DataDescriptor {
			if !e.DataDescriptorNoSignature {
				out.u32(sigDataDescriptor)
			}
			if e.DataDescriptorZip64 {
				out.u32(e.crc32())
				out.u64(uint64(len(e.Data)))
				out.u64(uint64(len(e.Data)))
			} else {
				out.u32(e.crc32())
				out.u32(uint32(len(e.Data)))
				out.u32(uint32(len(e.Data)))
			}
		}

		cdEntries = append(cdEntries, cdInfo{lfhOffset: lfhOffset, entry: e})
	}

	cdStart := int64(len(out.b))

	for _, ce := range cdEntries {
		e := ce.entry
		date, tm := msdosTime(e.ModTime)
		flags := uint16(0)
		if e.UTF8 {
			flags |= 1 << 11
		}
		if e.DataDescriptor {
			flags |= 1 << 3
		}

		cdhExtra := e.Extra
		if e.CDHExtraOverride != nil {
			cdhExtra = e.CDHExtraOverride
		}

		versionNeeded := uint16(20)
		compressedSize := uint32(len(e.Data))
		uncompressedSize := uint32(len(e.Data))
		localHeaderOffset := uint32(ce.lfhOffset)

		if e.ForceZip64Sizes || e.ForceZip64LocalOffset {
			// Field order mirrors the parser's fixed-order derivation:
			// uncompressed, compressed, local-header-offset, each present
			// only when the corresponding 32-bit CDH field is saturated.
			versionNeeded = 45
			var zip64Data []byte
			if e.ForceZip64Sizes {
				zip64Data = binary.LittleEndian.AppendUint64(zip64Data, uint64(len(e.Data)))
				zip64Data = binary.LittleEndian.AppendUint64(zip64Data, uint64(len(e.Data)))
				compressedSize = 0xFFFFFFFF
				uncompressedSize = 0xFFFFFFFF
			}
			if e.ForceZip64LocalOffset {
				zip64Data = binary.LittleEndian.AppendUint64(zip64Data, uint64(ce.lfhOffset))
				localHeaderOffset = 0xFFFFFFFF
			}
			var merged cursor
			merged.u16(0x0001)
			merged.u16(uint16(len(zip64Data)))
			merged.bytes(zip64Data)
			merged.bytes(cdhExtra)
			cdhExtra = merged.b
		}

		out.u32(sigCentralDirectory)
		out.u16(0x0314) // version made by: 2.0, Unix upper byte 0x03
		out.u16(versionNeeded)
		out.u16(flags)
		out.u16(0) // compression method
		out.u16(tm)
		out.u16(date)
		out.u32(e.crc32())
		out.u32(compressedSize)
		out.u32(uncompressedSize)
		out.u16(uint16(len(e.Name)))
		out.u16(uint16(len(cdhExtra)))
		out.u16(uint16(len(e.Comment)))
		out.u16(0) // disk number start
		out.u16(0) // internal attrs
		out.u32(0) // external attrs
		out.u32(localHeaderOffset)
		out.bytes(e.Name)
		out.bytes(cdhExtra)
		out.bytes(e.Comment)
	}

	cdEnd := int64(len(out.b))
	cdSize := cdEnd - cdStart

	out.u32(sigEndOfCentralDir)
	out.u16(0)
	out.u16(0)
	out.u16(uint16(len(entries)))
	out.u16(uint16(len(entries)))
	out.u32(uint32(cdSize))
	out.u32(uint32(cdStart))
	out.u16(uint16(len(comment)))
	out.bytes(comment)

	return out.b
}

// BuildUnicodePathExtra constructs a 0x7075 extra field body (without the
// tag/size header) for hostFilename, embedding crc32 of hostFilename (or
// badCRC32 if non-nil, to build a deliberately mismatching fixture).
func BuildUnicodePathExtra(hostFilename []byte, utf8Name []byte, badCRC32 *uint32) []byte {
	var c cursor
	c.b = append(c.b, 1) // version
	if badCRC32 != nil {
		c.u32(*badCRC32)
	} else {
		c.u32(crc32.ChecksumIEEE(hostFilename))
	}
	c.bytes(utf8Name)
	return c.b
}

// WrapExtra prepends a (tag, size) header to body, the form every extra
// field takes inside a header's extra-field region.
func WrapExtra(tag uint16, body []byte) []byte {
	var c cursor
	c.u16(tag)
	c.u16(uint16(len(body)))
	c.bytes(body)
	return c.b
}
