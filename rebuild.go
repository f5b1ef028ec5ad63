package zipjis

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// RebuildChunk is one piece of a rebuilt archive: either literal bytes the
// engine synthesized, or a reference into the source archive's payload
// region. The engine never reads payload bytes itself; MaterializeChunks
// (or an equivalent caller-side consumer) resolves Reference chunks.
type RebuildChunk struct {
	Literal   []byte
	RefOffset int64
	RefSize   int64
}

func binaryChunk(b []byte) RebuildChunk { return RebuildChunk{Literal: b} }

func referenceChunk(offset, size int64) RebuildChunk {
	return RebuildChunk{RefOffset: offset, RefSize: size}
}

// zipBuf is a small little-endian cursor for serializing fixed-and-tail
// zip records, mirroring the write-then-advance style used throughout
// this package's binary encoding.
type zipBuf struct {
	b []byte
}

func newZipBuf(capacity int) *zipBuf { return &zipBuf{b: make([]byte, 0, capacity)} }

func (w *zipBuf) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *zipBuf) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *zipBuf) u64(v uint64) { w.b = binary.LittleEndian.AppendUint64(w.b, v) }
func (w *zipBuf) bytes(p []byte) { w.b = append(w.b, p...) }

// rebuiltCDEntry carries the information the central-directory pass needs
// once all LFH+payload chunks have been emitted and their offsets in the
// output are known.
type rebuiltCDEntry struct {
	lfhOffset        int64
	filename         []byte
	source           *ZipFileEntry
	uncompressedSize int64
	compressedSize   int64
	crc32            uint32
}

// Rebuild produces an ordered chunk plan for a UTF-8-filenamed,
// structurally equivalent archive containing every entry of zf except
// those named in omitEntries (by index). The plan, concatenated in order,
// is a complete well-formed ZIP; Rebuild never reads payload bytes.
func Rebuild(zf *ZipFile, config InspectConfig, omitEntries map[int]bool) ([]RebuildChunk, int64, error) {
	inspected, err := Inspect(zf, config)
	if err != nil {
		return nil, 0, errors.Wrap(err, "inspect before rebuild")
	}

	var chunks []RebuildChunk
	var currentOffset int64
	var cdEntries []rebuiltCDEntry

	for idx := range zf.Entries {
		if omitEntries[idx] {
			continue
		}
		entry := &zf.Entries[idx]
		inspectedEntry := &inspected.Entries[idx]

		filename := rebuiltFilename(inspectedEntry, entry)
		uncompressedSize := effectiveUncompressedSize(&entry.CDH)
		compressedSize := effectiveCompressedSize(&entry.CDH)
		crc32 := entry.CDH.CRC32

		lfhBytes, err := buildRebuiltLFH(entry, filename, uncompressedSize, compressedSize, crc32)
		if err != nil {
			return nil, 0, err
		}

		chunks = append(chunks, binaryChunk(lfhBytes))
		lfhOffset := currentOffset
		currentOffset += int64(len(lfhBytes))

		chunks = append(chunks, referenceChunk(entry.FileDataOffset, compressedSize))
		currentOffset += compressedSize

		cdEntries = append(cdEntries, rebuiltCDEntry{
			lfhOffset:        lfhOffset,
			filename:         filename,
			source:           entry,
			uncompressedSize: uncompressedSize,
			compressedSize:   compressedSize,
			crc32:            crc32,
		})
	}

	totalEntries := int64(len(cdEntries))
	cdStartOffset := currentOffset

	for _, ce := range cdEntries {
		cdhBytes, err := buildRebuiltCDH(ce)
		if err != nil {
			return nil, 0, err
		}
		chunks = append(chunks, binaryChunk(cdhBytes))
		currentOffset += int64(len(cdhBytes))
	}

	cdEndOffset := currentOffset
	cdSize := cdEndOffset - cdStartOffset

	needZip64EOCD := cdStartOffset >= int64(sentinel32) || cdSize >= int64(sentinel32) || totalEntries >= int64(sentinel16)

	if needZip64EOCD {
		zip64Bytes := buildZip64EOCD(totalEntries, cdSize, cdStartOffset)
		chunks = append(chunks, binaryChunk(zip64Bytes))
		zip64Offset := currentOffset
		currentOffset += int64(len(zip64Bytes))

		locatorBytes := buildZip64Locator(zip64Offset)
		chunks = append(chunks, binaryChunk(locatorBytes))
		currentOffset += int64(len(locatorBytes))
	}

	if len(zf.EOCD.Comment) > 0xFFFF {
		return nil, 0, errors.New("zipjis: archive comment exceeds 65535 bytes and cannot be rebuilt")
	}

	eocdBytes := buildEOCD(totalEntries, cdSize, cdStartOffset, zf.EOCD.Comment)
	chunks = append(chunks, binaryChunk(eocdBytes))
	currentOffset += int64(len(eocdBytes))

	return chunks, currentOffset, nil
}

// rebuiltFilename is the UTF-8 encoding of the inspector's decoded
// string. When decoding was skipped it falls back to the selected-source
// bytes if they were retained (InspectConfig.NeedsOriginalBytes), and to
// the CDH filename bytes otherwise.
func rebuiltFilename(inspected *InspectedEntry, entry *ZipFileEntry) []byte {
	if inspected.Decoded != nil {
		return []byte(inspected.Decoded.String)
	}
	if inspected.OriginalBytes != nil {
		return inspected.OriginalBytes
	}
	return entry.CDH.Filename
}

func stripRebuildExtras(extras []ExtraField) []ExtraField {
	out := make([]ExtraField, 0, len(extras))
	for _, e := range extras {
		if e.Tag == extraTagZip64 || e.Tag == extraTagUnicodePath {
			continue
		}
		out = append(out, e)
	}
	return out
}

func extrasEncodedLength(extras []ExtraField) int {
	n := 0
	for _, e := range extras {
		n += 4 + len(e.Data)
	}
	return n
}

func rebuiltFlags(original GeneralPurposeBitFlag) GeneralPurposeBitFlag {
	f := uint16(original)
	f |= flagUTF8
	f &^= flagDataDescriptor
	return GeneralPurposeBitFlag(f)
}

func buildRebuiltLFH(entry *ZipFileEntry, filename []byte, uncompressedSize, compressedSize int64, crc32 uint32) ([]byte, error) {
	extras := stripRebuildExtras(entry.LFH.ExtraFields)

	versionNeeded := entry.CDH.VersionNeeded
	if entry.LFH.VersionNeeded > versionNeeded {
		versionNeeded = entry.LFH.VersionNeeded
	}
	if versionNeeded < 20 {
		versionNeeded = 20
	}

	lfhCompressedSize := uint32(compressedSize)
	lfhUncompressedSize := uint32(uncompressedSize)

	if compressedSize >= int64(sentinel32) || uncompressedSize >= int64(sentinel32) {
		if versionNeeded < 45 {
			versionNeeded = 45
		}
		lfhCompressedSize = sentinel32
		lfhUncompressedSize = sentinel32

		data := make([]byte, 0, 16)
		data = binary.LittleEndian.AppendUint64(data, uint64(uncompressedSize))
		data = binary.LittleEndian.AppendUint64(data, uint64(compressedSize))
		extras = append([]ExtraField{{Tag: extraTagZip64, Data: data}}, extras...)
	}

	w := newZipBuf(lfhMinSize + len(filename) + extrasEncodedLength(extras))
	w.u32(sigLocalFileHeader)
	w.u16(versionNeeded)
	w.u16(uint16(rebuiltFlags(entry.LFH.Flags)))
	w.u16(entry.LFH.CompressionMethod)
	w.u16(entry.LFH.LastModTime)
	w.u16(entry.LFH.LastModDate)
	w.u32(crc32)
	w.u32(lfhCompressedSize)
	w.u32(lfhUncompressedSize)
	w.u16(uint16(len(filename)))
	w.u16(uint16(extrasEncodedLength(extras)))
	w.bytes(filename)
	for _, e := range extras {
		w.u16(e.Tag)
		w.u16(uint16(len(e.Data)))
		w.bytes(e.Data)
	}
	return w.b, nil
}

func buildRebuiltCDH(ce rebuiltCDEntry) ([]byte, error) {
	entry := ce.source
	extras := stripRebuildExtras(entry.CDH.ExtraFields)

	versionMadeByOS := entry.CDH.VersionMadeBy & 0xFF00
	versionMadeBy := versionMadeByOS | 63

	versionNeeded := entry.CDH.VersionNeeded
	if entry.LFH.VersionNeeded > versionNeeded {
		versionNeeded = entry.LFH.VersionNeeded
	}
	if versionNeeded < 20 {
		versionNeeded = 20
	}

	cdhCompressedSize := uint32(ce.compressedSize)
	cdhUncompressedSize := uint32(ce.uncompressedSize)
	cdhLocalHeaderOffset := uint32(ce.lfhOffset)

	needZip64 := ce.compressedSize >= int64(sentinel32) || ce.uncompressedSize >= int64(sentinel32) || ce.lfhOffset >= int64(sentinel32)
	if needZip64 {
		if versionNeeded < 45 {
			versionNeeded = 45
		}
		var data []byte
		if ce.uncompressedSize >= int64(sentinel32) {
			cdhUncompressedSize = sentinel32
			data = binary.LittleEndian.AppendUint64(data, uint64(ce.uncompressedSize))
		}
		if ce.compressedSize >= int64(sentinel32) {
			cdhCompressedSize = sentinel32
			data = binary.LittleEndian.AppendUint64(data, uint64(ce.compressedSize))
		}
		if ce.lfhOffset >= int64(sentinel32) {
			cdhLocalHeaderOffset = sentinel32
			data = binary.LittleEndian.AppendUint64(data, uint64(ce.lfhOffset))
		}
		extras = append([]ExtraField{{Tag: extraTagZip64, Data: data}}, extras...)
	}

	w := newZipBuf(cdhMinSize + len(ce.filename) + extrasEncodedLength(extras) + len(entry.CDH.FileComment))
	w.u32(sigCentralDirectory)
	w.u16(versionMadeBy)
	w.u16(versionNeeded)
	w.u16(uint16(rebuiltFlags(entry.CDH.Flags)))
	w.u16(entry.CDH.CompressionMethod)
	w.u16(entry.CDH.LastModTime)
	w.u16(entry.CDH.LastModDate)
	w.u32(ce.crc32)
	w.u32(cdhCompressedSize)
	w.u32(cdhUncompressedSize)
	w.u16(uint16(len(ce.filename)))
	w.u16(uint16(extrasEncodedLength(extras)))
	w.u16(uint16(len(entry.CDH.FileComment)))
	w.u16(0) // disk number start
	w.u16(entry.CDH.InternalFileAttributes)
	w.u32(entry.CDH.ExternalFileAttributes)
	w.u32(cdhLocalHeaderOffset)
	w.bytes(ce.filename)
	for _, e := range extras {
		w.u16(e.Tag)
		w.u16(uint16(len(e.Data)))
		w.bytes(e.Data)
	}
	w.bytes(entry.CDH.FileComment)
	return w.b, nil
}

func buildZip64EOCD(totalEntries, cdSize, cdStartOffset int64) []byte {
	w := newZipBuf(zip64EOCDSize)
	w.u32(sigZip64EndOfCentralDir)
	w.u64(44) // size_of_record, fixed-form record without extensible data
	w.u16(63) // version made by, 6.3 (host byte 0)
	w.u16(45) // version needed
	w.u32(0)  // disk number
	w.u32(0)  // disk with eocd
	w.u64(uint64(totalEntries))
	w.u64(uint64(totalEntries))
	w.u64(uint64(cdSize))
	w.u64(uint64(cdStartOffset))
	return w.b
}

func buildZip64Locator(zip64EOCDOffset int64) []byte {
	w := newZipBuf(zip64EOCDLocatorSize)
	w.u32(sigZip64EOCDLocator)
	w.u32(0) // disk with eocd
	w.u64(uint64(zip64EOCDOffset))
	w.u32(1) // total disks
	return w.b
}

func buildEOCD(totalEntries, cdSize, cdStartOffset int64, comment []byte) []byte {
	entryCount := uint16(totalEntries)
	if totalEntries >= int64(sentinel16) {
		entryCount = sentinel16
	}
	size32 := uint32(cdSize)
	if cdSize >= int64(sentinel32) {
		size32 = sentinel32
	}
	offset32 := uint32(cdStartOffset)
	if cdStartOffset >= int64(sentinel32) {
		offset32 = sentinel32
	}

	w := newZipBuf(eocdMinSize + len(comment))
	w.u32(sigEndOfCentralDir)
	w.u16(0) // disk number
	w.u16(0) // disk with eocd
	w.u16(entryCount)
	w.u16(entryCount)
	w.u32(size32)
	w.u32(offset32)
	w.u16(uint16(len(comment)))
	w.bytes(comment)
	return w.b
}

// MaterializeChunks streams a rebuild chunk plan to w: literal chunks are
// written directly, and reference chunks are read from src in bounded
// pieces so payload data is never fully buffered in memory.
func MaterializeChunks(ctx context.Context, w io.Writer, src ByteRangeReader, chunks []RebuildChunk) error {
	const copyBufSize = 256 * 1024
	buf := make([]byte, copyBufSize)

	for _, c := range chunks {
		if c.Literal != nil {
			if _, err := w.Write(c.Literal); err != nil {
				return errors.Wrap(err, "write literal chunk")
			}
			continue
		}

		remaining := c.RefSize
		offset := c.RefOffset
		for remaining > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			n := int64(len(buf))
			if remaining < n {
				n = remaining
			}
			chunkBuf := buf[:n]
			read, err := src.ReadAt(ctx, chunkBuf, offset)
			if err != nil && !(err == io.EOF && int64(read) == n) {
				return errors.Wrapf(err, "read reference chunk at offset %d", offset)
			}
			if _, err := w.Write(chunkBuf[:read]); err != nil {
				return errors.Wrap(err, "write reference chunk")
			}
			offset += int64(read)
			remaining -= int64(read)
		}
	}
	return nil
}
