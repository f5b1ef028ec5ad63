package zipjis

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Signatures for the fixed-format records this package understands.
const (
	sigLocalFileHeader      = 0x04034b50
	sigCentralDirectory     = 0x02014b50
	sigEndOfCentralDir      = 0x06054b50
	sigZip64EndOfCentralDir = 0x06064b50
	sigZip64EOCDLocator     = 0x07064b50
	sigDataDescriptor       = 0x08074b50
)

// Extra field tags consumed by the parser.
const (
	extraTagZip64       = 0x0001
	extraTagUnicodePath = 0x7075
)

// General purpose bit flag bits consumed by the parser.
const (
	flagDataDescriptor = 1 << 3
	flagUTF8           = 1 << 11
)

const (
	lfhMinSize  = 30
	cdhMinSize  = 46
	eocdMinSize = 22

	zip64EOCDSize        = 56
	zip64EOCDLocatorSize = 20

	eocdSearchCap        = 65557 // 22 + max comment length
	zip64BackscanCap     = 1024 * 1024
	ddInspectStandard    = 20 // sig(4)+crc32(4)+compressed(4)+uncompressed(4)+next-sig(4)
	ddInspectZip64       = 28 // sig(4)+crc32(4)+compressed(8)+uncompressed(8)+next-sig(4)
	sentinel32     uint32 = 0xFFFFFFFF
	sentinel16     uint16 = 0xFFFF
)

// GeneralPurposeBitFlag is the 16-bit flag word shared by LFH and CDH records.
type GeneralPurposeBitFlag uint16

func (f GeneralPurposeBitFlag) HasDataDescriptor() bool { return f&flagDataDescriptor != 0 }
func (f GeneralPurposeBitFlag) IsUTF8() bool            { return f&flagUTF8 != 0 }

// ExtraField is a single (tag, data) record from a header's extra field area.
type ExtraField struct {
	Tag  uint16
	Data []byte
}

// Zip64ExtendedInfo is the decoded form of extra tag 0x0001. Fields are
// populated only for the host fields that were saturated; a nil pointer
// means the corresponding host field was not saturated and the value must
// be read from the 32-bit field instead.
type Zip64ExtendedInfo struct {
	UncompressedSize *uint64
	CompressedSize   *uint64
	LocalHeaderOffset *uint64
}

// UnicodePathExtraField is the decoded form of extra tag 0x7075.
type UnicodePathExtraField struct {
	Version       byte
	NameCRC32     uint32
	UTF8Bytes     []byte
	DecodedString string
	HasDecoded    bool
	CRC32Matched  bool
}

// CentralDirectoryHeader holds one entry's central directory record.
type CentralDirectoryHeader struct {
	VersionMadeBy          uint16
	VersionNeeded          uint16
	Flags                  GeneralPurposeBitFlag
	CompressionMethod      uint16
	LastModTime            uint16
	LastModDate            uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	DiskNumberStart        uint16
	InternalFileAttributes uint16
	ExternalFileAttributes uint32
	LocalHeaderOffset      uint32
	Filename               []byte
	ExtraFields            []ExtraField
	FileComment            []byte

	// Derived slots, populated deterministically during parse from
	// ExtraFields; see Zip64ExtendedInfo/UnicodePathExtraField.
	Zip64       *Zip64ExtendedInfo
	UnicodePath *UnicodePathExtraField
}

// LocalFileHeader holds one entry's local file header record.
type LocalFileHeader struct {
	VersionNeeded     uint16
	Flags             GeneralPurposeBitFlag
	CompressionMethod uint16
	LastModTime       uint16
	LastModDate       uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	Filename          []byte
	ExtraFields       []ExtraField

	Zip64       *Zip64ExtendedInfo
	UnicodePath *UnicodePathExtraField

	// FileDataOffset is not a parsed field; it is the absolute offset of
	// the entry's payload in the source. FileDataSize is the LFH's own
	// 32-bit compressed size field, which is 0 when a data descriptor is
	// used and the sentinel under ZIP64; ZipFileEntry.FileDataSize holds
	// the effective payload size.
	FileDataOffset int64
	FileDataSize   uint32
}

// DataDescriptor is the optional record trailing an entry's payload when
// LFH flag bit 3 is set. Signature is nil when the descriptor carries no
// signature word (see parseDataDescriptorStandard/parseDataDescriptorZip64
// for how the layout is told apart).
type DataDescriptor struct {
	Signature        *uint32
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	IsZip64          bool
}

// EndOfCentralDirectory is the 22-byte-plus-comment EOCD record.
type EndOfCentralDirectory struct {
	DiskNumber              uint16
	DiskNumberWithEOCD      uint16
	EntriesOnDisk           uint16
	TotalEntries            uint16
	CentralDirectorySize    uint32
	CentralDirectoryOffset  uint32
	Comment                 []byte
}

// Zip64EndOfCentralDirectory is the 56-byte ZIP64 EOCD header plus any
// trailing extensible data sector (kept raw, never interpreted).
type Zip64EndOfCentralDirectory struct {
	VersionMadeBy          uint16
	VersionNeeded          uint16
	DiskNumber             uint32
	DiskNumberWithEOCD      uint32
	TotalEntriesOnDisk     uint64
	TotalEntries           uint64
	CentralDirectorySize   uint64
	CentralDirectoryOffset uint64
	ExtensibleData         []byte
}

// Zip64EOCDLocator is the 20-byte locator immediately preceding EOCD.
type Zip64EOCDLocator struct {
	DiskWithEOCD uint32
	EOCDOffset   int64
	TotalDisks   uint32
}

// ZipFileEntry is one archive member: its CDH, LFH, optional data
// descriptor, and the payload's absolute location in the source.
type ZipFileEntry struct {
	CDH        CentralDirectoryHeader
	LFH        LocalFileHeader
	Descriptor *DataDescriptor

	FileDataOffset int64
	FileDataSize   int64
}

// ZipFile is the fully parsed archive: total size, EOCD, optional ZIP64
// EOCD/locator pair, and entries in their original central-directory order.
type ZipFile struct {
	Size       int64
	EOCD       EndOfCentralDirectory
	Zip64EOCD  *Zip64EndOfCentralDirectory
	Zip64Loc   *Zip64EOCDLocator
	Entries    []ZipFileEntry
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func le64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func isNextSectionSignature(v uint32) bool {
	switch v {
	case sigLocalFileHeader, sigCentralDirectory, sigEndOfCentralDir, sigZip64EndOfCentralDir:
		return true
	default:
		return false
	}
}

// Parse reconstructs a ZipFile from br. warn, if non-nil, is consulted for
// non-fatal per-entry anomalies encountered while walking the central
// directory; returning false from it makes the reported anomaly fatal. Parse
// itself never retains br past the call.
func Parse(ctx context.Context, br ByteRangeReader, warn WarningFunc) (*ZipFile, error) {
	size, err := br.Size(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get archive size")
	}

	eocdOffset, eocd, err := findEOCD(ctx, br, size)
	if err != nil {
		return nil, err
	}

	zip64EOCD, zip64Loc, err := resolveZip64EOCD(ctx, br, eocdOffset, eocd)
	if err != nil {
		return nil, err
	}

	var cdOffset, cdSize, totalEntries int64
	if zip64EOCD != nil {
		cdOffset = int64(zip64EOCD.CentralDirectoryOffset)
		cdSize = int64(zip64EOCD.CentralDirectorySize)
		totalEntries = int64(zip64EOCD.TotalEntries)
	} else {
		cdOffset = int64(eocd.CentralDirectoryOffset)
		cdSize = int64(eocd.CentralDirectorySize)
		totalEntries = int64(eocd.TotalEntries)
	}

	cdData := make([]byte, cdSize)
	if err := readFull(ctx, br, cdOffset, cdData); err != nil {
		return nil, errors.Wrap(err, "read central directory")
	}

	entries := make([]ZipFileEntry, 0, totalEntries)
	cdCursor := 0
	for idx := int64(0); idx < totalEntries; idx++ {
		entry, consumed, fatal, werr := parseOneEntry(ctx, br, cdData, cdCursor, idx)
		if fatal != nil {
			return nil, fatal
		}
		if werr != nil {
			if !reportWarning(warn, int(idx), werr) {
				return nil, errors.Wrapf(werr, "entry %d", idx)
			}
			// cdCursor could not be advanced reliably past a broken CDH;
			// a broken CDH desynchronizes the walk, so stop here without
			// treating it as fatal.
			if consumed == 0 {
				break
			}
		}
		cdCursor += consumed
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	return &ZipFile{
		Size:      size,
		EOCD:      *eocd,
		Zip64EOCD: zip64EOCD,
		Zip64Loc:  zip64Loc,
		Entries:   entries,
	}, nil
}

func reportWarning(warn WarningFunc, idx int, err error) bool {
	if warn == nil {
		return false
	}
	return warn(idx, err)
}

// parseOneEntry parses a single CDH and its associated LFH/descriptor.
// fatal is non-nil for errors that should abort Parse entirely regardless
// of the warning sink (none currently distinguished from warnable ones,
// kept separate for forward compatibility). werr is non-nil for anomalies
// that the warning sink may downgrade.
func parseOneEntry(ctx context.Context, br ByteRangeReader, cdData []byte, cdCursor int, idx int64) (entry *ZipFileEntry, consumed int, fatal error, werr error) {
	if cdCursor+cdhMinSize > len(cdData) {
		return nil, 0, nil, &ErrTruncatedRecord{Record: "CDH", Expected: cdhMinSize, Got: len(cdData) - cdCursor}
	}

	cdh, cdhLen, err := parseCDH(cdData[cdCursor:])
	if err != nil {
		return nil, 0, nil, err
	}

	lfhOffset := int64(cdh.LocalHeaderOffset)
	if cdh.Zip64 != nil && cdh.Zip64.LocalHeaderOffset != nil {
		lfhOffset = int64(*cdh.Zip64.LocalHeaderOffset)
	}
	lfh, err := fetchLFH(ctx, br, lfhOffset, idx)
	if err != nil {
		return nil, cdhLen, nil, err
	}

	effectiveCompressedSize := int64(cdh.CompressedSize)
	if cdh.Zip64 != nil && cdh.Zip64.CompressedSize != nil {
		effectiveCompressedSize = int64(*cdh.Zip64.CompressedSize)
	}

	var descriptor *DataDescriptor
	if lfh.Flags.HasDataDescriptor() {
		hasZip64Ext := extraHasTag(lfh.ExtraFields, extraTagZip64) || extraHasTag(cdh.ExtraFields, extraTagZip64)
		// The LFH size fields are zero when bit 3 is set; the CDH size is
		// authoritative for where the payload ends.
		ddOffset := lfh.FileDataOffset + effectiveCompressedSize
		dd, derr := fetchDataDescriptor(ctx, br, ddOffset, hasZip64Ext, idx)
		if derr != nil {
			return nil, cdhLen, nil, derr
		}
		descriptor = dd
	}

	entry = &ZipFileEntry{
		CDH:            *cdh,
		LFH:            *lfh,
		Descriptor:     descriptor,
		FileDataOffset: lfh.FileDataOffset,
		FileDataSize:   effectiveCompressedSize,
	}
	return entry, cdhLen, nil, nil
}

func extraHasTag(extras []ExtraField, tag uint16) bool {
	for _, e := range extras {
		if e.Tag == tag {
			return true
		}
	}
	return false
}

func findEOCD(ctx context.Context, br ByteRangeReader, size int64) (int64, *EndOfCentralDirectory, error) {
	searchSize := int64(eocdSearchCap)
	if size < searchSize {
		searchSize = size
	}
	searchOffset := size - searchSize
	if searchOffset < 0 {
		searchOffset = 0
	}

	buf := make([]byte, searchSize)
	if err := readFull(ctx, br, searchOffset, buf); err != nil {
		return 0, nil, errors.Wrap(err, "read EOCD search window")
	}

	eocdPos := -1
	for i := len(buf) - eocdMinSize; i >= 0; i-- {
		if le32(buf[i:i+4]) == sigEndOfCentralDir {
			eocdPos = i
			break
		}
	}
	if eocdPos < 0 {
		return 0, nil, &ErrEOCDNotFound{SearchedBytes: searchSize}
	}

	eocdOffset := searchOffset + int64(eocdPos)
	eocd, err := parseEOCD(buf[eocdPos:])
	if err != nil {
		return 0, nil, err
	}
	return eocdOffset, eocd, nil
}

func parseEOCD(data []byte) (*EndOfCentralDirectory, error) {
	if len(data) < eocdMinSize {
		return nil, &ErrTruncatedRecord{Record: "EOCD", Expected: eocdMinSize, Got: len(data)}
	}
	if sig := le32(data[0:4]); sig != sigEndOfCentralDir {
		return nil, &ErrInvalidSignature{Record: "EOCD", Expected: sigEndOfCentralDir, Got: sig}
	}
	commentLen := int(le16(data[20:22]))
	if len(data) < eocdMinSize+commentLen {
		return nil, &ErrTruncatedRecord{Record: "EOCD comment", Expected: eocdMinSize + commentLen, Got: len(data)}
	}
	return &EndOfCentralDirectory{
		DiskNumber:             le16(data[4:6]),
		DiskNumberWithEOCD:     le16(data[6:8]),
		EntriesOnDisk:          le16(data[8:10]),
		TotalEntries:           le16(data[10:12]),
		CentralDirectorySize:   le32(data[12:16]),
		CentralDirectoryOffset: le32(data[16:20]),
		Comment:                append([]byte(nil), data[22:22+commentLen]...),
	}, nil
}

func resolveZip64EOCD(ctx context.Context, br ByteRangeReader, eocdOffset int64, eocd *EndOfCentralDirectory) (*Zip64EndOfCentralDirectory, *Zip64EOCDLocator, error) {
	needsZip64 := eocd.TotalEntries == sentinel16 ||
		eocd.CentralDirectorySize == sentinel32 ||
		eocd.CentralDirectoryOffset == sentinel32
	if !needsZip64 {
		return nil, nil, nil
	}

	var locator *Zip64EOCDLocator
	if eocdOffset >= zip64EOCDLocatorSize {
		locBuf := make([]byte, zip64EOCDLocatorSize)
		if err := readFull(ctx, br, eocdOffset-zip64EOCDLocatorSize, locBuf); err != nil {
			return nil, nil, errors.Wrap(err, "read zip64 EOCD locator")
		}
		if le32(locBuf[0:4]) == sigZip64EOCDLocator {
			locator = &Zip64EOCDLocator{
				DiskWithEOCD: le32(locBuf[4:8]),
				EOCDOffset:   int64(le64(locBuf[8:16])),
				TotalDisks:   le32(locBuf[16:20]),
			}
		}
	}

	var zip64Offset int64
	if locator != nil {
		zip64Offset = locator.EOCDOffset
	} else {
		searchSize := int64(zip64BackscanCap)
		if eocdOffset < searchSize {
			searchSize = eocdOffset
		}
		searchStart := eocdOffset - searchSize
		buf := make([]byte, searchSize)
		if err := readFull(ctx, br, searchStart, buf); err != nil {
			return nil, nil, errors.Wrap(err, "read zip64 EOCD backscan window")
		}
		found := int64(-1)
		for i := len(buf) - zip64EOCDSize; i >= 0; i-- {
			if le32(buf[i:i+4]) == sigZip64EndOfCentralDir {
				found = searchStart + int64(i)
				break
			}
		}
		if found < 0 {
			return nil, nil, &ErrZip64EOCDNotFound{EOCDOffset: eocdOffset}
		}
		zip64Offset = found
	}

	hdrBuf := make([]byte, zip64EOCDSize)
	if err := readFull(ctx, br, zip64Offset, hdrBuf); err != nil {
		return nil, nil, errors.Wrap(err, "read zip64 EOCD header")
	}
	if sig := le32(hdrBuf[0:4]); sig != sigZip64EndOfCentralDir {
		return nil, nil, &ErrInvalidSignature{Record: "Zip64 EOCD", Expected: sigZip64EndOfCentralDir, Got: sig}
	}

	sizeOfRecord := le64(hdrBuf[4:12])
	rec := &Zip64EndOfCentralDirectory{
		VersionMadeBy:          le16(hdrBuf[12:14]),
		VersionNeeded:          le16(hdrBuf[14:16]),
		DiskNumber:             le32(hdrBuf[16:20]),
		DiskNumberWithEOCD:     le32(hdrBuf[20:24]),
		TotalEntriesOnDisk:     le64(hdrBuf[24:32]),
		TotalEntries:           le64(hdrBuf[32:40]),
		CentralDirectorySize:   le64(hdrBuf[40:48]),
		CentralDirectoryOffset: le64(hdrBuf[48:56]),
	}

	if sizeOfRecord > 44 {
		extra := sizeOfRecord - 44
		extraBuf := make([]byte, extra)
		if err := readFull(ctx, br, zip64Offset+zip64EOCDSize, extraBuf); err != nil {
			return nil, nil, errors.Wrap(err, "read zip64 EOCD extensible data")
		}
		rec.ExtensibleData = extraBuf
	}

	return rec, locator, nil
}

func parseExtraFields(data []byte) ([]ExtraField, error) {
	var fields []ExtraField
	offset := 0
	for offset+4 <= len(data) {
		tag := le16(data[offset : offset+2])
		size := int(le16(data[offset+2 : offset+4]))
		offset += 4
		if offset+size > len(data) {
			return nil, &ErrTruncatedRecord{Record: "extra field", Expected: offset + size, Got: len(data)}
		}
		fields = append(fields, ExtraField{Tag: tag, Data: append([]byte(nil), data[offset:offset+size]...)})
		offset += size
	}
	if offset != len(data) {
		return nil, &ErrTruncatedRecord{Record: "extra field tail", Expected: offset, Got: len(data)}
	}
	return fields, nil
}

// deriveZip64 reads tag 0x0001 data in the fixed order uncompressed,
// compressed, local-header-offset, consuming a field only when the
// corresponding host value is saturated (hasLocalOffset is false for LFH,
// which has no local-header-offset field of its own). Trailing disk-start
// bytes are ignored.
func deriveZip64(extras []ExtraField, hostUncompressed, hostCompressed uint32, hasLocalOffset bool, hostOffset uint32) *Zip64ExtendedInfo {
	for _, e := range extras {
		if e.Tag != extraTagZip64 {
			continue
		}
		info := &Zip64ExtendedInfo{}
		pos := 0
		if hostUncompressed == sentinel32 && pos+8 <= len(e.Data) {
			v := le64(e.Data[pos : pos+8])
			info.UncompressedSize = &v
			pos += 8
		}
		if hostCompressed == sentinel32 && pos+8 <= len(e.Data) {
			v := le64(e.Data[pos : pos+8])
			info.CompressedSize = &v
			pos += 8
		}
		if hasLocalOffset && hostOffset == sentinel32 && pos+8 <= len(e.Data) {
			v := le64(e.Data[pos : pos+8])
			info.LocalHeaderOffset = &v
		}
		return info
	}
	return nil
}

// deriveUnicodePath reads tag 0x7075 data: version(1) | crc32(4) | utf8...
func deriveUnicodePath(extras []ExtraField, hostFilename []byte) *UnicodePathExtraField {
	for _, e := range extras {
		if e.Tag != extraTagUnicodePath {
			continue
		}
		if len(e.Data) < 5 {
			continue
		}
		version := e.Data[0]
		if version != 1 {
			continue
		}
		nameCRC32 := le32(e.Data[1:5])
		utf8Bytes := append([]byte(nil), e.Data[5:]...)
		up := &UnicodePathExtraField{
			Version:      version,
			NameCRC32:    nameCRC32,
			UTF8Bytes:    utf8Bytes,
			CRC32Matched: crc32.ChecksumIEEE(hostFilename) == nameCRC32,
		}
		if utf8.Valid(utf8Bytes) {
			up.HasDecoded = true
			up.DecodedString = string(utf8Bytes)
		}
		return up
	}
	return nil
}

func parseCDH(data []byte) (*CentralDirectoryHeader, int, error) {
	if len(data) < cdhMinSize {
		return nil, 0, &ErrTruncatedRecord{Record: "CDH", Expected: cdhMinSize, Got: len(data)}
	}
	if sig := le32(data[0:4]); sig != sigCentralDirectory {
		return nil, 0, &ErrInvalidSignature{Record: "CDH", Expected: sigCentralDirectory, Got: sig}
	}

	filenameLen := int(le16(data[28:30]))
	extraLen := int(le16(data[30:32]))
	commentLen := int(le16(data[32:34]))

	total := cdhMinSize + filenameLen + extraLen + commentLen
	if len(data) < total {
		return nil, 0, &ErrTruncatedRecord{Record: "CDH", Expected: total, Got: len(data)}
	}

	off := cdhMinSize
	filename := append([]byte(nil), data[off:off+filenameLen]...)
	off += filenameLen
	extraData := data[off : off+extraLen]
	off += extraLen
	comment := append([]byte(nil), data[off:off+commentLen]...)

	extras, err := parseExtraFields(extraData)
	if err != nil {
		return nil, 0, err
	}

	cdh := &CentralDirectoryHeader{
		VersionMadeBy:          le16(data[4:6]),
		VersionNeeded:          le16(data[6:8]),
		Flags:                  GeneralPurposeBitFlag(le16(data[8:10])),
		CompressionMethod:      le16(data[10:12]),
		LastModTime:            le16(data[12:14]),
		LastModDate:            le16(data[14:16]),
		CRC32:                  le32(data[16:20]),
		CompressedSize:         le32(data[20:24]),
		UncompressedSize:       le32(data[24:28]),
		DiskNumberStart:        le16(data[34:36]),
		InternalFileAttributes: le16(data[36:38]),
		ExternalFileAttributes: le32(data[38:42]),
		LocalHeaderOffset:      le32(data[42:46]),
		Filename:               filename,
		ExtraFields:            extras,
		FileComment:            comment,
	}
	cdh.Zip64 = deriveZip64(extras, cdh.UncompressedSize, cdh.CompressedSize, true, cdh.LocalHeaderOffset)
	cdh.UnicodePath = deriveUnicodePath(extras, filename)

	return cdh, total, nil
}

func fetchLFH(ctx context.Context, br ByteRangeReader, offset int64, idx int64) (*LocalFileHeader, error) {
	head := make([]byte, lfhMinSize)
	if err := readFull(ctx, br, offset, head); err != nil {
		return nil, errors.Wrapf(err, "read LFH %d minimum header", idx)
	}
	filenameLen := int(le16(head[26:28]))
	extraLen := int(le16(head[28:30]))
	full := make([]byte, lfhMinSize+filenameLen+extraLen)
	if err := readFull(ctx, br, offset, full); err != nil {
		return nil, errors.Wrapf(err, "read LFH %d full header", idx)
	}
	return parseLFH(full, offset)
}

func parseLFH(data []byte, offset int64) (*LocalFileHeader, error) {
	if len(data) < lfhMinSize {
		return nil, &ErrTruncatedRecord{Record: "LFH", Expected: lfhMinSize, Got: len(data)}
	}
	if sig := le32(data[0:4]); sig != sigLocalFileHeader {
		return nil, &ErrInvalidSignature{Record: "LFH", Expected: sigLocalFileHeader, Got: sig}
	}

	filenameLen := int(le16(data[26:28]))
	extraLen := int(le16(data[28:30]))
	total := lfhMinSize + filenameLen + extraLen
	if len(data) < total {
		return nil, &ErrTruncatedRecord{Record: "LFH", Expected: total, Got: len(data)}
	}

	filename := append([]byte(nil), data[30:30+filenameLen]...)
	extraData := data[30+filenameLen : total]
	extras, err := parseExtraFields(extraData)
	if err != nil {
		return nil, err
	}

	lfh := &LocalFileHeader{
		VersionNeeded:     le16(data[4:6]),
		Flags:             GeneralPurposeBitFlag(le16(data[6:8])),
		CompressionMethod: le16(data[8:10]),
		LastModTime:       le16(data[10:12]),
		LastModDate:       le16(data[12:14]),
		CRC32:             le32(data[14:18]),
		CompressedSize:    le32(data[18:22]),
		UncompressedSize:  le32(data[22:26]),
		Filename:          filename,
		ExtraFields:       extras,
		FileDataOffset:    offset + int64(total),
		FileDataSize:      le32(data[18:22]),
	}
	lfh.Zip64 = deriveZip64(extras, lfh.UncompressedSize, lfh.CompressedSize, false, 0)
	lfh.UnicodePath = deriveUnicodePath(extras, filename)

	return lfh, nil
}

func fetchDataDescriptor(ctx context.Context, br ByteRangeReader, offset int64, zip64 bool, idx int64) (*DataDescriptor, error) {
	inspectSize := ddInspectStandard
	if zip64 {
		inspectSize = ddInspectZip64
	}
	buf := make([]byte, inspectSize)
	if err := readFull(ctx, br, offset, buf); err != nil {
		return nil, errors.Wrap(err, "read data descriptor")
	}
	return parseDataDescriptor(buf, zip64, idx)
}

func parseDataDescriptor(data []byte, zip64 bool, idx int64) (*DataDescriptor, error) {
	if zip64 {
		return parseDataDescriptorZip64(data, idx)
	}
	return parseDataDescriptorStandard(data, idx)
}

func parseDataDescriptorStandard(data []byte, idx int64) (*DataDescriptor, error) {
	if len(data) < ddInspectStandard {
		return nil, &ErrTruncatedRecord{Record: "data descriptor", Expected: ddInspectStandard, Got: len(data)}
	}
	hasSig := false
	switch {
	case isNextSectionSignature(le32(data[16:20])):
		hasSig = true
	case isNextSectionSignature(le32(data[12:16])):
		hasSig = false
	default:
		return nil, &ErrAmbiguousDataDescriptor{EntryIndex: int(idx)}
	}

	var sigPtr *uint32
	content := data[0:12]
	if hasSig {
		sig := le32(data[0:4])
		if sig != sigDataDescriptor {
			return nil, &ErrInvalidSignature{Record: "data descriptor", Expected: sigDataDescriptor, Got: sig}
		}
		sigPtr = &sig
		content = data[4:16]
	}

	return &DataDescriptor{
		Signature:        sigPtr,
		CRC32:            le32(content[0:4]),
		CompressedSize:   uint64(le32(content[4:8])),
		UncompressedSize: uint64(le32(content[8:12])),
	}, nil
}

func parseDataDescriptorZip64(data []byte, idx int64) (*DataDescriptor, error) {
	if len(data) < ddInspectZip64 {
		return nil, &ErrTruncatedRecord{Record: "zip64 data descriptor", Expected: ddInspectZip64, Got: len(data)}
	}
	hasSig := false
	switch {
	case isNextSectionSignature(le32(data[24:28])):
		hasSig = true
	case isNextSectionSignature(le32(data[20:24])):
		hasSig = false
	default:
		return nil, &ErrAmbiguousDataDescriptor{EntryIndex: int(idx)}
	}

	var sigPtr *uint32
	content := data[0:20]
	if hasSig {
		sig := le32(data[0:4])
		if sig != sigDataDescriptor {
			return nil, &ErrInvalidSignature{Record: "zip64 data descriptor", Expected: sigDataDescriptor, Got: sig}
		}
		sigPtr = &sig
		content = data[4:24]
	}

	return &DataDescriptor{
		Signature:        sigPtr,
		CRC32:            le32(content[0:4]),
		CompressedSize:   le64(content[4:12]),
		UncompressedSize: le64(content[12:20]),
		IsZip64:          true,
	}, nil
}
