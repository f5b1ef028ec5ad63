package zipjis_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/motoki317/zipjis"
	"github.com/motoki317/zipjis/internal/testzip"
)

func rebuildToBytes(t *testing.T, data []byte, config zipjis.InspectConfig, omit map[int]bool) []byte {
	t.Helper()
	zf := mustParse(t, data)
	chunks, total, err := zipjis.Rebuild(zf, config, omit)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	var buf bytes.Buffer
	src := zipjis.NewMemoryReader(data)
	if err := zipjis.MaterializeChunks(context.Background(), &buf, src, chunks); err != nil {
		t.Fatalf("MaterializeChunks: %v", err)
	}
	if int64(buf.Len()) != total {
		t.Errorf("materialized %d bytes, Rebuild reported %d", buf.Len(), total)
	}
	return buf.Bytes()
}

func TestRebuildProducesUTF8FilenameAndUnchangedPayload(t *testing.T) {
	original := testzip.Build([]*testzip.Entry{
		{Name: shiftJISBytes(), Data: []byte("payload bytes unchanged")},
	}, nil)

	config := zipjis.InspectConfig{
		Encoding: zipjis.EncodingConfig{
			Strategy:              zipjis.ForceSpecified,
			FallbackOrForcedLabel: "Shift_JIS",
		},
		FieldSelectionStrategy: zipjis.StrategyCdh,
	}
	rebuilt := rebuildToBytes(t, original, config, nil)

	zf := mustParse(t, rebuilt)
	if len(zf.Entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(zf.Entries))
	}
	e := zf.Entries[0]
	if string(e.CDH.Filename) != "テスト.txt" {
		t.Errorf("rebuilt filename = %q", e.CDH.Filename)
	}
	if !e.CDH.Flags.IsUTF8() {
		t.Error("expected the rebuilt UTF-8 flag to be set")
	}
	if e.LFH.Flags.HasDataDescriptor() {
		t.Error("rebuilt entries should never carry a data descriptor")
	}

	payload := rebuilt[e.FileDataOffset : e.FileDataOffset+e.FileDataSize]
	if string(payload) != "payload bytes unchanged" {
		t.Errorf("payload = %q", payload)
	}
}

func TestRebuildOmitsSelectedEntry(t *testing.T) {
	original := testzip.Build([]*testzip.Entry{
		{Name: []byte("keep.txt"), Data: []byte("keep")},
		{Name: []byte("drop.txt"), Data: []byte("drop")},
	}, nil)

	rebuilt := rebuildToBytes(t, original, zipjis.InspectConfig{FieldSelectionStrategy: zipjis.StrategyCdh}, map[int]bool{1: true})

	zf := mustParse(t, rebuilt)
	if len(zf.Entries) != 1 {
		t.Fatalf("want 1 entry after omit, got %d", len(zf.Entries))
	}
	if string(zf.Entries[0].CDH.Filename) != "keep.txt" {
		t.Errorf("remaining filename = %q", zf.Entries[0].CDH.Filename)
	}
}

func TestRebuildDataDescriptorEntryBecomesInlineSizes(t *testing.T) {
	original := testzip.Build([]*testzip.Entry{
		{Name: []byte("streamed.txt"), Data: []byte("streamed payload"), DataDescriptor: true},
	}, nil)

	rebuilt := rebuildToBytes(t, original, zipjis.InspectConfig{FieldSelectionStrategy: zipjis.StrategyCdh}, nil)

	zf := mustParse(t, rebuilt)
	e := zf.Entries[0]
	if e.LFH.Flags.HasDataDescriptor() {
		t.Error("rebuilt LFH should not set the data descriptor flag")
	}
	if e.LFH.UncompressedSize != uint32(len("streamed payload")) {
		t.Errorf("LFH.UncompressedSize = %d", e.LFH.UncompressedSize)
	}
	if e.Descriptor != nil {
		t.Error("rebuilt entry should carry no data descriptor")
	}
}

func TestRebuildForceZip64SizesRoundTrip(t *testing.T) {
	original := testzip.Build([]*testzip.Entry{
		{Name: []byte("big.bin"), Data: []byte("payload of this entry"), ForceZip64Sizes: true},
	}, nil)

	rebuilt := rebuildToBytes(t, original, zipjis.InspectConfig{FieldSelectionStrategy: zipjis.StrategyCdh}, nil)

	zf := mustParse(t, rebuilt)
	e := zf.Entries[0]
	if e.FileDataSize != int64(len("payload of this entry")) {
		t.Errorf("FileDataSize = %d", e.FileDataSize)
	}
	payload := rebuilt[e.FileDataOffset : e.FileDataOffset+e.FileDataSize]
	if string(payload) != "payload of this entry" {
		t.Errorf("payload = %q", payload)
	}
}

func TestRebuildRejectsOversizedComment(t *testing.T) {
	// The EOCD comment-length field is 16 bits wide, so a comment this long
	// can never come from Parse; build the ZipFile directly to exercise
	// Rebuild's own guard against a hand-constructed one.
	original := testzip.Build([]*testzip.Entry{
		{Name: []byte("a.txt"), Data: []byte("x")},
	}, nil)
	zf := mustParse(t, original)
	zf.EOCD.Comment = bytes.Repeat([]byte("x"), 0x10000)

	_, _, err := zipjis.Rebuild(zf, zipjis.InspectConfig{FieldSelectionStrategy: zipjis.StrategyCdh}, nil)
	if err == nil {
		t.Fatal("expected an error for an oversized archive comment")
	}
}

func TestRebuildEmitsZip64EOCDForHugeEntry(t *testing.T) {
	original := testzip.Build([]*testzip.Entry{
		{Name: []byte("huge.bin"), Data: []byte("small fixture payload")},
	}, nil)

	zf := mustParse(t, original)
	hugeSize := uint64(0x100000000) // exceeds the 32-bit sentinel
	zf.Entries[0].CDH.Zip64 = &zipjis.Zip64ExtendedInfo{
		UncompressedSize: &hugeSize,
		CompressedSize:   &hugeSize,
	}

	chunks, _, err := zipjis.Rebuild(zf, zipjis.InspectConfig{FieldSelectionStrategy: zipjis.StrategyCdh}, nil)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	sig := []byte{0x50, 0x4b, 0x06, 0x06} // ZIP64 EOCD signature, little-endian
	found := false
	for _, c := range chunks {
		if bytes.HasPrefix(c.Literal, sig) {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected a ZIP64 EOCD chunk when a central directory entry carries a huge size")
	}
}

func TestRebuildDropsStaleExtraFields(t *testing.T) {
	host := []byte{0x82, 0xa0}
	extra := testzip.WrapExtra(0x7075, testzip.BuildUnicodePathExtra(host, []byte("\xe3\x81\x82"), nil))
	original := testzip.Build([]*testzip.Entry{
		{Name: host, Data: []byte("payload"), Extra: extra},
	}, nil)

	config := zipjis.InspectConfig{
		Encoding:               zipjis.EncodingConfig{Strategy: zipjis.PreferOverallDetected},
		FieldSelectionStrategy: zipjis.StrategyCdhuLfhuCdh,
	}
	rebuilt := rebuildToBytes(t, original, config, nil)

	zf := mustParse(t, rebuilt)
	e := zf.Entries[0]
	if string(e.CDH.Filename) != "あ" {
		t.Errorf("rebuilt filename = %q", e.CDH.Filename)
	}
	for _, ef := range e.CDH.ExtraFields {
		if ef.Tag == 0x7075 {
			t.Error("rebuilt CDH should not carry a stale Unicode Path extra field")
		}
	}
}
