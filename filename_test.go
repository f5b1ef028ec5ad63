package zipjis_test

import (
	"testing"

	"github.com/motoki317/zipjis"
	"github.com/motoki317/zipjis/internal/testzip"
)

func inspectWithStrategy(t *testing.T, data []byte, strategy zipjis.FieldSelectionStrategy) *zipjis.InspectedArchive {
	t.Helper()
	zf := mustParse(t, data)
	config := zipjis.InspectConfig{
		Encoding: zipjis.EncodingConfig{
			Strategy:              zipjis.ForceSpecified,
			FallbackOrForcedLabel: "Shift_JIS",
		},
		FieldSelectionStrategy: strategy,
	}
	result, err := zipjis.Inspect(zf, config)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	return result
}

// TestFieldSelectionPrefersUnicodePathOverFilename exercises the
// cdhu-lfhu-cdh strategy's preference for a CRC-matched Unicode Path extra
// field over the raw (legacy-encoded) filename bytes.
func TestFieldSelectionPrefersUnicodePathOverFilename(t *testing.T) {
	host := []byte{0x82, 0xa0}
	extra := testzip.WrapExtra(0x7075, testzip.BuildUnicodePathExtra(host, []byte("\xe3\x81\x84"), nil))
	data := testzip.Build([]*testzip.Entry{
		{Name: host, Data: []byte("x"), Extra: extra},
	}, nil)

	result := inspectWithStrategy(t, data, zipjis.StrategyCdhuLfhuCdh)
	if result.Entries[0].Source != zipjis.SourceCDHUnicodePath {
		t.Errorf("source = %v, want SourceCDHUnicodePath", result.Entries[0].Source)
	}
	if result.Entries[0].Decoded.String != "い" {
		t.Errorf("decoded = %q, want the Unicode Path value, not %q", result.Entries[0].Decoded.String, host)
	}
}

// TestFieldSelectionFallsBackOnCRC32Mismatch exercises falling through to
// the CDH filename bytes when the Unicode Path extra field's CRC-32 does
// not match the host filename.
func TestFieldSelectionFallsBackOnCRC32Mismatch(t *testing.T) {
	host := []byte{0x82, 0xa0}
	bad := uint32(0x12345678)
	extra := testzip.WrapExtra(0x7075, testzip.BuildUnicodePathExtra(host, []byte("\xe3\x81\x84"), &bad))
	data := testzip.Build([]*testzip.Entry{
		{Name: host, Data: []byte("x"), Extra: extra},
	}, nil)

	result := inspectWithStrategy(t, data, zipjis.StrategyCdhuLfhuCdh)
	if result.Entries[0].Source != zipjis.SourceCDHFilename {
		t.Errorf("source = %v, want SourceCDHFilename after CRC mismatch", result.Entries[0].Source)
	}
	if result.Entries[0].Decoded.String != "あ" {
		t.Errorf("decoded = %q, want the Shift_JIS decode of the host filename", result.Entries[0].Decoded.String)
	}
}

// TestFieldSelectionCRC32MismatchAcceptedWhenIgnored mirrors the previous
// test but with IgnoreCRC32Mismatch set, so the Unicode Path value is used
// despite the mismatch.
func TestFieldSelectionCRC32MismatchAcceptedWhenIgnored(t *testing.T) {
	host := []byte{0x82, 0xa0}
	bad := uint32(0x12345678)
	extra := testzip.WrapExtra(0x7075, testzip.BuildUnicodePathExtra(host, []byte("\xe3\x81\x84"), &bad))
	data := testzip.Build([]*testzip.Entry{
		{Name: host, Data: []byte("x"), Extra: extra},
	}, nil)

	zf := mustParse(t, data)
	config := zipjis.InspectConfig{
		Encoding: zipjis.EncodingConfig{
			Strategy:              zipjis.ForceSpecified,
			FallbackOrForcedLabel: "Shift_JIS",
		},
		FieldSelectionStrategy: zipjis.StrategyCdhuLfhuCdh,
		IgnoreCRC32Mismatch:    true,
	}
	result, err := zipjis.Inspect(zf, config)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.Entries[0].Source != zipjis.SourceCDHUnicodePath {
		t.Errorf("source = %v, want SourceCDHUnicodePath when mismatch is ignored", result.Entries[0].Source)
	}
}

func TestFieldSelectionCdhOnlyIgnoresUnicodePath(t *testing.T) {
	host := []byte{0x82, 0xa0}
	extra := testzip.WrapExtra(0x7075, testzip.BuildUnicodePathExtra(host, []byte("\xe3\x81\x84"), nil))
	data := testzip.Build([]*testzip.Entry{
		{Name: host, Data: []byte("x"), Extra: extra},
	}, nil)

	result := inspectWithStrategy(t, data, zipjis.StrategyCdh)
	if result.Entries[0].Source != zipjis.SourceCDHFilename {
		t.Errorf("source = %v, want SourceCDHFilename", result.Entries[0].Source)
	}
}
