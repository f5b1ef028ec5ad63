package zipjis_test

import (
	"context"
	"testing"

	"github.com/motoki317/zipjis"
	"github.com/motoki317/zipjis/internal/testzip"
)

// shiftJISBytes returns the Shift_JIS encoding of "テスト.txt" (test.txt in
// katakana), a representative legacy filename.
func shiftJISBytes() []byte {
	return []byte{0x83, 0x65, 0x83, 0x58, 0x83, 0x67, '.', 't', 'x', 't'}
}

func TestInspectShiftJISForceSpecified(t *testing.T) {
	data := testzip.Build([]*testzip.Entry{
		{Name: shiftJISBytes(), Data: []byte("payload")},
	}, nil)
	zf := mustParse(t, data)

	config := zipjis.InspectConfig{
		Encoding: zipjis.EncodingConfig{
			Strategy:              zipjis.ForceSpecified,
			FallbackOrForcedLabel: "Shift_JIS",
		},
		FieldSelectionStrategy: zipjis.StrategyCdh,
	}

	result, err := zipjis.Inspect(zf, config)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(result.Entries))
	}
	decoded := result.Entries[0].Decoded
	if decoded == nil {
		t.Fatal("expected a decoded string")
	}
	if decoded.String != "テスト.txt" {
		t.Errorf("decoded = %q", decoded.String)
	}
	if decoded.HasErrors {
		t.Error("did not expect decode errors")
	}
}

func TestInspectWaveDashFullwidthTilde(t *testing.T) {
	// Shift_JIS wave dash byte pair (0x81 0x60) followed by "a.txt".
	name := append([]byte{0x81, 0x60}, []byte("a.txt")...)
	data := testzip.Build([]*testzip.Entry{{Name: name, Data: []byte("x")}}, nil)
	zf := mustParse(t, data)

	config := zipjis.InspectConfig{
		Encoding: zipjis.EncodingConfig{
			Strategy:              zipjis.ForceSpecified,
			FallbackOrForcedLabel: "Shift_JIS",
		},
		FieldSelectionStrategy: zipjis.StrategyCdh,
		WaveDashHandling:       zipjis.DecodeToFullwidthTilde,
	}

	result, err := zipjis.Inspect(zf, config)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	got := result.Entries[0].Decoded.String
	if got != "～a.txt" {
		t.Errorf("decoded = %q, want fullwidth tilde variant", got)
	}
	if !result.ContainsShiftJISWaveDashOrTilde {
		t.Error("expected ContainsShiftJISWaveDashOrTilde to be set")
	}
}

func TestInspectWaveDashKeptAsWaveDash(t *testing.T) {
	name := append([]byte{0x81, 0x60}, []byte("a.txt")...)
	data := testzip.Build([]*testzip.Entry{{Name: name, Data: []byte("x")}}, nil)
	zf := mustParse(t, data)

	config := zipjis.InspectConfig{
		Encoding: zipjis.EncodingConfig{
			Strategy:              zipjis.ForceSpecified,
			FallbackOrForcedLabel: "Shift_JIS",
		},
		FieldSelectionStrategy: zipjis.StrategyCdh,
		WaveDashHandling:       zipjis.DecodeToWaveDash,
	}

	result, err := zipjis.Inspect(zf, config)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	got := result.Entries[0].Decoded.String
	if got != "〜a.txt" {
		t.Errorf("decoded = %q, want wave dash variant", got)
	}
}

func TestInspectUTF8FlagFastPath(t *testing.T) {
	data := testzip.Build([]*testzip.Entry{
		{Name: []byte("\xe3\x81\x82.txt"), UTF8: true, Data: []byte("x")},
	}, nil)
	zf := mustParse(t, data)

	config := zipjis.InspectConfig{
		Encoding: zipjis.EncodingConfig{
			Strategy:              zipjis.ForceSpecified,
			FallbackOrForcedLabel: "Shift_JIS", // deliberately wrong; UTF-8 flag must win
		},
		FieldSelectionStrategy: zipjis.StrategyCdh,
	}

	result, err := zipjis.Inspect(zf, config)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.Entries[0].Decoded.String != "あ.txt" {
		t.Errorf("decoded = %q", result.Entries[0].Decoded.String)
	}
	if result.Entries[0].Decoded.EncodingUsed != "UTF-8" {
		t.Errorf("EncodingUsed = %q", result.Entries[0].Decoded.EncodingUsed)
	}
}

func TestDetectBrokenNonUTF8NonShiftJISBytes(t *testing.T) {
	// A byte sequence that is not valid UTF-8, stored with the UTF-8 flag
	// set: exercises the Compatibility Broken path via Analyze rather than
	// Inspect directly.
	name := []byte{0xff, 0xfe, 0x00, 0x01}
	data := testzip.Build([]*testzip.Entry{
		{Name: name, UTF8: true, Data: []byte("x")},
	}, nil)
	zf := mustParse(t, data)
	level := zipjis.Analyze(zf)
	if level.Kind != zipjis.CompatibilityBroken {
		t.Errorf("kind = %v, want Broken", level.Kind)
	}
}

func TestNewMemoryReaderReadAt(t *testing.T) {
	r := zipjis.NewMemoryReader([]byte("0123456789"))
	buf := make([]byte, 4)
	n, err := r.ReadAt(context.Background(), buf, 3)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 4 || string(buf) != "3456" {
		t.Errorf("got %q (%d)", buf, n)
	}
}
