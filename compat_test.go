package zipjis_test

import (
	"testing"

	"github.com/motoki317/zipjis"
	"github.com/motoki317/zipjis/internal/testzip"
)

func TestAnalyzeAsciiOnly(t *testing.T) {
	data := testzip.Build([]*testzip.Entry{
		{Name: []byte("a.txt"), Data: []byte("x")},
		{Name: []byte("b.txt"), Data: []byte("y")},
	}, nil)
	level := zipjis.Analyze(mustParse(t, data))
	if level.Kind != zipjis.CompatibilityAsciiOnly {
		t.Errorf("kind = %v, want AsciiOnly", level.Kind)
	}
	if level.WithUTF8Flags != zipjis.PrevalenceNone {
		t.Errorf("WithUTF8Flags = %v, want None (no entries set the UTF-8 flag)", level.WithUTF8Flags)
	}
}

func TestAnalyzeUtf8OnlyWithFlags(t *testing.T) {
	data := testzip.Build([]*testzip.Entry{
		{Name: []byte("\xe3\x81\x82.txt"), UTF8: true, Data: []byte("x")},
		{Name: []byte("\xe3\x81\x84.txt"), UTF8: true, Data: []byte("y")},
	}, nil)
	level := zipjis.Analyze(mustParse(t, data))
	if level.Kind != zipjis.CompatibilityUtf8Only {
		t.Errorf("kind = %v, want Utf8Only", level.Kind)
	}
}

func TestAnalyzeOtherMixedEncoding(t *testing.T) {
	data := testzip.Build([]*testzip.Entry{
		{Name: []byte("a.txt"), Data: []byte("x")},
		{Name: []byte{0x82, 0xa0, '.', 't', 'x', 't'}, Data: []byte("y")}, // Shift_JIS, not valid UTF-8
	}, nil)
	level := zipjis.Analyze(mustParse(t, data))
	if level.Kind != zipjis.CompatibilityOther {
		t.Errorf("kind = %v, want Other", level.Kind)
	}
}

func TestAnalyzeBrokenWhenUTF8FlagSetOnNonUTF8Bytes(t *testing.T) {
	data := testzip.Build([]*testzip.Entry{
		{Name: []byte{0x82, 0xa0, '.', 't', 'x', 't'}, UTF8: true, Data: []byte("x")},
	}, nil)
	level := zipjis.Analyze(mustParse(t, data))
	if level.Kind != zipjis.CompatibilityBroken {
		t.Errorf("kind = %v, want Broken", level.Kind)
	}
}

func TestAnalyzeWithUnicodePathFields(t *testing.T) {
	host := []byte{0x82, 0xa0}
	extra := testzip.WrapExtra(0x7075, testzip.BuildUnicodePathExtra(host, []byte("\xe3\x81\x82"), nil))
	data := testzip.Build([]*testzip.Entry{
		{Name: host, Data: []byte("x"), Extra: extra},
	}, nil)
	level := zipjis.Analyze(mustParse(t, data))
	if level.Kind != zipjis.CompatibilityOther {
		t.Errorf("kind = %v, want Other", level.Kind)
	}
	if level.WithUnicodePathFields != zipjis.PrevalenceAlways {
		t.Errorf("WithUnicodePathFields = %v", level.WithUnicodePathFields)
	}
}
