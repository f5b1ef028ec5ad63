package zipjis

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// labelAliases covers the historical names this domain actually uses that
// htmlindex's IANA table does not recognize on its own; CP-932 is
// routinely conflated with Shift_JIS in the wild and in the original
// implementation this engine is modeled on.
var labelAliases = map[string]string{
	"cp932":  "shift_jis",
	"ms932":  "shift_jis",
	"sjis":   "shift_jis",
	"x-sjis": "shift_jis",
}

// canonicalUTF8Labels are resolved without consulting htmlindex: they
// need no encoding.Encoding at all, since Go strings are UTF-8 already.
var canonicalUTF8Labels = map[string]bool{
	"utf-8": true,
	"utf8":  true,
	"ascii": true,
	"us-ascii": true,
}

// presentationLabels gives the htmlindex WHATWG key (lowercase) a
// spec-style display name, since htmlindex.Name returns the WHATWG form
// (e.g. "shift_jis") rather than the IANA-style names used throughout
// this package's configuration and comparisons (e.g. "Shift_JIS").
var presentationLabels = map[string]string{
	"shift_jis":           "Shift_JIS",
	"euc-jp":              "EUC-JP",
	"euc-kr":              "EUC-KR",
	"gbk":                 "GBK",
	"gb18030":             "GB18030",
	"big5":                "Big5",
	"windows-1252":        "windows-1252",
	"iso-8859-1":          "ISO-8859-1",
	"utf-16le":            "UTF-16LE",
	"utf-16be":            "UTF-16BE",
}

// resolveEncodingLabel maps a user- or detector-supplied label to an
// encoding.Encoding. A nil Encoding with a nil error means UTF-8/ASCII,
// which needs no transformation.
func resolveEncodingLabel(label string) (enc encoding.Encoding, canonical string, err error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return nil, "", &ErrEncodingNotFound{Label: label}
	}
	if canonicalUTF8Labels[key] {
		if key == "ascii" || key == "us-ascii" {
			return nil, "ASCII", nil
		}
		return nil, "UTF-8", nil
	}
	if alias, ok := labelAliases[key]; ok {
		key = alias
	}

	e, err := htmlindex.Get(key)
	if err != nil {
		return nil, "", &ErrEncodingNotFound{Label: label}
	}
	whatwgName, _ := htmlindex.Name(e)
	name, ok := presentationLabels[strings.ToLower(whatwgName)]
	if !ok {
		name = whatwgName
	}
	return e, name, nil
}

// decodeForced decodes data under enc, substituting the replacement
// character for invalid sequences rather than failing. hasErrors reports
// whether any substitution was necessary. A nil enc means UTF-8/ASCII.
func decodeForced(data []byte, enc encoding.Encoding) (string, bool) {
	if enc == nil {
		if utf8.Valid(data) {
			return string(data), false
		}
		return strings.ToValidUTF8(string(data), "�"), true
	}

	// The x/text decoders substitute U+FFFD for invalid input themselves
	// rather than returning an error, so a substitution shows up in the
	// output.
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(decoded), "�"), true
	}
	s := string(decoded)
	return s, strings.ContainsRune(s, utf8.RuneError)
}

// detectionResult is the outcome of running the black-box encoding
// detector (or the UTF-8/ASCII fast path) over a byte buffer.
type detectionResult struct {
	Label string
	Ok    bool
}

// detectLabel implements the shared detection rule used by both overall
// and per-entry detection: bytes that parse as UTF-8 with no embedded NUL
// are UTF-8 (or ASCII if every byte is 7-bit); otherwise the detector's
// best guess is accepted only if decoding under that guess reports no
// errors.
func detectLabel(data []byte) detectionResult {
	if len(data) == 0 {
		return detectionResult{Label: "ASCII", Ok: true}
	}
	if utf8.Valid(data) && !strings.ContainsRune(string(data), 0) {
		if isAllASCII(data) {
			return detectionResult{Label: "ASCII", Ok: true}
		}
		return detectionResult{Label: "UTF-8", Ok: true}
	}

	det := chardet.NewTextDetector()
	guess, err := det.DetectBest(data)
	if err != nil {
		return detectionResult{}
	}

	enc, canonical, err := resolveEncodingLabel(guess.Charset)
	if err != nil {
		return detectionResult{}
	}
	if enc == nil {
		// UTF-8/ASCII guess that failed the direct check above cannot be
		// correct for non-UTF8 bytes; reject.
		return detectionResult{}
	}
	if _, decodeErr := enc.NewDecoder().Bytes(data); decodeErr != nil {
		return detectionResult{}
	}
	return detectionResult{Label: canonical, Ok: true}
}

func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b > 0x7F {
			return false
		}
	}
	return true
}

// applyWaveDashPolicy implements the §4.3 post-decode transform chain:
// first the Shift_JIS-only wave-dash handling, then the archive-wide
// normalization policy.
func applyWaveDashPolicy(s string, encodingUsed string, handling WaveDashHandling, normalization WaveDashNormalization) string {
	const waveDash = '〜'
	const fullwidthTilde = '～'

	if encodingUsed == "Shift_JIS" && handling == DecodeToWaveDash {
		s = strings.ReplaceAll(s, string(fullwidthTilde), string(waveDash))
	}

	switch normalization {
	case NormalizeToFullwidthTilde:
		s = strings.ReplaceAll(s, string(waveDash), string(fullwidthTilde))
	case NormalizeToWaveDash:
		s = strings.ReplaceAll(s, string(fullwidthTilde), string(waveDash))
	case Preserve:
		// leave both as decoded
	}
	return s
}
