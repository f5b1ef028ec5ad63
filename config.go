package zipjis

// EncodingStrategy selects how the per-entry decoding encoding is chosen
// once the UTF-8 fast path (flag or Unicode-path source) is ruled out.
type EncodingStrategy int

const (
	// PreferOverallDetected tries the archive-wide detected encoding
	// first, then the per-entry detected encoding, then the configured
	// fallback.
	PreferOverallDetected EncodingStrategy = iota
	// EntryDetected tries the per-entry detected encoding, then the
	// configured fallback.
	EntryDetected
	// ForceSpecified always uses the configured fallback/forced label.
	ForceSpecified
)

// WaveDashHandling is applied only when the chosen encoding is Shift_JIS.
type WaveDashHandling int

const (
	// DecodeToFullwidthTilde maps the Shift_JIS 0x81 0x60 pair to U+FF5E.
	DecodeToFullwidthTilde WaveDashHandling = iota
	// DecodeToWaveDash maps the Shift_JIS 0x81 0x60 pair to U+301C.
	DecodeToWaveDash
)

// WaveDashNormalization is applied to every decoded string regardless of
// source encoding, after WaveDashHandling.
type WaveDashNormalization int

const (
	// Preserve leaves both U+301C and U+FF5E as decoded.
	Preserve WaveDashNormalization = iota
	// NormalizeToFullwidthTilde maps every U+301C to U+FF5E.
	NormalizeToFullwidthTilde
	// NormalizeToWaveDash maps every U+FF5E to U+301C.
	NormalizeToWaveDash
)

// EncodingConfig groups the InspectConfig options that govern encoding
// selection.
type EncodingConfig struct {
	Strategy              EncodingStrategy
	FallbackOrForcedLabel string
	IgnoreUTF8Flag        bool
}

// InspectConfig is the full set of orthogonal options controlling
// inspection and rebuild.
type InspectConfig struct {
	Encoding               EncodingConfig
	FieldSelectionStrategy FieldSelectionStrategy
	IgnoreCRC32Mismatch    bool
	NeedsOriginalBytes     bool
	WaveDashHandling       WaveDashHandling
	WaveDashNormalization  WaveDashNormalization
}

// FilenameSourceKind identifies which of the four candidate sources a
// decoder chose for an entry.
type FilenameSourceKind int

const (
	SourceCDHUnicodePath FilenameSourceKind = iota
	SourceLFHUnicodePath
	SourceCDHFilename
	SourceLFHFilename
)

func (k FilenameSourceKind) String() string {
	switch k {
	case SourceCDHUnicodePath:
		return "cdh-unicode-path"
	case SourceLFHUnicodePath:
		return "lfh-unicode-path"
	case SourceCDHFilename:
		return "cdh-filename"
	case SourceLFHFilename:
		return "lfh-filename"
	default:
		return "unknown"
	}
}

// DecodedString is the outcome of decoding a filename source under a
// chosen encoding.
type DecodedString struct {
	String       string
	HasErrors    bool
	EncodingUsed string
}

// InspectedEntry is the per-entry view produced by Inspect.
type InspectedEntry struct {
	Source         FilenameSourceKind
	UTF8Flag       bool
	OriginalBytes  []byte // only populated when InspectConfig.NeedsOriginalBytes
	DetectedLabel  string
	Decoded        *DecodedString
	UncompressedSize int64
	CompressedSize   int64
}

// InspectedArchive is the ordered per-entry view plus archive-wide
// signals produced by Inspect.
type InspectedArchive struct {
	Entries                []InspectedEntry
	OverallDetectedEncoding string
	HasOverallDetection     bool

	ContainsShiftJISWaveDashOrTilde bool
	ContainsOtherWaveDash           bool
	ContainsOtherFullwidthTilde     bool
}
