package zipjis

import "unicode/utf8"

// Prevalence describes how uniformly a signal (UTF-8 flag, Unicode-path
// extra) applies across an archive's entries, ordered None < Sometimes <
// AlwaysForNonAscii < Always.
type Prevalence int

const (
	PrevalenceNone Prevalence = iota
	PrevalenceSometimes
	PrevalenceAlwaysForNonAscii
	PrevalenceAlways
)

// join implements the lattice meet (minimum) used to fold per-source
// observations into a running prevalence value.
func (p Prevalence) join(other Prevalence) Prevalence {
	if other < p {
		return other
	}
	return p
}

func (p Prevalence) String() string {
	switch p {
	case PrevalenceNone:
		return "None"
	case PrevalenceSometimes:
		return "Sometimes"
	case PrevalenceAlwaysForNonAscii:
		return "AlwaysForNonAscii"
	case PrevalenceAlways:
		return "Always"
	default:
		return "Unknown"
	}
}

// CompatibilityKind distinguishes the four classification outcomes.
type CompatibilityKind int

const (
	CompatibilityBroken CompatibilityKind = iota
	CompatibilityAsciiOnly
	CompatibilityUtf8Only
	CompatibilityOther
)

// CompatibilityLevel is the outcome of Analyze. WithUTF8Flags is only
// meaningful for AsciiOnly/Utf8Only; WithUnicodePathFields applies to all
// non-Broken kinds.
type CompatibilityLevel struct {
	Kind                  CompatibilityKind
	WithUTF8Flags         Prevalence
	WithUnicodePathFields Prevalence
}

type filenameEncodingKind int

const (
	encodingAscii filenameEncodingKind = iota
	encodingUtf8
	encodingOther
)

func classifyFilenameBytes(b []byte) filenameEncodingKind {
	if !utf8.Valid(b) {
		return encodingOther
	}
	for _, c := range b {
		if c > 0x7F {
			return encodingUtf8
		}
	}
	return encodingAscii
}

// Analyze classifies an archive's filename compatibility by visiting both
// the CDH and LFH of every entry, matching the per-source loop described
// for the compatibility analyzer.
func Analyze(zf *ZipFile) CompatibilityLevel {
	hasBroken := false
	allAscii := true
	allUTF8 := true

	utf8FlagPrevalence := PrevalenceAlways
	utf8FlagSeen := false
	unicodePathPrevalence := PrevalenceAlways
	unicodePathSeen := false

	type source struct {
		flags       GeneralPurposeBitFlag
		filename    []byte
		unicodePath *UnicodePathExtraField
	}

entries:
	for _, entry := range zf.Entries {
		sources := [2]source{
			{entry.CDH.Flags, entry.CDH.Filename, entry.CDH.UnicodePath},
			{entry.LFH.Flags, entry.LFH.Filename, entry.LFH.UnicodePath},
		}
		for _, s := range sources {
			kind := classifyFilenameBytes(s.filename)
			switch kind {
			case encodingUtf8:
				allAscii = false
			case encodingOther:
				allAscii = false
				allUTF8 = false
			}

			if s.flags.IsUTF8() {
				if kind == encodingOther {
					hasBroken = true
					break entries
				}
				utf8FlagSeen = true
			} else {
				observed := PrevalenceSometimes
				if kind == encodingAscii {
					observed = PrevalenceAlwaysForNonAscii
				}
				utf8FlagPrevalence = utf8FlagPrevalence.join(observed)
			}

			if s.unicodePath != nil && s.unicodePath.CRC32Matched {
				if !s.unicodePath.HasDecoded {
					hasBroken = true
					break entries
				}
				unicodePathSeen = true
			} else {
				observed := PrevalenceSometimes
				if kind == encodingAscii {
					observed = PrevalenceAlwaysForNonAscii
				}
				unicodePathPrevalence = unicodePathPrevalence.join(observed)
			}
		}
	}

	if !utf8FlagSeen {
		utf8FlagPrevalence = PrevalenceNone
	}
	if !unicodePathSeen {
		unicodePathPrevalence = PrevalenceNone
	}

	switch {
	case hasBroken:
		return CompatibilityLevel{Kind: CompatibilityBroken}
	case allAscii:
		return CompatibilityLevel{Kind: CompatibilityAsciiOnly, WithUTF8Flags: utf8FlagPrevalence, WithUnicodePathFields: unicodePathPrevalence}
	case allUTF8:
		return CompatibilityLevel{Kind: CompatibilityUtf8Only, WithUTF8Flags: utf8FlagPrevalence, WithUnicodePathFields: unicodePathPrevalence}
	default:
		return CompatibilityLevel{Kind: CompatibilityOther, WithUnicodePathFields: unicodePathPrevalence}
	}
}
