package zipjis

// FieldSelectionStrategy names one of the eight recognized preference
// orderings over the four candidate filename sources.
type FieldSelectionStrategy int

const (
	StrategyCdhuLfhuCdh FieldSelectionStrategy = iota // cdhu-lfhu-cdh
	StrategyCdhuLfhuLfh                                // cdhu-lfhu-lfh
	StrategyLfhuCdhuCdh                                // lfhu-cdhu-cdh
	StrategyLfhuCdhuLfh                                // lfhu-cdhu-lfh
	StrategyCdhuCdh                                    // cdhu-cdh
	StrategyCdh                                        // cdh
	StrategyLfhuLfh                                     // lfhu-lfh
	StrategyLfh                                        // lfh
)

// preferenceList returns the ordered subset of sources this strategy
// consults, in the §6 field-selection-strategies table.
func (s FieldSelectionStrategy) preferenceList() []FilenameSourceKind {
	switch s {
	case StrategyCdhuLfhuCdh:
		return []FilenameSourceKind{SourceCDHUnicodePath, SourceLFHUnicodePath, SourceCDHFilename}
	case StrategyCdhuLfhuLfh:
		return []FilenameSourceKind{SourceCDHUnicodePath, SourceLFHUnicodePath, SourceLFHFilename}
	case StrategyLfhuCdhuCdh:
		return []FilenameSourceKind{SourceLFHUnicodePath, SourceCDHUnicodePath, SourceCDHFilename}
	case StrategyLfhuCdhuLfh:
		return []FilenameSourceKind{SourceLFHUnicodePath, SourceCDHUnicodePath, SourceLFHFilename}
	case StrategyCdhuCdh:
		return []FilenameSourceKind{SourceCDHUnicodePath, SourceCDHFilename}
	case StrategyCdh:
		return []FilenameSourceKind{SourceCDHFilename}
	case StrategyLfhuLfh:
		return []FilenameSourceKind{SourceLFHUnicodePath, SourceLFHFilename}
	case StrategyLfh:
		return []FilenameSourceKind{SourceLFHFilename}
	default:
		return []FilenameSourceKind{SourceCDHFilename}
	}
}

// selectedSource is the result of picking one of the four candidate
// sources for an entry.
type selectedSource struct {
	Kind        FilenameSourceKind
	Bytes       []byte
	UTF8Flag    bool
	IsUnicodePath bool
}

// selectFilenameSource walks strategy's preference list and returns the
// first source whose acceptance predicate passes. A Unicode-path source is
// accepted only when its CRC matched the host filename bytes, or when the
// caller opted to ignore that mismatch. Filename-byte sources are always
// accepted. Every strategy ends in a filename-byte fallback, so this
// always succeeds.
func selectFilenameSource(entry *ZipFileEntry, strategy FieldSelectionStrategy, ignoreCRC32Mismatch bool) selectedSource {
	for _, kind := range strategy.preferenceList() {
		switch kind {
		case SourceCDHUnicodePath:
			if up := entry.CDH.UnicodePath; up != nil && up.HasDecoded && (up.CRC32Matched || ignoreCRC32Mismatch) {
				return selectedSource{Kind: kind, Bytes: []byte(up.DecodedString), UTF8Flag: true, IsUnicodePath: true}
			}
		case SourceLFHUnicodePath:
			if up := entry.LFH.UnicodePath; up != nil && up.HasDecoded && (up.CRC32Matched || ignoreCRC32Mismatch) {
				return selectedSource{Kind: kind, Bytes: []byte(up.DecodedString), UTF8Flag: true, IsUnicodePath: true}
			}
		case SourceCDHFilename:
			return selectedSource{Kind: kind, Bytes: entry.CDH.Filename, UTF8Flag: entry.CDH.Flags.IsUTF8()}
		case SourceLFHFilename:
			return selectedSource{Kind: kind, Bytes: entry.LFH.Filename, UTF8Flag: entry.LFH.Flags.IsUTF8()}
		}
	}
	// Unreachable for the eight recognized strategies: each ends in a
	// filename-byte source, which is always accepted.
	return selectedSource{Kind: SourceCDHFilename, Bytes: entry.CDH.Filename, UTF8Flag: entry.CDH.Flags.IsUTF8()}
}
