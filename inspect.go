package zipjis

// Inspect orchestrates the filename decoder over every entry of zf:
// selects one source per entry, runs overall encoding detection once,
// decodes each entry under the resulting choice, and computes the
// archive-wide Wave-Dash/Fullwidth-Tilde presence flags.
func Inspect(zf *ZipFile, config InspectConfig) (*InspectedArchive, error) {
	if label := config.Encoding.FallbackOrForcedLabel; label != "" {
		if _, _, err := resolveEncodingLabel(label); err != nil {
			return nil, err
		}
	}

	sources := make([]selectedSource, len(zf.Entries))
	for i := range zf.Entries {
		sources[i] = selectFilenameSource(&zf.Entries[i], config.FieldSelectionStrategy, config.IgnoreCRC32Mismatch)
	}

	var concat []byte
	for _, s := range sources {
		concat = append(concat, s.Bytes...)
	}
	overall := detectLabel(concat)

	result := &InspectedArchive{
		OverallDetectedEncoding: overall.Label,
		HasOverallDetection:     overall.Ok,
	}

	entries := make([]InspectedEntry, len(zf.Entries))
	for i, entry := range zf.Entries {
		src := sources[i]

		inspected := InspectedEntry{
			Source:           src.Kind,
			UTF8Flag:         src.UTF8Flag,
			UncompressedSize: effectiveUncompressedSize(&entry.CDH),
			CompressedSize:   effectiveCompressedSize(&entry.CDH),
		}
		if config.NeedsOriginalBytes {
			inspected.OriginalBytes = append([]byte(nil), src.Bytes...)
		}

		perEntry := detectLabel(src.Bytes)
		if perEntry.Ok {
			inspected.DetectedLabel = perEntry.Label
		}

		decoded, err := decodeEntry(src, config, overall, perEntry)
		if err != nil {
			return nil, err
		}
		inspected.Decoded = decoded

		if decoded != nil {
			if decoded.EncodingUsed == "Shift_JIS" && containsRune301COrFF5E(decoded.String) {
				result.ContainsShiftJISWaveDashOrTilde = true
			} else {
				if stringHasRune(decoded.String, waveDashRune) {
					result.ContainsOtherWaveDash = true
				}
				if stringHasRune(decoded.String, fullwidthTildeRune) {
					result.ContainsOtherFullwidthTilde = true
				}
			}
		}

		entries[i] = inspected
	}
	result.Entries = entries

	return result, nil
}

const (
	waveDashRune       = '〜'
	fullwidthTildeRune = '～'
)

func stringHasRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

func containsRune301COrFF5E(s string) bool {
	return stringHasRune(s, waveDashRune) || stringHasRune(s, fullwidthTildeRune)
}

// decodeEntry implements the §4.3 per-entry encoding selection and decode
// steps for one already-selected source.
func decodeEntry(src selectedSource, config InspectConfig, overall, perEntry detectionResult) (*DecodedString, error) {
	var chosenLabel string
	useUTF8 := (!config.Encoding.IgnoreUTF8Flag && src.UTF8Flag) || src.IsUnicodePath

	if useUTF8 {
		chosenLabel = "UTF-8"
	} else {
		switch config.Encoding.Strategy {
		case PreferOverallDetected:
			switch {
			case overall.Ok && overall.Label != "":
				chosenLabel = overall.Label
			case perEntry.Ok && perEntry.Label != "":
				chosenLabel = perEntry.Label
			default:
				chosenLabel = config.Encoding.FallbackOrForcedLabel
			}
		case EntryDetected:
			switch {
			case perEntry.Ok && perEntry.Label != "":
				chosenLabel = perEntry.Label
			default:
				chosenLabel = config.Encoding.FallbackOrForcedLabel
			}
		case ForceSpecified:
			chosenLabel = config.Encoding.FallbackOrForcedLabel
		}
	}

	if chosenLabel == "" {
		return nil, nil
	}

	enc, canonical, err := resolveEncodingLabel(chosenLabel)
	if err != nil {
		return nil, err
	}

	str, hasErrors := decodeForced(src.Bytes, enc)
	str = applyWaveDashPolicy(str, canonical, config.WaveDashHandling, config.WaveDashNormalization)

	return &DecodedString{
		String:       str,
		HasErrors:    hasErrors,
		EncodingUsed: canonical,
	}, nil
}

func effectiveUncompressedSize(cdh *CentralDirectoryHeader) int64 {
	if cdh.Zip64 != nil && cdh.Zip64.UncompressedSize != nil {
		return int64(*cdh.Zip64.UncompressedSize)
	}
	return int64(cdh.UncompressedSize)
}

func effectiveCompressedSize(cdh *CentralDirectoryHeader) int64 {
	if cdh.Zip64 != nil && cdh.Zip64.CompressedSize != nil {
		return int64(*cdh.Zip64.CompressedSize)
	}
	return int64(cdh.CompressedSize)
}
