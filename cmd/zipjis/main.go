// Command zipjis inspects and rebuilds ZIP archives with legacy-encoded
// filenames.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motoki317/zipjis"
)

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "zipjis",
		Short:         "Inspect and rebuild ZIP archives with legacy-encoded filenames",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInspectCmd(), newRebuildCmd(), newAnalyzeCmd())
	return root
}

// encodingFlags are the InspectConfig.Encoding fields exposed as flags,
// shared between inspect and rebuild.
type encodingFlags struct {
	strategy       string
	fallback       string
	ignoreUTF8Flag bool
}

func (f *encodingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.strategy, "encoding-strategy", "prefer-overall-detected",
		"encoding selection strategy: prefer-overall-detected, entry-detected, force-specified")
	cmd.Flags().StringVar(&f.fallback, "encoding", "Shift_JIS",
		"fallback or forced encoding label (e.g. Shift_JIS, EUC-JP, GBK)")
	cmd.Flags().BoolVar(&f.ignoreUTF8Flag, "ignore-utf8-flag", false,
		"do not trust the UTF-8 general purpose bit flag")
}

func (f *encodingFlags) toConfig() (zipjis.EncodingConfig, error) {
	var strategy zipjis.EncodingStrategy
	switch strings.ToLower(f.strategy) {
	case "prefer-overall-detected":
		strategy = zipjis.PreferOverallDetected
	case "entry-detected":
		strategy = zipjis.EntryDetected
	case "force-specified":
		strategy = zipjis.ForceSpecified
	default:
		return zipjis.EncodingConfig{}, errors.Errorf("unrecognized --encoding-strategy %q", f.strategy)
	}
	return zipjis.EncodingConfig{
		Strategy:              strategy,
		FallbackOrForcedLabel:  f.fallback,
		IgnoreUTF8Flag:         f.ignoreUTF8Flag,
	}, nil
}

// inspectFlags are the remaining InspectConfig fields, shared between
// inspect and rebuild.
type inspectFlags struct {
	fieldSelection      string
	ignoreCRC32Mismatch bool
	waveDashHandling    string
	waveDashNormalize   string
}

func (f *inspectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fieldSelection, "field-selection", "cdhu-lfhu-cdh",
		"filename source preference order: cdhu-lfhu-cdh, cdhu-lfhu-lfh, lfhu-cdhu-cdh, lfhu-cdhu-lfh, cdhu-cdh, cdh, lfhu-lfh, lfh")
	cmd.Flags().BoolVar(&f.ignoreCRC32Mismatch, "ignore-crc32-mismatch", false,
		"accept a Unicode Path extra field even when its CRC-32 does not match the host filename")
	cmd.Flags().StringVar(&f.waveDashHandling, "wave-dash-handling", "fullwidth-tilde",
		"Shift_JIS 0x81 0x60 decode target: fullwidth-tilde, wave-dash")
	cmd.Flags().StringVar(&f.waveDashNormalize, "wave-dash-normalize", "preserve",
		"archive-wide wave dash normalization: preserve, fullwidth-tilde, wave-dash")
}

func (f *inspectFlags) toConfig() (zipjis.FieldSelectionStrategy, zipjis.WaveDashHandling, zipjis.WaveDashNormalization, error) {
	var strategy zipjis.FieldSelectionStrategy
	switch strings.ToLower(f.fieldSelection) {
	case "cdhu-lfhu-cdh":
		strategy = zipjis.StrategyCdhuLfhuCdh
	case "cdhu-lfhu-lfh":
		strategy = zipjis.StrategyCdhuLfhuLfh
	case "lfhu-cdhu-cdh":
		strategy = zipjis.StrategyLfhuCdhuCdh
	case "lfhu-cdhu-lfh":
		strategy = zipjis.StrategyLfhuCdhuLfh
	case "cdhu-cdh":
		strategy = zipjis.StrategyCdhuCdh
	case "cdh":
		strategy = zipjis.StrategyCdh
	case "lfhu-lfh":
		strategy = zipjis.StrategyLfhuLfh
	case "lfh":
		strategy = zipjis.StrategyLfh
	default:
		return 0, 0, 0, errors.Errorf("unrecognized --field-selection %q", f.fieldSelection)
	}

	var handling zipjis.WaveDashHandling
	switch strings.ToLower(f.waveDashHandling) {
	case "fullwidth-tilde":
		handling = zipjis.DecodeToFullwidthTilde
	case "wave-dash":
		handling = zipjis.DecodeToWaveDash
	default:
		return 0, 0, 0, errors.Errorf("unrecognized --wave-dash-handling %q", f.waveDashHandling)
	}

	var normalize zipjis.WaveDashNormalization
	switch strings.ToLower(f.waveDashNormalize) {
	case "preserve":
		normalize = zipjis.Preserve
	case "fullwidth-tilde":
		normalize = zipjis.NormalizeToFullwidthTilde
	case "wave-dash":
		normalize = zipjis.NormalizeToWaveDash
	default:
		return 0, 0, 0, errors.Errorf("unrecognized --wave-dash-normalize %q", f.waveDashNormalize)
	}

	return strategy, handling, normalize, nil
}

func buildInspectConfig(ef *encodingFlags, inf *inspectFlags, needsOriginalBytes bool) (zipjis.InspectConfig, error) {
	encCfg, err := ef.toConfig()
	if err != nil {
		return zipjis.InspectConfig{}, err
	}
	strategy, handling, normalize, err := inf.toConfig()
	if err != nil {
		return zipjis.InspectConfig{}, err
	}
	return zipjis.InspectConfig{
		Encoding:               encCfg,
		FieldSelectionStrategy: strategy,
		IgnoreCRC32Mismatch:    inf.ignoreCRC32Mismatch,
		NeedsOriginalBytes:     needsOriginalBytes,
		WaveDashHandling:       handling,
		WaveDashNormalization:  normalize,
	}, nil
}

func openArchive(path string) (*zipjis.FileReader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open archive")
	}
	r, err := zipjis.NewFileReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return r, f, nil
}

func warnLogger(path string) zipjis.WarningFunc {
	return func(entryIndex int, err error) bool {
		log.WithFields(logrus.Fields{"archive": path, "entry": entryIndex}).Warn(err)
		return true
	}
}

func newInspectCmd() *cobra.Command {
	var ef encodingFlags
	var inf inspectFlags

	cmd := &cobra.Command{
		Use:   "inspect <archive.zip>",
		Short: "Decode every member filename and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			config, err := buildInspectConfig(&ef, &inf, false)
			if err != nil {
				return err
			}

			ctx := context.Background()
			r, f, err := openArchive(path)
			if err != nil {
				return err
			}
			defer f.Close()

			zf, err := zipjis.Parse(ctx, r, warnLogger(path))
			if err != nil {
				return errors.Wrap(err, "parse archive")
			}

			inspected, err := zipjis.Inspect(zf, config)
			if err != nil {
				return errors.Wrap(err, "inspect archive")
			}

			if inspected.HasOverallDetection {
				fmt.Printf("overall detected encoding: %s\n", inspected.OverallDetectedEncoding)
			} else {
				fmt.Println("overall detected encoding: (none)")
			}
			for i, e := range inspected.Entries {
				name := "(decode failed)"
				if e.Decoded != nil {
					name = e.Decoded.String
				}
				flag := "-"
				if e.UTF8Flag {
					flag = "U"
				}
				errMark := " "
				if e.Decoded != nil && e.Decoded.HasErrors {
					errMark = "!"
				}
				fmt.Printf("%4d  %s%s  %-10s  %s\n", i, flag, errMark, e.Source, name)
			}
			return nil
		},
	}
	ef.register(cmd)
	inf.register(cmd)
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <archive.zip>",
		Short: "Classify an archive's filename encoding compatibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := context.Background()
			r, f, err := openArchive(path)
			if err != nil {
				return err
			}
			defer f.Close()

			zf, err := zipjis.Parse(ctx, r, warnLogger(path))
			if err != nil {
				return errors.Wrap(err, "parse archive")
			}

			level := zipjis.Analyze(zf)
			fmt.Printf("kind: %v\n", kindString(level.Kind))
			fmt.Printf("with utf8 flags: %s\n", level.WithUTF8Flags)
			fmt.Printf("with unicode path fields: %s\n", level.WithUnicodePathFields)
			return nil
		},
	}
}

func kindString(k zipjis.CompatibilityKind) string {
	switch k {
	case zipjis.CompatibilityBroken:
		return "Broken"
	case zipjis.CompatibilityAsciiOnly:
		return "AsciiOnly"
	case zipjis.CompatibilityUtf8Only:
		return "Utf8Only"
	case zipjis.CompatibilityOther:
		return "Other"
	default:
		return "Unknown"
	}
}

func newRebuildCmd() *cobra.Command {
	var ef encodingFlags
	var inf inspectFlags
	var outPath string

	cmd := &cobra.Command{
		Use:   "rebuild <archive.zip>",
		Short: "Re-emit an archive with UTF-8 filenames, without recompressing payloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if outPath == "" {
				return errors.New("--out is required")
			}
			config, err := buildInspectConfig(&ef, &inf, false)
			if err != nil {
				return err
			}

			ctx := context.Background()
			r, f, err := openArchive(path)
			if err != nil {
				return err
			}
			defer f.Close()

			zf, err := zipjis.Parse(ctx, r, warnLogger(path))
			if err != nil {
				return errors.Wrap(err, "parse archive")
			}

			chunks, total, err := zipjis.Rebuild(zf, config, nil)
			if err != nil {
				return errors.Wrap(err, "rebuild archive")
			}

			out, err := os.Create(outPath)
			if err != nil {
				return errors.Wrap(err, "create output archive")
			}
			defer out.Close()

			if err := zipjis.MaterializeChunks(ctx, out, r, chunks); err != nil {
				return errors.Wrap(err, "write rebuilt archive")
			}

			log.WithFields(logrus.Fields{"entries": len(zf.Entries), "bytes": total}).Info("rebuilt archive")
			return nil
		},
	}
	ef.register(cmd)
	inf.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output archive path (required)")
	return cmd
}
