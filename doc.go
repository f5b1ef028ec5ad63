// Package zipjis inspects and rebuilds ZIP archives whose member filenames
// were encoded in legacy code pages (historically Shift_JIS/CP-932 and other
// CJK encodings) so that the archive can be re-emitted with correct UTF-8
// filenames.
//
// The package never recompresses archive payloads: Parse reconstructs every
// header and extra field of a (possibly ZIP64) archive from a caller-supplied
// ByteRangeReader, Inspect decodes filenames according to an InspectConfig,
// and Rebuild produces a chunk plan that references the original payload
// bytes rather than copying them.
//
// See: https://www.pkware.com/appnote, https://golang.org/pkg/archive/zip/
//
// This package does not support disk spanning.
package zipjis
