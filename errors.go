package zipjis

import "fmt"

// WarningFunc is the caller-supplied sink for non-fatal structural
// anomalies encountered while walking the central directory. entryIndex is
// -1 when the anomaly is not tied to a single entry. Returning true
// continues the walk; returning false makes the reported anomaly a fatal
// error. A nil WarningFunc behaves as if it always returned false (any
// anomaly is fatal).
type WarningFunc func(entryIndex int, err error) (cont bool)

// ErrEOCDNotFound is returned when no End Of Central Directory signature
// could be located within the trailing search window of the archive.
type ErrEOCDNotFound struct {
	SearchedBytes int64
}

func (e *ErrEOCDNotFound) Error() string {
	return fmt.Sprintf("zipjis: end of central directory record not found in the last %d bytes", e.SearchedBytes)
}

// ErrZip64EOCDNotFound is returned when the EOCD indicates ZIP64 is in use
// (via a saturated field) but neither the locator nor the bounded backward
// scan located a ZIP64 end of central directory record.
type ErrZip64EOCDNotFound struct {
	EOCDOffset int64
}

func (e *ErrZip64EOCDNotFound) Error() string {
	return fmt.Sprintf("zipjis: zip64 end of central directory record not found before eocd at offset %d", e.EOCDOffset)
}

// ErrAmbiguousDataDescriptor is returned when a data descriptor's presence
// of a signature word cannot be determined from the bytes following it.
type ErrAmbiguousDataDescriptor struct {
	EntryIndex int
}

func (e *ErrAmbiguousDataDescriptor) Error() string {
	return fmt.Sprintf("zipjis: cannot determine data descriptor layout for entry %d", e.EntryIndex)
}

// ErrEncodingNotFound is a Config error raised before any byte processing
// when InspectConfig names an encoding label the engine does not recognize.
type ErrEncodingNotFound struct {
	Label string
}

func (e *ErrEncodingNotFound) Error() string {
	return fmt.Sprintf("zipjis: unrecognized encoding label %q", e.Label)
}

// ErrInvalidSignature is returned when a fixed-format record's signature
// field does not match the expected magic value.
type ErrInvalidSignature struct {
	Record   string
	Expected uint32
	Got      uint32
}

func (e *ErrInvalidSignature) Error() string {
	return fmt.Sprintf("zipjis: invalid %s signature, expected %#08x but got %#08x", e.Record, e.Expected, e.Got)
}

// ErrTruncatedRecord is returned when a record's declared variable-length
// fields run past the bytes available to parse them.
type ErrTruncatedRecord struct {
	Record   string
	Expected int
	Got      int
}

func (e *ErrTruncatedRecord) Error() string {
	return fmt.Sprintf("zipjis: %s truncated, expected at least %d bytes but got %d", e.Record, e.Expected, e.Got)
}
