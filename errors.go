package otaextract

import "fmt"

// ErrorKind categorizes the errors this core can produce, per spec §7.
type ErrorKind int

const (
	ErrInvalidMagic ErrorKind = iota
	ErrUnsupportedVersion
	ErrTruncatedPayload
	ErrManifestDecode
	ErrMalformedManifest
	ErrUnsupportedOperation
	ErrMissingSource
	ErrSourceHashMismatch
	ErrDataHashMismatch
	ErrDestinationHashMismatch
	ErrDecompression
	ErrPatchApplication
	ErrIO
	ErrUnknownPartition
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidMagic:
		return "InvalidMagic"
	case ErrUnsupportedVersion:
		return "UnsupportedVersion"
	case ErrTruncatedPayload:
		return "TruncatedPayload"
	case ErrManifestDecode:
		return "ManifestDecodeError"
	case ErrMalformedManifest:
		return "MalformedManifest"
	case ErrUnsupportedOperation:
		return "UnsupportedOperation"
	case ErrMissingSource:
		return "MissingSource"
	case ErrSourceHashMismatch:
		return "SourceHashMismatch"
	case ErrDataHashMismatch:
		return "DataHashMismatch"
	case ErrDestinationHashMismatch:
		return "DestinationHashMismatch"
	case ErrDecompression:
		return "DecompressionError"
	case ErrPatchApplication:
		return "PatchApplicationError"
	case ErrIO:
		return "IoError"
	case ErrUnknownPartition:
		return "UnknownPartition"
	default:
		return "UnknownError"
	}
}

// PayloadError is the typed error every core component returns, carrying
// enough context (partition, operation index, path) for diagnostics
// without the caller needing to parse a message string.
type PayloadError struct {
	Kind      ErrorKind
	Partition string
	OpIndex   int // -1 when not applicable
	Path      string
	Pos       int64 // -1 when not applicable
	Err       error // underlying cause, if any
}

func (e *PayloadError) Error() string {
	msg := e.Kind.String()
	if e.Partition != "" {
		msg += " partition=" + e.Partition
	}
	if e.OpIndex >= 0 {
		msg += fmt.Sprintf(" op=%d", e.OpIndex)
	}
	if e.Path != "" {
		msg += " path=" + e.Path
	}
	if e.Pos >= 0 {
		msg += fmt.Sprintf(" pos=%d", e.Pos)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, otaextract.KindOf(...)) style comparisons
// by kind alone, ignoring context fields.
func (e *PayloadError) Is(target error) bool {
	other, ok := target.(*PayloadError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// NewError builds a bare PayloadError of the given kind, for callers that
// have no extra context to attach yet (extra fields default to "none").
func NewError(kind ErrorKind, cause error) *PayloadError {
	return &PayloadError{Kind: kind, OpIndex: -1, Pos: -1, Err: cause}
}

// KindOf builds a kind-only sentinel for use with errors.Is.
func KindOf(kind ErrorKind) *PayloadError {
	return &PayloadError{Kind: kind, OpIndex: -1, Pos: -1}
}
