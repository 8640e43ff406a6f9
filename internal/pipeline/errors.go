package pipeline

import (
	"errors"
	"fmt"
)

// Collaborator identifies which external service a CollaboratorError came from.
type Collaborator string

const (
	CollaboratorOCR     Collaborator = "ocr"
	CollaboratorExtract Collaborator = "extract"
)

// ErrNoData is matched by NoDataError via errors.Is.
var ErrNoData = errors.New("no records extracted")

// IOError reports a local file-system or document-parsing failure.
type IOError struct {
	Op   string // e.g. "open", "parse", "clear", "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError wraps err as an IOError, or returns nil when err is nil.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// CollaboratorError reports a failed OCR or extraction call. Index is the
// 1-based sub-unit or chunk index.
type CollaboratorError struct {
	Stage    Collaborator
	Index    int
	Provider string
	Err      error
}

func (e *CollaboratorError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s collaborator %s failed on item %d: %v", e.Stage, e.Provider, e.Index, e.Err)
	}
	return fmt.Sprintf("%s collaborator failed on item %d: %v", e.Stage, e.Index, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// NoDataError reports that extraction produced zero records.
type NoDataError struct {
	Chunks int   // chunks submitted
	Cause  error // first collaborator failure, if any
}

func (e *NoDataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no records extracted from %d chunk(s): %v", e.Chunks, e.Cause)
	}
	return fmt.Sprintf("no records extracted from %d chunk(s)", e.Chunks)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

func (e *NoDataError) Unwrap() error { return e.Cause }

// IsFatal reports whether err must abort a run without writing a table.
// Only an extraction-stage CollaboratorError is non-fatal, and only when it
// is not wrapped by a NoDataError.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoData) {
		return true
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Stage != CollaboratorExtract
	}
	return true
}
