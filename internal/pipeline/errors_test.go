package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestIsFatal(t *testing.T) {
	ocrErr := &CollaboratorError{Stage: CollaboratorOCR, Index: 2, Provider: "documentai", Err: errors.New("quota")}
	extractErr := &CollaboratorError{Stage: CollaboratorExtract, Index: 3, Provider: "openai", Err: errors.New("timeout")}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"io error", &IOError{Op: "open", Path: "x.pdf", Err: fs.ErrNotExist}, true},
		{"ocr collaborator", ocrErr, true},
		{"extract collaborator", extractErr, false},
		{"wrapped extract collaborator", fmt.Errorf("stage extract: %w", extractErr), false},
		{"no data", &NoDataError{Chunks: 1, Cause: extractErr}, true},
		{"plain error", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	ioErr := NewIOError("open", "case.pdf", fs.ErrNotExist)
	if !errors.Is(ioErr, fs.ErrNotExist) {
		t.Error("IOError should unwrap to the cause")
	}
	var target *IOError
	if !errors.As(fmt.Errorf("split: %w", ioErr), &target) || target.Path != "case.pdf" {
		t.Errorf("errors.As(IOError) = %+v", target)
	}
	if NewIOError("open", "x", nil) != nil {
		t.Error("NewIOError(nil) should be nil")
	}

	cause := &CollaboratorError{Stage: CollaboratorExtract, Index: 1, Err: errors.New("bad")}
	noData := &NoDataError{Chunks: 1, Cause: cause}
	if !errors.Is(noData, ErrNoData) {
		t.Error("NoDataError should match ErrNoData")
	}
	var ce *CollaboratorError
	if !errors.As(noData, &ce) || ce.Index != 1 {
		t.Error("NoDataError should unwrap to its cause")
	}
}
