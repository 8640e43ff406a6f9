// Package chunk re-splits aggregated OCR text into bounded, overlapping
// chunks for extraction. Sizes and offsets are counted in characters (runes).
package chunk

import (
	"errors"
	"fmt"
	"iter"
)

const (
	DefaultSize    = 4000
	DefaultOverlap = 1000
)

// Separators are tried in order when choosing a chunk boundary; the hard
// size limit is used only when none occurs inside the window.
var Separators = []string{"\n\n", "\n", " "}

var ErrInvalidSize = errors.New("invalid chunk size")

// Chunk is one bounded slice of the source text. Start and End are rune
// offsets into the source, End exclusive. Index is 1-based.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Validate checks 0 <= overlap < size.
func Validate(size, overlap int) error {
	if size < 1 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidSize, overlap, size)
	}
	return nil
}

// Split returns a lazy sequence of chunks covering text. Every chunk holds
// at most size characters and each chunk after the first begins with the
// last overlap characters of its predecessor. The sequence may be ranged
// over any number of times. Invalid UTF-8 in text comes back as U+FFFD.
func Split(text string, size, overlap int) (iter.Seq[Chunk], error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	seps := make([][]rune, len(Separators))
	for i, s := range Separators {
		seps[i] = []rune(s)
	}

	return func(yield func(Chunk) bool) {
		start, index := 0, 1
		for start < len(runes) {
			end := len(runes)
			if end-start > size {
				end = boundary(runes, seps, start+overlap, start+size)
			}
			if !yield(Chunk{Index: index, Text: string(runes[start:end]), Start: start, End: end}) {
				return
			}
			if end == len(runes) {
				return
			}
			start = end - overlap
			index++
		}
	}, nil
}

// boundary picks a cut in (floor, limit]. The separator stays with the
// chunk it ends. A cut must lie past floor so the next chunk advances.
func boundary(runes []rune, seps [][]rune, floor, limit int) int {
	for _, sep := range seps {
		for end := limit; end > floor && end >= len(sep); end-- {
			if hasSuffix(runes[:end], sep) {
				return end
			}
		}
	}
	return limit
}

func hasSuffix(s, suffix []rune) bool {
	if len(suffix) > len(s) {
		return false
	}
	off := len(s) - len(suffix)
	for i, r := range suffix {
		if s[off+i] != r {
			return false
		}
	}
	return true
}

// Count ranges over seq and returns the number of chunks.
func Count(seq iter.Seq[Chunk]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}
