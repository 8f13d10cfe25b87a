// Package chunker splits documents into bounded, overlapping text chunks
// ahead of embedding. Splitting is deterministic: the same input always
// yields the same chunks.
package chunker

import (
	"strings"

	"github.com/vectorgate/vectorgate/services"
)

// boundaries are tried in order of decreasing granularity when looking for
// a natural cut point, so chunks avoid splitting mid-word wherever a
// boundary exists within the size budget.
var boundaries = []string{"\n\n", ". ", "! ", "? ", "\n", " "}

// Splitter splits text into chunks of at most MaxChunkSize runes, with
// adjacent chunks sharing exactly Overlap runes.
type Splitter struct {
	MaxChunkSize int
	Overlap      int
}

// NewSplitter creates a Splitter, validating its parameters.
func NewSplitter(maxChunkSize, overlap int) (*Splitter, error) {
	if maxChunkSize <= 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "max chunk size must be positive", nil)
	}
	if overlap < 0 || overlap >= maxChunkSize {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "overlap must be non-negative and smaller than max chunk size", nil)
	}
	return &Splitter{MaxChunkSize: maxChunkSize, Overlap: overlap}, nil
}

// Split cuts text into ordered chunks. Each chunk is a contiguous window of
// the input, so concatenating the first chunk with every later chunk minus
// its leading Overlap runes reconstructs the input exactly.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.MaxChunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + s.MaxChunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := s.findCut(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
		if cut == len(runes) {
			break
		}
		start = cut - s.Overlap
	}
	return chunks
}

// findCut picks the cut point for a chunk starting at start, preferring the
// latest natural boundary within the window. The cut must land strictly
// after start+Overlap so the next chunk makes progress; when no boundary
// qualifies the window is cut hard at the size limit.
func (s *Splitter) findCut(runes []rune, start, end int) int {
	window := string(runes[start:end])
	floor := s.Overlap + 1 // minimum cut offset within the window

	for _, boundary := range boundaries {
		idx := strings.LastIndex(window, boundary)
		if idx < 0 {
			continue
		}
		// Cut after the boundary text so it stays with the left chunk.
		offset := len([]rune(window[:idx])) + len([]rune(boundary))
		if offset >= floor && start+offset < end {
			return start + offset
		}
	}
	return end
}

// Reassemble inverts Split: it concatenates chunks after removing the
// leading overlap of every chunk but the first.
func Reassemble(chunks []string, overlap int) string {
	var b strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk)
		if i > 0 && overlap > 0 {
			if len(runes) <= overlap {
				continue
			}
			runes = runes[overlap:]
		}
		b.WriteString(string(runes))
	}
	return b.String()
}
