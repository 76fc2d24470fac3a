// Package chunker splits page text into overlapping, sentence-aware windows
// sized for embedding.
package chunker

import (
	"errors"
	"fmt"
)

// Defaults used by the extraction stage.
const (
	DefaultSize    = 1000
	DefaultOverlap = 100
)

// ErrInvalidWindow is returned when size and overlap do not describe a window
// that advances.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Split divides text into chunks of at most size characters, each starting
// overlap characters before the end of the previous window. Windows are
// taken until the next start reaches the end of the text, so a short tail
// that lies inside the previous chunk's overlap is still emitted.
//
// When a window would end inside the text, Split looks backward for the last
// '.' in the window and, if it lies in the second half, ends the chunk just
// after it. Lengths are counted in runes. Chunks are exact substrings of text;
// trimming is left to the caller.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidWindow, size, overlap)
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}, nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end < len(runes) {
			// Only take the sentence boundary if the next window still moves forward.
			if cut := lastIndex(runes[start:end], '.'); cut >= 0 {
				cut += start
				if cut > start+size/2 && cut+1-overlap > start {
					end = cut + 1
				}
			}
		}

		chunks = append(chunks, string(runes[start:min(end, len(runes))]))
		start = end - overlap
	}
	return chunks, nil
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
