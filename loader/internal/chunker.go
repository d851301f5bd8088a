package internal

import (
	"errors"
	"strings"
)

var ErrInvalidWindow = errors.New("chunk size must be greater than overlap and overlap must not be negative")

// Split collapses whitespace and cuts the text into windows of size runes,
// each starting size-overlap runes after the previous one. The last window
// ends at the end of the text.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidWindow
	}

	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) == 0 {
		return []string{}, nil
	}
	if len(runes) <= size {
		return []string{string(runes)}, nil
	}

	step := size - overlap
	n := (len(runes) - overlap + step - 1) / step

	chunks := make([]string, 0, n)
	for i := 0; i < n; i++ {
		start := i * step
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
