package docs

import (
	"strings"
	"unicode"
)

// Split cuts text into windows of at most size runes that overlap by overlap
// runes. Window ends are pulled back to the last whitespace when one is near.
func Split(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	r := []rune(text)
	if size <= 0 || len(r) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(r); {
		end := start + size
		if end >= len(r) {
			end = len(r)
		} else if cut := lastBreak(r[start:end]); cut > size/2 {
			end = start + cut
		}
		if part := strings.TrimSpace(string(r[start:end])); part != "" {
			chunks = append(chunks, part)
		}
		if end == len(r) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastBreak(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i + 1
		}
	}
	return -1
}
