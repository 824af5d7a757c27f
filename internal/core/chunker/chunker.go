// Package chunker splits extracted text into bounded, overlapping chunks.
// Chunk size is a character count; overlap is a word count. The mixed units
// are deliberate: normalizing them would move chunk boundaries observable by
// callers.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Split splits text on blank-line paragraph boundaries into chunks of at most
// chunkSize characters. Each chunk after the first is seeded with the last
// overlap words of its predecessor. Every returned chunk is non-empty after
// trimming and chunk order equals document order.
func Split(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	current := ""

	flush := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, s)
		}
	}

	// seed returns the overlap tail carried into the next buffer.
	seed := func(s string) string {
		words := strings.Fields(s)
		if overlap > 0 && len(words) > overlap {
			return strings.Join(words[len(words)-overlap:], " ") + "\n\n"
		}
		return ""
	}

	for _, para := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(para) > chunkSize && current != "" {
			flush(current)
			current = seed(current)
		}

		current += para + "\n\n"

		// A single oversized buffer (e.g. one giant paragraph) is sliced into
		// chunkSize-character prefixes, each re-seeding the remainder.
		for utf8.RuneCountInString(current) > chunkSize {
			runes := []rune(current)
			head := string(runes[:chunkSize])
			flush(head)
			current = seed(head) + string(runes[chunkSize:])
		}
	}

	flush(current)
	return chunks
}

// PageChunk is one chunk attributed to a 1-based page number.
type PageChunk struct {
	Text       string
	PageNumber int
}

// SplitByPage applies Split independently per page so chunks never cross page
// boundaries, tagging each chunk with its page number.
func SplitByPage(pages []string, chunkSize, overlap int) []PageChunk {
	var out []PageChunk
	for i, page := range pages {
		for _, text := range Split(page, chunkSize, overlap) {
			out = append(out, PageChunk{Text: text, PageNumber: i + 1})
		}
	}
	return out
}
