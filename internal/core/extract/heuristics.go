package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// SimilarityThreshold is the Jaccard cutoff above which two lines count
	// as near-duplicates during merging.
	SimilarityThreshold = 0.6

	maxWordLen          = 25
	maxNoSpaceLen       = 10
	maxSpecialCharRatio = 0.3
)

// MergeTexts merges two text sources. All lines of the primary survive; lines
// of the secondary are appended only if they are neither OCR garbage nor
// near-duplicates of a line already kept. If either source is blank the other
// is returned unmodified.
func MergeTexts(primary, secondary string) string {
	if strings.TrimSpace(primary) == "" {
		return secondary
	}
	if strings.TrimSpace(secondary) == "" {
		return primary
	}

	result := nonEmptyLines(primary)
	for _, line := range nonEmptyLines(secondary) {
		if IsLikelyGarbage(line) {
			continue
		}
		dup := false
		for _, kept := range result {
			if IsSimilar(line, kept, SimilarityThreshold) {
				dup = true
				break
			}
		}
		if !dup {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n\n")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// IsSimilar reports whether the Jaccard similarity of the two normalized word
// sets reaches the threshold.
func IsSimilar(a, b string, threshold float64) bool {
	wordsA := normalizedWordSet(a)
	wordsB := normalizedWordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection)/float64(union) >= threshold
}

func normalizedWordSet(text string) map[string]struct{} {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}
	set := make(map[string]struct{})
	for _, w := range strings.Fields(sb.String()) {
		set[w] = struct{}{}
	}
	return set
}

// IsLikelyGarbage judges whether a line is OCR noise rather than genuine
// language content: blank, long runs with no spaces, a high ratio of special
// characters, or an implausibly long token.
func IsLikelyGarbage(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	if utf8.RuneCountInString(text) > maxNoSpaceLen && !strings.Contains(text, " ") {
		return true
	}

	special, total := 0, 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total > 0 && float64(special)/float64(total) > maxSpecialCharRatio {
		return true
	}

	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(word) > maxWordLen {
			return true
		}
	}
	return false
}
