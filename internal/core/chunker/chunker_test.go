package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", 1000, 200))
	assert.Nil(t, Split("   \n\n  \t ", 1000, 200))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	text := "A short paragraph that fits in one chunk."
	chunks := Split(text, 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitChunkSizeBound(t *testing.T) {
	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, "some repeated paragraph content with enough words to matter")
	}
	text := strings.Join(paras, "\n\n")

	chunks := Split(text, 200, 10)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200)
		assert.NotEmpty(t, strings.TrimSpace(c))
		assert.Equal(t, c, strings.TrimSpace(c))
	}
}

func TestSplitOverlapSeedsNextChunk(t *testing.T) {
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, "alpha bravo charlie delta echo foxtrot golf hotel india juliet")
	}
	text := strings.Join(paras, "\n\n")

	overlap := 5
	chunks := Split(text, 150, overlap)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		require.Greater(t, len(prevWords), overlap)
		seed := strings.Join(prevWords[len(prevWords)-overlap:], " ")
		assert.True(t, strings.HasPrefix(chunks[i], seed),
			"chunk %d should start with the last %d words of chunk %d", i, overlap, i-1)
	}
}

func TestSplitReconstructsMultiParagraphInput(t *testing.T) {
	paras := []string{
		"alpha beta gamma delta epsilon zeta eta theta",
		"iota kappa lambda mu nu xi omicron pi",
		"rho sigma tau upsilon phi chi psi omega",
		"one two three four five six seven eight",
	}
	text := strings.Join(paras, "\n\n")

	overlap := 3
	chunks := Split(text, 60, overlap)
	require.Greater(t, len(chunks), 1)

	// stripping each chunk's overlap seed and rejoining yields the input
	stripped := make([]string, len(chunks))
	stripped[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		require.Greater(t, len(prevWords), overlap)
		seed := strings.Join(prevWords[len(prevWords)-overlap:], " ") + "\n\n"
		require.True(t, strings.HasPrefix(chunks[i], seed))
		stripped[i] = strings.TrimPrefix(chunks[i], seed)
	}
	assert.Equal(t, text, strings.Join(stripped, "\n\n"))
}

func TestSplitOversizedParagraph(t *testing.T) {
	text := strings.Repeat("a", 2500)

	chunks := Split(text, 1000, 0)
	require.Len(t, chunks, 3)
	assert.Equal(t, 2500, len(strings.Join(chunks, "")))
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
}

func TestSplitRuneSafe(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 300)

	chunks := Split(text, 100, 0)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("words in a paragraph here\n\n", 50)
	assert.Equal(t, Split(text, 120, 8), Split(text, 120, 8))
}

func TestSplitByPage(t *testing.T) {
	pages := []string{
		"first page content with several words",
		"   ",
		"third page content",
	}

	out := SplitByPage(pages, 1000, 0)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].PageNumber)
	assert.Equal(t, "first page content with several words", out[0].Text)
	assert.Equal(t, 3, out[1].PageNumber)
	assert.Equal(t, "third page content", out[1].Text)
}

func TestSplitByPageNeverCrossesPages(t *testing.T) {
	pageA := strings.Repeat("aaa bbb ccc ddd eee ", 30)
	pageB := strings.Repeat("vvv www xxx yyy zzz ", 30)

	out := SplitByPage([]string{pageA, pageB}, 150, 5)
	require.NotEmpty(t, out)
	for _, pc := range out {
		switch pc.PageNumber {
		case 1:
			assert.NotContains(t, pc.Text, "vvv")
		case 2:
			assert.NotContains(t, pc.Text, "aaa")
		default:
			t.Fatalf("unexpected page number %d", pc.PageNumber)
		}
	}
}
