package extract

import (
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePDF struct {
	pages    []string
	rendered map[int]int
	meta     map[string]string
}

func (f *fakePDF) PageCount() int { return len(f.pages) }

func (f *fakePDF) PageText(page int) (string, error) {
	if page < 0 || page >= len(f.pages) {
		return "", fmt.Errorf("page out of range")
	}
	return f.pages[page], nil
}

func (f *fakePDF) RenderPage(page int, _ float64) (image.Image, error) {
	if f.rendered == nil {
		f.rendered = make(map[int]int)
	}
	f.rendered[page]++
	return image.NewGray(image.Rect(0, 0, 40, 60)), nil
}

func (f *fakePDF) Metadata() map[string]string { return f.meta }
func (f *fakePDF) Close() error                { return nil }

type fakeOCR struct {
	byMode map[SegMode]string
}

func (f *fakeOCR) Recognize(_ image.Image, mode SegMode) (string, error) {
	return f.byMode[mode], nil
}

func engineWith(doc pdfDocument, ocr OCR) *Engine {
	e := NewEngine(ocr)
	e.openPDF = func([]byte) (pdfDocument, error) { return doc, nil }
	return e
}

func TestAdaptiveOCRThreshold(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  float64
	}{
		{"no pages", nil, 500},
		{"sparse document clamps low", []string{"tiny", "also tiny"}, 500},
		{"average density", []string{strings.Repeat("a", 2000)}, 1000},
		{"dense document clamps high", []string{strings.Repeat("a", 10000)}, 1500},
		{"mixed pages", []string{"", strings.Repeat("a", 2000)}, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AdaptiveOCRThreshold(tt.pages), 1e-9)
		})
	}
}

func TestExtractStructuredSkipsOCRForDensePages(t *testing.T) {
	dense := strings.Repeat("word ", 400)
	doc := &fakePDF{pages: []string{dense, dense}}
	e := engineWith(doc, &fakeOCR{byMode: map[SegMode]string{
		SegAuto: "should never appear",
	}})

	res, err := e.ExtractStructured(nil)
	require.NoError(t, err)
	assert.Empty(t, doc.rendered)
	assert.Empty(t, res.Images)
	assert.NotContains(t, res.Text(), "should never appear")
}

func TestExtractStructuredOCRsSparsePage(t *testing.T) {
	dense := strings.Repeat("word ", 400)
	doc := &fakePDF{pages: []string{dense, "stub"}, meta: map[string]string{"title": "Report"}}
	e := engineWith(doc, &fakeOCR{byMode: map[SegMode]string{
		SegAuto:        "recovered sentence from the page scan",
		SegSingleBlock: "recovered",
	}})

	res, err := e.ExtractStructured(nil)
	require.NoError(t, err)

	// only the sparse page was rendered
	assert.Equal(t, map[int]int{1: 1}, doc.rendered)

	// structural text survives and the OCR text is merged in
	assert.Contains(t, res.TextByPage[1], "stub")
	assert.Contains(t, res.TextByPage[1], "recovered sentence from the page scan")
	assert.Equal(t, dense, res.TextByPage[0])

	require.Len(t, res.Images, 1)
	img := res.Images[0]
	assert.Equal(t, 2, img.PageNumber)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 60, img.Height)
	assert.Equal(t, "png", img.Format)
	assert.NotEmpty(t, img.Data)
	assert.Contains(t, img.OCRText, "recovered sentence")

	assert.Equal(t, "Report", res.Metadata["title"])
}

func TestPickOCRResult(t *testing.T) {
	long := "this is a considerably longer ocr recognition result"
	assert.Equal(t, long, pickOCRResult(long, "short"))
	assert.Equal(t, long, pickOCRResult("short", long))

	// comparable lengths merge instead of one side winning
	merged := pickOCRResult("alpha section heading", "table of contents page")
	assert.Contains(t, merged, "alpha section heading")
	assert.Contains(t, merged, "table of contents page")
}

func TestExtractPDFScannedDocument(t *testing.T) {
	doc := &fakePDF{pages: []string{"", ""}}
	e := engineWith(doc, &fakeOCR{byMode: map[SegMode]string{
		SegAuto: "full page optical text recovered here",
	}})

	text, err := e.Extract(nil, "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "full page optical text recovered here")
}
