package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
)

const (
	ocrDPI = 300

	thresholdLower  = 500
	thresholdUpper  = 1500
	thresholdFactor = 0.5

	// An OCR pass wins outright only when it is at least 20% longer than the
	// other; otherwise the two passes are merged.
	ocrLengthRatio = 1.2
)

// PageImage is a raster image produced while extracting a PDF, with any OCR
// text recognized from it.
type PageImage struct {
	PageNumber int // 1-based
	ImageIndex int // 0-based within the page
	Width      int
	Height     int
	Format     string
	Data       []byte
	OCRText    string
}

// Link is a hyperlink found on a PDF page.
type Link struct {
	PageNumber int
	URL        string
	Internal   bool
}

// PDFExtraction is the structured result of the PDF-rich extraction path.
type PDFExtraction struct {
	TextByPage []string
	Images     []PageImage
	Tables     []Table
	Links      []Link
	Metadata   map[string]string
}

// Text joins the per-page text in page order.
func (x *PDFExtraction) Text() string {
	var sb strings.Builder
	for _, page := range x.TextByPage {
		if strings.TrimSpace(page) == "" {
			continue
		}
		sb.WriteString(page)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

// pdfDocument abstracts the structural PDF parser and page renderer so the
// adaptive logic can be exercised without MuPDF.
type pdfDocument interface {
	PageCount() int
	PageText(page int) (string, error)
	RenderPage(page int, dpi float64) (image.Image, error)
	Metadata() map[string]string
	Close() error
}

type fitzDocument struct {
	doc *fitz.Document
}

func openFitz(data []byte) (pdfDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

func (d *fitzDocument) PageCount() int { return d.doc.NumPage() }

func (d *fitzDocument) PageText(page int) (string, error) {
	return d.doc.Text(page)
}

func (d *fitzDocument) RenderPage(page int, dpi float64) (image.Image, error) {
	return d.doc.ImageDPI(page, dpi)
}

func (d *fitzDocument) Metadata() map[string]string { return d.doc.Metadata() }

func (d *fitzDocument) Close() error { return d.doc.Close() }

// AdaptiveOCRThreshold derives the per-document character cutoff below which a
// page is OCR-worthy: half the average characters per page, clamped to
// [500, 1500] so dense and sparse documents are not misclassified by a fixed
// cutoff.
func AdaptiveOCRThreshold(pageTexts []string) float64 {
	total := 0
	for _, t := range pageTexts {
		total += utf8.RuneCountInString(strings.TrimSpace(t))
	}
	pages := len(pageTexts)
	if pages == 0 {
		pages = 1
	}
	avg := float64(total) / float64(pages)
	return math.Min(thresholdUpper, math.Max(thresholdLower, avg*thresholdFactor))
}

// ExtractStructured runs the PDF-rich path: per-page text with adaptive OCR,
// rendered page images for OCR'd pages, table grids and hyperlinks.
func (e *Engine) ExtractStructured(data []byte) (*PDFExtraction, error) {
	doc, err := e.openPDF(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pages := doc.PageCount()
	pageTexts := make([]string, pages)
	for i := 0; i < pages; i++ {
		// A page that fails structural text extraction is treated as empty
		// and left to OCR.
		text, err := doc.PageText(i)
		if err != nil {
			text = ""
		}
		pageTexts[i] = text
	}

	threshold := AdaptiveOCRThreshold(pageTexts)

	result := &PDFExtraction{
		TextByPage: make([]string, pages),
		Metadata:   doc.Metadata(),
	}

	for i := 0; i < pages; i++ {
		raw := pageTexts[i]
		final := raw

		if float64(utf8.RuneCountInString(strings.TrimSpace(raw))) < threshold {
			img, ocrText := e.ocrPage(doc, i)
			switch {
			case ocrText != "" && strings.TrimSpace(raw) != "":
				final = MergeTexts(raw, ocrText)
			case ocrText != "":
				final = ocrText
			}
			if img != nil {
				result.Images = append(result.Images, *img)
			}
		}

		result.TextByPage[i] = final
		result.Tables = append(result.Tables, DetectTables(final, i+1)...)
		result.Links = append(result.Links, DetectLinks(final, i+1)...)
	}

	return result, nil
}

// ocrPage renders one page at high resolution, enhances it, and runs two OCR
// passes with different page-segmentation assumptions. The longer pass wins
// unless both are within ~20% of each other, in which case they are merged.
// Returns the rendered page image (with OCR text attached) and the text.
func (e *Engine) ocrPage(doc pdfDocument, page int) (*PageImage, string) {
	if e.ocr == nil {
		return nil, ""
	}
	rendered, err := doc.RenderPage(page, ocrDPI)
	if err != nil {
		return nil, ""
	}
	enhanced := enhanceForOCR(rendered)

	auto, err := e.ocr.Recognize(enhanced, SegAuto)
	if err != nil {
		auto = ""
	}
	block, err := e.ocr.Recognize(enhanced, SegSingleBlock)
	if err != nil {
		block = ""
	}

	text := pickOCRResult(auto, block)

	img := &PageImage{
		PageNumber: page + 1,
		ImageIndex: 0,
		Format:     "png",
		OCRText:    strings.TrimSpace(text),
	}
	bounds := rendered.Bounds()
	img.Width = bounds.Dx()
	img.Height = bounds.Dy()

	var buf bytes.Buffer
	if err := png.Encode(&buf, rendered); err == nil {
		img.Data = buf.Bytes()
	}
	return img, text
}

func pickOCRResult(a, b string) string {
	la, lb := float64(len(a)), float64(len(b))
	switch {
	case la > lb*ocrLengthRatio:
		return a
	case lb > la*ocrLengthRatio:
		return b
	default:
		return MergeTexts(a, b)
	}
}

// structuredText is the primary PDF extraction strategy.
func (e *Engine) structuredText(data []byte) (string, error) {
	res, err := e.ExtractStructured(data)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// fullOCRText is the fallback strategy: render every page and OCR it, no
// merging, page order preserved.
func (e *Engine) fullOCRText(data []byte) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("ocr engine not configured")
	}
	doc, err := e.openPDF(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.PageCount(); i++ {
		img, err := doc.RenderPage(i, ocrDPI)
		if err != nil {
			continue
		}
		text, err := e.ocr.Recognize(enhanceForOCR(img), SegAuto)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
