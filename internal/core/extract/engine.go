package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/disintegration/imaging"

	"github.com/davemk99/embedx/internal/core"
)

// MinTextLength is the smallest extraction result considered usable; anything
// shorter fails with ErrInsufficientContent so chunking never sees it.
const MinTextLength = 10

type extractFn func(data []byte, contentType string) (string, error)

// Engine turns raw file bytes into normalized text. One extractor per
// ContentKind, looked up through a single dispatch table.
type Engine struct {
	ocr      OCR
	openPDF  func([]byte) (pdfDocument, error)
	dispatch map[ContentKind]extractFn
}

func NewEngine(ocr OCR) *Engine {
	e := &Engine{
		ocr:     ocr,
		openPDF: openFitz,
	}
	e.dispatch = map[ContentKind]extractFn{
		KindPDF:   e.extractPDF,
		KindDOCX:  e.extractDOCX,
		KindText:  e.extractPlainText,
		KindImage: e.extractImage,
	}
	return e
}

// Extract converts file bytes into text based on the declared content type.
func (e *Engine) Extract(data []byte, contentType string) (string, error) {
	kind := ClassifyContentType(contentType)
	fn, ok := e.dispatch[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedContentType, contentType)
	}

	text, err := fn(data, contentType)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return "", fmt.Errorf("%w (%s)", core.ErrInsufficientContent, kind)
	}
	return text, nil
}

// extractPDF tries each extraction strategy in order until one yields usable
// text: structural parse with adaptive OCR first, whole-document OCR as the
// fallback.
func (e *Engine) extractPDF(data []byte, _ string) (string, error) {
	strategies := []func([]byte) (string, error){
		e.structuredText,
		e.fullOCRText,
	}

	var lastErr error
	var lastText string
	for _, strategy := range strategies {
		text, err := strategy(data)
		if err != nil {
			lastErr = err
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(text)) >= MinTextLength {
			return text, nil
		}
		lastText = text
	}

	if lastErr != nil && strings.TrimSpace(lastText) == "" {
		return "", fmt.Errorf("%w: %v", core.ErrExtractionFailure, lastErr)
	}
	return lastText, nil
}

func (e *Engine) extractDOCX(data []byte, contentType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), contentType, false)
	if err != nil {
		return "", fmt.Errorf("%w: docconv: %v", core.ErrExtractionFailure, err)
	}
	return res.Body, nil
}

func (e *Engine) extractPlainText(data []byte, _ string) (string, error) {
	return strings.ToValidUTF8(string(data), "�"), nil
}

func (e *Engine) extractImage(data []byte, _ string) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("%w: ocr engine not configured", core.ErrExtractionFailure)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: decode image: %v", core.ErrExtractionFailure, err)
	}
	text, err := e.ocr.Recognize(enhanceForOCR(img), SegAuto)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrExtractionFailure, err)
	}
	return text, nil
}
