package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// SegMode selects the page-segmentation assumption for an OCR pass.
type SegMode int

const (
	// SegAuto lets the engine detect the page layout itself.
	SegAuto SegMode = iota
	// SegSingleBlock assumes one uniform block of text.
	SegSingleBlock
)

// OCR runs optical character recognition over a raster image.
type OCR interface {
	Recognize(img image.Image, mode SegMode) (string, error)
}

// TesseractOCR implements OCR with a tesseract engine. Each call builds its
// own client; the underlying engine is not safe for concurrent reuse.
type TesseractOCR struct {
	Languages []string
}

func NewTesseractOCR() *TesseractOCR {
	return &TesseractOCR{}
}

func (t *TesseractOCR) Recognize(img image.Image, mode SegMode) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode ocr input: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return "", fmt.Errorf("set ocr language: %w", err)
		}
	}

	psm := gosseract.PSM_AUTO_OSD
	if mode == SegSingleBlock {
		psm = gosseract.PSM_SINGLE_BLOCK
	}
	if err := client.SetPageSegMode(psm); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set ocr image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

// enhanceForOCR converts the image to grayscale and boosts contrast before
// recognition.
func enhanceForOCR(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	return imaging.AdjustContrast(gray, 50)
}
