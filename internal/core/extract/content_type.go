package extract

import (
	"path/filepath"
	"strings"
)

// ContentKind is the closed set of content types the engine dispatches on.
type ContentKind int

const (
	KindUnsupported ContentKind = iota
	KindPDF
	KindDOCX
	KindText
	KindImage
)

func (k ContentKind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return "unsupported"
	}
}

const docxMIME = "openxmlformats-officedocument.wordprocessingml.document"

// ClassifyContentType maps a declared MIME string onto a ContentKind. This is
// the single place content-type substring matching happens.
func ClassifyContentType(contentType string) ContentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return KindPDF
	case strings.Contains(ct, "docx"),
		strings.Contains(ct, docxMIME),
		strings.Contains(ct, "msword"):
		return KindDOCX
	case strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "json"),
		strings.Contains(ct, "markdown"):
		return KindText
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	default:
		return KindUnsupported
	}
}

var extensionContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
	".csv":  "text/csv",
	".json": "application/json",
}

// ContentTypeForPath resolves a local file path to a content type by
// extension; unrecognized extensions fall back to a generic binary type.
func ContentTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
