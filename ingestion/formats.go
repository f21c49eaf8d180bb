// Package ingestion turns submitted sources (uploaded PDFs, PDF links and web
// pages) into normalized plain text.
package ingestion

import (
	"bytes"
	"net/url"
	"path"
	"strings"
)

// SourceKind enumerates how an attachment's bytes are obtained.
type SourceKind string

const (
	// KindPDFFile is an uploaded PDF whose bytes travel with the request.
	KindPDFFile SourceKind = "pdf-file"
	// KindPDFURL is a link expected to serve a PDF document.
	KindPDFURL SourceKind = "pdf-url"
	// KindWebURL is a link to an HTML page.
	KindWebURL SourceKind = "web-url"
)

// Attachment is an immutable description of one source. Data holds the bytes
// for KindPDFFile; Locator holds the URL otherwise.
type Attachment struct {
	Name    string
	Locator string
	Kind    SourceKind
	Data    []byte
}

// FileAttachment describes an uploaded PDF.
func FileAttachment(name string, data []byte) Attachment {
	return Attachment{Name: name, Kind: KindPDFFile, Data: data}
}

// LinkAttachment describes a link, classifying it by its path extension.
func LinkAttachment(name, locator string) Attachment {
	return Attachment{Name: name, Locator: strings.TrimSpace(locator), Kind: DetectLinkKind(locator)}
}

// DetectLinkKind infers whether a link points at a PDF from its path.
func DetectLinkKind(locator string) SourceKind {
	p := locator
	if parsed, err := url.Parse(strings.TrimSpace(locator)); err == nil {
		p = parsed.Path
	}
	if strings.EqualFold(path.Ext(p), ".pdf") {
		return KindPDFURL
	}
	return KindWebURL
}

var pdfMagic = []byte("%PDF-")

// looksLikePDF inspects a fetched body. Storage links frequently lack a .pdf
// suffix, so the content type or magic bytes decide.
func looksLikePDF(contentType string, data []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic)
}

// PickSource applies file-over-link precedence for single-document inputs
// such as guidelines and the application form. It returns nil when neither
// was supplied.
func PickSource(name string, data []byte, link string) *Attachment {
	if len(data) > 0 {
		att := FileAttachment(name, data)
		return &att
	}
	if strings.TrimSpace(link) != "" {
		att := LinkAttachment(name, link)
		return &att
	}
	return nil
}
