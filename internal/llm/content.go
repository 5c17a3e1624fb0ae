package llm

import (
	"encoding/base64"
	"strings"
)

const pdfMIMEType = "application/pdf"

// Document is a binary attachment sent alongside a prompt. The transmissible
// base64 form is computed once so that every agent call reuses it.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
	encoded  string
}

// NewDocument wraps a PDF upload for transmission to the model.
func NewDocument(name string, data []byte) *Document {
	return &Document{
		Name:     name,
		MIMEType: pdfMIMEType,
		Data:     data,
		encoded:  base64.StdEncoding.EncodeToString(data),
	}
}

// Base64 returns the standard base64 encoding of the document bytes.
func (d *Document) Base64() string {
	return d.encoded
}

// DataURL returns the document as a data: URL.
func (d *Document) DataURL() string {
	var b strings.Builder
	b.Grow(len(d.encoded) + len(d.MIMEType) + 13)
	b.WriteString("data:")
	b.WriteString(d.MIMEType)
	b.WriteString(";base64,")
	b.WriteString(d.encoded)
	return b.String()
}

// Content is the user turn of a completion request: plain text, optionally
// followed by an embedded document.
type Content struct {
	Text     string
	Document *Document
}

// Text builds a plain-text Content.
func Text(s string) Content {
	return Content{Text: s}
}

// WithDocument builds a multi-part Content.
func WithDocument(text string, doc *Document) Content {
	return Content{Text: text, Document: doc}
}

// Message is one role-tagged chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
