package render

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type inputKind int

const (
	kindOther inputKind = iota
	kindPDF
	kindPostScript
	kindImage
	kindText
	kindRaw
)

func (k inputKind) String() string {
	switch k {
	case kindPDF:
		return "pdf"
	case kindPostScript:
		return "postscript"
	case kindImage:
		return "image"
	case kindText:
		return "text"
	case kindRaw:
		return "raw"
	default:
		return "other"
	}
}

const sniffLen = 512

// detectKind classifies a document by content, falling back to the declared
// mime type when the content is not recognised.
func detectKind(doc Document) inputKind {
	switch strings.ToLower(filepath.Ext(doc.FileName)) {
	case ".zpl", ".tspl", ".epl":
		return kindRaw
	}

	head, err := readHead(doc.Path)
	if err == nil && isLabelMarkup(head) {
		return kindRaw
	}

	mime := doc.MimeType
	if mt, err := mimetype.DetectFile(doc.Path); err == nil && !mt.Is("application/octet-stream") {
		mime = mt.String()
	}
	return kindFromMime(mime)
}

func kindFromMime(mime string) inputKind {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "application/pdf"):
		return kindPDF
	case strings.HasPrefix(mime, "application/postscript"):
		return kindPostScript
	case strings.HasPrefix(mime, "image/"):
		return kindImage
	case strings.HasPrefix(mime, "text/plain"):
		return kindText
	default:
		return kindOther
	}
}

// isLabelMarkup recognises ZPL, TSPL and EPL programs.
func isLabelMarkup(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("^XA")):
		return true
	case bytes.HasPrefix(trimmed, []byte("SIZE ")) && bytes.Contains(head, []byte("PRINT")):
		return true
	case bytes.HasPrefix(trimmed, []byte("N\n")), bytes.HasPrefix(trimmed, []byte("N\r\n")):
		return true
	}
	return false
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
