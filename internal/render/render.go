// Package render turns downloaded job files into printer output through the
// host's CUPS and Ghostscript tools.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/orrn/rprint/internal/protocol"
)

// Document is a job file already on local disk.
type Document struct {
	Path     string
	FileName string
	MimeType string
}

type Options struct {
	Printer string
	protocol.PrintOptions
}

type Renderer interface {
	Render(ctx context.Context, doc Document, opts Options) error
}

// RenderError is returned once every strategy for a document has failed.
type RenderError struct {
	Printer string
	Errs    []error
}

func (e *RenderError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("printing on %s failed: %s", e.Printer, strings.Join(msgs, "; "))
}

func (e *RenderError) Unwrap() []error {
	return e.Errs
}
