package render

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFCPUSizer reads page boxes with pdfcpu.
type PDFCPUSizer struct{}

func (PDFCPUSizer) PageDims(path string) ([]PageDim, error) {
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]PageDim, 0, len(dims))
	for _, d := range dims {
		out = append(out, PageDim{Width: d.Width, Height: d.Height})
	}
	return out, nil
}
