package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	pointsPerInch = 72.0
	mmPerInch     = 25.4
)

// LabelSize is a physical label in inches.
type LabelSize struct {
	Name   string
	Width  float64
	Height float64
}

// Points returns the label size in PostScript points, rounded.
func (s LabelSize) Points() (int, int) {
	return int(math.Round(s.Width * pointsPerInch)), int(math.Round(s.Height * pointsPerInch))
}

// Pixels returns the raster size at dpi.
func (s LabelSize) Pixels(dpi int) (int, int) {
	return int(math.Round(s.Width * float64(dpi))), int(math.Round(s.Height * float64(dpi)))
}

// Media is the CUPS custom media name for the label.
func (s LabelSize) Media() string {
	w, h := s.Points()
	return fmt.Sprintf("Custom.%dx%d", w, h)
}

var DefaultLabel = LabelSize{Name: "4x6", Width: 4, Height: 6}

var inchLabels = []string{
	"4x6", "4x4", "4x3", "4x2", "3x2", "3x1", "2x1", "2.25x1.25", "2.25x0.75", "1.5x1",
}

var mmLabels = []string{
	"100x150", "102x152", "100x100", "100x50", "76x51", "62x29", "62x100", "57x32", "50x25", "40x30",
}

var defaultLabelPatterns = []string{
	"zebra", "zdesigner", "dymo", "rollo", "tsc", "godex", "xprinter", "munbyn",
	"brother ql", "brother_ql", "label", "thermal",
}

// ParseLabelSize recognises label sizes like "4x6", "4x6in", "2.25x1.25" and
// "100x150mm".
func ParseLabelSize(s string) (LabelSize, bool) {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if name == "" {
		return LabelSize{}, false
	}

	if dims, ok := strings.CutSuffix(name, "mm"); ok {
		if !contains(mmLabels, dims) {
			return LabelSize{}, false
		}
		w, h, ok := splitDims(dims)
		if !ok {
			return LabelSize{}, false
		}
		return LabelSize{Name: name, Width: w / mmPerInch, Height: h / mmPerInch}, true
	}

	dims := strings.TrimSuffix(strings.TrimSuffix(name, "in"), "\"")
	if !contains(inchLabels, dims) {
		return LabelSize{}, false
	}
	w, h, ok := splitDims(dims)
	if !ok {
		return LabelSize{}, false
	}
	return LabelSize{Name: dims, Width: w, Height: h}, true
}

// ResolveLabelSize returns the label for paperSize, or fallback when
// paperSize is not a label size. An unusable fallback means 4x6.
func ResolveLabelSize(paperSize, fallback string) LabelSize {
	if size, ok := ParseLabelSize(paperSize); ok {
		return size
	}
	if size, ok := ParseLabelSize(fallback); ok {
		return size
	}
	return DefaultLabel
}

// IsLabelPrinter reports whether a printer name belongs to a thermal label
// family.
func IsLabelPrinter(name string, extra []string) bool {
	lower := strings.ToLower(name)
	for _, p := range defaultLabelPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, p := range extra {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func splitDims(s string) (float64, float64, bool) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, false
	}
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
