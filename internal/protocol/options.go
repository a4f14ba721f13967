package protocol

import (
	"fmt"
	"strings"
)

const (
	ColorColor      = "color"
	ColorMonochrome = "monochrome"

	DuplexNone      = "none"
	DuplexLongEdge  = "long-edge"
	DuplexShortEdge = "short-edge"

	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"

	ScaleNone   = "noscale"
	ScaleFit    = "fit"
	ScaleShrink = "shrink"

	DefaultPaperSize = "A4"
	MaxCopies        = 999
)

type PrintOptions struct {
	Copies      int    `json:"copies"`
	ColorMode   string `json:"colorMode"`
	Duplex      string `json:"duplex"`
	Orientation string `json:"orientation"`
	PaperSize   string `json:"paperSize"`
	Scale       string `json:"scale"`
}

func DefaultOptions() PrintOptions {
	return PrintOptions{
		Copies:      1,
		ColorMode:   ColorColor,
		Duplex:      DuplexNone,
		Orientation: OrientationPortrait,
		PaperSize:   DefaultPaperSize,
		Scale:       ScaleNone,
	}
}

// WithDefaults fills every zero field from DefaultOptions.
func (o PrintOptions) WithDefaults() PrintOptions {
	d := DefaultOptions()
	if o.Copies == 0 {
		o.Copies = d.Copies
	}
	if o.ColorMode == "" {
		o.ColorMode = d.ColorMode
	}
	if o.Duplex == "" {
		o.Duplex = d.Duplex
	}
	if o.Orientation == "" {
		o.Orientation = d.Orientation
	}
	if strings.TrimSpace(o.PaperSize) == "" {
		o.PaperSize = d.PaperSize
	}
	if o.Scale == "" {
		o.Scale = d.Scale
	}
	return o
}

func (o PrintOptions) Validate() error {
	if o.Copies < 1 || o.Copies > MaxCopies {
		return fmt.Errorf("copies must be between 1 and %d, got %d", MaxCopies, o.Copies)
	}
	switch o.ColorMode {
	case ColorColor, ColorMonochrome:
	default:
		return fmt.Errorf("invalid color mode: %q (valid: color, monochrome)", o.ColorMode)
	}
	switch o.Duplex {
	case DuplexNone, DuplexLongEdge, DuplexShortEdge:
	default:
		return fmt.Errorf("invalid duplex: %q (valid: none, long-edge, short-edge)", o.Duplex)
	}
	switch o.Orientation {
	case OrientationPortrait, OrientationLandscape:
	default:
		return fmt.Errorf("invalid orientation: %q (valid: portrait, landscape)", o.Orientation)
	}
	switch o.Scale {
	case ScaleNone, ScaleFit, ScaleShrink:
	default:
		return fmt.Errorf("invalid scale: %q (valid: noscale, fit, shrink)", o.Scale)
	}
	if len(o.PaperSize) > 64 {
		return fmt.Errorf("paper size is too long")
	}
	return nil
}
