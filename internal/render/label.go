package render

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
)

const pageSizeTolerance = 1.0

// LabelJob is one label document handed to the strategies.
type LabelJob struct {
	Path    string
	Options Options
	Size    LabelSize
}

// labelOptions pins the media to the label and disables driver scaling.
func (j LabelJob) labelOptions() Options {
	o := j.Options
	o.PaperSize = j.Size.Media()
	o.Scale = protocol.ScaleNone
	o.Orientation = protocol.OrientationPortrait
	return o
}

// Strategy is one way of getting a PDF onto a label.
type Strategy interface {
	Name() string
	Print(ctx context.Context, job LabelJob) error
}

// LabelRenderer tries its strategies in order until one succeeds.
type LabelRenderer struct {
	generic      *GenericRenderer
	strategies   []Strategy
	defaultLabel string
}

func NewLabelRenderer(generic *GenericRenderer, defaultLabel string, strategies ...Strategy) *LabelRenderer {
	return &LabelRenderer{generic: generic, strategies: strategies, defaultLabel: defaultLabel}
}

func (r *LabelRenderer) Render(ctx context.Context, doc Document, opts Options) error {
	log := logger.FromContext(ctx).With().Str("printer", opts.Printer).Logger()

	size := ResolveLabelSize(opts.PaperSize, r.defaultLabel)
	if size.Name != opts.PaperSize {
		log.Debug().Str("requested", opts.PaperSize).Str("label", size.Name).Msg("using label size")
	}

	path := doc.Path
	switch kind := detectKind(doc); kind {
	case kindRaw:
		return r.generic.printRaw(ctx, doc.Path, opts)
	case kindImage, kindText:
		job := LabelJob{Path: doc.Path, Options: opts, Size: size}
		return r.generic.print(ctx, doc.Path, job.labelOptions(), "-o", "fit-to-page")
	case kindPostScript:
		pdf, cleanup, err := r.generic.postScriptToPDF(ctx, doc.Path)
		if err != nil {
			return err
		}
		defer cleanup()
		path = pdf
	}

	job := LabelJob{Path: path, Options: opts, Size: size}
	var errs []error
	for i, s := range r.strategies {
		err := s.Print(ctx, job)
		if err == nil {
			log.Info().Str("strategy", s.Name()).Int("attempt", i+1).Str("label", size.Name).Msg("label printed")
			return nil
		}
		log.Warn().Err(err).Str("strategy", s.Name()).Int("attempt", i+1).Msg("label strategy failed")
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return &RenderError{Printer: opts.Printer, Errs: errs}
}

// PageDim is a page size in points.
type PageDim struct {
	Width  float64
	Height float64
}

// PageSizer reads the page sizes of a PDF.
type PageSizer interface {
	PageDims(path string) ([]PageDim, error)
}

// ResizeStrategy re-renders the PDF onto a page of exactly the label size and
// prints it without scaling.
type ResizeStrategy struct {
	runner Runner
	tools  Tools
	sizer  PageSizer
}

func NewResizeStrategy(runner Runner, tools Tools, sizer PageSizer) *ResizeStrategy {
	return &ResizeStrategy{runner: runner, tools: tools, sizer: sizer}
}

func (s *ResizeStrategy) Name() string { return "resize" }

func (s *ResizeStrategy) Print(ctx context.Context, job LabelJob) error {
	out, cleanup, err := tempFile(s.tools.TempDir, "rprint-resize-*.pdf")
	if err != nil {
		return err
	}
	defer cleanup()

	w, h := job.Size.Points()
	_, err = s.runner.Run(ctx, s.tools.Ghostscript,
		"-dBATCH", "-dNOPAUSE", "-dSAFER", "-dQUIET",
		"-sDEVICE=pdfwrite",
		"-dFIXEDMEDIA", "-dPDFFitPage",
		"-dDEVICEWIDTHPOINTS="+strconv.Itoa(w),
		"-dDEVICEHEIGHTPOINTS="+strconv.Itoa(h),
		"-sOutputFile="+out,
		job.Path,
	)
	if err != nil {
		return err
	}

	if err := s.verify(out, float64(w), float64(h)); err != nil {
		return err
	}

	printer := &GenericRenderer{runner: s.runner, tools: s.tools}
	return printer.print(ctx, out, job.labelOptions(), "-o", "print-scaling=none")
}

func (s *ResizeStrategy) verify(path string, w, h float64) error {
	if s.sizer == nil {
		return nil
	}
	dims, err := s.sizer.PageDims(path)
	if err != nil {
		return fmt.Errorf("failed to read resized page size: %w", err)
	}
	if len(dims) == 0 {
		return fmt.Errorf("resized document has no pages")
	}
	for i, d := range dims {
		if math.Abs(d.Width-w) > pageSizeTolerance || math.Abs(d.Height-h) > pageSizeTolerance {
			return fmt.Errorf("page %d is %.1fx%.1fpt, want %.0fx%.0fpt", i+1, d.Width, d.Height, w, h)
		}
	}
	return nil
}

// RasterStrategy renders page one to a grayscale PNG at printer resolution
// and prints the image.
type RasterStrategy struct {
	runner Runner
	tools  Tools
	dpi    int
}

func NewRasterStrategy(runner Runner, tools Tools, dpi int) *RasterStrategy {
	if dpi <= 0 {
		dpi = 203
	}
	return &RasterStrategy{runner: runner, tools: tools, dpi: dpi}
}

func (s *RasterStrategy) Name() string { return "raster" }

func (s *RasterStrategy) Print(ctx context.Context, job LabelJob) error {
	out, cleanup, err := tempFile(s.tools.TempDir, "rprint-raster-*.png")
	if err != nil {
		return err
	}
	defer cleanup()

	wpx, hpx := job.Size.Pixels(s.dpi)
	_, err = s.runner.Run(ctx, s.tools.Ghostscript,
		"-dBATCH", "-dNOPAUSE", "-dSAFER", "-dQUIET",
		"-sDEVICE=pnggray",
		"-r"+strconv.Itoa(s.dpi),
		fmt.Sprintf("-g%dx%d", wpx, hpx),
		"-dFirstPage=1", "-dLastPage=1",
		"-dPDFFitPage",
		"-sOutputFile="+out,
		job.Path,
	)
	if err != nil {
		return err
	}

	printer := &GenericRenderer{runner: s.runner, tools: s.tools}
	return printer.print(ctx, out, job.labelOptions(), "-o", "ppi="+strconv.Itoa(s.dpi))
}

// ScaledStrategy prints the original PDF and lets CUPS fit it to the label.
type ScaledStrategy struct {
	generic *GenericRenderer
}

func NewScaledStrategy(generic *GenericRenderer) *ScaledStrategy {
	return &ScaledStrategy{generic: generic}
}

func (s *ScaledStrategy) Name() string { return "scaled" }

func (s *ScaledStrategy) Print(ctx context.Context, job LabelJob) error {
	opts := job.labelOptions()
	opts.Scale = protocol.ScaleFit
	return s.generic.print(ctx, job.Path, opts)
}
