package render

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
)

// Tools names the external binaries used for printing.
type Tools struct {
	LP          string
	Ghostscript string
	TempDir     string
}

// GenericRenderer prints sheet documents through lp with the job's options.
type GenericRenderer struct {
	runner Runner
	tools  Tools
}

func NewGenericRenderer(runner Runner, tools Tools) *GenericRenderer {
	return &GenericRenderer{runner: runner, tools: tools}
}

func (r *GenericRenderer) Render(ctx context.Context, doc Document, opts Options) error {
	kind := detectKind(doc)
	logger.FromContext(ctx).Debug().
		Str("printer", opts.Printer).
		Str("kind", kind.String()).
		Msg("rendering document")

	switch kind {
	case kindRaw:
		return r.printRaw(ctx, doc.Path, opts)
	case kindPostScript:
		pdf, cleanup, err := r.postScriptToPDF(ctx, doc.Path)
		if err != nil {
			return err
		}
		defer cleanup()
		return r.print(ctx, pdf, opts)
	default:
		return r.print(ctx, doc.Path, opts)
	}
}

func (r *GenericRenderer) print(ctx context.Context, path string, opts Options, extra ...string) error {
	args := lpArgs(opts, extra...)
	args = append(args, path)
	_, err := r.runner.Run(ctx, r.tools.LP, args...)
	return err
}

// printRaw sends pre-formatted label markup to the printer untouched.
func (r *GenericRenderer) printRaw(ctx context.Context, path string, opts Options) error {
	_, err := r.runner.Run(ctx, r.tools.LP,
		"-d", opts.Printer,
		"-n", strconv.Itoa(copies(opts.PrintOptions)),
		"-o", "raw",
		path,
	)
	return err
}

func (r *GenericRenderer) postScriptToPDF(ctx context.Context, path string) (string, func(), error) {
	out, cleanup, err := tempFile(r.tools.TempDir, "rprint-ps-*.pdf")
	if err != nil {
		return "", nil, err
	}

	_, err = r.runner.Run(ctx, r.tools.Ghostscript,
		"-dBATCH", "-dNOPAUSE", "-dSAFER", "-dQUIET",
		"-sDEVICE=pdfwrite",
		"-sOutputFile="+out,
		path,
	)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("postscript conversion failed: %w", err)
	}
	return out, cleanup, nil
}

// lpArgs builds the lp option list for a job. The file path is not included.
func lpArgs(opts Options, extra ...string) []string {
	args := []string{
		"-d", opts.Printer,
		"-n", strconv.Itoa(copies(opts.PrintOptions)),
		"-o", "sides=" + sides(opts.Duplex),
		"-o", "orientation-requested=" + orientation(opts.Orientation),
	}
	if opts.PaperSize != "" {
		args = append(args, "-o", "media="+opts.PaperSize)
	}
	if opts.ColorMode == protocol.ColorMonochrome {
		args = append(args, "-o", "print-color-mode=monochrome")
	}
	if opts.Scale == protocol.ScaleFit || opts.Scale == protocol.ScaleShrink {
		args = append(args, "-o", "fit-to-page")
	}
	return append(args, extra...)
}

func copies(o protocol.PrintOptions) int {
	if o.Copies < 1 {
		return 1
	}
	return o.Copies
}

func sides(duplex string) string {
	switch duplex {
	case protocol.DuplexLongEdge:
		return "two-sided-long-edge"
	case protocol.DuplexShortEdge:
		return "two-sided-short-edge"
	default:
		return "one-sided"
	}
}

// orientation maps to IPP orientation-requested values.
func orientation(o string) string {
	if o == protocol.OrientationLandscape {
		return "4"
	}
	return "3"
}

// tempFile reserves a path for tool output. cleanup removes it.
func tempFile(dir, pattern string) (string, func(), error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	f.Close()
	return name, func() { os.Remove(name) }, nil
}
