package render

import (
	"context"

	"github.com/orrn/rprint/internal/config"
	"github.com/orrn/rprint/internal/logger"
)

// Pipeline picks the label or generic renderer for each job.
type Pipeline struct {
	generic       *GenericRenderer
	label         *LabelRenderer
	labelPatterns []string
}

func NewPipeline(cfg config.RenderConfig, runner Runner, sizer PageSizer) *Pipeline {
	tools := Tools{LP: cfg.LPPath, Ghostscript: cfg.GhostscriptPath, TempDir: cfg.TempDir}
	generic := NewGenericRenderer(runner, tools)
	label := NewLabelRenderer(generic, cfg.DefaultLabelSize,
		NewResizeStrategy(runner, tools, sizer),
		NewRasterStrategy(runner, tools, cfg.RasterDPI),
		NewScaledStrategy(generic),
	)
	return &Pipeline{generic: generic, label: label, labelPatterns: cfg.LabelPatterns}
}

// IsLabel reports whether opts should take the label path.
func (p *Pipeline) IsLabel(opts Options) bool {
	if IsLabelPrinter(opts.Printer, p.labelPatterns) {
		return true
	}
	_, ok := ParseLabelSize(opts.PaperSize)
	return ok
}

func (p *Pipeline) Render(ctx context.Context, doc Document, opts Options) error {
	if p.IsLabel(opts) {
		logger.FromContext(ctx).Debug().Str("printer", opts.Printer).Msg("label path")
		return p.label.Render(ctx, doc, opts)
	}
	return p.generic.Render(ctx, doc, opts)
}

var (
	_ Renderer = (*Pipeline)(nil)
	_ Renderer = (*GenericRenderer)(nil)
	_ Renderer = (*LabelRenderer)(nil)
)
