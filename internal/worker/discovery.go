package worker

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
	"github.com/orrn/rprint/internal/render"
)

// Discoverer lists the printers installed on this host.
type Discoverer interface {
	Discover(ctx context.Context) ([]protocol.SyncPrinter, error)
}

// CUPSDiscoverer reads printers from lpstat and their capabilities from
// lpoptions.
type CUPSDiscoverer struct {
	runner    render.Runner
	lpstat    string
	lpoptions string
}

func NewCUPSDiscoverer(runner render.Runner, lpstat, lpoptions string) *CUPSDiscoverer {
	return &CUPSDiscoverer{runner: runner, lpstat: lpstat, lpoptions: lpoptions}
}

func (d *CUPSDiscoverer) Discover(ctx context.Context) ([]protocol.SyncPrinter, error) {
	out, err := d.runner.Run(ctx, d.lpstat, "-p", "-d")
	if err != nil {
		if strings.Contains(string(out), "No destinations") {
			return []protocol.SyncPrinter{}, nil
		}
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}

	printers := parseLPStat(string(out))
	for i := range printers {
		opts, err := d.runner.Run(ctx, d.lpoptions, "-p", printers[i].Name, "-l")
		if err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("printer", printers[i].Name).Msg("failed to read printer options")
			continue
		}
		applyLPOptions(&printers[i], string(opts))
	}
	return printers, nil
}

func parseLPStat(out string) []protocol.SyncPrinter {
	var (
		printers   = []protocol.SyncPrinter{}
		defaultDst string
	)

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if dst, ok := strings.CutPrefix(line, "system default destination: "); ok {
			defaultDst = strings.TrimSpace(dst)
			continue
		}
		if !strings.HasPrefix(line, "printer ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		printers = append(printers, protocol.SyncPrinter{
			Name:        name,
			DisplayName: strings.ReplaceAll(name, "_", " "),
			Status:      lpstatState(line),
			PaperSizes:  []string{},
		})
	}

	for i := range printers {
		printers[i].IsDefault = printers[i].Name == defaultDst
	}
	return printers
}

func lpstatState(line string) string {
	switch {
	case strings.Contains(line, " disabled "):
		return protocol.PrinterError
	case strings.Contains(line, "now printing"):
		return protocol.PrinterBusy
	default:
		return protocol.PrinterOnline
	}
}

// applyLPOptions fills capabilities from "lpoptions -l" lines such as
// "PageSize/Media Size: *Letter A4".
func applyLPOptions(p *protocol.SyncPrinter, out string) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, values, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key, _, _ = strings.Cut(key, "/")
		choices := strings.Fields(values)
		for i, c := range choices {
			choices[i] = strings.TrimPrefix(c, "*")
		}

		switch key {
		case "PageSize", "media":
			p.PaperSizes = choices
		case "ColorModel", "print-color-mode":
			for _, c := range choices {
				lc := strings.ToLower(c)
				if strings.Contains(lc, "rgb") || strings.Contains(lc, "cmy") || lc == "color" {
					p.SupportsColor = true
				}
			}
		case "Duplex", "sides":
			for _, c := range choices {
				if c != "None" && c != "one-sided" {
					p.SupportsDuplex = true
				}
			}
		}
	}
}
