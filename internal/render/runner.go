package render

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/orrn/rprint/internal/logger"
)

var (
	ErrToolMissing = errors.New("external tool not found")
	ErrToolTimeout = errors.New("external tool timed out")
)

const maxOutputInError = 2048

// Runner invokes an external tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, tool string, args ...string) ([]byte, error)
}

// ExecRunner runs tools as child processes, each bounded by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	log := logger.FromContext(ctx)

	path, err := exec.LookPath(tool)
	if err != nil {
		log.Warn().Str("tool", tool).Msg("tool not installed")
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, tool)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	elapsed := time.Since(start)

	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Str("tool", tool).
		Strs("args", args).
		Dur("duration", elapsed).
		Str("output", truncate(output)).
		Msg("tool finished")

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output, fmt.Errorf("%w: %s after %s", ErrToolTimeout, tool, r.Timeout)
	}
	if err != nil {
		return output, fmt.Errorf("%s failed: %w, output: %s", tool, err, truncate(output))
	}
	return output, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxOutputInError {
		return s[:maxOutputInError] + "..."
	}
	return s
}
