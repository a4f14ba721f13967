package core

import (
	"context"
	"errors"

	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/protocol"
)

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrPrinterNotFound    = errors.New("printer not found")
	ErrWorkerNotFound     = errors.New("worker not found")
	ErrPrinterRequired    = errors.New("printer id is required")
	ErrFileRequired       = errors.New("file is required")
	ErrInvalidOptions     = errors.New("invalid print options")
	ErrInvalidWebhookURL  = errors.New("invalid webhook url")
	ErrPrinterDisabled    = errors.New("printer is disabled")
	ErrPrinterNotSynced   = errors.New("printer is offline or not synced")
	ErrPrinterBusy        = errors.New("printer has active jobs")
	ErrInvalidStatus      = errors.New("invalid job status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidState       = errors.New("job cannot be cancelled in its current state")
	ErrForbidden          = errors.New("resource belongs to another worker")
	ErrFileGone           = errors.New("job file is no longer available")
	ErrInvalidCredential  = errors.New("invalid worker credential")
	ErrInvalidSyncPayload = errors.New("invalid printer sync payload")
	ErrStorage            = errors.New("blob storage error")
)

// Notifier is told about every applied job transition after it commits.
type Notifier interface {
	Notify(ctx context.Context, event string, job *db.PrintJob)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, *db.PrintJob) {}

func JobView(j *db.PrintJob) protocol.Job {
	return protocol.Job{
		ID:        j.ID,
		ClientID:  j.ClientID,
		PrinterID: j.PrinterID,
		FileName:  j.FileName,
		FileSize:  j.FileSize,
		MimeType:  j.MimeType,
		Options: protocol.PrintOptions{
			Copies:      j.Copies,
			ColorMode:   j.ColorMode,
			Duplex:      j.Duplex,
			Orientation: j.Orientation,
			PaperSize:   j.PaperSize,
			Scale:       j.Scale,
		},
		Status:       protocol.JobStatus(j.Status),
		WebhookURL:   j.WebhookURL,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		AssignedAt:   j.AssignedAt,
		CompletedAt:  j.CompletedAt,
	}
}

func JobViews(jobs []*db.PrintJob) []protocol.Job {
	out := make([]protocol.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobView(j))
	}
	return out
}

func PrinterView(p *db.Printer) protocol.Printer {
	return protocol.Printer{
		ID:             p.ID,
		WorkerID:       p.WorkerID,
		Name:           p.Name,
		DisplayName:    p.DisplayName,
		Status:         p.Status,
		IsDefault:      p.IsDefault,
		SupportsColor:  p.SupportsColor,
		SupportsDuplex: p.SupportsDuplex,
		PaperSizes:     p.PaperSizes,
		MaxCopies:      p.MaxCopies,
		Enabled:        p.Enabled,
		Tags:           p.Tags,
		LastSeenAt:     p.LastSeenAt,
	}
}

func PrinterViews(printers []*db.Printer) []protocol.Printer {
	out := make([]protocol.Printer, 0, len(printers))
	for _, p := range printers {
		out = append(out, PrinterView(p))
	}
	return out
}
