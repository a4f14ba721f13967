package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/protocol"
)

type PrinterService struct {
	store *db.Store
	now   func() time.Time
}

func NewPrinterService(store *db.Store) *PrinterService {
	return &PrinterService{store: store, now: time.Now}
}

// Sync reconciles the worker's printers with the reported list in one
// transaction. Printers are matched by name; ids, enabled and tags survive.
// Printers missing from the report are marked offline, never deleted.
func (s *PrinterService) Sync(ctx context.Context, workerID string, reported []protocol.SyncPrinter) ([]*db.Printer, error) {
	seen := make(map[string]bool, len(reported))
	for _, r := range reported {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: printer name is required", ErrInvalidSyncPayload)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate printer %q", ErrInvalidSyncPayload, name)
		}
		seen[name] = true
	}

	now := s.now().UTC()
	var synced []*db.Printer

	err := s.store.WithTx(ctx, func(tx *db.Store) error {
		synced = synced[:0]
		keep := make([]string, 0, len(reported))

		for _, r := range reported {
			p, err := s.upsert(ctx, tx, workerID, r, now)
			if err != nil {
				return err
			}
			synced = append(synced, p)
			keep = append(keep, p.ID)
		}

		return tx.Printers.MarkOfflineExcept(ctx, workerID, keep, now)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("worker_id", workerID).
		Int("printers", len(synced)).
		Msg("printers synced")
	return synced, nil
}

func (s *PrinterService) upsert(ctx context.Context, tx *db.Store, workerID string, r protocol.SyncPrinter, now time.Time) (*db.Printer, error) {
	name := strings.TrimSpace(r.Name)
	display := r.DisplayName
	if display == "" {
		display = name
	}
	paperSizes := r.PaperSizes
	if paperSizes == nil {
		paperSizes = []string{}
	}

	existing, err := tx.Printers.GetPrinterByWorkerAndName(ctx, workerID, name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if existing == nil {
		p := &db.Printer{
			ID:             uuid.NewString(),
			WorkerID:       workerID,
			Name:           name,
			DisplayName:    display,
			Status:         syncedStatus(r.Status),
			IsDefault:      r.IsDefault,
			SupportsColor:  r.SupportsColor,
			SupportsDuplex: r.SupportsDuplex,
			PaperSizes:     paperSizes,
			MaxCopies:      r.MaxCopies,
			Enabled:        true,
			Tags:           []string{},
			LastSeenAt:     &now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Printers.CreatePrinter(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	existing.DisplayName = display
	existing.Status = syncedStatus(r.Status)
	existing.IsDefault = r.IsDefault
	existing.SupportsColor = r.SupportsColor
	existing.SupportsDuplex = r.SupportsDuplex
	existing.PaperSizes = paperSizes
	existing.MaxCopies = r.MaxCopies
	existing.LastSeenAt = &now
	existing.UpdatedAt = now
	if err := tx.Printers.UpdateFromSync(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// syncedStatus maps a reported status onto the states a present printer can
// have. A reported printer is never offline.
func syncedStatus(reported string) string {
	switch reported {
	case protocol.PrinterBusy, protocol.PrinterError:
		return reported
	default:
		return protocol.PrinterOnline
	}
}

func (s *PrinterService) List(ctx context.Context, workerID string) ([]*db.Printer, error) {
	return s.store.Printers.ListPrintersByWorker(ctx, workerID)
}

// Delete removes a printer owned by workerID. Printers with jobs still in
// flight are kept.
func (s *PrinterService) Delete(ctx context.Context, workerID, printerID string) error {
	p, err := s.store.Printers.GetPrinterByID(ctx, printerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPrinterNotFound
		}
		return err
	}
	if p.WorkerID != workerID {
		return ErrForbidden
	}

	active, err := s.store.Jobs.CountActiveByPrinter(ctx, printerID)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrPrinterBusy
	}

	if err := s.store.Printers.DeletePrinter(ctx, printerID); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Str("printer_id", printerID).Str("worker_id", workerID).Msg("printer deleted")
	return nil
}
