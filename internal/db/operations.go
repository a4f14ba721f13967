package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// utc normalises timestamps before they reach the driver so stored values
// compare correctly as text.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type rowScanner interface {
	Scan(dest ...any) error
}

type JobOperations struct {
	q Querier
}

func (o *JobOperations) CreateJob(ctx context.Context, j *PrintJob) error {
	now := utc(j.CreatedAt)
	_, err := o.q.ExecContext(ctx, InsertJob,
		j.ID, j.ClientID, j.PrinterID, j.FileKey, j.FileName, j.FileSize, j.MimeType,
		j.Copies, j.ColorMode, j.Duplex, j.Orientation, j.PaperSize, j.Scale, j.Status,
		j.WebhookURL, j.ErrorMessage, now, now)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	j.UpdatedAt = j.CreatedAt
	return nil
}

func (o *JobOperations) GetJobByID(ctx context.Context, id string) (*PrintJob, error) {
	j, err := scanJob(o.q.QueryRowContext(ctx, GetJobByID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListPendingByPrinter returns the printer's pending jobs oldest first.
func (o *JobOperations) ListPendingByPrinter(ctx context.Context, printerID string) ([]*PrintJob, error) {
	rows, err := o.q.QueryContext(ctx, ListPendingJobsByPrinter, printerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// TransitionJob moves a job from one status to another only if it is still
// in the expected status. It reports whether a row changed.
func (o *JobOperations) TransitionJob(ctx context.Context, id, from, to, errorMsg string, assignedAt, completedAt *time.Time, now time.Time) (bool, error) {
	result, err := o.q.ExecContext(ctx, TransitionJob,
		to, errorMsg, utcPtr(assignedAt), utcPtr(completedAt), utc(now), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n == 1, nil
}

func (o *JobOperations) ClearFileKey(ctx context.Context, id string, now time.Time) error {
	_, err := o.q.ExecContext(ctx, ClearJobFileKey, utc(now), id)
	if err != nil {
		return fmt.Errorf("failed to clear job file: %w", err)
	}
	return nil
}

// ListTerminalWithFiles finds finished jobs whose blob was never removed.
func (o *JobOperations) ListTerminalWithFiles(ctx context.Context, limit int) ([]*PrintJob, error) {
	rows, err := o.q.QueryContext(ctx, ListTerminalJobsWithFiles, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (o *JobOperations) CountActiveByPrinter(ctx context.Context, printerID string) (int, error) {
	var n int
	if err := o.q.QueryRowContext(ctx, CountActiveJobsByPrinter, printerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return n, nil
}

func (o *JobOperations) ListJobs(ctx context.Context, filter JobFilter) ([]*PrintJob, error) {
	conditions := []string{"client_id = ?"}
	args := []interface{}{filter.ClientID}

	if filter.PrinterID != "" {
		conditions = append(conditions, "printer_id = ?")
		args = append(args, filter.PrinterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + jobColumns + " FROM print_jobs WHERE " + strings.Join(conditions, " AND ")
	query += " ORDER BY created_at DESC, rowid DESC"

	limit := 100
	if filter.Limit > 0 && filter.Limit < 1000 {
		limit = filter.Limit
	}
	offset := 0
	if filter.Offset > 0 {
		offset = filter.Offset
	}

	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJob(row rowScanner) (*PrintJob, error) {
	j := &PrintJob{}
	err := row.Scan(
		&j.ID, &j.ClientID, &j.PrinterID, &j.FileKey, &j.FileName, &j.FileSize, &j.MimeType,
		&j.Copies, &j.ColorMode, &j.Duplex, &j.Orientation, &j.PaperSize, &j.Scale, &j.Status,
		&j.WebhookURL, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &j.AssignedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]*PrintJob, error) {
	var jobs []*PrintJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type PrinterOperations struct {
	q Querier
}

func (o *PrinterOperations) CreatePrinter(ctx context.Context, p *Printer) error {
	paperSizes, tags, err := encodeLists(p.PaperSizes, p.Tags)
	if err != nil {
		return err
	}
	_, err = o.q.ExecContext(ctx, InsertPrinter,
		p.ID, p.WorkerID, p.Name, p.DisplayName, p.Status, p.IsDefault, p.SupportsColor,
		p.SupportsDuplex, paperSizes, p.MaxCopies, p.Enabled, tags, utcPtr(p.LastSeenAt),
		utc(p.CreatedAt), utc(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create printer: %w", err)
	}
	return nil
}

func (o *PrinterOperations) GetPrinterByID(ctx context.Context, id string) (*Printer, error) {
	p, err := scanPrinter(o.q.QueryRowContext(ctx, GetPrinterByID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

func (o *PrinterOperations) GetPrinterByWorkerAndName(ctx context.Context, workerID, name string) (*Printer, error) {
	p, err := scanPrinter(o.q.QueryRowContext(ctx, GetPrinterByWorkerAndName, workerID, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get printer by name: %w", err)
	}
	return p, nil
}

func (o *PrinterOperations) ListPrintersByWorker(ctx context.Context, workerID string) ([]*Printer, error) {
	rows, err := o.q.QueryContext(ctx, ListPrintersByWorker, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

// UpdateFromSync refreshes the worker-reported fields of an existing printer.
func (o *PrinterOperations) UpdateFromSync(ctx context.Context, p *Printer) error {
	paperSizes, _, err := encodeLists(p.PaperSizes, nil)
	if err != nil {
		return err
	}
	_, err = o.q.ExecContext(ctx, UpdatePrinterFromSync,
		p.DisplayName, p.Status, p.IsDefault, p.SupportsColor, p.SupportsDuplex,
		paperSizes, p.MaxCopies, utcPtr(p.LastSeenAt), utc(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update printer: %w", err)
	}
	return nil
}

// MarkOfflineExcept sets every printer of the worker that is not in keep to
// offline.
func (o *PrinterOperations) MarkOfflineExcept(ctx context.Context, workerID string, keep []string, now time.Time) error {
	query := MarkWorkerPrintersOffline
	args := []interface{}{utc(now), workerID}
	if len(keep) > 0 {
		query += " AND id NOT IN (?" + strings.Repeat(", ?", len(keep)-1) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	if _, err := o.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark printers offline: %w", err)
	}
	return nil
}

func (o *PrinterOperations) DeletePrinter(ctx context.Context, id string) error {
	_, err := o.q.ExecContext(ctx, DeletePrinter, id)
	if err != nil {
		return fmt.Errorf("failed to delete printer: %w", err)
	}
	return nil
}

func scanPrinter(row rowScanner) (*Printer, error) {
	p := &Printer{}
	var paperSizes, tags string
	err := row.Scan(
		&p.ID, &p.WorkerID, &p.Name, &p.DisplayName, &p.Status, &p.IsDefault, &p.SupportsColor,
		&p.SupportsDuplex, &paperSizes, &p.MaxCopies, &p.Enabled, &tags, &p.LastSeenAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeList(paperSizes, &p.PaperSizes); err != nil {
		return nil, fmt.Errorf("failed to decode paper sizes: %w", err)
	}
	if err := decodeList(tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return p, nil
}

func encodeLists(a, b []string) (string, string, error) {
	if a == nil {
		a = []string{}
	}
	if b == nil {
		b = []string{}
	}
	ea, err := json.Marshal(a)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode list: %w", err)
	}
	eb, err := json.Marshal(b)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(ea), string(eb), nil
}

func decodeList(s string, dst *[]string) error {
	if s == "" {
		*dst = []string{}
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

type WorkerOperations struct {
	q Querier
}

func (o *WorkerOperations) CreateWorker(ctx context.Context, w *Worker) error {
	_, err := o.q.ExecContext(ctx, InsertWorker,
		w.ID, w.Name, w.CredentialHash, w.Status, utcPtr(w.LastHeartbeatAt), utc(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	return nil
}

func (o *WorkerOperations) GetWorkerByID(ctx context.Context, id string) (*Worker, error) {
	w := &Worker{}
	err := o.q.QueryRowContext(ctx, GetWorkerByID, id).Scan(
		&w.ID, &w.Name, &w.CredentialHash, &w.Status, &w.LastHeartbeatAt, &w.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	return w, nil
}

// RecordHeartbeat marks the worker online. Missing workers yield
// sql.ErrNoRows.
func (o *WorkerOperations) RecordHeartbeat(ctx context.Context, id string, at time.Time) error {
	result, err := o.q.ExecContext(ctx, RecordHeartbeat, utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (o *WorkerOperations) ListStaleWorkers(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := o.q.QueryContext(ctx, ListStaleWorkers, utc(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale workers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan worker id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (o *WorkerOperations) MarkOffline(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	result, err := o.q.ExecContext(ctx, MarkWorkerOffline, id, utc(cutoff))
	if err != nil {
		return false, fmt.Errorf("failed to mark worker offline: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n == 1, nil
}

type WebhookOperations struct {
	q Querier
}

func (o *WebhookOperations) CreateWebhook(ctx context.Context, w *Webhook) error {
	events, _, err := encodeLists(w.Events, nil)
	if err != nil {
		return err
	}
	_, err = o.q.ExecContext(ctx, InsertWebhook,
		w.ID, w.ClientID, w.URL, events, w.Secret, w.Active, utc(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// ListActiveForEvent returns the client's active subscriptions that include
// event.
func (o *WebhookOperations) ListActiveForEvent(ctx context.Context, clientID, event string) ([]*Webhook, error) {
	rows, err := o.q.QueryContext(ctx, ListActiveWebhooksByClient, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []*Webhook
	for rows.Next() {
		w := &Webhook{}
		var events string
		if err := rows.Scan(&w.ID, &w.ClientID, &w.URL, &events, &w.Secret, &w.Active,
			&w.LastTriggeredAt, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		if err := decodeList(events, &w.Events); err != nil {
			return nil, fmt.Errorf("failed to decode webhook events: %w", err)
		}
		for _, e := range w.Events {
			if e == event {
				hooks = append(hooks, w)
				break
			}
		}
	}
	return hooks, rows.Err()
}

func (o *WebhookOperations) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	_, err := o.q.ExecContext(ctx, UpdateWebhookTriggered, utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}
