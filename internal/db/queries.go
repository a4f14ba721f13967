package db

const jobColumns = `id, client_id, printer_id, file_key, file_name, file_size, mime_type,
	copies, color_mode, duplex, orientation, paper_size, scale, status, webhook_url,
	error_message, created_at, updated_at, assigned_at, completed_at`

const (
	InsertJob = `
		INSERT INTO print_jobs (id, client_id, printer_id, file_key, file_name, file_size, mime_type,
			copies, color_mode, duplex, orientation, paper_size, scale, status, webhook_url,
			error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetJobByID = `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = ?`

	ListPendingJobsByPrinter = `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE printer_id = ? AND status = 'pending'
		ORDER BY created_at ASC, rowid ASC
	`

	// TransitionJob is a compare-and-swap on status. The COALESCE keeps
	// timestamps the caller does not set.
	TransitionJob = `
		UPDATE print_jobs SET
			status = ?,
			error_message = ?,
			assigned_at = COALESCE(?, assigned_at),
			completed_at = COALESCE(?, completed_at),
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	ClearJobFileKey = `UPDATE print_jobs SET file_key = '', updated_at = ? WHERE id = ?`

	ListTerminalJobsWithFiles = `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE file_key != '' AND status IN ('completed', 'failed', 'cancelled')
		ORDER BY completed_at ASC
		LIMIT ?
	`

	CountActiveJobsByPrinter = `
		SELECT COUNT(*) FROM print_jobs
		WHERE printer_id = ? AND status IN ('pending', 'assigned', 'printing')
	`
)

const printerColumns = `id, worker_id, name, display_name, status, is_default, supports_color,
	supports_duplex, paper_sizes, max_copies, enabled, tags, last_seen_at, created_at, updated_at`

const (
	InsertPrinter = `
		INSERT INTO printers (id, worker_id, name, display_name, status, is_default, supports_color,
			supports_duplex, paper_sizes, max_copies, enabled, tags, last_seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetPrinterByID = `SELECT ` + printerColumns + ` FROM printers WHERE id = ?`

	GetPrinterByWorkerAndName = `SELECT ` + printerColumns + ` FROM printers WHERE worker_id = ? AND name = ?`

	ListPrintersByWorker = `SELECT ` + printerColumns + ` FROM printers WHERE worker_id = ? ORDER BY name ASC`

	// Enabled and tags are operator-owned; sync never writes them.
	UpdatePrinterFromSync = `
		UPDATE printers SET
			display_name = ?, status = ?, is_default = ?, supports_color = ?,
			supports_duplex = ?, paper_sizes = ?, max_copies = ?, last_seen_at = ?, updated_at = ?
		WHERE id = ?
	`

	MarkWorkerPrintersOffline = `
		UPDATE printers SET status = 'offline', updated_at = ?
		WHERE worker_id = ? AND status != 'offline'
	`

	DeletePrinter = `DELETE FROM printers WHERE id = ?`
)

const workerColumns = `id, name, credential_hash, status, last_heartbeat_at, created_at`

const (
	InsertWorker = `
		INSERT INTO workers (id, name, credential_hash, status, last_heartbeat_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	GetWorkerByID = `SELECT ` + workerColumns + ` FROM workers WHERE id = ?`

	RecordHeartbeat = `UPDATE workers SET status = 'online', last_heartbeat_at = ? WHERE id = ?`

	ListStaleWorkers = `
		SELECT id FROM workers
		WHERE status = 'online' AND (last_heartbeat_at IS NULL OR last_heartbeat_at < ?)
	`

	// The cutoff is re-checked so a heartbeat landing after the select wins.
	MarkWorkerOffline = `
		UPDATE workers SET status = 'offline'
		WHERE id = ? AND status = 'online' AND (last_heartbeat_at IS NULL OR last_heartbeat_at < ?)
	`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (id, client_id, url, events, secret, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	ListActiveWebhooksByClient = `
		SELECT id, client_id, url, events, secret, active, last_triggered_at, created_at
		FROM webhooks WHERE client_id = ? AND active = 1
		ORDER BY created_at ASC
	`

	UpdateWebhookTriggered = `UPDATE webhooks SET last_triggered_at = ? WHERE id = ?`
)
