package protocol

import "time"

// Job is the JSON view of a print job shared by the client and worker APIs.
type Job struct {
	ID           string       `json:"id"`
	ClientID     string       `json:"clientId"`
	PrinterID    string       `json:"printerId"`
	FileName     string       `json:"fileName"`
	FileSize     int64        `json:"fileSize"`
	MimeType     string       `json:"mimeType"`
	Options      PrintOptions `json:"options"`
	Status       JobStatus    `json:"status"`
	WebhookURL   string       `json:"webhookUrl,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	AssignedAt   *time.Time   `json:"assignedAt,omitempty"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
}

type Printer struct {
	ID             string     `json:"id"`
	WorkerID       string     `json:"workerId"`
	Name           string     `json:"name"`
	DisplayName    string     `json:"displayName"`
	Status         string     `json:"status"`
	IsDefault      bool       `json:"isDefault"`
	SupportsColor  bool       `json:"supportsColor"`
	SupportsDuplex bool       `json:"supportsDuplex"`
	PaperSizes     []string   `json:"paperSizes"`
	MaxCopies      int        `json:"maxCopies"`
	Enabled        bool       `json:"enabled"`
	Tags           []string   `json:"tags"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
}

// SyncPrinter is one locally discovered printer as reported by a worker.
type SyncPrinter struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"displayName"`
	Status         string   `json:"status"`
	IsDefault      bool     `json:"isDefault"`
	SupportsColor  bool     `json:"supportsColor"`
	SupportsDuplex bool     `json:"supportsDuplex"`
	PaperSizes     []string `json:"paperSizes"`
	MaxCopies      int      `json:"maxCopies"`
}

type SyncRequest struct {
	Printers []SyncPrinter `json:"printers"`
}

type SyncResponse struct {
	Printers []Printer `json:"printers"`
}

type PendingJobsResponse struct {
	Jobs []Job `json:"jobs"`
}

type StatusUpdate struct {
	Status JobStatus `json:"status" binding:"required"`
	Error  string    `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
