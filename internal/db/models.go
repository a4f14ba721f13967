package db

import (
	"time"
)

type PrintJob struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	PrinterID    string     `json:"printer_id"`
	FileKey      string     `json:"-"`
	FileName     string     `json:"file_name"`
	FileSize     int64      `json:"file_size"`
	MimeType     string     `json:"mime_type"`
	Copies       int        `json:"copies"`
	ColorMode    string     `json:"color_mode"`
	Duplex       string     `json:"duplex"`
	Orientation  string     `json:"orientation"`
	PaperSize    string     `json:"paper_size"`
	Scale        string     `json:"scale"`
	Status       string     `json:"status"`
	WebhookURL   string     `json:"webhook_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	AssignedAt   *time.Time `json:"assigned_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type Printer struct {
	ID             string     `json:"id"`
	WorkerID       string     `json:"worker_id"`
	Name           string     `json:"name"`
	DisplayName    string     `json:"display_name"`
	Status         string     `json:"status"`
	IsDefault      bool       `json:"is_default"`
	SupportsColor  bool       `json:"supports_color"`
	SupportsDuplex bool       `json:"supports_duplex"`
	PaperSizes     []string   `json:"paper_sizes"`
	MaxCopies      int        `json:"max_copies"`
	Enabled        bool       `json:"enabled"`
	Tags           []string   `json:"tags"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Worker struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	CredentialHash  string     `json:"-"`
	Status          string     `json:"status"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Webhook struct {
	ID              string     `json:"id"`
	ClientID        string     `json:"client_id"`
	URL             string     `json:"url"`
	Events          []string   `json:"events"`
	Secret          string     `json:"secret,omitempty"`
	Active          bool       `json:"active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// JobFilter narrows ListJobs. ClientID is always applied.
type JobFilter struct {
	ClientID  string
	PrinterID string
	Status    string
	Limit     int
	Offset    int
}
