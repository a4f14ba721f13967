package protocol

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusAssigned  JobStatus = "assigned"
	StatusPrinting  JobStatus = "printing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string {
	return string(s)
}

var AllStatuses = []JobStatus{
	StatusPending,
	StatusAssigned,
	StatusPrinting,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

func (s JobStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Event is the webhook event name for entering s.
func (s JobStatus) Event() string {
	return "job." + string(s)
}

const (
	PrinterOnline  = "online"
	PrinterOffline = "offline"
	PrinterBusy    = "busy"
	PrinterError   = "error"
)

const (
	WorkerOnline  = "online"
	WorkerOffline = "offline"
)
