package core

import "github.com/orrn/rprint/internal/protocol"

type Transition struct {
	From protocol.JobStatus
	To   protocol.JobStatus
}

// WorkerTransitions are the edges a worker may report. Cancellation is a
// client action and is handled separately.
var WorkerTransitions = []Transition{
	{From: protocol.StatusPending, To: protocol.StatusAssigned},
	{From: protocol.StatusAssigned, To: protocol.StatusPrinting},
	{From: protocol.StatusPrinting, To: protocol.StatusCompleted},
	{From: protocol.StatusPrinting, To: protocol.StatusFailed},
}

var cancellable = map[protocol.JobStatus]bool{
	protocol.StatusPending:  true,
	protocol.StatusAssigned: true,
}

func IsValidWorkerTransition(from, to protocol.JobStatus) bool {
	for _, t := range WorkerTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

func CanCancel(s protocol.JobStatus) bool {
	return cancellable[s]
}
