package server

import "time"

// MetricsCollector is an optional hook for observing server activity.
// All methods are called synchronously from the accept loop or a worker,
// so implementations must be cheap/non-blocking; the server checks for a
// nil collector before calling, so no method needs a nil receiver guard.
type MetricsCollector interface {
	// RecordCommand records one command dispatch.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records one RETR/STOR data transfer (LIST is not
	// recorded).
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records a connection attempt, accepted or rejected.
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records a PASS attempt.
	RecordAuthentication(success bool, user string)
}
