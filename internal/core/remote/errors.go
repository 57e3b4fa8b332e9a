package remote

import "fmt"

// Op names a remote operation.
type Op string

const (
	OpFetchAll     Op = "fetch all"
	OpCheckURLs    Op = "check urls"
	OpFetchHistory Op = "fetch history"
)

// Default banner messages, used when the service gives no detail.
const (
	DefaultFetchAllMessage = "Error fetching data from database."
	DefaultCheckMessage    = "Error checking URLs. Please try again."
	DefaultHistoryMessage  = "Error fetching history. Please try again."
)

// DefaultMessage returns the fixed fallback message for op.
func DefaultMessage(op Op) string {
	switch op {
	case OpFetchAll:
		return DefaultFetchAllMessage
	case OpCheckURLs:
		return DefaultCheckMessage
	case OpFetchHistory:
		return DefaultHistoryMessage
	default:
		return "Request failed. Please try again."
	}
}

// ServiceError is returned when an exchange with the monitoring service fails,
// either in transport or with a non-2xx status.
type ServiceError struct {
	Op Op
	// StatusCode is 0 for transport failures.
	StatusCode int
	// Detail is the server-supplied "detail" field, if any.
	Detail string
	Err    error
}

// Message is the text surfaced to the user: the server detail when present,
// otherwise the per-operation default.
func (e *ServiceError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return DefaultMessage(e.Op)
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return string(e.Op) + ": failed"
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }
