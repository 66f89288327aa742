package domain

import "fmt"

// ValidationError reports an item whose parameters or attachment cannot
// produce a request. No call is issued for that item.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnsupportedOperationError reports an operation outside the known set.
type UnsupportedOperationError struct {
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %q", e.Operation)
}

// TransportError reports a failed provider call: a network failure (Err set)
// or a non-success response (StatusCode and Description set).
type TransportError struct {
	Endpoint    string
	StatusCode  int
	Code        int
	Description string
	RetryAfter  int
	Err         error
}

func (e *TransportError) Error() string {
	switch {
	case e.Description != "":
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Endpoint, e.Description, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ItemError locates the item that aborted a batch.
type ItemError struct {
	Index     int
	Operation OperationKind
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.Operation, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
