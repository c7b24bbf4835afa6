package mailbox

import "errors"

var (
	// ErrInvalidArgument reports a bad mailbox id, an oversized payload, an
	// undersized receive buffer or malformed create parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrResourceExhausted reports that the shared slot pool is full.
	ErrResourceExhausted = errors.New("message slot pool exhausted")
	// ErrWouldBlock reports that a conditional operation could not complete
	// without blocking.
	ErrWouldBlock = errors.New("operation would block")
	// ErrCancelled reports that the mailbox was released while the caller
	// was waiting on it.
	ErrCancelled = errors.New("mailbox released while waiting")
)
