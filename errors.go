package gombox

import (
	"errors"

	"github.com/hedisam/gombox/internal/mailbox"
)

// Re-exported so callers need only this package for error checks.
var (
	Is = errors.Is
	As = errors.As
)

// The closed set of recoverable mailbox errors. Returned errors wrap one of
// these; test with errors.Is.
var (
	ErrInvalidArgument   = mailbox.ErrInvalidArgument
	ErrResourceExhausted = mailbox.ErrResourceExhausted
	ErrWouldBlock        = mailbox.ErrWouldBlock
	ErrCancelled         = mailbox.ErrCancelled
)
