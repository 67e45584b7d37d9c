package escrow

import "errors"

// Sentinel errors surfaced by engine operations. Callers classify failures
// with errors.Is; detail is attached via fmt.Errorf("%w: ...") wrapping.
var (
	// ErrNotAuthorized reports a caller lacking the required role for the
	// targeted escrow.
	ErrNotAuthorized = errors.New("escrow: caller not authorized")
	// ErrInvalidState reports an operation that is not valid in the escrow's
	// current lifecycle state.
	ErrInvalidState = errors.New("escrow: operation not valid in current state")
	// ErrValidation reports malformed input: zero addresses, zero amounts,
	// out-of-range durations, unapproved arbiters.
	ErrValidation = errors.New("escrow: invalid input")
	// ErrNotFound reports a missing escrow or registry entry.
	ErrNotFound = errors.New("escrow: not found")
	// ErrAlreadyExists reports a duplicate registry insertion.
	ErrAlreadyExists = errors.New("escrow: already exists")
	// ErrDeadlineNotReached reports a time-gated remedy invoked too early.
	ErrDeadlineNotReached = errors.New("escrow: deadline not reached")
	// ErrDeadlinePassed reports an operation invoked after its window closed.
	ErrDeadlinePassed = errors.New("escrow: deadline passed")
	// ErrTransferFailed reports a rejected ledger movement; the whole
	// transition aborts when it surfaces.
	ErrTransferFailed = errors.New("escrow: transfer failed")
	// ErrReentrantCall reports nested entry into a mutating operation while
	// one is already in progress.
	ErrReentrantCall = errors.New("escrow: reentrant call")
)
