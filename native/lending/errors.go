package lending

import "errors"

// Input errors: rejected before any mutation, recoverable by retrying with
// corrected input.
var (
	ErrInvalidTerms        = errors.New("lending: invalid loan terms")
	ErrOverpaymentRejected = errors.New("lending: repayment exceeds amount owed")
)

// State errors: legitimate business-state conflicts surfaced verbatim.
var (
	ErrAlreadyInitialized  = errors.New("lending: pool already initialized")
	ErrNotInitialized      = errors.New("lending: pool not initialized")
	ErrDuplicateActiveLoan = errors.New("lending: borrower already has an active loan")
	ErrNoActiveLoan        = errors.New("lending: no active loan for borrower")
	ErrLoanClosed          = errors.New("lending: loan is closed")
	ErrNotFound            = errors.New("lending: not found")
	ErrUnauthorized        = errors.New("lending: caller not authorized")
)

// Resource errors: ledger capacity limits, never silently truncated.
var (
	ErrInsufficientFunds     = errors.New("lending: insufficient funds")
	ErrInsufficientLiquidity = errors.New("lending: insufficient pool liquidity")
	ErrOverflow              = errors.New("lending: amount overflow")
)

// ErrInternalInconsistency reports a violated ledger invariant. It signals a
// logic fault, not bad input: the engine refuses further writes once raised.
var ErrInternalInconsistency = errors.New("lending: internal ledger inconsistency")
