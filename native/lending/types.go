package lending

import (
	"fmt"
	"strings"
)

// Identity is an opaque caller, lender, or borrower identifier. The ledger
// never interprets its contents beyond non-emptiness.
type Identity string

// Valid reports whether the identity carries a usable value.
func (id Identity) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

// LoanStatus tracks a loan through its lifecycle. Repaid and Defaulted are
// terminal: a loan in either state is never mutated again.
type LoanStatus uint8

const (
	StatusActive LoanStatus = iota
	StatusRepaid
	StatusDefaulted
)

func (s LoanStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRepaid:
		return "repaid"
	case StatusDefaulted:
		return "defaulted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terminal reports whether the status permits no further mutation.
func (s LoanStatus) Terminal() bool {
	return s == StatusRepaid || s == StatusDefaulted
}

// Pool captures the global accounting state for the lending pool. TotalFunds
// counts all value attributed to the pool; AvailableFunds is the portion not
// currently lent out.
type Pool struct {
	TotalFunds     Amount `json:"totalFunds"`
	AvailableFunds Amount `json:"availableFunds"`
	Initialized    bool   `json:"initialized"`
}

// LenderAccount maintains the position of an individual lender. Contributed
// is cumulative and never decreases; Balance is the current withdrawable
// claim. Accounts persist at zero balance for audit.
type LenderAccount struct {
	ID          Identity `json:"id"`
	Contributed Amount   `json:"contributed"`
	Balance     Amount   `json:"balance"`
}

// Loan records a single borrower obligation. AmountRepaid accumulates
// partial repayments and never exceeds principal plus accrued interest.
type Loan struct {
	ID           string     `json:"id"`
	Borrower     Identity   `json:"borrower"`
	Principal    Amount     `json:"principal"`
	RateBps      uint64     `json:"rateBps"`
	CreatedAt    int64      `json:"createdAt"`
	DueDate      int64      `json:"dueDate"`
	Status       LoanStatus `json:"status"`
	AmountRepaid Amount     `json:"amountRepaid"`
}

// OutstandingPrincipal is the portion of the principal not yet returned to
// the pool. Repayments retire principal before interest.
func (l *Loan) OutstandingPrincipal() Amount {
	if l == nil || l.Status != StatusActive {
		return 0
	}
	return l.Principal - minAmount(l.AmountRepaid, l.Principal)
}

// Classify resolves the externally visible status at the supplied time.
// A stored-Active loan whose due date has passed reads as Defaulted without
// mutating the record; only an explicit settlement touches stored state.
func (l *Loan) Classify(now int64) LoanStatus {
	if l.Status == StatusActive && now > l.DueDate {
		return StatusDefaulted
	}
	return l.Status
}

// LoanID derives the unique loan identifier from the borrower and their
// per-borrower sequence number.
func LoanID(borrower Identity, seq uint64) string {
	return fmt.Sprintf("%s-%d", borrower, seq)
}
