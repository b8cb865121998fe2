package modules

import (
	"errors"
	"net/http"
	"time"

	"lendpool/native/lending"
	"lendpool/observability"
)

// LendingModule adapts the ledger engine to the JSON-RPC surface. It owns
// the wall clock: the engine itself never reads time, so every call supplies
// the current Unix timestamp here at the boundary.
type LendingModule struct {
	engine *lending.Engine
	now    func() int64
}

// NewLendingModule wraps the engine with the real clock.
func NewLendingModule(engine *lending.Engine) *LendingModule {
	return &LendingModule{engine: engine, now: func() int64 { return time.Now().Unix() }}
}

// SetClock overrides the time source. Tests use it to pin timestamps.
func (m *LendingModule) SetClock(now func() int64) {
	if m == nil || now == nil {
		return
	}
	m.now = now
}

func (m *LendingModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "lending module not available"}
}

// PoolSnapshotResult mirrors the initialize_pool and pool read outputs.
type PoolSnapshotResult struct {
	TotalFunds     lending.Amount `json:"totalFunds"`
	AvailableFunds lending.Amount `json:"availableFunds"`
	Initialized    bool           `json:"initialized"`
}

// BalanceResult carries a lender balance.
type BalanceResult struct {
	Lender  lending.Identity `json:"lender"`
	Balance lending.Amount   `json:"balance"`
}

// LoanIDResult carries a freshly created loan identifier.
type LoanIDResult struct {
	LoanID string `json:"loanId"`
}

// RepayResult reports whether the repayment settled the loan and its status.
type RepayResult struct {
	Settled bool   `json:"settled"`
	Status  string `json:"status"`
}

// LoanStatusResult reports the borrower's most recent loan, if any.
type LoanStatusResult struct {
	LoanID       string         `json:"loanId,omitempty"`
	Status       string         `json:"status,omitempty"`
	Principal    lending.Amount `json:"principal,omitempty"`
	AmountRepaid lending.Amount `json:"amountRepaid,omitempty"`
	DueDate      int64          `json:"dueDate,omitempty"`
}

// EarningsResult carries a lender's estimated pro-rata interest share.
type EarningsResult struct {
	Lender   lending.Identity `json:"lender"`
	Earnings lending.Amount   `json:"earnings"`
}

func (m *LendingModule) InitializePool(caller lending.Identity) (*PoolSnapshotResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	start := time.Now()
	pool, err := m.engine.InitializePool(caller)
	if err != nil {
		m.record("initializePool", start, err)
		return nil, wrapError(err)
	}
	m.record("initializePool", start, nil)
	return poolResult(pool), nil
}

func (m *LendingModule) Contribute(caller, lender lending.Identity, amount lending.Amount) (*BalanceResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	start := time.Now()
	balance, err := m.engine.Contribute(caller, lender, amount)
	m.record("contribute", start, err)
	if err != nil {
		return nil, wrapError(err)
	}
	m.recordPoolGauges()
	return &BalanceResult{Lender: lender, Balance: balance}, nil
}

func (m *LendingModule) RequestLoan(caller, borrower lending.Identity, principal lending.Amount, rateBps uint64, dueDate int64) (*LoanIDResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	start := time.Now()
	loanID, err := m.engine.RequestLoan(caller, borrower, principal, rateBps, dueDate, m.now())
	m.record("requestLoan", start, err)
	if err != nil {
		return nil, wrapError(err)
	}
	m.recordPoolGauges()
	return &LoanIDResult{LoanID: loanID}, nil
}

func (m *LendingModule) RepayLoan(caller, borrower lending.Identity, amount lending.Amount) (*RepayResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	start := time.Now()
	settled, status, err := m.engine.RepayLoan(caller, borrower, amount, m.now())
	m.record("repayLoan", start, err)
	if err != nil {
		return nil, wrapError(err)
	}
	m.recordPoolGauges()
	return &RepayResult{Settled: settled, Status: status.String()}, nil
}

// LenderBalance treats an unknown lender as zero by convention; only
// internal failures surface as errors.
func (m *LendingModule) LenderBalance(lender lending.Identity) (*BalanceResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	balance, err := m.engine.LenderBalance(lender)
	if err != nil {
		if errors.Is(err, lending.ErrNotFound) {
			return &BalanceResult{Lender: lender}, nil
		}
		return nil, wrapError(err)
	}
	return &BalanceResult{Lender: lender, Balance: balance}, nil
}

func (m *LendingModule) LoanStatus(borrower lending.Identity) (*LoanStatusResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	view, err := m.engine.LoanStatus(borrower, m.now())
	if err != nil {
		return nil, wrapError(err)
	}
	if view == nil {
		return &LoanStatusResult{}, nil
	}
	return &LoanStatusResult{
		LoanID:       view.ID,
		Status:       view.Status.String(),
		Principal:    view.Principal,
		AmountRepaid: view.AmountRepaid,
		DueDate:      view.DueDate,
	}, nil
}

func (m *LendingModule) PoolSnapshot() (*PoolSnapshotResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	pool, err := m.engine.PoolSnapshot()
	if err != nil {
		return nil, wrapError(err)
	}
	return poolResult(pool), nil
}

func (m *LendingModule) LenderEarnings(lender lending.Identity) (*EarningsResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	earnings, err := m.engine.LenderEarnings(lender, m.now())
	if err != nil {
		return nil, wrapError(err)
	}
	return &EarningsResult{Lender: lender, Earnings: earnings}, nil
}

func poolResult(pool lending.Pool) *PoolSnapshotResult {
	return &PoolSnapshotResult{
		TotalFunds:     pool.TotalFunds,
		AvailableFunds: pool.AvailableFunds,
		Initialized:    pool.Initialized,
	}
}

func (m *LendingModule) record(method string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.LedgerMetrics().Observe("lending", method, outcome, time.Since(start))
}

func (m *LendingModule) recordPoolGauges() {
	pool, err := m.engine.PoolSnapshot()
	if err != nil {
		return
	}
	observability.LedgerMetrics().SetPoolFunds(uint64(pool.TotalFunds), uint64(pool.AvailableFunds))
}

// wrapError translates engine sentinel errors into transport-facing module
// errors. Internal inconsistency falls through to 500: the ledger itself is
// suspect, not the request.
func wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	code := codeServerError
	switch {
	case errors.Is(err, lending.ErrInvalidTerms), errors.Is(err, lending.ErrOverpaymentRejected):
		status = http.StatusBadRequest
		code = codeInvalidParams
	case errors.Is(err, lending.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeUnauthorized
	case errors.Is(err, lending.ErrAlreadyInitialized),
		errors.Is(err, lending.ErrNotInitialized),
		errors.Is(err, lending.ErrDuplicateActiveLoan),
		errors.Is(err, lending.ErrNoActiveLoan),
		errors.Is(err, lending.ErrLoanClosed):
		status = http.StatusConflict
		code = codeStateConflict
	case errors.Is(err, lending.ErrInsufficientFunds),
		errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrOverflow):
		status = http.StatusUnprocessableEntity
		code = codeResourceLimit
	case errors.Is(err, lending.ErrNotFound):
		status = http.StatusNotFound
		code = codeNotFound
	}
	return &ModuleError{HTTPStatus: status, Code: code, Message: err.Error()}
}
