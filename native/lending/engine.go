package lending

import (
	"errors"
	"sync"
)

var errNilState = errors.New("lending engine: state not configured")

// Engine exposes the pool operations over the ledger state. Mutations run
// under a single-writer discipline: each operation stages its writes, the
// pool invariant is revalidated, and the whole set commits atomically or not
// at all. Reads run concurrently and observe only committed state.
//
// Time never comes from a wall clock inside the engine; every time-dependent
// operation takes the current Unix time from the caller.
type Engine struct {
	mu     sync.RWMutex
	state  State
	halted bool
}

// NewEngine constructs an engine over the supplied ledger state.
func NewEngine(state State) *Engine {
	return &Engine{state: state}
}

// LoanView is the read-model for a borrower's loan, with the status resolved
// against the supplied current time.
type LoanView struct {
	ID           string     `json:"id"`
	Borrower     Identity   `json:"borrower"`
	Principal    Amount     `json:"principal"`
	RateBps      uint64     `json:"rateBps"`
	DueDate      int64      `json:"dueDate"`
	Status       LoanStatus `json:"status"`
	AmountRepaid Amount     `json:"amountRepaid"`
}

func (e *Engine) begin() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.halted {
		return ErrInternalInconsistency
	}
	return nil
}

// finalize revalidates the pool conservation invariant against the staged
// state and commits. A violated invariant latches the engine halted: it is a
// logic fault, and no further writes are accepted until restart.
func (e *Engine) finalize() error {
	pool, err := e.state.Pool()
	if err != nil {
		return err
	}
	if pool == nil {
		pool = &Pool{}
	}
	outstanding, err := e.outstandingPrincipal()
	if err != nil {
		return err
	}
	sum, err := AddAmount(pool.AvailableFunds, outstanding)
	if err != nil || sum != pool.TotalFunds {
		e.halted = true
		return ErrInternalInconsistency
	}
	return e.state.Commit()
}

func (e *Engine) requirePool() (*Pool, error) {
	pool, err := e.state.Pool()
	if err != nil {
		return nil, err
	}
	if pool == nil || !pool.Initialized {
		return nil, ErrNotInitialized
	}
	return pool, nil
}

// InitializePool bootstraps the singleton pool. The check is set-once:
// calling it against an initialized pool fails with ErrAlreadyInitialized.
func (e *Engine) InitializePool(caller Identity) (Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot, err := e.initializePool(caller)
	if err != nil {
		e.discard()
		return Pool{}, err
	}
	return snapshot, nil
}

func (e *Engine) initializePool(caller Identity) (Pool, error) {
	if err := e.begin(); err != nil {
		return Pool{}, err
	}
	if err := Authorize(caller, OpInitializePool, caller); err != nil {
		return Pool{}, err
	}
	existing, err := e.state.Pool()
	if err != nil {
		return Pool{}, err
	}
	if existing != nil && existing.Initialized {
		return Pool{}, ErrAlreadyInitialized
	}
	pool := &Pool{Initialized: true}
	if err := e.state.PutPool(pool); err != nil {
		return Pool{}, err
	}
	if err := e.finalize(); err != nil {
		return Pool{}, err
	}
	return *pool, nil
}

// Contribute credits a lender's deposit to the pool and returns the lender's
// updated balance.
func (e *Engine) Contribute(caller, lender Identity, amount Amount) (Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	balance, err := e.contribute(caller, lender, amount)
	if err != nil {
		e.discard()
		return 0, err
	}
	return balance, nil
}

func (e *Engine) contribute(caller, lender Identity, amount Amount) (Amount, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	if err := Authorize(caller, OpContribute, lender); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidTerms
	}
	pool, err := e.requirePool()
	if err != nil {
		return 0, err
	}
	account, err := e.state.Lender(lender)
	if err != nil {
		return 0, err
	}
	if account == nil {
		account = &LenderAccount{ID: lender}
	}
	if pool.TotalFunds, err = AddAmount(pool.TotalFunds, amount); err != nil {
		return 0, err
	}
	if pool.AvailableFunds, err = AddAmount(pool.AvailableFunds, amount); err != nil {
		return 0, err
	}
	if account.Contributed, err = AddAmount(account.Contributed, amount); err != nil {
		return 0, err
	}
	if account.Balance, err = AddAmount(account.Balance, amount); err != nil {
		return 0, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return 0, err
	}
	if err := e.state.PutLender(account); err != nil {
		return 0, err
	}
	if err := e.finalize(); err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// RequestLoan draws a loan against pool liquidity and returns the new loan
// identifier. A borrower may hold at most one active loan.
func (e *Engine) RequestLoan(caller, borrower Identity, principal Amount, rateBps uint64, dueDate, now int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.requestLoan(caller, borrower, principal, rateBps, dueDate, now)
	if err != nil {
		e.discard()
		return "", err
	}
	return id, nil
}

func (e *Engine) requestLoan(caller, borrower Identity, principal Amount, rateBps uint64, dueDate, now int64) (string, error) {
	if err := e.begin(); err != nil {
		return "", err
	}
	if err := Authorize(caller, OpRequestLoan, borrower); err != nil {
		return "", err
	}
	if principal == 0 || dueDate <= now {
		return "", ErrInvalidTerms
	}
	pool, err := e.requirePool()
	if err != nil {
		return "", err
	}
	active, err := e.state.ActiveLoan(borrower)
	if err != nil {
		return "", err
	}
	if active != nil && active.Status == StatusActive {
		return "", ErrDuplicateActiveLoan
	}
	if pool.AvailableFunds < principal {
		return "", ErrInsufficientLiquidity
	}
	if pool.AvailableFunds, err = SubAmount(pool.AvailableFunds, principal); err != nil {
		return "", err
	}
	seq, err := e.state.LoanSequence(borrower)
	if err != nil {
		return "", err
	}
	seq++
	loan := &Loan{
		ID:        LoanID(borrower, seq),
		Borrower:  borrower,
		Principal: principal,
		RateBps:   rateBps,
		CreatedAt: now,
		DueDate:   dueDate,
		Status:    StatusActive,
	}
	if err := e.state.PutLoan(loan); err != nil {
		return "", err
	}
	if err := e.state.SetActiveLoan(borrower, loan.ID); err != nil {
		return "", err
	}
	if err := e.state.PutLoanSequence(borrower, seq); err != nil {
		return "", err
	}
	if err := e.state.PutPool(pool); err != nil {
		return "", err
	}
	if err := e.finalize(); err != nil {
		return "", err
	}
	return loan.ID, nil
}

// RepayLoan applies a repayment to the borrower's active loan. Payments
// retire outstanding principal before interest; the interest portion enters
// the pool as new value. Paying the exact remainder settles the loan; paying
// beyond it is rejected so settlement stays exact.
func (e *Engine) RepayLoan(caller, borrower Identity, amount Amount, now int64) (bool, LoanStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	settled, status, err := e.repayLoan(caller, borrower, amount, now)
	if err != nil {
		e.discard()
		return false, status, err
	}
	return settled, status, nil
}

func (e *Engine) repayLoan(caller, borrower Identity, amount Amount, now int64) (bool, LoanStatus, error) {
	if err := e.begin(); err != nil {
		return false, StatusActive, err
	}
	if err := Authorize(caller, OpRepayLoan, borrower); err != nil {
		return false, StatusActive, err
	}
	if amount == 0 {
		return false, StatusActive, ErrInvalidTerms
	}
	pool, err := e.requirePool()
	if err != nil {
		return false, StatusActive, err
	}
	loan, err := e.state.ActiveLoan(borrower)
	if err != nil {
		return false, StatusActive, err
	}
	if loan == nil {
		seq, err := e.state.LoanSequence(borrower)
		if err != nil {
			return false, StatusActive, err
		}
		if seq > 0 {
			return false, StatusActive, ErrLoanClosed
		}
		return false, StatusActive, ErrNoActiveLoan
	}
	if loan.Status.Terminal() {
		return false, loan.Status, ErrLoanClosed
	}
	interest, err := AccruedInterest(loan.Principal, loan.RateBps, now-loan.CreatedAt)
	if err != nil {
		return false, loan.Status, err
	}
	totalDue, err := AddAmount(loan.Principal, interest)
	if err != nil {
		return false, loan.Status, err
	}
	if totalDue < loan.AmountRepaid {
		// Earlier repayments were accepted against a later clock; the
		// supplied time is stale.
		return false, loan.Status, ErrInvalidTerms
	}
	owed := totalDue - loan.AmountRepaid
	if amount > owed {
		return false, loan.Status, ErrOverpaymentRejected
	}
	principalPart := minAmount(amount, loan.OutstandingPrincipal())
	interestPart := amount - principalPart
	if pool.AvailableFunds, err = AddAmount(pool.AvailableFunds, amount); err != nil {
		return false, loan.Status, err
	}
	if pool.TotalFunds, err = AddAmount(pool.TotalFunds, interestPart); err != nil {
		return false, loan.Status, err
	}
	if loan.AmountRepaid, err = AddAmount(loan.AmountRepaid, amount); err != nil {
		return false, loan.Status, err
	}
	settled := amount == owed
	if settled {
		loan.Status = StatusRepaid
		if err := e.state.ClearActiveLoan(borrower); err != nil {
			return false, loan.Status, err
		}
	}
	if err := e.state.PutLoan(loan); err != nil {
		return false, loan.Status, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return false, loan.Status, err
	}
	if err := e.finalize(); err != nil {
		return false, loan.Status, err
	}
	return settled, loan.Status, nil
}

// LenderBalance returns the lender's withdrawable claim. Unknown lenders
// fail with ErrNotFound; zero balances are returned as zero, never an error.
func (e *Engine) LenderBalance(lender Identity) (Amount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return 0, errNilState
	}
	account, err := e.state.Lender(lender)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, ErrNotFound
	}
	return account.Balance, nil
}

// Loan returns the loan record for the given identifier.
func (e *Engine) Loan(id string) (*Loan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.Loan(id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrNotFound
	}
	return loan, nil
}

// LoanStatus resolves the borrower's most recent loan against the supplied
// current time. A nil view means the borrower has never held a loan.
func (e *Engine) LoanStatus(borrower Identity, now int64) (*LoanView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.ActiveLoan(borrower)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		seq, err := e.state.LoanSequence(borrower)
		if err != nil {
			return nil, err
		}
		if seq == 0 {
			return nil, nil
		}
		loan, err = e.state.Loan(LoanID(borrower, seq))
		if err != nil {
			return nil, err
		}
		if loan == nil {
			return nil, nil
		}
	}
	return &LoanView{
		ID:           loan.ID,
		Borrower:     loan.Borrower,
		Principal:    loan.Principal,
		RateBps:      loan.RateBps,
		DueDate:      loan.DueDate,
		Status:       loan.Classify(now),
		AmountRepaid: loan.AmountRepaid,
	}, nil
}

// PoolSnapshot returns the committed pool totals. An uninitialized ledger
// reads as the zero pool.
func (e *Engine) PoolSnapshot() (Pool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return Pool{}, errNilState
	}
	pool, err := e.state.Pool()
	if err != nil {
		return Pool{}, err
	}
	if pool == nil {
		return Pool{}, nil
	}
	return *pool, nil
}

func (e *Engine) forEachLoan(fn func(loan *Loan) error) error {
	return e.state.ForEachLoan(fn)
}

func (e *Engine) outstandingPrincipal() (Amount, error) {
	var total Amount
	err := e.forEachLoan(func(loan *Loan) error {
		sum, err := AddAmount(total, loan.OutstandingPrincipal())
		if err != nil {
			return err
		}
		total = sum
		return nil
	})
	return total, err
}

func (e *Engine) discard() {
	if e != nil && e.state != nil {
		e.state.Discard()
	}
}
