package lending

import "math/big"

// LenderEarnings estimates the lender's pro-rata share of interest accrued
// to date across loans that are still on the books, weighted by the lender's
// cumulative contribution against the pool total. It is a pure read: nothing
// is credited until repayments actually settle. Unknown lenders and empty
// pools earn zero. Truncating arithmetic biases the estimate downward.
func (e *Engine) LenderEarnings(lender Identity, now int64) (Amount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return 0, errNilState
	}
	account, err := e.state.Lender(lender)
	if err != nil {
		return 0, err
	}
	if account == nil || account.Contributed == 0 {
		return 0, nil
	}
	pool, err := e.state.Pool()
	if err != nil {
		return 0, err
	}
	if pool == nil || pool.TotalFunds == 0 {
		return 0, nil
	}
	var totalInterest Amount
	err = e.forEachLoan(func(loan *Loan) error {
		if loan.Status != StatusActive {
			return nil
		}
		interest, err := AccruedInterest(loan.Principal, loan.RateBps, now-loan.CreatedAt)
		if err != nil {
			return err
		}
		totalInterest, err = AddAmount(totalInterest, interest)
		return err
	})
	if err != nil {
		return 0, err
	}
	if totalInterest == 0 {
		return 0, nil
	}
	share := new(big.Int).SetUint64(uint64(totalInterest))
	share.Mul(share, new(big.Int).SetUint64(uint64(account.Contributed)))
	share.Quo(share, new(big.Int).SetUint64(uint64(pool.TotalFunds)))
	if !share.IsUint64() {
		return 0, ErrOverflow
	}
	return Amount(share.Uint64()), nil
}
