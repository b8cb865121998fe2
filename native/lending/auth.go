package lending

// Operation names the ledger entry points for authorization decisions.
type Operation string

const (
	OpInitializePool Operation = "initialize_pool"
	OpContribute     Operation = "contribute_to_pool"
	OpRequestLoan    Operation = "request_loan"
	OpRepayLoan      Operation = "repay_loan"
)

// Authorize binds a mutating operation to the caller identity. Callers only
// ever act as themselves: contributions require caller == lender, loan
// requests and repayments require caller == borrower. There is no
// administrative override role in this model.
func Authorize(caller Identity, op Operation, target Identity) error {
	if !caller.Valid() {
		return ErrUnauthorized
	}
	switch op {
	case OpInitializePool:
		return nil
	case OpContribute, OpRequestLoan, OpRepayLoan:
		if caller != target {
			return ErrUnauthorized
		}
		return nil
	default:
		return ErrUnauthorized
	}
}
