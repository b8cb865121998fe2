package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"lendpool/native/lending"
)

type initializePoolParams struct {
	Caller string `json:"caller"`
}

type contributeParams struct {
	Caller string         `json:"caller"`
	Lender string         `json:"lender"`
	Amount lending.Amount `json:"amount"`
}

type requestLoanParams struct {
	Caller    string         `json:"caller"`
	Borrower  string         `json:"borrower"`
	Principal lending.Amount `json:"principal"`
	RateBps   uint64         `json:"rateBps"`
	DueDate   int64          `json:"dueDate"`
}

type repayLoanParams struct {
	Caller   string         `json:"caller"`
	Borrower string         `json:"borrower"`
	Amount   lending.Amount `json:"amount"`
}

type lenderParams struct {
	Lender string `json:"lender"`
}

type borrowerParams struct {
	Borrower string `json:"borrower"`
}

func (s *Server) handleInitializePool(w http.ResponseWriter, req *RPCRequest) {
	var params initializePoolParams
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
			return
		}
	}
	caller, ok := requireIdentity(w, req, params.Caller, "caller")
	if !ok {
		return
	}
	result, moduleErr := s.lending.InitializePool(caller)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleContribute(w http.ResponseWriter, req *RPCRequest) {
	var params contributeParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	caller, ok := requireIdentity(w, req, params.Caller, "caller")
	if !ok {
		return
	}
	lender, ok := requireIdentity(w, req, params.Lender, "lender")
	if !ok {
		return
	}
	result, moduleErr := s.lending.Contribute(caller, lender, params.Amount)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleRequestLoan(w http.ResponseWriter, req *RPCRequest) {
	var params requestLoanParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	caller, ok := requireIdentity(w, req, params.Caller, "caller")
	if !ok {
		return
	}
	borrower, ok := requireIdentity(w, req, params.Borrower, "borrower")
	if !ok {
		return
	}
	result, moduleErr := s.lending.RequestLoan(caller, borrower, params.Principal, params.RateBps, params.DueDate)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleRepayLoan(w http.ResponseWriter, req *RPCRequest) {
	var params repayLoanParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	caller, ok := requireIdentity(w, req, params.Caller, "caller")
	if !ok {
		return
	}
	borrower, ok := requireIdentity(w, req, params.Borrower, "borrower")
	if !ok {
		return
	}
	result, moduleErr := s.lending.RepayLoan(caller, borrower, params.Amount)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetLenderBalance(w http.ResponseWriter, req *RPCRequest) {
	lender, ok := decodeLenderParam(w, req)
	if !ok {
		return
	}
	result, moduleErr := s.lending.LenderBalance(lender)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetLoanStatus(w http.ResponseWriter, req *RPCRequest) {
	var params borrowerParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	borrower, ok := requireIdentity(w, req, params.Borrower, "borrower")
	if !ok {
		return
	}
	result, moduleErr := s.lending.LoanStatus(borrower)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetPool(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	result, moduleErr := s.lending.PoolSnapshot()
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetLenderEarnings(w http.ResponseWriter, req *RPCRequest) {
	lender, ok := decodeLenderParam(w, req)
	if !ok {
		return
	}
	result, moduleErr := s.lending.LenderEarnings(lender)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

// decodeLenderParam accepts either a bare string or a {"lender": ...}
// object, matching the loose read-parameter convention.
func decodeLenderParam(w http.ResponseWriter, req *RPCRequest) (lending.Identity, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected lender parameter", nil)
		return "", false
	}
	var direct string
	if err := json.Unmarshal(req.Params[0], &direct); err == nil {
		return requireIdentity(w, req, direct, "lender")
	}
	var wrapped lenderParams
	if err := json.Unmarshal(req.Params[0], &wrapped); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lender parameter", err.Error())
		return "", false
	}
	return requireIdentity(w, req, wrapped.Lender, "lender")
}

func decodeSingleParam(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func requireIdentity(w http.ResponseWriter, req *RPCRequest, value, field string) (lending.Identity, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, field+" required", nil)
		return "", false
	}
	return lending.Identity(trimmed), true
}
