package lending

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"lendpool/storage"
)

// State is the persistence contract the engine drives. Reads return copies;
// writes stage until Commit, which must apply atomically. Discard drops all
// staged writes, leaving the backing store untouched.
type State interface {
	Pool() (*Pool, error)
	PutPool(pool *Pool) error
	Lender(id Identity) (*LenderAccount, error)
	PutLender(account *LenderAccount) error
	Loan(id string) (*Loan, error)
	PutLoan(loan *Loan) error
	ActiveLoan(borrower Identity) (*Loan, error)
	SetActiveLoan(borrower Identity, loanID string) error
	ClearActiveLoan(borrower Identity) error
	LoanSequence(borrower Identity) (uint64, error)
	PutLoanSequence(borrower Identity, seq uint64) error
	// ForEachLoan visits every loan record, staged writes included.
	ForEachLoan(fn func(loan *Loan) error) error
	Commit() error
	Discard()
}

const (
	keyPool        = "pool"
	prefixLender   = "lender/"
	prefixLoan     = "loan/"
	prefixActive   = "active/"
	prefixSequence = "seq/"
)

// Store implements State over a storage.Database with JSON-encoded records.
// Staged writes overlay the database for reads within the same operation and
// flush in a single atomic batch on Commit.
type Store struct {
	db     storage.Database
	staged map[string][]byte
}

// NewStore wraps the database in a ledger store with an empty staging area.
func NewStore(db storage.Database) *Store {
	return &Store{db: db, staged: make(map[string][]byte)}
}

func (s *Store) get(key string) ([]byte, bool, error) {
	if value, ok := s.staged[key]; ok {
		if value == nil {
			return nil, false, nil
		}
		return value, true, nil
	}
	value, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) stageJSON(key string, record interface{}) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.staged[key] = encoded
	return nil
}

func (s *Store) Pool() (*Pool, error) {
	raw, ok, err := s.get(keyPool)
	if err != nil || !ok {
		return nil, err
	}
	pool := new(Pool)
	if err := json.Unmarshal(raw, pool); err != nil {
		return nil, fmt.Errorf("decode pool: %w", err)
	}
	return pool, nil
}

func (s *Store) PutPool(pool *Pool) error {
	return s.stageJSON(keyPool, pool)
}

func (s *Store) Lender(id Identity) (*LenderAccount, error) {
	raw, ok, err := s.get(prefixLender + string(id))
	if err != nil || !ok {
		return nil, err
	}
	account := new(LenderAccount)
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("decode lender %s: %w", id, err)
	}
	return account, nil
}

func (s *Store) PutLender(account *LenderAccount) error {
	return s.stageJSON(prefixLender+string(account.ID), account)
}

func (s *Store) Loan(id string) (*Loan, error) {
	raw, ok, err := s.get(prefixLoan + id)
	if err != nil || !ok {
		return nil, err
	}
	loan := new(Loan)
	if err := json.Unmarshal(raw, loan); err != nil {
		return nil, fmt.Errorf("decode loan %s: %w", id, err)
	}
	return loan, nil
}

func (s *Store) PutLoan(loan *Loan) error {
	return s.stageJSON(prefixLoan+loan.ID, loan)
}

func (s *Store) ActiveLoan(borrower Identity) (*Loan, error) {
	raw, ok, err := s.get(prefixActive + string(borrower))
	if err != nil || !ok {
		return nil, err
	}
	return s.Loan(string(raw))
}

func (s *Store) SetActiveLoan(borrower Identity, loanID string) error {
	s.staged[prefixActive+string(borrower)] = []byte(loanID)
	return nil
}

func (s *Store) ClearActiveLoan(borrower Identity) error {
	s.staged[prefixActive+string(borrower)] = nil
	return nil
}

func (s *Store) LoanSequence(borrower Identity) (uint64, error) {
	raw, ok, err := s.get(prefixSequence + string(borrower))
	if err != nil || !ok {
		return 0, err
	}
	seq, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode sequence for %s: %w", borrower, err)
	}
	return seq, nil
}

func (s *Store) PutLoanSequence(borrower Identity, seq uint64) error {
	s.staged[prefixSequence+string(borrower)] = []byte(strconv.FormatUint(seq, 10))
	return nil
}

func (s *Store) ForEachLoan(fn func(loan *Loan) error) error {
	loans := make(map[string]*Loan)
	err := s.db.Iterate([]byte(prefixLoan), func(key, value []byte) error {
		loan := new(Loan)
		if err := json.Unmarshal(value, loan); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		loans[string(key)] = loan
		return nil
	})
	if err != nil {
		return err
	}
	for key, value := range s.staged {
		if !strings.HasPrefix(key, prefixLoan) {
			continue
		}
		if value == nil {
			delete(loans, key)
			continue
		}
		loan := new(Loan)
		if err := json.Unmarshal(value, loan); err != nil {
			return fmt.Errorf("decode staged %s: %w", key, err)
		}
		loans[key] = loan
	}
	keys := make([]string, 0, len(loans))
	for key := range loans {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := fn(loans[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Commit() error {
	if len(s.staged) == 0 {
		return nil
	}
	if err := s.db.WriteBatch(s.staged); err != nil {
		return err
	}
	s.staged = make(map[string][]byte)
	return nil
}

func (s *Store) Discard() {
	s.staged = make(map[string][]byte)
}
