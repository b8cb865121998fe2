package lending

import (
	"os"
	"path/filepath"
	"testing"

	"lendpool/storage"
)

const genesisYAML = `allocations:
  - lender: lender-1
    amount: 1000
  - lender: lender-2
    amount: 500
`

func writeGenesisFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func TestGenesisApply(t *testing.T) {
	genesis, err := LoadGenesis(writeGenesisFile(t, genesisYAML))
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	engine := NewEngine(NewStore(storage.NewMemDB()))
	if err := genesis.Apply(engine); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	pool, err := engine.PoolSnapshot()
	if err != nil {
		t.Fatalf("pool snapshot: %v", err)
	}
	if pool.TotalFunds != 1500 || pool.AvailableFunds != 1500 {
		t.Fatalf("unexpected pool: %+v", pool)
	}
	balance, err := engine.LenderBalance("lender-2")
	if err != nil || balance != 500 {
		t.Fatalf("unexpected lender-2 balance: %d, %v", balance, err)
	}
}

func TestGenesisApplyIsIdempotentAcrossRestarts(t *testing.T) {
	genesis, err := LoadGenesis(writeGenesisFile(t, genesisYAML))
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	db := storage.NewMemDB()
	engine := NewEngine(NewStore(db))
	if err := genesis.Apply(engine); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// A restart constructs a fresh engine over the same database.
	restarted := NewEngine(NewStore(db))
	if err := genesis.Apply(restarted); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	pool, err := restarted.PoolSnapshot()
	if err != nil || pool.TotalFunds != 1500 {
		t.Fatalf("allocations applied twice: %+v, %v", pool, err)
	}
}

func TestLoadGenesisRejectsBadAllocations(t *testing.T) {
	if _, err := LoadGenesis(writeGenesisFile(t, "allocations:\n  - lender: \"\"\n    amount: 10\n")); err == nil {
		t.Fatal("expected error for empty lender")
	}
	if _, err := LoadGenesis(writeGenesisFile(t, "allocations:\n  - lender: l1\n    amount: 0\n")); err == nil {
		t.Fatal("expected error for zero amount")
	}
}
