package lending

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenesisAllocation seeds one lender contribution at bootstrap.
type GenesisAllocation struct {
	Lender Identity `yaml:"lender"`
	Amount Amount   `yaml:"amount"`
}

// Genesis describes the initial ledger contents applied on first boot.
type Genesis struct {
	Allocations []GenesisAllocation `yaml:"allocations"`
}

// LoadGenesis reads and validates a genesis allocation file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	genesis := new(Genesis)
	if err := yaml.Unmarshal(raw, genesis); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	for i, alloc := range genesis.Allocations {
		if !alloc.Lender.Valid() {
			return nil, fmt.Errorf("genesis allocation %d: lender required", i)
		}
		if alloc.Amount == 0 {
			return nil, fmt.Errorf("genesis allocation %d: amount must be positive", i)
		}
	}
	return genesis, nil
}

// Apply initializes the pool and credits the genesis contributions. It is a
// no-op when the ledger is already initialized, so restarting a node never
// double-applies allocations.
func (g *Genesis) Apply(engine *Engine) error {
	snapshot, err := engine.PoolSnapshot()
	if err != nil {
		return err
	}
	if snapshot.Initialized {
		return nil
	}
	if _, err := engine.InitializePool("genesis"); err != nil {
		return err
	}
	for _, alloc := range g.Allocations {
		if _, err := engine.Contribute(alloc.Lender, alloc.Lender, alloc.Amount); err != nil {
			return fmt.Errorf("apply allocation for %s: %w", alloc.Lender, err)
		}
	}
	return nil
}
