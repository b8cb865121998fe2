package lending

import (
	"errors"
	"math"
	"testing"
)

func TestAddAmountOverflow(t *testing.T) {
	if _, err := AddAmount(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	sum, err := AddAmount(math.MaxUint64-1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != math.MaxUint64 {
		t.Fatalf("unexpected sum: %d", sum)
	}
}

func TestSubAmountInsufficient(t *testing.T) {
	if _, err := SubAmount(5, 6); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	diff, err := SubAmount(5, 5)
	if err != nil || diff != 0 {
		t.Fatalf("unexpected result: %d, %v", diff, err)
	}
}

func TestMulRateTruncates(t *testing.T) {
	got, err := MulRate(999, 100) // 1% of 999 = 9.99
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 9 {
		t.Fatalf("expected truncation to 9, got %d", got)
	}
}

func TestMulRateOverflow(t *testing.T) {
	if _, err := MulRate(math.MaxUint64, 20_000); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestAccruedInterest(t *testing.T) {
	const thirtyDays = 30 * 24 * 60 * 60
	got, err := AccruedInterest(500, 1000, thirtyDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 500 * 1000 * 2592000 / (10000 * 31536000) = 4.109..., truncated.
	if got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestAccruedInterestZeroCases(t *testing.T) {
	cases := []struct {
		name      string
		principal Amount
		rateBps   uint64
		elapsed   int64
	}{
		{"zero principal", 0, 1000, 1000},
		{"zero rate", 500, 0, 1000},
		{"negative elapsed", 500, 1000, -10},
		{"zero elapsed", 500, 1000, 0},
	}
	for _, tc := range cases {
		got, err := AccruedInterest(tc.principal, tc.rateBps, tc.elapsed)
		if err != nil || got != 0 {
			t.Fatalf("%s: expected 0, got %d, %v", tc.name, got, err)
		}
	}
}

func TestAccruedInterestFullYear(t *testing.T) {
	got, err := AccruedInterest(10_000, 1_000, secondsPerYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1_000 {
		t.Fatalf("expected 1000 over a full year at 10%%, got %d", got)
	}
}
