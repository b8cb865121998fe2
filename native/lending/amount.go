package lending

import (
	"math/big"
	"math/bits"
)

// Amount is a quantity of the pool asset in smallest currency units. All
// arithmetic is exact integer arithmetic; operations that would wrap fail
// with ErrOverflow instead.
type Amount uint64

const basisPointDenominator = 10_000

// secondsPerYear is the accrual period unit for interest rates quoted as
// annual basis points.
const secondsPerYear = 31_536_000

// AddAmount returns a+b, failing with ErrOverflow when the sum does not fit.
func AddAmount(a, b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return Amount(sum), nil
}

// SubAmount returns a-b, failing with ErrInsufficientFunds when b exceeds a.
func SubAmount(a, b Amount) (Amount, error) {
	if b > a {
		return 0, ErrInsufficientFunds
	}
	return a - b, nil
}

// MulRate applies a basis-point rate to an amount, truncating toward zero.
func MulRate(a Amount, rateBps uint64) (Amount, error) {
	hi, lo := bits.Mul64(uint64(a), rateBps)
	if hi >= basisPointDenominator {
		return 0, ErrOverflow
	}
	result, _ := bits.Div64(hi, lo, basisPointDenominator)
	return Amount(result), nil
}

// AccruedInterest computes the interest owed on a principal after
// elapsedSeconds at an annual rate in basis points:
//
//	principal * rateBps * elapsedSeconds / (10_000 * secondsPerYear)
//
// The division truncates, never rounding up, biasing in favour of the pool.
// Negative elapsed time accrues nothing.
func AccruedInterest(principal Amount, rateBps uint64, elapsedSeconds int64) (Amount, error) {
	if principal == 0 || rateBps == 0 || elapsedSeconds <= 0 {
		return 0, nil
	}
	numerator := new(big.Int).SetUint64(uint64(principal))
	numerator.Mul(numerator, new(big.Int).SetUint64(rateBps))
	numerator.Mul(numerator, big.NewInt(elapsedSeconds))
	denominator := big.NewInt(basisPointDenominator * secondsPerYear)
	numerator.Quo(numerator, denominator)
	if !numerator.IsUint64() {
		return 0, ErrOverflow
	}
	return Amount(numerator.Uint64()), nil
}

func minAmount(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}
