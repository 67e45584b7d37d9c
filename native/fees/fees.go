package fees

import (
	"fmt"
	"math/big"
)

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10_000

// Bucket distinguishes the claimable fee pools tracked per recipient.
type Bucket string

const (
	BucketArbiter  Bucket = "arbiter"
	BucketPlatform Bucket = "platform"
)

// Valid reports whether the bucket names a known fee pool.
func (b Bucket) Valid() bool {
	switch b {
	case BucketArbiter, BucketPlatform:
		return true
	default:
		return false
	}
}

// Split computes amount*bps/10000 using integer division. The truncation
// remainder stays with the payout side, so fee + (amount - fee) == amount
// always holds exactly.
func Split(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Div(fee, big.NewInt(BpsDenominator))
}

// Resolution captures the three-way split applied when an arbiter rules on a
// disputed amount.
type Resolution struct {
	ArbiterFee  *big.Int
	PlatformFee *big.Int
	Remainder   *big.Int
}

// ResolveSplit deducts the arbiter and platform fees from the disputed amount
// and returns the remainder owed to the winning party. The two fee rates
// combined must not reach the full amount scale.
func ResolveSplit(amount *big.Int, arbiterBps, platformBps uint32) (Resolution, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Resolution{}, fmt.Errorf("fees: amount must be positive")
	}
	if uint64(arbiterBps)+uint64(platformBps) > BpsDenominator {
		return Resolution{}, fmt.Errorf("fees: combined rate %d exceeds %d bps", uint64(arbiterBps)+uint64(platformBps), BpsDenominator)
	}
	arbiterFee := Split(amount, arbiterBps)
	platformFee := Split(amount, platformBps)
	remainder := new(big.Int).Sub(amount, arbiterFee)
	remainder.Sub(remainder, platformFee)
	if remainder.Sign() < 0 {
		return Resolution{}, fmt.Errorf("fees: fees exceed amount")
	}
	return Resolution{ArbiterFee: arbiterFee, PlatformFee: platformFee, Remainder: remainder}, nil
}

// Balances reports the claimable totals for a single recipient.
type Balances struct {
	Arbiter  *big.Int
	Platform *big.Int
}

// Total sums both buckets.
func (b Balances) Total() *big.Int {
	total := big.NewInt(0)
	if b.Arbiter != nil {
		total.Add(total, b.Arbiter)
	}
	if b.Platform != nil {
		total.Add(total, b.Platform)
	}
	return total
}

// Clone returns a copy with duplicated big.Int values.
func (b Balances) Clone() Balances {
	clone := Balances{Arbiter: big.NewInt(0), Platform: big.NewInt(0)}
	if b.Arbiter != nil {
		clone.Arbiter = new(big.Int).Set(b.Arbiter)
	}
	if b.Platform != nil {
		clone.Platform = new(big.Int).Set(b.Platform)
	}
	return clone
}
