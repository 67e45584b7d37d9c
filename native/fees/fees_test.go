package fees

import (
	"math/big"
	"testing"
)

func TestSplitTruncates(t *testing.T) {
	cases := []struct {
		amount int64
		bps    uint32
		want   int64
	}{
		{10_000, 250, 250},
		{10_000, 100, 100},
		{1, 250, 0},
		{3, 250, 0},
		{3, 100, 0},
		{39, 250, 0},
		{40, 250, 1},
		{100, 0, 0},
		{0, 250, 0},
		{7, 10_000, 7},
	}
	for _, tc := range cases {
		got := Split(big.NewInt(tc.amount), tc.bps)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("Split(%d, %d) = %s, want %d", tc.amount, tc.bps, got, tc.want)
		}
	}
}

func TestSplitNilAmount(t *testing.T) {
	if got := Split(nil, 250); got.Sign() != 0 {
		t.Fatalf("expected zero fee for nil amount, got %s", got)
	}
}

func TestResolveSplitConservation(t *testing.T) {
	for _, amount := range []int64{1, 2, 3, 39, 40, 100, 9_999, 10_000, 123_457} {
		res, err := ResolveSplit(big.NewInt(amount), 100, 250)
		if err != nil {
			t.Fatalf("ResolveSplit(%d): %v", amount, err)
		}
		total := new(big.Int).Add(res.ArbiterFee, res.PlatformFee)
		total.Add(total, res.Remainder)
		if total.Cmp(big.NewInt(amount)) != 0 {
			t.Fatalf("amount %d not conserved: fees %s/%s remainder %s", amount, res.ArbiterFee, res.PlatformFee, res.Remainder)
		}
		if res.Remainder.Sign() < 0 {
			t.Fatalf("amount %d produced negative remainder %s", amount, res.Remainder)
		}
	}
}

func TestResolveSplitRejectsExcessiveRates(t *testing.T) {
	if _, err := ResolveSplit(big.NewInt(100), 6_000, 5_000); err == nil {
		t.Fatal("expected error for combined rate above the denominator")
	}
}

func TestBucketValid(t *testing.T) {
	if !BucketArbiter.Valid() || !BucketPlatform.Valid() {
		t.Fatal("named buckets must be valid")
	}
	if Bucket("treasury").Valid() {
		t.Fatal("unknown bucket must be invalid")
	}
}

func TestBalancesTotalAndClone(t *testing.T) {
	b := Balances{Arbiter: big.NewInt(3), Platform: big.NewInt(7)}
	if b.Total().Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected total 10, got %s", b.Total())
	}
	clone := b.Clone()
	clone.Arbiter.SetInt64(99)
	if b.Arbiter.Cmp(big.NewInt(3)) != 0 {
		t.Fatal("clone must not alias the source balances")
	}
}
