package escrow

import (
	"math/big"
	"testing"
)

func TestStatusPredicates(t *testing.T) {
	if !StatusAwaitingDelivery.Valid() || !StatusRefunded.Valid() {
		t.Fatal("known statuses must be valid")
	}
	if Status(0).Valid() || Status(9).Valid() {
		t.Fatal("out-of-range statuses must be invalid")
	}
	if StatusAwaitingDelivery.Terminal() || StatusDisputed.Terminal() {
		t.Fatal("active statuses must not be terminal")
	}
	if !StatusComplete.Terminal() || !StatusRefunded.Terminal() {
		t.Fatal("complete and refunded must be terminal")
	}
	if got := StatusAwaitingDelivery.String(); got != "awaiting_delivery" {
		t.Fatalf("unexpected status label %q", got)
	}
	if got := Status(7).String(); got != "unknown(7)" {
		t.Fatalf("unexpected label for unknown status: %q", got)
	}
}

func TestEscrowCloneIsDeep(t *testing.T) {
	esc := &Escrow{ID: 1, Amount: big.NewInt(100), Status: StatusAwaitingDelivery}
	clone := esc.Clone()
	clone.Amount.SetInt64(999)
	clone.Status = StatusComplete
	if esc.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("clone aliases the amount: %s", esc.Amount)
	}
	if esc.Status != StatusAwaitingDelivery {
		t.Fatal("clone aliases the status")
	}
	if (*Escrow)(nil).Clone() != nil {
		t.Fatal("nil clone must stay nil")
	}
}

func TestSanitizeEscrow(t *testing.T) {
	valid := &Escrow{ID: 1, Amount: big.NewInt(5), Status: StatusAwaitingDelivery}
	sanitized, err := SanitizeEscrow(valid)
	if err != nil {
		t.Fatalf("sanitize valid escrow: %v", err)
	}
	if sanitized == valid {
		t.Fatal("sanitize must return a copy")
	}

	if _, err := SanitizeEscrow(nil); err == nil {
		t.Fatal("expected error for nil escrow")
	}
	if _, err := SanitizeEscrow(&Escrow{Amount: big.NewInt(1), Status: StatusAwaitingDelivery}); err == nil {
		t.Fatal("expected error for unassigned id")
	}
	if _, err := SanitizeEscrow(&Escrow{ID: 1, Amount: big.NewInt(-1), Status: StatusAwaitingDelivery}); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := SanitizeEscrow(&Escrow{ID: 1, Amount: big.NewInt(1), Status: Status(9)}); err == nil {
		t.Fatal("expected error for invalid status")
	}
	if _, err := SanitizeEscrow(&Escrow{ID: 1, Amount: big.NewInt(1), Status: StatusDisputed}); err == nil {
		t.Fatal("expected error for disputed escrow without timestamp")
	}

	// nil amount normalises to zero
	sanitized, err = SanitizeEscrow(&Escrow{ID: 2, Status: StatusAwaitingDelivery})
	if err != nil {
		t.Fatalf("sanitize nil amount: %v", err)
	}
	if sanitized.Amount == nil || sanitized.Amount.Sign() != 0 {
		t.Fatalf("expected zero amount, got %v", sanitized.Amount)
	}
}
