package escrow

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle states supported by the escrow engine.
type Status uint8

const (
	StatusAwaitingDelivery Status = iota + 1
	StatusComplete
	StatusDisputed
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingDelivery, StatusComplete, StatusDisputed, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusRefunded
}

func (s Status) String() string {
	switch s {
	case StatusAwaitingDelivery:
		return "awaiting_delivery"
	case StatusComplete:
		return "complete"
	case StatusDisputed:
		return "disputed"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Role identifies how a participant relates to an escrow; used to key the
// per-party enumeration indexes.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleArbiter Role = "arbiter"
)

const (
	// MinDeliveryDays and MaxDeliveryDays bound the delivery window accepted
	// at creation.
	MinDeliveryDays = 1
	MaxDeliveryDays = 365

	daySeconds int64 = 86_400

	// GracePeriodSeconds is the fixed extra time past the delivery deadline
	// before the buyer may claim an emergency refund.
	GracePeriodSeconds int64 = 7 * daySeconds
)

// ModuleVault is the reserved custody account that holds escrowed funds. No
// private key exists for it; balance only leaves through engine transitions.
var ModuleVault = [20]byte{
	0x65, 0x73, 0x63, 0x72, 0x6f, 0x77, 0x64, 0x2f, 0x76, 0x61,
	0x75, 0x6c, 0x74, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
}

// Escrow captures the parties, held amount and runtime status of a single
// agreement managed by the engine. Identifiers are sequential and assigned at
// creation; the record is never deleted, terminal states are permanent.
type Escrow struct {
	ID               uint64
	Buyer            [20]byte
	Seller           [20]byte
	Arbiter          [20]byte
	Amount           *big.Int
	Description      string
	Status           Status
	CreatedAt        int64
	DeliveryDeadline int64
	BuyerApproved    bool
	SellerConfirmed  bool
	DisputeRaisedAt  int64
	DisputeReason    string
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeEscrow validates and normalises the supplied escrow record,
// returning a cloned instance with a non-nil amount field. The function does
// not mutate the original value.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("escrow id must be assigned")
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", clone.Status)
	}
	if clone.Status == StatusDisputed && clone.DisputeRaisedAt == 0 {
		return nil, fmt.Errorf("disputed escrow missing dispute timestamp")
	}
	return clone, nil
}
