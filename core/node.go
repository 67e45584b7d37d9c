package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"escrowd/core/events"
	"escrowd/core/state"
	"escrowd/native/common"
	"escrowd/native/escrow"
	"escrowd/native/fees"
	"escrowd/storage"
)

// Params carries the platform configuration applied to a node at startup.
type Params struct {
	Owner          [20]byte
	PlatformFeeBps uint32
	ArbiterFeeBps  uint32
	Paused         []string
	EventBuffer    int
}

// Node owns the database, state manager and escrow engine, and serialises all
// operations: every call runs to completion under one lock, is committed on
// success and discarded on failure, so no partial state is ever observable.
type Node struct {
	mu     sync.Mutex
	db     storage.Database
	state  *state.Manager
	engine *escrow.Engine
	events *events.Buffer
	owner  [20]byte
}

// NewNode wires storage, state and the engine together.
func NewNode(db storage.Database, params Params) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if params.Owner == ([20]byte{}) {
		return nil, fmt.Errorf("core: platform owner required")
	}
	manager := state.NewManager(db)
	buffer := events.NewBuffer(params.EventBuffer)
	engine := escrow.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(buffer)
	engine.SetOwner(params.Owner)
	engine.SetVault(escrow.ModuleVault)
	if err := engine.SetFeeRates(params.PlatformFeeBps, params.ArbiterFeeBps); err != nil {
		return nil, err
	}
	paused := make(common.StaticPauses, len(params.Paused))
	for _, module := range params.Paused {
		paused[module] = true
	}
	engine.SetPauses(paused)
	return &Node{db: db, state: manager, engine: engine, events: buffer, owner: params.Owner}, nil
}

// Engine exposes the underlying engine for tests and wiring helpers.
func (n *Node) Engine() *escrow.Engine { return n.engine }

// Events exposes the retained event history.
func (n *Node) Events() *events.Buffer { return n.events }

func (n *Node) withCommit(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := fn(); err != nil {
		n.state.Discard()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return err
	}
	return nil
}

// SeedArbiters admits the supplied addresses on behalf of the owner, skipping
// members that are already present. Used at startup to apply the configured
// seed list.
func (n *Node) SeedArbiters(addrs [][20]byte) error {
	for _, addr := range addrs {
		err := n.AddArbiter(n.owner, addr)
		if err == nil || errors.Is(err, escrow.ErrAlreadyExists) {
			continue
		}
		return err
	}
	return nil
}

// CreateEscrow runs the creation transition and returns the stored record.
func (n *Node) CreateEscrow(buyer, seller, arbiter [20]byte, description string, deliveryDays uint32, amount *big.Int) (*escrow.Escrow, error) {
	var created *escrow.Escrow
	err := n.withCommit(func() error {
		esc, err := n.engine.Create(buyer, seller, arbiter, description, deliveryDays, amount)
		if err != nil {
			return err
		}
		created = esc
		return nil
	})
	return created, err
}

// ConfirmDelivery records the seller's confirmation.
func (n *Node) ConfirmDelivery(id uint64, caller [20]byte) error {
	return n.withCommit(func() error { return n.engine.ConfirmDelivery(id, caller) })
}

// ApprovePayment records the buyer's approval.
func (n *Node) ApprovePayment(id uint64, caller [20]byte) error {
	return n.withCommit(func() error { return n.engine.ApprovePayment(id, caller) })
}

// RaiseDispute marks the escrow as disputed.
func (n *Node) RaiseDispute(id uint64, caller [20]byte, reason string) error {
	return n.withCommit(func() error { return n.engine.RaiseDispute(id, caller, reason) })
}

// ResolveDispute applies the arbiter's ruling.
func (n *Node) ResolveDispute(id uint64, caller [20]byte, buyerWins bool) error {
	return n.withCommit(func() error { return n.engine.ResolveDispute(id, caller, buyerWins) })
}

// EmergencyRefund returns custody to the buyer after the grace period.
func (n *Node) EmergencyRefund(id uint64, caller [20]byte) error {
	return n.withCommit(func() error { return n.engine.EmergencyRefund(id, caller) })
}

// WithdrawFees claims the caller's accumulated fee balances.
func (n *Node) WithdrawFees(caller [20]byte) (*big.Int, error) {
	var withdrawn *big.Int
	err := n.withCommit(func() error {
		total, err := n.engine.WithdrawFees(caller)
		if err != nil {
			return err
		}
		withdrawn = total
		return nil
	})
	return withdrawn, err
}

// AddArbiter admits an arbiter on behalf of the caller.
func (n *Node) AddArbiter(caller, addr [20]byte) error {
	return n.withCommit(func() error { return n.engine.AddArbiter(caller, addr) })
}

// RemoveArbiter drops an arbiter on behalf of the caller.
func (n *Node) RemoveArbiter(caller, addr [20]byte) error {
	return n.withCommit(func() error { return n.engine.RemoveArbiter(caller, addr) })
}

// Deposit credits an account balance. Owner-only: the daemon treats external
// value onboarding as a platform operation.
func (n *Node) Deposit(caller, to [20]byte, amount *big.Int) error {
	return n.withCommit(func() error {
		if caller != n.owner {
			return fmt.Errorf("%w: only the platform owner may deposit", escrow.ErrNotAuthorized)
		}
		if to == ([20]byte{}) {
			return fmt.Errorf("%w: zero address", escrow.ErrValidation)
		}
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("%w: amount must be positive", escrow.ErrValidation)
		}
		account, err := n.state.GetAccount(to)
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Add(account.Balance, amount)
		return n.state.PutAccount(to, account)
	})
}

// --- read surface (side-effect free) ---

// GetEscrow returns the stored escrow record.
func (n *Node) GetEscrow(id uint64) (*escrow.Escrow, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Get(id)
}

// EscrowsByParticipant returns the per-role id indexes for the address.
func (n *Node) EscrowsByParticipant(addr [20]byte) (escrow.UserEscrows, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.EscrowsByParticipant(addr)
}

// Platform returns the owner, counters and fee configuration.
func (n *Node) Platform() (escrow.PlatformInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Platform()
}

// AvailableFees returns the claimable balances for the address.
func (n *Node) AvailableFees(addr [20]byte) (fees.Balances, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.AvailableFees(addr)
}

// Balance returns the ledger balance for the address.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}
