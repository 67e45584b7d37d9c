package core

import (
	"errors"
	"math/big"
	"testing"

	"escrowd/native/escrow"
	"escrowd/storage"
)

func nodeAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type nodeEnv struct {
	node    *Node
	owner   [20]byte
	buyer   [20]byte
	seller  [20]byte
	arbiter [20]byte
}

func newNodeEnv(t *testing.T) *nodeEnv {
	t.Helper()
	env := &nodeEnv{
		owner:   nodeAddr(0x01),
		buyer:   nodeAddr(0x02),
		seller:  nodeAddr(0x03),
		arbiter: nodeAddr(0x04),
	}
	node, err := NewNode(storage.NewMemDB(), Params{
		Owner:          env.owner,
		PlatformFeeBps: 250,
		ArbiterFeeBps:  100,
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	env.node = node
	if err := node.AddArbiter(env.owner, env.arbiter); err != nil {
		t.Fatalf("add arbiter: %v", err)
	}
	if err := node.Deposit(env.owner, env.buyer, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return env
}

func TestNodeRequiresOwner(t *testing.T) {
	if _, err := NewNode(storage.NewMemDB(), Params{}); err == nil {
		t.Fatal("expected error for missing owner")
	}
	if _, err := NewNode(nil, Params{Owner: nodeAddr(0x01)}); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func TestNodeCommitsFullLifecycle(t *testing.T) {
	env := newNodeEnv(t)
	esc, err := env.node.CreateEscrow(env.buyer, env.seller, env.arbiter, "bike", 5, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.node.ConfirmDelivery(esc.ID, env.seller); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := env.node.ApprovePayment(esc.ID, env.buyer); err != nil {
		t.Fatalf("approve: %v", err)
	}
	stored, err := env.node.GetEscrow(esc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != escrow.StatusComplete {
		t.Fatalf("expected complete, got %s", stored.Status)
	}
	balance, err := env.node.Balance(env.seller)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(9_750)) != 0 {
		t.Fatalf("expected seller payout 9750, got %s", balance)
	}
	withdrawn, err := env.node.WithdrawFees(env.owner)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected platform fee 250, got %s", withdrawn)
	}
}

func TestNodeDiscardsFailedTransitions(t *testing.T) {
	env := newNodeEnv(t)
	// the transfer fails after the sequence counter was already advanced; the
	// discard must roll that back too
	_, err := env.node.CreateEscrow(env.buyer, env.seller, env.arbiter, "too big", 5, big.NewInt(2_000_000))
	if !errors.Is(err, escrow.ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	info, err := env.node.Platform()
	if err != nil {
		t.Fatalf("platform: %v", err)
	}
	if info.TotalEscrows != 0 {
		t.Fatalf("failed creation must not advance the counter, got %d", info.TotalEscrows)
	}
	balance, err := env.node.Balance(env.buyer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("failed creation must not move funds, got %s", balance)
	}

	// the next successful creation still gets id 1
	esc, err := env.node.CreateEscrow(env.buyer, env.seller, env.arbiter, "ok", 5, big.NewInt(100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if esc.ID != 1 {
		t.Fatalf("expected id 1 after discarded attempt, got %d", esc.ID)
	}
}

func TestNodeRecordsEvents(t *testing.T) {
	env := newNodeEnv(t)
	esc, err := env.node.CreateEscrow(env.buyer, env.seller, env.arbiter, "bike", 5, big.NewInt(100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.node.RaiseDispute(esc.ID, env.buyer, "never shipped"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	listed := env.node.Events().List("escrow.", 0)
	if len(listed) < 2 {
		t.Fatalf("expected creation and dispute events, got %d", len(listed))
	}
	last := listed[len(listed)-1]
	if last.Type != "escrow.disputed" {
		t.Fatalf("expected escrow.disputed, got %s", last.Type)
	}
}

func TestSeedArbitersIsIdempotent(t *testing.T) {
	env := newNodeEnv(t)
	extra := nodeAddr(0x05)
	seed := [][20]byte{env.arbiter, extra}
	if err := env.node.SeedArbiters(seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := env.node.SeedArbiters(seed); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	info, err := env.node.Platform()
	if err != nil {
		t.Fatalf("platform: %v", err)
	}
	if len(info.Arbiters) != 2 {
		t.Fatalf("expected 2 arbiters, got %d", len(info.Arbiters))
	}
}

func TestDepositGuards(t *testing.T) {
	env := newNodeEnv(t)
	if err := env.node.Deposit(env.buyer, env.buyer, big.NewInt(10)); !errors.Is(err, escrow.ErrNotAuthorized) {
		t.Fatalf("non-owner deposit: expected not authorized, got %v", err)
	}
	if err := env.node.Deposit(env.owner, [20]byte{}, big.NewInt(10)); !errors.Is(err, escrow.ErrValidation) {
		t.Fatalf("zero recipient: expected validation error, got %v", err)
	}
	if err := env.node.Deposit(env.owner, env.buyer, big.NewInt(0)); !errors.Is(err, escrow.ErrValidation) {
		t.Fatalf("zero amount: expected validation error, got %v", err)
	}
}
