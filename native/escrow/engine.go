package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"escrowd/core/events"
	"escrowd/core/types"
	"escrowd/native/common"
	"escrowd/native/fees"
)

var (
	errNilState    = errors.New("escrow engine: state not configured")
	errNilVault    = errors.New("escrow engine: vault not configured")
	errNilOwner    = errors.New("escrow engine: platform owner not configured")
	errFeesInvalid = errors.New("escrow engine: fee rates out of range")
)

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool, error)
	NextEscrowID() (uint64, error)
	EscrowCount() (uint64, error)
	EscrowIndexAppend(role Role, addr [20]byte, id uint64) error
	EscrowIndexList(role Role, addr [20]byte) ([]uint64, error)
	ArbiterExists(addr [20]byte) (bool, error)
	ArbiterPut(addr [20]byte) error
	ArbiterRemove(addr [20]byte) error
	Arbiters() ([][20]byte, error)
	FeeBalanceGet(bucket fees.Bucket, addr [20]byte) (*big.Int, error)
	FeeBalancePut(bucket fees.Bucket, addr [20]byte, amount *big.Int) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Engine wires the escrow business logic with external state and event
// emitters. State writes are buffered by the backing manager; the hosting node
// commits after a successful call and discards after a failed one, so every
// operation is all-or-nothing.
type Engine struct {
	state          engineState
	emitter        events.Emitter
	pauses         common.PauseView
	nowFn          func() int64
	owner          [20]byte
	vault          [20]byte
	platformFeeBps uint32
	arbiterFeeBps  uint32
	inCall         bool
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOwner configures the platform owner: the admin for registry mutations and
// the recipient of platform fees.
func (e *Engine) SetOwner(addr [20]byte) { e.owner = addr }

// SetVault configures the custody account that holds escrowed funds.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetFeeRates configures the basis-point fees charged at settlement and
// dispute resolution. The combined rate must stay below the bps scale.
func (e *Engine) SetFeeRates(platformBps, arbiterBps uint32) error {
	if uint64(platformBps)+uint64(arbiterBps) > fees.BpsDenominator {
		return errFeesInvalid
	}
	e.platformFeeBps = platformBps
	e.arbiterFeeBps = arbiterBps
	return nil
}

// SetPauses configures the pause view consulted before mutating operations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// begin rejects nested entry and paused modules before any mutating work.
// Every mutating operation pairs it with a deferred end.
func (e *Engine) begin(module string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.inCall {
		return ErrReentrantCall
	}
	if err := common.Guard(e.pauses, module); err != nil {
		return err
	}
	if e.vault == ([20]byte{}) {
		return errNilVault
	}
	if e.owner == ([20]byte{}) {
		return errNilOwner
	}
	e.inCall = true
	return nil
}

func (e *Engine) end() { e.inCall = false }

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: escrow %d", ErrNotFound, id)
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(esc)
}

// transfer moves native balance between ledger accounts. A rejected movement
// surfaces as ErrTransferFailed and aborts the surrounding transition.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrTransferFailed)
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if fromAcc.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: insufficient balance", ErrTransferFailed)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.PutAccount(to, toAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) accrueFee(bucket fees.Bucket, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	balance, err := e.state.FeeBalanceGet(bucket, addr)
	if err != nil {
		return err
	}
	return e.state.FeeBalancePut(bucket, addr, new(big.Int).Add(balance, amount))
}

// Create debits the buyer, places the amount in vault custody and persists a
// new escrow in AwaitingDelivery. All preconditions are checked before any
// side effect.
func (e *Engine) Create(buyer, seller, arbiter [20]byte, description string, deliveryDays uint32, amount *big.Int) (*Escrow, error) {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return nil, err
	}
	defer e.end()

	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if deliveryDays < MinDeliveryDays || deliveryDays > MaxDeliveryDays {
		return nil, fmt.Errorf("%w: delivery window must be between %d and %d days", ErrValidation, MinDeliveryDays, MaxDeliveryDays)
	}
	if buyer == ([20]byte{}) || seller == ([20]byte{}) || arbiter == ([20]byte{}) {
		return nil, fmt.Errorf("%w: zero address", ErrValidation)
	}
	if seller == buyer {
		return nil, fmt.Errorf("%w: buyer and seller must differ", ErrValidation)
	}
	if arbiter == buyer || arbiter == seller {
		return nil, fmt.Errorf("%w: arbiter must be independent of buyer and seller", ErrValidation)
	}
	approved, err := e.state.ArbiterExists(arbiter)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, fmt.Errorf("%w: arbiter not approved", ErrValidation)
	}

	id, err := e.state.NextEscrowID()
	if err != nil {
		return nil, err
	}
	if err := e.transfer(buyer, e.vault, amt); err != nil {
		return nil, err
	}
	now := e.now()
	esc := &Escrow{
		ID:               id,
		Buyer:            buyer,
		Seller:           seller,
		Arbiter:          arbiter,
		Amount:           amt,
		Description:      description,
		Status:           StatusAwaitingDelivery,
		CreatedAt:        now,
		DeliveryDeadline: now + int64(deliveryDays)*daySeconds,
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	if err := e.state.EscrowIndexAppend(RoleBuyer, buyer, id); err != nil {
		return nil, err
	}
	if err := e.state.EscrowIndexAppend(RoleSeller, seller, id); err != nil {
		return nil, err
	}
	if err := e.state.EscrowIndexAppend(RoleArbiter, arbiter, id); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// ConfirmDelivery records the seller's confirmation. When the buyer has
// already approved, the confirmation closes the loop and settles immediately.
func (e *Engine) ConfirmDelivery(id uint64, caller [20]byte) error {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return err
	}
	defer e.end()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusAwaitingDelivery {
		return fmt.Errorf("%w: cannot confirm in status %s", ErrInvalidState, esc.Status)
	}
	if caller != esc.Seller {
		return fmt.Errorf("%w: only the seller may confirm delivery", ErrNotAuthorized)
	}
	if esc.SellerConfirmed {
		return fmt.Errorf("%w: delivery already confirmed", ErrInvalidState)
	}
	esc.SellerConfirmed = true
	if esc.BuyerApproved {
		return e.settle(esc)
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewSellerConfirmedEvent(esc))
	return nil
}

// ApprovePayment records the buyer's approval. When the seller has already
// confirmed, approval triggers settlement in the same call.
func (e *Engine) ApprovePayment(id uint64, caller [20]byte) error {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return err
	}
	defer e.end()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusAwaitingDelivery {
		return fmt.Errorf("%w: cannot approve in status %s", ErrInvalidState, esc.Status)
	}
	if caller != esc.Buyer {
		return fmt.Errorf("%w: only the buyer may approve payment", ErrNotAuthorized)
	}
	if esc.BuyerApproved {
		return fmt.Errorf("%w: payment already approved", ErrInvalidState)
	}
	esc.BuyerApproved = true
	if esc.SellerConfirmed {
		return e.settle(esc)
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewBuyerApprovedEvent(esc))
	return nil
}

// settle releases the held amount to the seller minus the platform fee, which
// accrues to the owner's claimable balance. State and funds move in the same
// buffered transition.
func (e *Engine) settle(esc *Escrow) error {
	total := cloneBigInt(esc.Amount)
	if total.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	fee := fees.Split(total, e.platformFeeBps)
	payout := new(big.Int).Sub(total, fee)
	if err := e.accrueFee(fees.BucketPlatform, e.owner, fee); err != nil {
		return err
	}
	if err := e.transfer(e.vault, esc.Seller, payout); err != nil {
		return err
	}
	esc.Status = StatusComplete
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewReleasedEvent(esc, fee, payout))
	return nil
}

// RaiseDispute flags the escrow as disputed. No funds move; normal settlement
// is blocked until the arbiter rules.
func (e *Engine) RaiseDispute(id uint64, caller [20]byte, reason string) error {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return err
	}
	defer e.end()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusAwaitingDelivery {
		return fmt.Errorf("%w: cannot dispute in status %s", ErrInvalidState, esc.Status)
	}
	if caller != esc.Buyer && caller != esc.Seller {
		return fmt.Errorf("%w: only the buyer or seller may dispute", ErrNotAuthorized)
	}
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return fmt.Errorf("%w: dispute reason must not be empty", ErrValidation)
	}
	esc.Status = StatusDisputed
	esc.DisputeRaisedAt = e.now()
	esc.DisputeReason = trimmed
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(esc))
	return nil
}

// ResolveDispute settles a disputed escrow according to the arbiter's ruling.
// The arbiter and platform fees accrue to their claimable balances and the
// remainder is transferred to the winning party. The ruling is final.
func (e *Engine) ResolveDispute(id uint64, caller [20]byte, buyerWins bool) error {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return err
	}
	defer e.end()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusDisputed {
		return fmt.Errorf("%w: cannot resolve in status %s", ErrInvalidState, esc.Status)
	}
	if caller != esc.Arbiter {
		return fmt.Errorf("%w: only the designated arbiter may resolve", ErrNotAuthorized)
	}
	resolution, err := fees.ResolveSplit(esc.Amount, e.arbiterFeeBps, e.platformFeeBps)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := e.accrueFee(fees.BucketArbiter, esc.Arbiter, resolution.ArbiterFee); err != nil {
		return err
	}
	if err := e.accrueFee(fees.BucketPlatform, e.owner, resolution.PlatformFee); err != nil {
		return err
	}
	winner := esc.Seller
	if buyerWins {
		winner = esc.Buyer
	}
	if err := e.transfer(e.vault, winner, resolution.Remainder); err != nil {
		return err
	}
	if buyerWins {
		esc.Status = StatusRefunded
	} else {
		esc.Status = StatusComplete
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(esc, buyerWins, resolution))
	return nil
}

// EmergencyRefund returns the full amount to the buyer once the delivery
// deadline plus the grace period has elapsed without a seller confirmation.
// No fees are taken; this is a non-performance remedy, not a settlement.
func (e *Engine) EmergencyRefund(id uint64, caller [20]byte) error {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return err
	}
	defer e.end()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusAwaitingDelivery {
		return fmt.Errorf("%w: cannot refund in status %s", ErrInvalidState, esc.Status)
	}
	if caller != esc.Buyer {
		return fmt.Errorf("%w: only the buyer may claim an emergency refund", ErrNotAuthorized)
	}
	if esc.SellerConfirmed {
		return fmt.Errorf("%w: seller confirmed delivery", ErrInvalidState)
	}
	if e.now() <= esc.DeliveryDeadline+GracePeriodSeconds {
		return fmt.Errorf("%w: grace period still running", ErrDeadlineNotReached)
	}
	if err := e.transfer(e.vault, esc.Buyer, esc.Amount); err != nil {
		return err
	}
	esc.Status = StatusRefunded
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(esc))
	return nil
}

// WithdrawFees zeroes the caller's claimable arbiter and platform balances
// before transferring the sum out of the vault, so a nested call cannot
// observe an unspent balance.
func (e *Engine) WithdrawFees(caller [20]byte) (*big.Int, error) {
	if err := e.begin(common.ModuleFees); err != nil {
		return nil, err
	}
	defer e.end()

	arbiterBalance, err := e.state.FeeBalanceGet(fees.BucketArbiter, caller)
	if err != nil {
		return nil, err
	}
	platformBalance, err := e.state.FeeBalanceGet(fees.BucketPlatform, caller)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(arbiterBalance, platformBalance)
	if total.Sign() == 0 {
		return nil, fmt.Errorf("%w: no claimable fees", ErrNotFound)
	}
	if err := e.state.FeeBalancePut(fees.BucketArbiter, caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.state.FeeBalancePut(fees.BucketPlatform, caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.transfer(e.vault, caller, total); err != nil {
		return nil, err
	}
	e.emit(NewFeesWithdrawnEvent(caller, arbiterBalance, platformBalance))
	return total, nil
}

// --- read surface ---

// Get returns a deep copy of the escrow stored under the identifier.
func (e *Engine) Get(id uint64) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// UserEscrows enumerates the escrow ids a participant appears in, per role.
type UserEscrows struct {
	AsBuyer   []uint64
	AsSeller  []uint64
	AsArbiter []uint64
}

// EscrowsByParticipant returns the enumeration indexes for the address.
func (e *Engine) EscrowsByParticipant(addr [20]byte) (UserEscrows, error) {
	if e == nil || e.state == nil {
		return UserEscrows{}, errNilState
	}
	asBuyer, err := e.state.EscrowIndexList(RoleBuyer, addr)
	if err != nil {
		return UserEscrows{}, err
	}
	asSeller, err := e.state.EscrowIndexList(RoleSeller, addr)
	if err != nil {
		return UserEscrows{}, err
	}
	asArbiter, err := e.state.EscrowIndexList(RoleArbiter, addr)
	if err != nil {
		return UserEscrows{}, err
	}
	return UserEscrows{AsBuyer: asBuyer, AsSeller: asSeller, AsArbiter: asArbiter}, nil
}

// PlatformInfo summarises the engine configuration and escrow count.
type PlatformInfo struct {
	Owner              [20]byte
	TotalEscrows       uint64
	PlatformFeeBps     uint32
	ArbiterFeeBps      uint32
	GracePeriodSeconds int64
	Arbiters           [][20]byte
}

// Platform returns the owner, fee rates, grace period and arbiter set.
func (e *Engine) Platform() (PlatformInfo, error) {
	if e == nil || e.state == nil {
		return PlatformInfo{}, errNilState
	}
	total, err := e.state.EscrowCount()
	if err != nil {
		return PlatformInfo{}, err
	}
	members, err := e.state.Arbiters()
	if err != nil {
		return PlatformInfo{}, err
	}
	return PlatformInfo{
		Owner:              e.owner,
		TotalEscrows:       total,
		PlatformFeeBps:     e.platformFeeBps,
		ArbiterFeeBps:      e.arbiterFeeBps,
		GracePeriodSeconds: GracePeriodSeconds,
		Arbiters:           members,
	}, nil
}

// AvailableFees reports the claimable balances for the address.
func (e *Engine) AvailableFees(addr [20]byte) (fees.Balances, error) {
	if e == nil || e.state == nil {
		return fees.Balances{}, errNilState
	}
	arbiterBalance, err := e.state.FeeBalanceGet(fees.BucketArbiter, addr)
	if err != nil {
		return fees.Balances{}, err
	}
	platformBalance, err := e.state.FeeBalanceGet(fees.BucketPlatform, addr)
	if err != nil {
		return fees.Balances{}, err
	}
	return fees.Balances{Arbiter: arbiterBalance, Platform: platformBalance}, nil
}
