package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"escrowd/core/types"
	"escrowd/native/escrow"
	"escrowd/native/fees"
	"escrowd/storage"
)

// Manager persists engine state as RLP-encoded records under prefixed keys.
// Writes are buffered until Commit so a failed transition can be discarded
// without leaving partial state behind.
type Manager struct {
	db    storage.Database
	dirty map[string][]byte
}

// NewManager binds a state manager to the supplied key-value database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

// Commit flushes all buffered writes to the underlying database.
func (m *Manager) Commit() error {
	if m == nil {
		return fmt.Errorf("state: manager not configured")
	}
	for key, value := range m.dirty {
		if err := m.db.Put([]byte(key), value); err != nil {
			return fmt.Errorf("state: commit %q: %w", key, err)
		}
	}
	m.dirty = make(map[string][]byte)
	return nil
}

// Discard drops all buffered writes, restoring the view of the last commit.
func (m *Manager) Discard() {
	if m == nil {
		return
	}
	m.dirty = make(map[string][]byte)
}

func (m *Manager) put(key []byte, val interface{}) error {
	encoded, err := rlp.EncodeToBytes(val)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	m.dirty[string(key)] = encoded
	return nil
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	data, ok := m.dirty[string(key)]
	if !ok {
		stored, err := m.db.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		data = stored
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// --- key layout ---

var (
	escrowRecordPrefix  = []byte("escrow/record/")
	escrowSequenceKey   = []byte("escrow/seq")
	escrowIndexPrefix   = []byte("escrow/index/")
	arbiterSetKey       = []byte("escrow/arbiters")
	feeBalancePrefix    = []byte("fees/balance/")
	accountRecordPrefix = []byte("account/")
)

func escrowRecordKey(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append(append([]byte(nil), escrowRecordPrefix...), buf[:]...)
}

func escrowIndexKey(role escrow.Role, addr [20]byte) []byte {
	key := append(append([]byte(nil), escrowIndexPrefix...), []byte(role)...)
	key = append(key, '/')
	return append(key, addr[:]...)
}

func feeBalanceKey(bucket fees.Bucket, addr [20]byte) []byte {
	key := append(append([]byte(nil), feeBalancePrefix...), []byte(bucket)...)
	key = append(key, '/')
	return append(key, addr[:]...)
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountRecordPrefix...), addr[:]...)
}

// --- escrow records ---

// storedEscrow mirrors escrow.Escrow with RLP-friendly field types; RLP has no
// signed integer encoding so timestamps are stored as uint64.
type storedEscrow struct {
	ID               uint64
	Buyer            [20]byte
	Seller           [20]byte
	Arbiter          [20]byte
	Amount           *big.Int
	Description      string
	Status           uint8
	CreatedAt        uint64
	DeliveryDeadline uint64
	BuyerApproved    bool
	SellerConfirmed  bool
	DisputeRaisedAt  uint64
	DisputeReason    string
}

func toStoredEscrow(e *escrow.Escrow) *storedEscrow {
	amount := big.NewInt(0)
	if e.Amount != nil {
		amount = new(big.Int).Set(e.Amount)
	}
	return &storedEscrow{
		ID:               e.ID,
		Buyer:            e.Buyer,
		Seller:           e.Seller,
		Arbiter:          e.Arbiter,
		Amount:           amount,
		Description:      e.Description,
		Status:           uint8(e.Status),
		CreatedAt:        uint64(e.CreatedAt),
		DeliveryDeadline: uint64(e.DeliveryDeadline),
		BuyerApproved:    e.BuyerApproved,
		SellerConfirmed:  e.SellerConfirmed,
		DisputeRaisedAt:  uint64(e.DisputeRaisedAt),
		DisputeReason:    e.DisputeReason,
	}
}

func fromStoredEscrow(s *storedEscrow) *escrow.Escrow {
	amount := big.NewInt(0)
	if s.Amount != nil {
		amount = new(big.Int).Set(s.Amount)
	}
	return &escrow.Escrow{
		ID:               s.ID,
		Buyer:            s.Buyer,
		Seller:           s.Seller,
		Arbiter:          s.Arbiter,
		Amount:           amount,
		Description:      s.Description,
		Status:           escrow.Status(s.Status),
		CreatedAt:        int64(s.CreatedAt),
		DeliveryDeadline: int64(s.DeliveryDeadline),
		BuyerApproved:    s.BuyerApproved,
		SellerConfirmed:  s.SellerConfirmed,
		DisputeRaisedAt:  int64(s.DisputeRaisedAt),
		DisputeReason:    s.DisputeReason,
	}
}

// EscrowPut validates and persists an escrow record.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(e)
	if err != nil {
		return err
	}
	return m.put(escrowRecordKey(sanitized.ID), toStoredEscrow(sanitized))
}

// EscrowGet loads the escrow stored under the supplied identifier.
func (m *Manager) EscrowGet(id uint64) (*escrow.Escrow, bool, error) {
	stored := new(storedEscrow)
	ok, err := m.get(escrowRecordKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return fromStoredEscrow(stored), true, nil
}

// NextEscrowID increments and returns the sequential escrow counter. The
// first issued identifier is 1.
func (m *Manager) NextEscrowID() (uint64, error) {
	var current uint64
	if _, err := m.get(escrowSequenceKey, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.put(escrowSequenceKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// EscrowCount reports how many escrows have been created so far.
func (m *Manager) EscrowCount() (uint64, error) {
	var current uint64
	if _, err := m.get(escrowSequenceKey, &current); err != nil {
		return 0, err
	}
	return current, nil
}

// EscrowIndexAppend records an escrow id in the enumeration list for the
// supplied participant role.
func (m *Manager) EscrowIndexAppend(role escrow.Role, addr [20]byte, id uint64) error {
	key := escrowIndexKey(role, addr)
	var ids []uint64
	if _, err := m.get(key, &ids); err != nil {
		return err
	}
	return m.put(key, append(ids, id))
}

// EscrowIndexList returns the escrow ids recorded for the participant role, in
// creation order.
func (m *Manager) EscrowIndexList(role escrow.Role, addr [20]byte) ([]uint64, error) {
	var ids []uint64
	if _, err := m.get(escrowIndexKey(role, addr), &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint64{}
	}
	return ids, nil
}

// --- arbiter set ---

// ArbiterExists reports whether the address is part of the approved set.
func (m *Manager) ArbiterExists(addr [20]byte) (bool, error) {
	members, err := m.arbiters()
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if member == addr {
			return true, nil
		}
	}
	return false, nil
}

// ArbiterPut adds the address to the approved set. Adding an existing member
// is a no-op.
func (m *Manager) ArbiterPut(addr [20]byte) error {
	members, err := m.arbiters()
	if err != nil {
		return err
	}
	for _, member := range members {
		if member == addr {
			return nil
		}
	}
	return m.put(arbiterSetKey, append(members, addr))
}

// ArbiterRemove drops the address from the approved set. Removing an unknown
// member is a no-op.
func (m *Manager) ArbiterRemove(addr [20]byte) error {
	members, err := m.arbiters()
	if err != nil {
		return err
	}
	filtered := make([][20]byte, 0, len(members))
	for _, member := range members {
		if member == addr {
			continue
		}
		filtered = append(filtered, member)
	}
	return m.put(arbiterSetKey, filtered)
}

// Arbiters returns the approved arbiter set in insertion order.
func (m *Manager) Arbiters() ([][20]byte, error) {
	return m.arbiters()
}

func (m *Manager) arbiters() ([][20]byte, error) {
	var members [][20]byte
	if _, err := m.get(arbiterSetKey, &members); err != nil {
		return nil, err
	}
	if members == nil {
		members = [][20]byte{}
	}
	return members, nil
}

// --- fee balances ---

// FeeBalanceGet returns the claimable balance for the bucket and address. A
// missing entry reads as zero.
func (m *Manager) FeeBalanceGet(bucket fees.Bucket, addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.get(feeBalanceKey(bucket, addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// FeeBalancePut stores the claimable balance for the bucket and address.
func (m *Manager) FeeBalancePut(bucket fees.Bucket, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: fee balance must be non-negative")
	}
	return m.put(feeBalanceKey(bucket, addr), amount)
}

// --- accounts ---

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the ledger record for the address, returning an empty
// account when none is stored.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	stored := new(storedAccount)
	ok, err := m.get(accountKey(addr), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the ledger record for the address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		balance = new(big.Int).Set(account.Balance)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: account balance must be non-negative")
	}
	return m.put(accountKey(addr), &storedAccount{Nonce: account.Nonce, Balance: balance})
}
