package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowd/core/types"
	"escrowd/native/escrow"
	"escrowd/native/fees"
	"escrowd/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db), db
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestEscrowRoundTrip(t *testing.T) {
	manager, _ := newTestManager(t)
	record := &escrow.Escrow{
		ID:               7,
		Buyer:            testAddr(0x01),
		Seller:           testAddr(0x02),
		Arbiter:          testAddr(0x03),
		Amount:           big.NewInt(12_345),
		Description:      "antique lamp",
		Status:           escrow.StatusDisputed,
		CreatedAt:        1_700_000_000,
		DeliveryDeadline: 1_700_432_000,
		BuyerApproved:    true,
		DisputeRaisedAt:  1_700_100_000,
		DisputeReason:    "lamp arrived broken",
	}
	require.NoError(t, manager.EscrowPut(record))

	loaded, ok, err := manager.EscrowGet(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, loaded)

	_, ok, err = manager.EscrowGet(8)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEscrowPutRejectsInvalidRecords(t *testing.T) {
	manager, _ := newTestManager(t)
	require.Error(t, manager.EscrowPut(nil))
	require.Error(t, manager.EscrowPut(&escrow.Escrow{Amount: big.NewInt(1), Status: escrow.StatusAwaitingDelivery}))
	require.Error(t, manager.EscrowPut(&escrow.Escrow{ID: 1, Amount: big.NewInt(1), Status: escrow.Status(42)}))
}

func TestNextEscrowIDSequence(t *testing.T) {
	manager, _ := newTestManager(t)
	for want := uint64(1); want <= 3; want++ {
		id, err := manager.NextEscrowID()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	count, err := manager.EscrowCount()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestCommitPersistsAcrossManagers(t *testing.T) {
	manager, db := newTestManager(t)
	id, err := manager.NextEscrowID()
	require.NoError(t, err)
	require.NoError(t, manager.EscrowPut(&escrow.Escrow{
		ID:     id,
		Amount: big.NewInt(10),
		Status: escrow.StatusAwaitingDelivery,
	}))
	require.NoError(t, manager.Commit())

	reopened := NewManager(db)
	loaded, ok, err := reopened.EscrowGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big.NewInt(10), loaded.Amount)
	count, err := reopened.EscrowCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestDiscardDropsBufferedWrites(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.NextEscrowID()
	require.NoError(t, err)
	require.NoError(t, manager.PutAccount(testAddr(0x01), &types.Account{Balance: big.NewInt(50)}))
	manager.Discard()

	count, err := manager.EscrowCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
	account, err := manager.GetAccount(testAddr(0x01))
	require.NoError(t, err)
	require.Equal(t, int64(0), account.Balance.Int64())
}

func TestEscrowIndexes(t *testing.T) {
	manager, _ := newTestManager(t)
	buyer := testAddr(0x0a)
	require.NoError(t, manager.EscrowIndexAppend(escrow.RoleBuyer, buyer, 1))
	require.NoError(t, manager.EscrowIndexAppend(escrow.RoleBuyer, buyer, 4))
	require.NoError(t, manager.EscrowIndexAppend(escrow.RoleSeller, buyer, 2))

	asBuyer, err := manager.EscrowIndexList(escrow.RoleBuyer, buyer)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 4}, asBuyer)

	asSeller, err := manager.EscrowIndexList(escrow.RoleSeller, buyer)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, asSeller)

	asArbiter, err := manager.EscrowIndexList(escrow.RoleArbiter, buyer)
	require.NoError(t, err)
	require.Empty(t, asArbiter)
}

func TestArbiterSet(t *testing.T) {
	manager, _ := newTestManager(t)
	first := testAddr(0x11)
	second := testAddr(0x12)

	exists, err := manager.ArbiterExists(first)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, manager.ArbiterPut(first))
	require.NoError(t, manager.ArbiterPut(second))
	require.NoError(t, manager.ArbiterPut(first)) // idempotent

	members, err := manager.Arbiters()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{first, second}, members)

	require.NoError(t, manager.ArbiterRemove(first))
	require.NoError(t, manager.ArbiterRemove(first)) // idempotent

	exists, err = manager.ArbiterExists(first)
	require.NoError(t, err)
	require.False(t, exists)
	exists, err = manager.ArbiterExists(second)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestFeeBalances(t *testing.T) {
	manager, _ := newTestManager(t)
	addr := testAddr(0x21)

	balance, err := manager.FeeBalanceGet(fees.BucketArbiter, addr)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance.Int64())

	require.NoError(t, manager.FeeBalancePut(fees.BucketArbiter, addr, big.NewInt(42)))
	require.NoError(t, manager.FeeBalancePut(fees.BucketPlatform, addr, big.NewInt(7)))

	balance, err = manager.FeeBalanceGet(fees.BucketArbiter, addr)
	require.NoError(t, err)
	require.Equal(t, int64(42), balance.Int64())

	balance, err = manager.FeeBalanceGet(fees.BucketPlatform, addr)
	require.NoError(t, err)
	require.Equal(t, int64(7), balance.Int64())

	require.Error(t, manager.FeeBalancePut(fees.BucketArbiter, addr, big.NewInt(-1)))
	require.Error(t, manager.FeeBalancePut(fees.BucketArbiter, addr, nil))
}

func TestAccountRoundTrip(t *testing.T) {
	manager, _ := newTestManager(t)
	addr := testAddr(0x31)

	account, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(0), account.Nonce)
	require.Equal(t, int64(0), account.Balance.Int64())

	require.NoError(t, manager.PutAccount(addr, &types.Account{Nonce: 3, Balance: big.NewInt(500)}))
	account, err = manager.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), account.Nonce)
	require.Equal(t, int64(500), account.Balance.Int64())

	require.Error(t, manager.PutAccount(addr, nil))
	require.Error(t, manager.PutAccount(addr, &types.Account{Balance: big.NewInt(-1)}))
}
