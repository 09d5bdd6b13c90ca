package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nack098/adasplit/internal/bill"
	"github.com/nack098/adasplit/internal/cardano"
)

// fakeStore is the minimal Store the reconciler exercises.
type fakeStore struct {
	bills map[string]*bill.Bill
}

func newFakeStore(bills ...*bill.Bill) *fakeStore {
	s := &fakeStore{bills: make(map[string]*bill.Bill)}
	for _, b := range bills {
		s.bills[b.ID] = b
	}
	return s
}

func (s *fakeStore) CreateBill(_ context.Context, b *bill.Bill) error {
	s.bills[b.ID] = b
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*bill.Bill, error) {
	b, ok := s.bills[id]
	if !ok {
		return nil, bill.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) FindByCreator(_ context.Context, _ string) ([]bill.Bill, error) {
	return nil, nil
}

func (s *fakeStore) FindByParticipant(_ context.Context, _ string) ([]bill.Bill, error) {
	return nil, nil
}

func (s *fakeStore) FindByStatus(_ context.Context, statuses ...bill.Status) ([]bill.Bill, error) {
	var out []bill.Bill
	for _, b := range s.bills {
		for _, st := range statuses {
			if b.Status == st {
				cp := *b
				cp.Participants = append([]bill.Participant(nil), b.Participants...)
				out = append(out, cp)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) AppendParticipant(_ context.Context, _ string, _ bill.Participant) (*bill.Bill, error) {
	panic("not used by the reconciler")
}

func (s *fakeStore) UpdateParticipants(_ context.Context, billID string, participants []bill.Participant, status bill.Status) error {
	b, ok := s.bills[billID]
	if !ok {
		return bill.ErrNotFound
	}
	b.Participants = append([]bill.Participant(nil), participants...)
	b.Status = status
	return nil
}

func (s *fakeStore) SetStatus(_ context.Context, billID string, status bill.Status) error {
	b, ok := s.bills[billID]
	if !ok {
		return bill.ErrNotFound
	}
	b.Status = status
	return nil
}

func (s *fakeStore) SetSettlementTx(_ context.Context, billID, txHash string) error {
	b, ok := s.bills[billID]
	if !ok {
		return bill.ErrNotFound
	}
	b.SettlementTxHash = txHash
	return nil
}

// scriptedLedger answers TxStatus from a per-hash script of one status or
// error per call.
type scriptedLedger struct {
	statuses map[string]cardano.TxStatus
	errs     map[string]error
	queried  []string
}

func (l *scriptedLedger) UTXOsAt(_ context.Context, _ string) ([]cardano.UTXO, error) {
	return nil, nil
}

func (l *scriptedLedger) TxStatus(_ context.Context, txHash string) (cardano.TxStatus, error) {
	l.queried = append(l.queried, txHash)
	if err, ok := l.errs[txHash]; ok {
		return cardano.TxPending, err
	}
	if st, ok := l.statuses[txHash]; ok {
		return st, nil
	}
	return cardano.TxNotFound, nil
}

func pendingParticipant(address, txHash string) bill.Participant {
	return bill.Participant{
		Address:       address,
		AmountPaid:    10,
		PaymentTxHash: txHash,
		PaymentStatus: bill.PaymentPending,
		PaidAt:        time.Now().UTC(),
	}
}

func testBill(id string, status bill.Status, count int, participants ...bill.Participant) *bill.Bill {
	return &bill.Bill{
		ID:               id,
		CreatorAddress:   "addr_test1creator",
		Title:            "Trip",
		TotalAmount:      float64(count) * 10,
		ParticipantCount: count,
		Status:           status,
		Participants:     participants,
		CreatedAt:        time.Now().UTC(),
	}
}

func newReconciler(store bill.Store, ledger cardano.Ledger) *Reconciler {
	return New(store, ledger, time.Minute, 0)
}

func TestTickConfirmsParticipants(t *testing.T) {
	b := testBill("b1", bill.StatusPartial, 3,
		pendingParticipant("p1", "tx-1"),
		pendingParticipant("p2", "tx-2"),
	)
	store := newFakeStore(b)
	ledger := &scriptedLedger{statuses: map[string]cardano.TxStatus{
		"tx-1": cardano.TxConfirmed,
		"tx-2": cardano.TxPending,
	}}

	newReconciler(store, ledger).Tick(context.Background())

	assert.Equal(t, bill.PaymentPaid, b.Participants[0].PaymentStatus)
	assert.Equal(t, bill.PaymentPending, b.Participants[1].PaymentStatus)
	assert.Equal(t, bill.StatusPartial, b.Status)
}

func TestTickPromotesToComplete(t *testing.T) {
	b := testBill("b1", bill.StatusPartial, 2,
		pendingParticipant("p1", "tx-1"),
		pendingParticipant("p2", "tx-2"),
	)
	store := newFakeStore(b)
	ledger := &scriptedLedger{statuses: map[string]cardano.TxStatus{
		"tx-1": cardano.TxConfirmed,
		"tx-2": cardano.TxConfirmed,
	}}

	newReconciler(store, ledger).Tick(context.Background())

	assert.Equal(t, bill.StatusComplete, b.Status)
	for _, p := range b.Participants {
		assert.Equal(t, bill.PaymentPaid, p.PaymentStatus)
	}
}

func TestTickKeepsPendingOnTransientError(t *testing.T) {
	b := testBill("b1", bill.StatusPartial, 2,
		pendingParticipant("p1", "tx-1"),
	)
	store := newFakeStore(b)
	ledger := &scriptedLedger{errs: map[string]error{
		"tx-1": cardano.ErrLedgerTransient,
	}}
	rec := newReconciler(store, ledger)

	for i := 0; i < 3; i++ {
		rec.Tick(context.Background())
	}

	// Never downgraded to failed, retried every tick.
	assert.Equal(t, bill.PaymentPending, b.Participants[0].PaymentStatus)
	assert.Len(t, ledger.queried, 3)
}

func TestTickUnknownTxStaysPending(t *testing.T) {
	b := testBill("b1", bill.StatusPartial, 2,
		pendingParticipant("p1", "tx-unseen"),
	)
	store := newFakeStore(b)
	ledger := &scriptedLedger{}

	newReconciler(store, ledger).Tick(context.Background())

	assert.Equal(t, bill.PaymentPending, b.Participants[0].PaymentStatus)
	assert.Equal(t, bill.StatusPartial, b.Status)
}

func TestTickIsolatesBillFailures(t *testing.T) {
	broken := testBill("b1", bill.StatusPartial, 2,
		pendingParticipant("p1", "tx-broken"),
	)
	healthy := testBill("b2", bill.StatusPartial, 2,
		pendingParticipant("p2", "tx-good"),
	)
	store := newFakeStore(broken, healthy)
	ledger := &scriptedLedger{
		statuses: map[string]cardano.TxStatus{"tx-good": cardano.TxConfirmed},
		errs:     map[string]error{"tx-broken": errors.New("boom")},
	}

	newReconciler(store, ledger).Tick(context.Background())

	assert.Equal(t, bill.PaymentPending, broken.Participants[0].PaymentStatus)
	assert.Equal(t, bill.PaymentPaid, healthy.Participants[0].PaymentStatus)
}

func TestTickSettlesConfirmedSettlement(t *testing.T) {
	paid := pendingParticipant("p1", "tx-1")
	paid.PaymentStatus = bill.PaymentPaid
	b := testBill("b1", bill.StatusComplete, 1, paid)
	b.SettlementTxHash = "settle-tx"
	store := newFakeStore(b)
	ledger := &scriptedLedger{statuses: map[string]cardano.TxStatus{
		"settle-tx": cardano.TxConfirmed,
	}}

	newReconciler(store, ledger).Tick(context.Background())

	assert.Equal(t, bill.StatusSettled, b.Status)
}

func TestTickLeavesUnconfirmedSettlement(t *testing.T) {
	paid := pendingParticipant("p1", "tx-1")
	paid.PaymentStatus = bill.PaymentPaid
	b := testBill("b1", bill.StatusComplete, 1, paid)
	b.SettlementTxHash = "settle-tx"
	store := newFakeStore(b)
	ledger := &scriptedLedger{statuses: map[string]cardano.TxStatus{
		"settle-tx": cardano.TxPending,
	}}

	newReconciler(store, ledger).Tick(context.Background())

	assert.Equal(t, bill.StatusComplete, b.Status)
}

func TestTickSkipsCompleteWithoutSettlementTx(t *testing.T) {
	paid := pendingParticipant("p1", "tx-1")
	paid.PaymentStatus = bill.PaymentPaid
	b := testBill("b1", bill.StatusComplete, 1, paid)
	store := newFakeStore(b)
	ledger := &scriptedLedger{}

	newReconciler(store, ledger).Tick(context.Background())

	assert.Equal(t, bill.StatusComplete, b.Status)
	assert.Empty(t, ledger.queried)
}

func TestTickExpiresAbandonedBills(t *testing.T) {
	stale := testBill("b1", bill.StatusPending, 2)
	stale.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := testBill("b2", bill.StatusPartial, 2,
		pendingParticipant("p1", "tx-1"),
	)
	store := newFakeStore(stale, fresh)
	ledger := &scriptedLedger{}

	rec := New(store, ledger, time.Minute, 24*time.Hour)
	rec.Tick(context.Background())

	assert.Equal(t, bill.StatusExpired, stale.Status)
	assert.Equal(t, bill.StatusPartial, fresh.Status)
}

func TestExpiryDisabledWithoutWindow(t *testing.T) {
	stale := testBill("b1", bill.StatusPending, 2)
	stale.CreatedAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	store := newFakeStore(stale)

	newReconciler(store, &scriptedLedger{}).Tick(context.Background())

	assert.Equal(t, bill.StatusPending, stale.Status)
}

func TestExpiredBillSkipsReconciliation(t *testing.T) {
	stale := testBill("b1", bill.StatusPartial, 2,
		pendingParticipant("p1", "tx-1"),
	)
	stale.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	store := newFakeStore(stale)
	ledger := &scriptedLedger{statuses: map[string]cardano.TxStatus{
		"tx-1": cardano.TxConfirmed,
	}}

	rec := New(store, ledger, time.Minute, 24*time.Hour)
	rec.Tick(context.Background())

	// The bill expired before the payment query ran.
	assert.Equal(t, bill.StatusExpired, stale.Status)
	assert.Empty(t, ledger.queried)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	rec := New(store, &scriptedLedger{}, 5*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}

func TestNewDefaultsPollInterval(t *testing.T) {
	rec := New(newFakeStore(), &scriptedLedger{}, 0, 0)
	require.NotNil(t, rec)
	assert.Equal(t, time.Minute, rec.pollInterval)
}
