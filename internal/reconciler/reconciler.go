// Package reconciler promotes locally recorded payments once their
// transactions confirm on chain. It is the only writer of participant
// payment statuses after a payment is recorded.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nack098/adasplit/internal/bill"
	"github.com/nack098/adasplit/internal/cardano"
)

// Reconciler polls the ledger on a fixed interval and reconciles
// confirmation state against the stored bills.
type Reconciler struct {
	store        bill.Store
	ledger       cardano.Ledger
	pollInterval time.Duration
	expireAfter  time.Duration
	nowFn        func() time.Time
}

// New constructs a reconciler with sane defaults.
func New(store bill.Store, ledger cardano.Ledger, pollInterval, expireAfter time.Duration) *Reconciler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Reconciler{
		store:        store,
		ledger:       ledger,
		pollInterval: pollInterval,
		expireAfter:  expireAfter,
		nowFn:        time.Now,
	}
}

// Run starts the polling loop until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one reconciliation pass. An error on one bill never aborts
// the others: each bill is reconciled independently and failures are logged
// and retried on the next tick.
func (r *Reconciler) Tick(ctx context.Context) {
	bills, err := r.store.FindByStatus(ctx, bill.StatusPending, bill.StatusPartial, bill.StatusComplete)
	if err != nil {
		slog.Error("Reconciler: failed to load bills", "error", err)
		return
	}
	for i := range bills {
		b := bills[i]
		if r.expireBill(ctx, &b) {
			continue
		}
		r.reconcileParticipants(ctx, &b)
		r.reconcileSettlement(ctx, &b)
	}
}

// reconcileParticipants queries every unconfirmed participant payment and
// persists the whole participant list in one update when anything changed.
// A transient query failure leaves the participant pending; failed is
// reserved for conclusive negative outcomes, which this indexer never
// reports, so a slow-but-valid payment is never abandoned.
func (r *Reconciler) reconcileParticipants(ctx context.Context, b *bill.Bill) {
	if len(b.UnconfirmedParticipants()) == 0 {
		return
	}
	changed := false
	for i := range b.Participants {
		p := &b.Participants[i]
		if p.PaymentStatus == bill.PaymentPaid {
			continue
		}
		status, err := r.ledger.TxStatus(ctx, p.PaymentTxHash)
		if err != nil {
			slog.Warn("Reconciler: tx status query failed",
				"bill_id", b.ID, "tx_hash", p.PaymentTxHash, "error", err)
			continue
		}
		if status == cardano.TxConfirmed {
			p.PaymentStatus = bill.PaymentPaid
			changed = true
			slog.Info("Reconciler: payment confirmed",
				"bill_id", b.ID, "address", p.Address, "tx_hash", p.PaymentTxHash)
		}
	}
	if !changed {
		return
	}
	status := bill.DeriveStatus(b.Status, b.Participants, b.ParticipantCount)
	if err := r.store.UpdateParticipants(ctx, b.ID, b.Participants, status); err != nil {
		slog.Error("Reconciler: failed to persist participants", "bill_id", b.ID, "error", err)
	}
}

// reconcileSettlement promotes a complete bill to settled once its recorded
// settlement transaction confirms.
func (r *Reconciler) reconcileSettlement(ctx context.Context, b *bill.Bill) {
	if b.Status != bill.StatusComplete || b.SettlementTxHash == "" {
		return
	}
	status, err := r.ledger.TxStatus(ctx, b.SettlementTxHash)
	if err != nil {
		slog.Warn("Reconciler: settlement status query failed",
			"bill_id", b.ID, "tx_hash", b.SettlementTxHash, "error", err)
		return
	}
	if status != cardano.TxConfirmed {
		return
	}
	if err := r.store.SetStatus(ctx, b.ID, bill.StatusSettled); err != nil {
		slog.Error("Reconciler: failed to mark bill settled", "bill_id", b.ID, "error", err)
		return
	}
	slog.Info("Reconciler: bill settled", "bill_id", b.ID, "tx_hash", b.SettlementTxHash)
}

// expireBill flips an abandoned pending or partial bill to expired once the
// configured window has passed. Disabled when no window is configured.
func (r *Reconciler) expireBill(ctx context.Context, b *bill.Bill) bool {
	if r.expireAfter <= 0 {
		return false
	}
	if b.Status != bill.StatusPending && b.Status != bill.StatusPartial {
		return false
	}
	if r.nowFn().Before(b.CreatedAt.Add(r.expireAfter)) {
		return false
	}
	if err := r.store.SetStatus(ctx, b.ID, bill.StatusExpired); err != nil {
		slog.Error("Reconciler: failed to expire bill", "bill_id", b.ID, "error", err)
		return false
	}
	slog.Info("Reconciler: bill expired", "bill_id", b.ID, "created_at", b.CreatedAt)
	return true
}
