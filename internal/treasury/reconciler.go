package treasury

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/fee"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/solana"
	"github.com/sirupsen/logrus"
)

const (
	reconcileBatch = 100

	// A signature still unknown after this long was never included; its
	// blockhash has expired.
	defaultDroppedAfter = 2 * time.Minute
)

// Summary counts what one reconciliation pass resolved. Submitted counts
// deferred claims paid this pass whose confirmation is still outstanding.
type Summary struct {
	Paid      int `json:"paid"`
	Submitted int `json:"submitted"`
	Confirmed int `json:"confirmed"`
	Reverted  int `json:"reverted"`
	Open      int `json:"open"`
}

// Reconciler settles deferred payouts once the treasury is funded and
// resolves payouts whose confirmation was never observed.
type Reconciler struct {
	repo         Repository
	fees         fee.Service
	disburser    *Disburser
	chain        Chain
	logger       logrus.FieldLogger
	droppedAfter time.Duration
	now          func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReconciler creates a reconciler over the claim ledger
func NewReconciler(repo Repository, fees fee.Service, disburser *Disburser, chain Chain, logger logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		repo:         repo,
		fees:         fees,
		disburser:    disburser,
		chain:        chain,
		logger:       logger,
		droppedAfter: defaultDroppedAfter,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// RunOnce performs a single reconciliation pass
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	pending, err := r.repo.ListPending(ctx, reconcileBatch)
	if err != nil {
		return summary, err
	}
	for _, claim := range pending {
		switch r.payPending(ctx, claim) {
		case models.ReconciliationPaid:
			summary.Paid++
		case models.ReconciliationUnconfirmed:
			summary.Submitted++
		default:
			summary.Open++
		}
	}
	metrics.PendingClaims.Set(float64(summary.Open))

	unconfirmed, err := r.repo.ListUnconfirmed(ctx, r.now().Add(-r.droppedAfter), reconcileBatch)
	if err != nil {
		return summary, err
	}
	for _, u := range unconfirmed {
		switch r.resolveUnconfirmed(ctx, u) {
		case models.ReconciliationConfirmed:
			summary.Confirmed++
		case models.ReconciliationReverted:
			summary.Reverted++
		default:
			summary.Open++
		}
	}

	if summary.Paid+summary.Submitted+summary.Confirmed+summary.Reverted > 0 {
		r.logger.WithFields(logrus.Fields{
			"paid":      summary.Paid,
			"submitted": summary.Submitted,
			"confirmed": summary.Confirmed,
			"reverted":  summary.Reverted,
			"open":      summary.Open,
		}).Info("Claim reconciliation pass completed")
	}
	return summary, nil
}

// payPending pays a deferred claim once. The claim is marked submitting before
// any transfer, and the mark is only dropped when nothing was broadcast.
func (r *Reconciler) payPending(ctx context.Context, claim *models.FeeClaim) models.ReconciliationOutcome {
	entry := r.logger.WithFields(logrus.Fields{"claim_id": claim.ID, "earner_id": claim.EarnerID})

	earner, err := r.repo.GetEarner(ctx, claim.EarnerID)
	if err != nil || earner == nil {
		entry.WithError(err).Error("Pending claim has no earner")
		return ""
	}

	started, err := r.repo.Transition(ctx, claim.ID, "", models.ReconciliationSubmitting, "")
	if err != nil {
		entry.WithError(err).Error("Failed to mark pending claim in flight")
		return ""
	}
	if !started {
		entry.Debug("Pending claim already in flight")
		return ""
	}

	settlement, err := r.disburser.Disburse(ctx, Payout{
		TokenID:  claim.TokenID,
		EarnerID: claim.EarnerID,
		To:       earner.WalletAddress,
		Amount:   claim.AmountSol,
	})

	// Funds may have moved; the outcome must be written even if ctx is done
	store := context.WithoutCancel(ctx)

	if settlement.IsPending() || settlement.Reference == "" {
		if !settlement.IsPending() {
			entry.WithError(err).Warn("Pending claim payout failed, will retry")
		}
		if err := r.repo.Abandon(store, claim.ID); err != nil {
			entry.WithError(err).Error("Pending claim left in flight")
		}
		return ""
	}

	to := models.ReconciliationPaid
	if !settlement.Confirmed {
		to = models.ReconciliationUnconfirmed
		entry.WithError(err).WithField("signature", settlement.Reference).Warn("Pending claim paid without confirmation")
	}

	moved, err := r.repo.Transition(store, claim.ID, models.ReconciliationSubmitting, to, settlement.Reference)
	if err != nil || !moved {
		// The row stays submitting so the claim is never paid again
		metrics.InvariantViolations.WithLabelValues("CLAIM_PAYOUT_UNRECORDED").Inc()
		entry.WithError(err).WithField("signature", settlement.Reference).Error("Pending claim paid but not recorded")
		return ""
	}
	metrics.Reconciliations.WithLabelValues(string(to)).Inc()
	return to
}

func (r *Reconciler) resolveUnconfirmed(ctx context.Context, u *Unconfirmed) models.ReconciliationOutcome {
	claim, sig := u.Claim, u.Signature
	entry := r.logger.WithFields(logrus.Fields{"claim_id": claim.ID, "signature": sig})

	state, err := r.chain.Status(ctx, sig)
	if err != nil {
		entry.WithError(err).Warn("Signature status lookup failed")
		return ""
	}

	switch state {
	case solana.TxConfirmed:
		moved, err := r.repo.Transition(ctx, claim.ID, u.State, models.ReconciliationConfirmed, sig)
		if err != nil {
			entry.WithError(err).Error("Failed to record confirmation")
			return ""
		}
		if !moved {
			entry.Debug("Claim already reconciled")
			return ""
		}
		metrics.Reconciliations.WithLabelValues(string(models.ReconciliationConfirmed)).Inc()
		return models.ReconciliationConfirmed

	case solana.TxFailed, solana.TxUnknown:
		if err := r.fees.Revert(ctx, claim, sig, u.State); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyReconciled) {
				entry.Debug("Claim already reconciled")
			} else {
				entry.WithError(err).Error("Failed to revert claim")
			}
			return ""
		}
		metrics.Reconciliations.WithLabelValues(string(models.ReconciliationReverted)).Inc()
		entry.WithField("state", state).Warn("Payout never landed, claim reverted")
		return models.ReconciliationReverted
	}
	return ""
}

// Start runs RunOnce every interval until Stop
func (r *Reconciler) Start(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.WithField("interval", interval.String()).Info("Started claim reconciliation")

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if _, err := r.RunOnce(ctx); err != nil {
					r.logger.WithError(err).Error("Claim reconciliation failed")
				}
				cancel()
			case <-r.stopCh:
				r.logger.Info("Stopping claim reconciliation")
				return
			}
		}
	}()
}

// Stop halts the periodic job and waits for an in-flight pass
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}
