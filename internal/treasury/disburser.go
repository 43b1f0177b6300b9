// Package treasury pays claimed fees out of the hot wallet.
package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/solana"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Chain is the blockchain surface the treasury needs
type Chain interface {
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (string, error)
	Confirm(ctx context.Context, sig string, timeout time.Duration) error
	Status(ctx context.Context, sig string) (solana.TxState, error)
}

// Payout is one transfer owed to a fee earner
type Payout struct {
	TokenID  uint
	EarnerID uint
	To       string
	Amount   decimal.Decimal
}

// Config holds disbursement settings
type Config struct {
	HotWallet        string
	NetworkFeeBuffer decimal.Decimal
	ConfirmTimeout   time.Duration
}

// Disburser moves SOL from the hot wallet to earners
type Disburser struct {
	chain  Chain
	cfg    Config
	logger logrus.FieldLogger
}

// NewDisburser creates a disburser paying from cfg.HotWallet
func NewDisburser(chain Chain, cfg Config, logger logrus.FieldLogger) *Disburser {
	return &Disburser{chain: chain, cfg: cfg, logger: logger}
}

// Disburse pays p if the hot wallet can cover it and the network fee.
//
// A payout the treasury cannot cover yet settles as Pending with a fresh
// reference and no transfer. A transfer that fails outright returns an empty
// Settlement and the error. A transfer whose submission or confirmation is
// uncertain returns an unconfirmed Settled together with ErrConfirmationTimeout
// because funds may already have moved.
func (d *Disburser) Disburse(ctx context.Context, p Payout) (models.Settlement, error) {
	if !p.Amount.IsPositive() {
		return models.Settlement{}, apperrors.ErrInvalidAmount
	}
	if err := solana.ValidateWallet(p.To); err != nil {
		return models.Settlement{}, err
	}

	entry := d.logger.WithFields(logrus.Fields{
		"token_id":   p.TokenID,
		"earner_id":  p.EarnerID,
		"amount_sol": p.Amount.String(),
	})

	balance, err := d.chain.GetBalance(ctx, d.cfg.HotWallet)
	if err != nil {
		metrics.Disbursements.WithLabelValues("error").Inc()
		return models.Settlement{}, err
	}

	required := p.Amount.Add(d.cfg.NetworkFeeBuffer)
	if balance.LessThan(required) {
		settlement := models.Pending(uuid.NewString())
		metrics.Disbursements.WithLabelValues("pending").Inc()
		entry.WithFields(logrus.Fields{
			"balance_sol":  balance.String(),
			"required_sol": required.String(),
			"reference":    settlement.Reference,
		}).Warn("Treasury balance insufficient, payout deferred")
		return settlement, nil
	}

	sig, err := d.chain.Transfer(ctx, d.cfg.HotWallet, p.To, p.Amount)
	if err != nil && sig == "" {
		metrics.Disbursements.WithLabelValues("failed").Inc()
		entry.WithError(err).Error("Payout transfer failed")
		return models.Settlement{}, err
	}
	entry = entry.WithField("signature", sig)
	if err != nil {
		entry.WithError(err).Warn("Payout submission uncertain, checking signature")
	}

	err = d.chain.Confirm(ctx, sig, d.cfg.ConfirmTimeout)
	switch {
	case err == nil:
		metrics.Disbursements.WithLabelValues("confirmed").Inc()
		entry.Info("Payout confirmed")
		return models.Settled(sig, true), nil
	case errors.Is(err, apperrors.ErrTransactionFailed):
		metrics.Disbursements.WithLabelValues("failed").Inc()
		entry.WithError(err).Error("Payout failed on chain")
		return models.Settlement{}, err
	default:
		metrics.Disbursements.WithLabelValues("unconfirmed").Inc()
		entry.WithError(err).Warn("Payout submitted but not confirmed")
		if !errors.Is(err, apperrors.ErrConfirmationTimeout) {
			err = apperrors.ErrConfirmationTimeout.Wrap(err)
		}
		return models.Settled(sig, false), err
	}
}
