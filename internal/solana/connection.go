package solana

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPollInterval = 500 * time.Millisecond

// TxState is the coarse on-chain state of a submitted transaction
type TxState string

const (
	TxUnknown   TxState = "unknown"
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
)

// Connection is the blockchain surface used by disbursement and reconciliation
type Connection struct {
	rpc          *RPCClient
	signer       Signer
	pollInterval time.Duration
	logger       logrus.FieldLogger
}

// NewConnection wires an RPC client to a signer
func NewConnection(rpc *RPCClient, signer Signer, logger logrus.FieldLogger) *Connection {
	return &Connection{
		rpc:          rpc,
		signer:       signer,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
}

// SetPollInterval overrides the confirmation polling interval
func (c *Connection) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}

// GetBalance returns the balance of address in SOL, read fresh from the chain
func (c *Connection) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	lamports, err := c.rpc.GetBalance(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return FromLamports(lamports), nil
}

// Transfer signs and submits a SOL transfer and returns its signature.
// Submission is attempted once. A node rejection returns ErrTransactionFailed
// and no signature. When the send fails in transport the transaction may still
// have been broadcast, so the signature is returned with ErrSubmissionUncertain.
func (c *Connection) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (string, error) {
	lamports := ToLamports(amount)
	if lamports == 0 {
		return "", apperrors.ErrInvalidAmount
	}

	blockhash, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", apperrors.ErrTransactionFailed.Wrap(err)
	}

	signed, err := c.signer.SignTransfer(ctx, TransferInstruction{
		From:            from,
		To:              to,
		Lamports:        lamports,
		RecentBlockhash: blockhash,
	})
	if err != nil {
		return "", err
	}

	sig, err := TransactionSignature(signed)
	if err != nil {
		return "", err
	}
	entry := c.logger.WithFields(logrus.Fields{
		"signature": sig,
		"to":        to,
		"lamports":  lamports,
	})

	sent, err := c.rpc.SendTransaction(ctx, signed)
	if err != nil {
		var rejected *rpcError
		if errors.As(err, &rejected) {
			return "", apperrors.ErrTransactionFailed.Wrap(err)
		}
		entry.WithError(err).Warn("Transfer submission outcome unknown")
		return sig, apperrors.ErrSubmissionUncertain.Wrap(err)
	}
	if sent != sig {
		entry.WithField("node_signature", sent).Warn("Node returned a different signature")
	}

	entry.Info("Transfer submitted")
	return sig, nil
}

// Confirm polls until sig reaches confirmed commitment.
// It returns ErrTransactionFailed if the transaction landed with an error and
// ErrConfirmationTimeout if timeout elapses first.
func (c *Connection) Confirm(ctx context.Context, sig string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		state, err := c.Status(ctx, sig)
		switch {
		case err != nil && ctx.Err() != nil:
			return apperrors.ErrConfirmationTimeout.WithReason("signature %s", sig)
		case err != nil:
			c.logger.WithError(err).WithField("signature", sig).Warn("Signature status lookup failed")
		case state == TxConfirmed:
			return nil
		case state == TxFailed:
			return apperrors.ErrTransactionFailed.WithReason("signature %s failed on chain", sig)
		}

		select {
		case <-ctx.Done():
			return apperrors.ErrConfirmationTimeout.WithReason("signature %s", sig)
		case <-ticker.C:
		}
	}
}

// Status returns the current state of sig
func (c *Connection) Status(ctx context.Context, sig string) (TxState, error) {
	statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{sig})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return TxUnknown, ctx.Err()
		}
		return TxUnknown, err
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return TxUnknown, nil
	}
	s := statuses[0]
	switch {
	case s.Failed():
		return TxFailed, nil
	case s.Confirmed():
		return TxConfirmed, nil
	default:
		return TxPending, nil
	}
}
