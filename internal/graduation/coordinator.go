// Package graduation migrates completed bonding curves into liquidity pools.
package graduation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/liquidity"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/pricing"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/token"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Migration steps in execution order
const (
	StepMetadataCreated = "metadata_created"
	StepLockerCreated   = "locker_created"
	StepMigrated        = "migrated"
	StepLPLocked        = "lp_locked"
	StepGraduated       = "graduated"
)

// TopicGraduations carries Event payloads
const TopicGraduations = "graduations"

const (
	maxErrorLength = 512

	defaultLeaseTTL = 10 * time.Minute
)

// Publisher fans events out to feed subscribers
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Event is published when a migration step completes or fails
type Event struct {
	TokenID     uint      `json:"token_id"`
	Step        string    `json:"step"`
	Failed      bool      `json:"failed"`
	PoolAddress string    `json:"pool_address,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Config controls migration. LeaseTTL defaults to twice StepTimeout plus a
// margin, so a live run always renews before its lease lapses.
type Config struct {
	CreateLocker        bool
	MaxAttempts         int
	StepTimeout         time.Duration
	LeaseTTL            time.Duration
	InitialVirtualToken decimal.Decimal
}

// Service defines graduation operations
type Service interface {
	TriggerGraduationCheck(ctx context.Context, tokenID uint) (*models.PoolMigration, error)
	Migration(ctx context.Context, tokenID uint) (*models.PoolMigration, error)
	PoolFeeMetrics(ctx context.Context, tokenID uint) (*liquidity.PoolFeeMetrics, error)
}

// Coordinator drives a token through the migration steps. Every step checks
// whether its on-chain effect already exists before acting and is persisted
// before the next begins, so a run can resume from any interruption. A lease
// on the migration row keeps runs for one token from overlapping across
// processes.
type Coordinator struct {
	tokens    token.Repository
	repo      Repository
	protocol  liquidity.Protocol
	publisher Publisher
	cfg       Config
	logger    logrus.FieldLogger
}

// NewCoordinator creates a graduation coordinator. publisher may be nil.
func NewCoordinator(tokens token.Repository, repo Repository, protocol liquidity.Protocol, publisher Publisher,
	cfg Config, logger logrus.FieldLogger) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
		if cfg.StepTimeout > 0 {
			cfg.LeaseTTL = 2*cfg.StepTimeout + 30*time.Second
		}
	}
	return &Coordinator{
		tokens:    tokens,
		repo:      repo,
		protocol:  protocol,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Steps returns the configured step sequence
func (c *Coordinator) Steps() []string {
	steps := []string{StepMetadataCreated}
	if c.cfg.CreateLocker {
		steps = append(steps, StepLockerCreated)
	}
	return append(steps, StepMigrated, StepLPLocked, StepGraduated)
}

func (c *Coordinator) Migration(ctx context.Context, tokenID uint) (*models.PoolMigration, error) {
	m, err := c.repo.GetByToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperrors.ErrTokenNotFound.WithReason("no migration for token %d", tokenID)
	}
	return m, nil
}

// TriggerGraduationCheck migrates tokenID if its curve is complete.
// It is a no-op for graduated tokens, incomplete curves and tokens whose
// migration is running under another lease, and resumes from the last
// persisted step.
func (c *Coordinator) TriggerGraduationCheck(ctx context.Context, tokenID uint) (*models.PoolMigration, error) {
	tok, err := c.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, apperrors.ErrTokenNotFound
	}
	if tok.Status != models.TokenStatusBonding || !pricing.IsComplete(tok.BondingCurveProgress) {
		return c.repo.GetByToken(ctx, tokenID)
	}

	owner := uuid.NewString()
	acquired, err := c.repo.AcquireLease(ctx, tokenID, owner, c.cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return c.repo.GetByToken(ctx, tokenID)
	}
	defer func() {
		if err := c.repo.ReleaseLease(context.Background(), tokenID, owner); err != nil {
			c.logger.WithError(err).WithField("token_id", tokenID).Warn("Graduation lease release failed")
		}
	}()

	// Another process may have finished or failed the token before the lease
	// came free
	if tok, err = c.tokens.GetByID(ctx, tokenID); err != nil {
		return nil, err
	}
	m, err := c.repo.GetByToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if tok == nil || m == nil {
		return nil, apperrors.ErrTokenNotFound
	}
	if m.Succeeded || tok.Status != models.TokenStatusBonding {
		return m, nil
	}

	entry := c.logger.WithFields(logrus.Fields{"token_id": tokenID, "attempt": m.Attempts + 1})
	entry.Info("Graduation started")

	for _, step := range c.Steps() {
		if m.HasCompleted(step) {
			continue
		}

		held, err := c.repo.RenewLease(ctx, tokenID, owner, c.cfg.LeaseTTL)
		if err != nil {
			return m, err
		}
		if !held {
			entry.WithField("step", step).Warn("Graduation lease lost, stopping")
			return m, apperrors.ErrMigrationInProgress
		}

		if err := c.runStep(ctx, step, tok, m); err != nil {
			return m, c.fail(ctx, tok, m, step, err, entry)
		}

		m.CompletedSteps = append(m.CompletedSteps, step)
		m.LastCompletedStep = step
		if step == StepGraduated {
			m.Succeeded = true
			m.Failed = false
			m.LastError = ""
		}
		if err := c.repo.Save(ctx, m); err != nil {
			return m, err
		}

		metrics.GraduationSteps.WithLabelValues(step, "ok").Inc()
		entry.WithField("step", step).Info("Graduation step completed")
		c.publish(Event{TokenID: tokenID, Step: step, PoolAddress: m.PoolAddress})
	}
	return m, nil
}

func (c *Coordinator) runStep(ctx context.Context, step string, tok *models.Token, m *models.PoolMigration) error {
	if c.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.StepTimeout)
		defer cancel()
	}

	switch step {
	case StepMetadataCreated:
		res, err := c.protocol.GetMetadata(ctx, tok.Mint)
		if err != nil || res != nil {
			return err
		}
		res, err = c.protocol.CreateMetadata(ctx, liquidity.MetadataRequest{Mint: tok.Mint, Name: tok.Name, Symbol: tok.Symbol})
		if err != nil {
			return err
		}
		recordSignature(m, res.Signature)

	case StepLockerCreated:
		res, err := c.protocol.GetLocker(ctx, tok.Mint)
		if err != nil || res != nil {
			return err
		}
		res, err = c.protocol.CreateLocker(ctx, liquidity.LockerRequest{Mint: tok.Mint, Creator: tok.CreatorWallet})
		if err != nil {
			return err
		}
		recordSignature(m, res.Signature)

	case StepMigrated:
		pool, err := c.protocol.GetPool(ctx, tok.Mint)
		if err != nil {
			return err
		}
		if pool == nil {
			if pool, err = c.protocol.CreatePool(ctx, tok.Mint); err != nil {
				return err
			}
			recordSignature(m, pool.Signature)
		}
		m.PoolAddress = pool.Address
		if pool.Funded {
			return nil
		}
		res, err := c.protocol.Migrate(ctx, pool.Address, liquidity.MigrateRequest{
			Mint:        tok.Mint,
			SolAmount:   tok.RealSolReserves,
			TokenAmount: c.remainingTokens(tok),
		})
		if err != nil {
			return err
		}
		recordSignature(m, res.Signature)

	case StepLPLocked:
		pool, err := c.protocol.GetPool(ctx, tok.Mint)
		if err != nil {
			return err
		}
		if pool == nil {
			return apperrors.ErrProtocol.WithReason("pool for %s disappeared", tok.Mint)
		}
		if pool.LPLocked {
			return nil
		}
		res, err := c.protocol.LockLP(ctx, pool.Address)
		if err != nil {
			return err
		}
		recordSignature(m, res.Signature)

	case StepGraduated:
		return c.tokens.UpdateStatus(ctx, tok.ID, models.TokenStatusGraduated, models.MigrationStatusGraduated)
	}
	return nil
}

// remainingTokens is the real token inventory left on the curve
func (c *Coordinator) remainingTokens(tok *models.Token) decimal.Decimal {
	initial := c.cfg.InitialVirtualToken
	if initial.IsZero() {
		initial = tok.TotalSupply
	}
	sold := initial.Sub(tok.VirtualTokenReserves)
	return decimal.Max(tok.TotalSupply.Sub(sold), decimal.Zero)
}

func (c *Coordinator) fail(ctx context.Context, tok *models.Token, m *models.PoolMigration, step string, cause error, entry *logrus.Entry) error {
	metrics.GraduationSteps.WithLabelValues(step, "failed").Inc()

	m.Failed = true
	m.Attempts++
	m.LastError = cause.Error()
	if len(m.LastError) > maxErrorLength {
		m.LastError = m.LastError[:maxErrorLength]
	}
	if err := c.repo.Save(ctx, m); err != nil {
		entry.WithError(err).Error("Failed to persist migration failure")
	}

	status := models.TokenStatusBonding
	if m.Attempts >= c.cfg.MaxAttempts {
		status = models.TokenStatusFailed
	}
	if err := c.tokens.UpdateStatus(ctx, tok.ID, status, models.MigrationStatusFailed); err != nil {
		entry.WithError(err).Error("Failed to mark token migration failed")
	}

	entry.WithFields(logrus.Fields{
		"step":         step,
		"last_step":    m.LastCompletedStep,
		"attempts":     m.Attempts,
		"max_attempts": c.cfg.MaxAttempts,
		"error":        cause.Error(),
	}).Error("Graduation step failed")
	c.publish(Event{TokenID: tok.ID, Step: step, Failed: true, PoolAddress: m.PoolAddress})
	return cause
}

func (c *Coordinator) PoolFeeMetrics(ctx context.Context, tokenID uint) (*liquidity.PoolFeeMetrics, error) {
	tok, err := c.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, apperrors.ErrTokenNotFound
	}
	if tok.Status != models.TokenStatusGraduated {
		return nil, apperrors.ErrInvalidRequest.WithReason("token %d has not graduated", tokenID)
	}

	m, err := c.Migration(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return c.protocol.GetPoolFeeMetrics(ctx, m.PoolAddress)
}

func (c *Coordinator) publish(e Event) {
	if c.publisher == nil {
		return
	}
	e.Timestamp = time.Now()
	c.publisher.Publish(TopicGraduations, e)
}

func recordSignature(m *models.PoolMigration, sig string) {
	if sig != "" {
		m.Signatures = append(m.Signatures, sig)
	}
}
