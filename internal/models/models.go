package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TokenStatus is the trading phase of a token
type TokenStatus string

const (
	TokenStatusBonding   TokenStatus = "bonding"
	TokenStatusGraduated TokenStatus = "graduated"
	TokenStatusFailed    TokenStatus = "failed"
)

// Migration status markers stored on Token.MigrationStatus
const (
	MigrationStatusNone      = ""
	MigrationStatusQueued    = "queued"
	MigrationStatusFailed    = "migration_failed"
	MigrationStatusGraduated = "graduated"
)

// Token is a launched asset trading against the bonding curve
type Token struct {
	ID                     uint            `json:"id" gorm:"primaryKey"`
	Mint                   string          `json:"mint" gorm:"uniqueIndex;not null;size:44"`
	Name                   string          `json:"name" gorm:"not null;size:100"`
	Symbol                 string          `json:"symbol" gorm:"not null;size:20;index"`
	CreatorWallet          string          `json:"creator_wallet" gorm:"not null;size:44;index"`
	TotalSupply            decimal.Decimal `json:"total_supply" gorm:"type:decimal(36,18);not null"`
	VirtualSolReserves     decimal.Decimal `json:"virtual_sol_reserves" gorm:"type:decimal(36,18);not null"`
	VirtualTokenReserves   decimal.Decimal `json:"virtual_token_reserves" gorm:"type:decimal(36,18);not null"`
	RealSolReserves        decimal.Decimal `json:"real_sol_reserves" gorm:"type:decimal(36,18);not null"`
	GraduationThresholdSol decimal.Decimal `json:"graduation_threshold_sol" gorm:"type:decimal(36,18);not null"`
	BondingCurveProgress   decimal.Decimal `json:"bonding_curve_progress" gorm:"type:decimal(10,4);not null"` // high-water mark, 0-100
	Status                 TokenStatus     `json:"status" gorm:"not null;size:20;index;default:'bonding'"`
	MigrationStatus        string          `json:"migration_status" gorm:"size:32;index"`
	Halted                 bool            `json:"halted" gorm:"default:false"`
	Version                uint64          `json:"version" gorm:"not null;default:0"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// TableName returns the table name for Token model
func (Token) TableName() string {
	return "tokens"
}

// BeforeCreate hook to validate token data
func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.Mint == "" || t.Symbol == "" || t.Name == "" {
		return gorm.ErrInvalidData
	}
	if !t.VirtualSolReserves.IsPositive() || !t.VirtualTokenReserves.IsPositive() {
		return gorm.ErrInvalidData
	}
	if !t.GraduationThresholdSol.IsPositive() {
		return gorm.ErrInvalidData
	}
	if t.Status == "" {
		t.Status = TokenStatusBonding
	}
	return nil
}

// IsTradable reports whether the curve still accepts trades
func (t *Token) IsTradable() bool {
	return t.Status == TokenStatusBonding && !t.Halted && t.MigrationStatus == MigrationStatusNone
}

// EarnerType identifies who receives a share of trading fees
type EarnerType string

const (
	EarnerTypeCreator EarnerType = "creator"
	EarnerTypeSystem  EarnerType = "system"
)

// FeeEarner accumulates a token's trading fees for one party
type FeeEarner struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	TokenID           uint            `json:"token_id" gorm:"not null;uniqueIndex:idx_fee_earner_token_type"`
	EarnerType        EarnerType      `json:"earner_type" gorm:"not null;size:16;uniqueIndex:idx_fee_earner_token_type"`
	ShareBps          int             `json:"share_bps" gorm:"not null"`
	UnclaimedSol      decimal.Decimal `json:"unclaimed_sol" gorm:"type:decimal(36,18);not null"`
	LifetimeEarnedSol decimal.Decimal `json:"lifetime_earned_sol" gorm:"type:decimal(36,18);not null"`
	WalletAddress     string          `json:"wallet_address" gorm:"not null;size:44;index"`
	ProfileID         string          `json:"profile_id,omitempty" gorm:"size:64;index"`
	LastClaimedAt     *time.Time      `json:"last_claimed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName returns the table name for FeeEarner model
func (FeeEarner) TableName() string {
	return "fee_earners"
}

// BeforeCreate hook to validate earner data
func (e *FeeEarner) BeforeCreate(tx *gorm.DB) error {
	if e.TokenID == 0 || e.WalletAddress == "" {
		return gorm.ErrInvalidData
	}
	if e.ShareBps < 0 || e.ShareBps > 10_000 {
		return gorm.ErrInvalidData
	}
	return nil
}

// SettlementKind distinguishes an executed payout from a deferred one
type SettlementKind string

const (
	SettlementSettled SettlementKind = "settled"
	SettlementPending SettlementKind = "pending"
)

// FeeClaim is an immutable receipt of a payout
type FeeClaim struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	EarnerID       uint            `json:"earner_id" gorm:"not null;index"`
	TokenID        uint            `json:"token_id" gorm:"not null;index"`
	AmountSol      decimal.Decimal `json:"amount_sol" gorm:"type:decimal(36,18);not null"`
	SettlementKind SettlementKind  `json:"settlement_kind" gorm:"not null;size:16"`
	SettlementRef  string          `json:"settlement_ref" gorm:"uniqueIndex;not null;size:128"`
	Pending        bool            `json:"pending" gorm:"not null;index"`
	Confirmed      bool            `json:"confirmed" gorm:"not null"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName returns the table name for FeeClaim model
func (FeeClaim) TableName() string {
	return "fee_claims"
}

// BeforeCreate hook to keep the pending flag consistent with the settlement kind
func (c *FeeClaim) BeforeCreate(tx *gorm.DB) error {
	if c.SettlementRef == "" || !c.AmountSol.IsPositive() {
		return gorm.ErrInvalidData
	}
	switch c.SettlementKind {
	case SettlementSettled:
		c.Pending = false
	case SettlementPending:
		c.Pending = true
		c.Confirmed = false
	default:
		return gorm.ErrInvalidData
	}
	return nil
}

// ClaimLock marks a token whose fees are being paid out
type ClaimLock struct {
	TokenID    uint      `json:"token_id" gorm:"primaryKey;autoIncrement:false"`
	Owner      string    `json:"owner" gorm:"not null;size:36"`
	AcquiredAt time.Time `json:"acquired_at" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"not null;index"`
}

// TableName returns the table name for ClaimLock model
func (ClaimLock) TableName() string {
	return "claim_locks"
}

// PoolMigration records a token's one-time move from curve to pool
type PoolMigration struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	TokenID           uint           `json:"token_id" gorm:"uniqueIndex;not null"`
	CompletedSteps    pq.StringArray `json:"completed_steps" gorm:"type:text"`
	LastCompletedStep string         `json:"last_completed_step" gorm:"size:32"`
	PoolAddress       string         `json:"pool_address" gorm:"size:44"`
	Signatures        pq.StringArray `json:"signatures" gorm:"type:text"`
	Succeeded         bool           `json:"succeeded" gorm:"default:false"`
	Failed            bool           `json:"failed" gorm:"default:false"`
	LastError         string         `json:"last_error,omitempty" gorm:"size:512"`
	Attempts          int            `json:"attempts" gorm:"default:0"`
	LeaseOwner        string         `json:"-" gorm:"size:36;default:''"`
	LeaseExpiresAt    *time.Time     `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName returns the table name for PoolMigration model
func (PoolMigration) TableName() string {
	return "pool_migrations"
}

// HasCompleted reports whether step is recorded as done
func (m *PoolMigration) HasCompleted(step string) bool {
	for _, s := range m.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// TradeSide is the direction of a curve trade
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is an executed curve trade
type Trade struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	TokenID        uint            `json:"token_id" gorm:"not null;index"`
	WalletAddress  string          `json:"wallet_address" gorm:"not null;size:44;index"`
	Side           TradeSide       `json:"side" gorm:"not null;size:4"`
	AmountIn       decimal.Decimal `json:"amount_in" gorm:"type:decimal(36,18);not null"`
	AmountOut      decimal.Decimal `json:"amount_out" gorm:"type:decimal(36,18);not null"`
	FeeSol         decimal.Decimal `json:"fee_sol" gorm:"type:decimal(36,18);not null"`
	PriceBefore    decimal.Decimal `json:"price_before" gorm:"type:decimal(36,18)"`
	PriceAfter     decimal.Decimal `json:"price_after" gorm:"type:decimal(36,18)"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct" gorm:"type:decimal(10,4)"`
	CreatedAt      time.Time       `json:"created_at" gorm:"index"`
}

// TableName returns the table name for Trade model
func (Trade) TableName() string {
	return "trades"
}

// ReconciliationOutcome is the state of a pending or unconfirmed claim's
// reconciliation. Submitting and unconfirmed are in flight; the rest are final.
type ReconciliationOutcome string

const (
	ReconciliationSubmitting  ReconciliationOutcome = "submitting"
	ReconciliationUnconfirmed ReconciliationOutcome = "unconfirmed"
	ReconciliationPaid        ReconciliationOutcome = "paid"
	ReconciliationConfirmed   ReconciliationOutcome = "confirmed"
	ReconciliationReverted    ReconciliationOutcome = "reverted"
)

// ClaimReconciliation tracks one pending or unconfirmed FeeClaim until it is
// closed out. There is at most one row per claim.
type ClaimReconciliation struct {
	ID        uint                  `json:"id" gorm:"primaryKey"`
	ClaimID   uint                  `json:"claim_id" gorm:"uniqueIndex;not null"`
	Outcome   ReconciliationOutcome `json:"outcome" gorm:"not null;size:16;index"`
	Signature string                `json:"signature,omitempty" gorm:"size:128"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// TableName returns the table name for ClaimReconciliation model
func (ClaimReconciliation) TableName() string {
	return "claim_reconciliations"
}

// All returns every model for AutoMigrate
func All() []interface{} {
	return []interface{}{
		&Token{},
		&FeeEarner{},
		&FeeClaim{},
		&ClaimLock{},
		&PoolMigration{},
		&Trade{},
		&ClaimReconciliation{},
	}
}

// Settlement is the outcome of a disbursement: either an on-chain signature
// or a synthetic reference for a payout deferred until the treasury is funded.
type Settlement struct {
	Kind      SettlementKind `json:"kind"`
	Reference string         `json:"reference"`
	Confirmed bool           `json:"confirmed"`
}

// Settled is a payout executed on chain under signature
func Settled(signature string, confirmed bool) Settlement {
	return Settlement{Kind: SettlementSettled, Reference: signature, Confirmed: confirmed}
}

// Pending is a payout owed but not yet executed
func Pending(reference string) Settlement {
	return Settlement{Kind: SettlementPending, Reference: reference}
}

// IsPending reports whether no transfer has happened yet
func (s Settlement) IsPending() bool {
	return s.Kind == SettlementPending
}
