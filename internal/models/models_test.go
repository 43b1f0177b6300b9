package models_test

import (
	"testing"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func validToken() *models.Token {
	return &models.Token{
		Mint:                   "So11111111111111111111111111111111111111112",
		Name:                   "Token",
		Symbol:                 "TKN",
		VirtualSolReserves:     decimal.NewFromInt(30),
		VirtualTokenReserves:   decimal.NewFromInt(1_000_000_000),
		GraduationThresholdSol: decimal.NewFromInt(85),
	}
}

func TestToken_BeforeCreate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		token := validToken()
		err := token.BeforeCreate(nil)
		assert.NoError(t, err)
		assert.Equal(t, models.TokenStatusBonding, token.Status)
	})

	t.Run("MissingSymbol", func(t *testing.T) {
		token := validToken()
		token.Symbol = ""
		assert.ErrorIs(t, token.BeforeCreate(nil), gorm.ErrInvalidData)
	})

	t.Run("EmptyReserves", func(t *testing.T) {
		token := validToken()
		token.VirtualTokenReserves = decimal.Zero
		assert.ErrorIs(t, token.BeforeCreate(nil), gorm.ErrInvalidData)
	})

	t.Run("NoThreshold", func(t *testing.T) {
		token := validToken()
		token.GraduationThresholdSol = decimal.Zero
		assert.ErrorIs(t, token.BeforeCreate(nil), gorm.ErrInvalidData)
	})
}

func TestToken_IsTradable(t *testing.T) {
	token := validToken()
	token.Status = models.TokenStatusBonding
	assert.True(t, token.IsTradable())

	token.MigrationStatus = models.MigrationStatusQueued
	assert.False(t, token.IsTradable())

	token.MigrationStatus = models.MigrationStatusNone
	token.Halted = true
	assert.False(t, token.IsTradable())

	token.Halted = false
	token.Status = models.TokenStatusGraduated
	assert.False(t, token.IsTradable())
}

func TestFeeClaim_BeforeCreate(t *testing.T) {
	t.Run("PendingForcesFlag", func(t *testing.T) {
		claim := &models.FeeClaim{
			AmountSol:      decimal.RequireFromString("0.01"),
			SettlementKind: models.SettlementPending,
			SettlementRef:  "5f0c6c1e-3b1a-4a57-9d61-7c7f0a0f6a11",
			Confirmed:      true,
		}
		assert.NoError(t, claim.BeforeCreate(nil))
		assert.True(t, claim.Pending)
		assert.False(t, claim.Confirmed)
	})

	t.Run("SettledClearsFlag", func(t *testing.T) {
		claim := &models.FeeClaim{
			AmountSol:      decimal.RequireFromString("0.01"),
			SettlementKind: models.SettlementSettled,
			SettlementRef:  "sig",
			Pending:        true,
		}
		assert.NoError(t, claim.BeforeCreate(nil))
		assert.False(t, claim.Pending)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		claim := &models.FeeClaim{
			AmountSol:     decimal.RequireFromString("0.01"),
			SettlementRef: "ref",
		}
		assert.ErrorIs(t, claim.BeforeCreate(nil), gorm.ErrInvalidData)
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		claim := &models.FeeClaim{
			SettlementKind: models.SettlementSettled,
			SettlementRef:  "ref",
		}
		assert.ErrorIs(t, claim.BeforeCreate(nil), gorm.ErrInvalidData)
	})
}

func TestFeeEarner_BeforeCreate(t *testing.T) {
	earner := &models.FeeEarner{TokenID: 1, WalletAddress: "wallet", ShareBps: 5000}
	assert.NoError(t, earner.BeforeCreate(nil))

	earner.ShareBps = 10_001
	assert.ErrorIs(t, earner.BeforeCreate(nil), gorm.ErrInvalidData)
}

func TestPoolMigration_HasCompleted(t *testing.T) {
	m := &models.PoolMigration{CompletedSteps: []string{"metadata_created", "migrated"}}
	assert.True(t, m.HasCompleted("migrated"))
	assert.False(t, m.HasCompleted("lp_locked"))
}

func TestSettlement(t *testing.T) {
	s := models.Settled("sig", false)
	assert.False(t, s.IsPending())
	assert.Equal(t, "sig", s.Reference)

	p := models.Pending("ref")
	assert.True(t, p.IsPending())
	assert.False(t, p.Confirmed)
}
