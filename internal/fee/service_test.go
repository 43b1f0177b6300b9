package fee

import (
	"context"
	"errors"
	"testing"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplit(t *testing.T) {
	earners := []*models.FeeEarner{
		{ID: 1, EarnerType: models.EarnerTypeCreator, ShareBps: 5000},
		{ID: 2, EarnerType: models.EarnerTypeSystem, ShareBps: 5000},
	}

	t.Run("even split", func(t *testing.T) {
		parts := Split(dec("0.1"), earners)
		assert.True(t, parts[0].Amount.Equal(dec("0.05")))
		assert.True(t, parts[1].Amount.Equal(dec("0.05")))
	})

	t.Run("remainder goes to last earner", func(t *testing.T) {
		parts := Split(dec("0.000000003"), earners)
		assert.True(t, parts[0].Amount.Equal(dec("0.000000001")), parts[0].Amount.String())
		assert.True(t, parts[1].Amount.Equal(dec("0.000000002")), parts[1].Amount.String())
	})

	t.Run("parts always sum to fee", func(t *testing.T) {
		uneven := []*models.FeeEarner{
			{ID: 1, ShareBps: 3333},
			{ID: 2, ShareBps: 3333},
			{ID: 3, ShareBps: 3334},
		}
		for _, f := range []string{"1", "0.0101", "123.456789123", "0.000000007"} {
			sum := decimal.Zero
			for _, p := range Split(dec(f), uneven) {
				sum = sum.Add(p.Amount)
			}
			assert.True(t, sum.Equal(dec(f)), "fee %s split to %s", f, sum)
		}
	})
}

type FeeServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	repo    Repository
	service Service
	ctx     context.Context
	creator *models.FeeEarner
	system  *models.FeeEarner
}

func (suite *FeeServiceTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.repo = NewFeeRepository(suite.db)
	suite.service = NewService(suite.repo, logrus.New())
	suite.ctx = context.Background()

	suite.creator = &models.FeeEarner{
		TokenID: 1, EarnerType: models.EarnerTypeCreator, ShareBps: 5000,
		WalletAddress: "creator-wallet", ProfileID: "profile-1",
	}
	suite.system = &models.FeeEarner{
		TokenID: 1, EarnerType: models.EarnerTypeSystem, ShareBps: 5000,
		WalletAddress: "system-wallet",
	}
	suite.Require().NoError(suite.service.OpenAccounts(suite.db, 1, []*models.FeeEarner{suite.creator, suite.system}))
}

func (suite *FeeServiceTestSuite) credit(fee string) []Allocation {
	var allocations []Allocation
	err := suite.db.Transaction(func(tx *gorm.DB) error {
		var err error
		allocations, err = suite.service.Credit(tx, 1, dec(fee))
		return err
	})
	suite.Require().NoError(err)
	return allocations
}

func (suite *FeeServiceTestSuite) unclaimed(earnerID uint) decimal.Decimal {
	var e models.FeeEarner
	suite.Require().NoError(suite.db.First(&e, earnerID).Error)
	return e.UnclaimedSol
}

func (suite *FeeServiceTestSuite) TestCreditAccruesBothEarners() {
	allocations := suite.credit("0.1")
	suite.Len(allocations, 2)

	fees, err := suite.service.GetClaimableFees(suite.ctx, 1)
	suite.NoError(err)
	suite.True(fees[models.EarnerTypeCreator].Equal(dec("0.05")))
	suite.True(fees[models.EarnerTypeSystem].Equal(dec("0.05")))

	suite.credit("0.02")
	var e models.FeeEarner
	suite.Require().NoError(suite.db.First(&e, suite.creator.ID).Error)
	suite.True(e.UnclaimedSol.Equal(dec("0.06")))
	suite.True(e.LifetimeEarnedSol.Equal(dec("0.06")))
}

func (suite *FeeServiceTestSuite) TestOpenAccountsRejectsBadShares() {
	err := suite.service.OpenAccounts(suite.db, 2, []*models.FeeEarner{
		{EarnerType: models.EarnerTypeCreator, ShareBps: 6000, WalletAddress: "a"},
		{EarnerType: models.EarnerTypeSystem, ShareBps: 5000, WalletAddress: "b"},
	})
	suite.True(errors.Is(err, apperrors.ErrInvalidRequest))
}

func (suite *FeeServiceTestSuite) TestCreditZeroFeeIsNoop() {
	suite.Empty(suite.credit("0"))
	suite.True(suite.unclaimed(suite.creator.ID).IsZero())
}

func (suite *FeeServiceTestSuite) TestCreditRejectsBrokenShares() {
	suite.Require().NoError(suite.db.Model(&models.FeeEarner{}).
		Where("id = ?", suite.system.ID).Update("share_bps", 4000).Error)

	err := suite.db.Transaction(func(tx *gorm.DB) error {
		_, err := suite.service.Credit(tx, 1, dec("0.1"))
		return err
	})
	suite.True(errors.Is(err, apperrors.ErrInvariantViolation))
	suite.True(suite.unclaimed(suite.creator.ID).IsZero())
}

func (suite *FeeServiceTestSuite) TestGetClaimableFeesUnknownToken() {
	_, err := suite.service.GetClaimableFees(suite.ctx, 99)
	suite.True(errors.Is(err, apperrors.ErrTokenNotFound))
}

func (suite *FeeServiceTestSuite) TestResolveEarner() {
	e, err := suite.service.ResolveEarner(suite.ctx, 1, "creator-wallet", "")
	suite.NoError(err)
	suite.Equal(suite.creator.ID, e.ID)

	e, err = suite.service.ResolveEarner(suite.ctx, 1, "other-wallet", "profile-1")
	suite.NoError(err)
	suite.Equal(suite.creator.ID, e.ID)

	_, err = suite.service.ResolveEarner(suite.ctx, 1, "other-wallet", "profile-2")
	suite.True(errors.Is(err, apperrors.ErrNotAnEarner))

	_, err = suite.service.ResolveEarner(suite.ctx, 2, "creator-wallet", "")
	suite.True(errors.Is(err, apperrors.ErrNotAnEarner))
}

func (suite *FeeServiceTestSuite) TestSettleDeductsOnlyClaimedAmount() {
	suite.credit("0.1")
	claimed := suite.unclaimed(suite.creator.ID)

	// A trade lands between sizing the claim and settling it
	suite.credit("0.02")

	claim, err := suite.service.Settle(suite.ctx, suite.creator.ID, claimed, models.Settled("sig-1", true))
	suite.NoError(err)
	suite.False(claim.Pending)
	suite.True(claim.Confirmed)
	suite.True(suite.unclaimed(suite.creator.ID).Equal(dec("0.01")))

	var e models.FeeEarner
	suite.Require().NoError(suite.db.First(&e, suite.creator.ID).Error)
	suite.NotNil(e.LastClaimedAt)
	suite.True(e.LifetimeEarnedSol.Equal(dec("0.06")))
}

func (suite *FeeServiceTestSuite) TestSettlePending() {
	suite.credit("0.02")

	claim, err := suite.service.Settle(suite.ctx, suite.creator.ID, dec("0.01"), models.Pending("ref-1"))
	suite.NoError(err)
	suite.True(claim.Pending)
	suite.Equal(models.SettlementPending, claim.SettlementKind)
	suite.True(suite.unclaimed(suite.creator.ID).IsZero())
}

func (suite *FeeServiceTestSuite) TestSettleMoreThanUnclaimed() {
	suite.credit("0.02")

	_, err := suite.service.Settle(suite.ctx, suite.creator.ID, dec("1"), models.Settled("sig-2", true))
	suite.True(errors.Is(err, apperrors.ErrInvariantViolation))

	var count int64
	suite.db.Model(&models.FeeClaim{}).Count(&count)
	suite.Zero(count)
}

func (suite *FeeServiceTestSuite) TestRevertRecreditsOnce() {
	suite.credit("0.02")
	claim, err := suite.service.Settle(suite.ctx, suite.creator.ID, dec("0.01"), models.Settled("sig-3", false))
	suite.Require().NoError(err)
	suite.True(suite.unclaimed(suite.creator.ID).IsZero())

	suite.NoError(suite.service.Revert(suite.ctx, claim, "sig-3", ""))
	suite.True(suite.unclaimed(suite.creator.ID).Equal(dec("0.01")))

	// The reconciliation row is unique per claim
	suite.ErrorIs(suite.service.Revert(suite.ctx, claim, "sig-3", ""), apperrors.ErrAlreadyReconciled)
	suite.ErrorIs(suite.service.Revert(suite.ctx, claim, "sig-3", models.ReconciliationUnconfirmed), apperrors.ErrAlreadyReconciled)
	suite.True(suite.unclaimed(suite.creator.ID).Equal(dec("0.01")))
}

func (suite *FeeServiceTestSuite) TestRevertFromUnconfirmedPayout() {
	suite.credit("0.02")
	claim, err := suite.service.Settle(suite.ctx, suite.creator.ID, dec("0.01"), models.Pending("ref-5"))
	suite.Require().NoError(err)
	suite.Require().NoError(suite.db.Create(&models.ClaimReconciliation{
		ClaimID:   claim.ID,
		Outcome:   models.ReconciliationUnconfirmed,
		Signature: "sig-5",
	}).Error)

	suite.NoError(suite.service.Revert(suite.ctx, claim, "sig-5", models.ReconciliationUnconfirmed))
	suite.True(suite.unclaimed(suite.creator.ID).Equal(dec("0.01")))

	var rec models.ClaimReconciliation
	suite.Require().NoError(suite.db.Where("claim_id = ?", claim.ID).First(&rec).Error)
	suite.Equal(models.ReconciliationReverted, rec.Outcome)
	suite.Equal("sig-5", rec.Signature)
}

func (suite *FeeServiceTestSuite) TestClaimsListing() {
	suite.credit("0.1")
	_, err := suite.service.Settle(suite.ctx, suite.creator.ID, dec("0.01"), models.Settled("sig-4", true))
	suite.Require().NoError(err)
	_, err = suite.service.Settle(suite.ctx, suite.system.ID, dec("0.01"), models.Pending("ref-4"))
	suite.Require().NoError(err)

	claims, err := suite.service.Claims(suite.ctx, 1, 0)
	suite.NoError(err)
	suite.Len(claims, 2)
}

func TestFeeServiceTestSuite(t *testing.T) {
	suite.Run(t, new(FeeServiceTestSuite))
}
