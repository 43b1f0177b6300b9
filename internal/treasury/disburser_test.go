package treasury

import (
	"context"
	"testing"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/solana"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockChain is a mock implementation of Chain
type MockChain struct {
	mock.Mock
}

func (m *MockChain) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockChain) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, from, to, amount)
	return args.String(0), args.Error(1)
}

func (m *MockChain) Confirm(ctx context.Context, sig string, timeout time.Duration) error {
	return m.Called(ctx, sig, timeout).Error(0)
}

func (m *MockChain) Status(ctx context.Context, sig string) (solana.TxState, error) {
	args := m.Called(ctx, sig)
	return args.Get(0).(solana.TxState), args.Error(1)
}

func newDisburser(t *testing.T, chain Chain) (*Disburser, string) {
	hot := testutil.NewWallet(t)
	return NewDisburser(chain, Config{
		HotWallet:        hot,
		NetworkFeeBuffer: decimal.RequireFromString("0.00001"),
		ConfirmTimeout:   time.Second,
	}, logrus.New()), hot
}

func TestDisburse_Confirmed(t *testing.T) {
	chain := new(MockChain)
	d, hot := newDisburser(t, chain)
	to := testutil.NewWallet(t)
	sig := testutil.NewSignature(t)
	amount := decimal.RequireFromString("0.5")

	chain.On("GetBalance", mock.Anything, hot).Return(decimal.NewFromInt(2), nil)
	chain.On("Transfer", mock.Anything, hot, to, amount).Return(sig, nil)
	chain.On("Confirm", mock.Anything, sig, time.Second).Return(nil)

	settlement, err := d.Disburse(context.Background(), Payout{TokenID: 1, EarnerID: 1, To: to, Amount: amount})
	assert.NoError(t, err)
	assert.Equal(t, models.Settled(sig, true), settlement)
	chain.AssertExpectations(t)
}

func TestDisburse_InsufficientBalanceDefers(t *testing.T) {
	chain := new(MockChain)
	d, hot := newDisburser(t, chain)

	chain.On("GetBalance", mock.Anything, hot).Return(decimal.RequireFromString("0.0005"), nil)

	settlement, err := d.Disburse(context.Background(), Payout{
		To:     testutil.NewWallet(t),
		Amount: decimal.RequireFromString("0.01"),
	})
	assert.NoError(t, err)
	assert.True(t, settlement.IsPending())
	assert.NotEmpty(t, settlement.Reference)
	assert.False(t, settlement.Confirmed)
	chain.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisburse_BufferCountsTowardBalance(t *testing.T) {
	chain := new(MockChain)
	d, hot := newDisburser(t, chain)

	// Exactly the amount leaves nothing for the network fee
	chain.On("GetBalance", mock.Anything, hot).Return(decimal.RequireFromString("0.01"), nil)

	settlement, err := d.Disburse(context.Background(), Payout{
		To:     testutil.NewWallet(t),
		Amount: decimal.RequireFromString("0.01"),
	})
	assert.NoError(t, err)
	assert.True(t, settlement.IsPending())
}

func TestDisburse_TransferFailed(t *testing.T) {
	chain := new(MockChain)
	d, hot := newDisburser(t, chain)

	chain.On("GetBalance", mock.Anything, hot).Return(decimal.NewFromInt(2), nil)
	chain.On("Transfer", mock.Anything, hot, mock.Anything, mock.Anything).Return("", apperrors.ErrTransactionFailed)

	settlement, err := d.Disburse(context.Background(), Payout{To: testutil.NewWallet(t), Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperrors.ErrTransactionFailed)
	assert.Empty(t, settlement.Reference)
}

func TestDisburse_FailedOnChain(t *testing.T) {
	chain := new(MockChain)
	d, hot := newDisburser(t, chain)
	sig := testutil.NewSignature(t)

	chain.On("GetBalance", mock.Anything, hot).Return(decimal.NewFromInt(2), nil)
	chain.On("Transfer", mock.Anything, hot, mock.Anything, mock.Anything).Return(sig, nil)
	chain.On("Confirm", mock.Anything, sig, time.Second).Return(apperrors.ErrTransactionFailed)

	settlement, err := d.Disburse(context.Background(), Payout{To: testutil.NewWallet(t), Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperrors.ErrTransactionFailed)
	assert.Empty(t, settlement.Reference)
}

func TestDisburse_ConfirmationTimeout(t *testing.T) {
	chain := new(MockChain)
	d, hot := newDisburser(t, chain)
	sig := testutil.NewSignature(t)

	chain.On("GetBalance", mock.Anything, hot).Return(decimal.NewFromInt(2), nil)
	chain.On("Transfer", mock.Anything, hot, mock.Anything, mock.Anything).Return(sig, nil)
	chain.On("Confirm", mock.Anything, sig, time.Second).Return(apperrors.ErrConfirmationTimeout)

	settlement, err := d.Disburse(context.Background(), Payout{To: testutil.NewWallet(t), Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperrors.ErrConfirmationTimeout)
	assert.Equal(t, models.Settled(sig, false), settlement)
}

func TestDisburse_UncertainSubmission(t *testing.T) {
	chain := new(MockChain)
	d, hot := newDisburser(t, chain)
	sig := testutil.NewSignature(t)

	chain.On("GetBalance", mock.Anything, hot).Return(decimal.NewFromInt(2), nil)
	chain.On("Transfer", mock.Anything, hot, mock.Anything, mock.Anything).Return(sig, apperrors.ErrSubmissionUncertain)

	t.Run("landed anyway", func(t *testing.T) {
		chain.On("Confirm", mock.Anything, sig, time.Second).Return(nil).Once()

		settlement, err := d.Disburse(context.Background(), Payout{To: testutil.NewWallet(t), Amount: decimal.NewFromInt(1)})
		assert.NoError(t, err)
		assert.Equal(t, models.Settled(sig, true), settlement)
	})

	t.Run("not observed", func(t *testing.T) {
		chain.On("Confirm", mock.Anything, sig, time.Second).Return(apperrors.ErrConfirmationTimeout).Once()

		settlement, err := d.Disburse(context.Background(), Payout{To: testutil.NewWallet(t), Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, apperrors.ErrConfirmationTimeout)
		assert.Equal(t, models.Settled(sig, false), settlement)
	})
}

func TestDisburse_RejectsBadPayouts(t *testing.T) {
	chain := new(MockChain)
	d, _ := newDisburser(t, chain)

	_, err := d.Disburse(context.Background(), Payout{To: testutil.NewWallet(t), Amount: decimal.Zero})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)

	_, err = d.Disburse(context.Background(), Payout{To: "0xnot-solana", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAddress)
	chain.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything)
}
