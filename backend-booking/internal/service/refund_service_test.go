package service

import (
	"context"
	"testing"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) fundClient(t *testing.T, amount int64, verified bool) {
	t.Helper()
	require.NoError(t, f.store.Users().CreditBalance(context.Background(), userClient, decimal.NewFromInt(amount)))
	f.store.PutBankAccount(&domain.BankAccount{
		ID:            "bank-client",
		UserID:        userClient,
		BankName:      "KBank",
		AccountNumber: "123-4-56789-0",
		AccountHolder: "Somchai",
		IsVerified:    verified,
	})
}

func (f *fixture) refund(t *testing.T, amount int64) (*domain.TicketRequest, error) {
	t.Helper()
	ctx := context.Background()
	if f.refundTicket == nil {
		_, f.refundTicket = f.book(t, seatList("R1"))
	}
	req, err := f.requests.Create(ctx, &dto.CreateTicketRequestRequest{
		TitleRequest: domain.TitleRefund,
		TicketID:     f.refundTicket.ID,
		Amount:       decimal.NewFromInt(amount),
	}, clientPrincipal())
	require.NoError(t, err)
	assert.Nil(t, req.TripID)
	assert.Equal(t, userClient, req.UserID)

	_, err = f.requests.Update(ctx, req.ID, &dto.UpdateTicketRequestRequest{
		Status: statusPtr(domain.RequestStatusRefunded),
	}, approverPrincipal())
	return req, err
}

func TestRefund_ExactBalance(t *testing.T) {
	f := newFixture(t)
	f.fundClient(t, 150000, true)

	req, err := f.refund(t, 150000)
	require.NoError(t, err)

	assertDecimal(t, 0, f.balance(t, userClient))
	history := f.store.RefundHistory()
	require.Len(t, history, 1)
	assert.Equal(t, req.ID, history[0].RequestID)
	assert.Equal(t, domain.RefundStatusCompleted, history[0].Status)
	assert.Equal(t, domain.RefundReasonUserRequest, history[0].Reason)

	got, err := f.requests.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRefunded, got.Status)
}

func TestRefund_OverBalance(t *testing.T) {
	f := newFixture(t)
	f.fundClient(t, 150000, true)

	req, err := f.refund(t, 150001)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, domain.IsConflict(err))

	assertDecimal(t, 150000, f.balance(t, userClient))
	assert.Empty(t, f.store.RefundHistory())

	got, err := f.requests.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, got.Status)
}

func TestRefund_BankAccountChecks(t *testing.T) {
	t.Run("unverified", func(t *testing.T) {
		f := newFixture(t)
		f.fundClient(t, 50000, false)

		_, err := f.refund(t, 1000)
		assert.ErrorIs(t, err, domain.ErrBankAccountUnverified)
		assert.True(t, domain.IsConflict(err))
		assertDecimal(t, 50000, f.balance(t, userClient))
		assert.Empty(t, f.store.RefundHistory())
		assert.Empty(t, f.store.CommissionHistory())
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Users().CreditBalance(context.Background(), userClient, decimal.NewFromInt(50000)))

		_, err := f.refund(t, 1000)
		assert.ErrorIs(t, err, domain.ErrBankAccountNotFound)
		assertDecimal(t, 50000, f.balance(t, userClient))
	})
}

func TestRefundService_RejectsNonRefundRequest(t *testing.T) {
	f := newFixture(t)
	err := f.refunds.ProcessRefund(context.Background(), &domain.TicketRequest{
		TitleRequest: domain.TitleBookTicket,
		Amount:       decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
