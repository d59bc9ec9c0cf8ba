package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/bamanh2802/bookingcar/pkg/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundService pays a user's balance out to their verified bank account
type RefundService struct {
	tx           repository.Transactor
	users        repository.UserRepository
	bankAccounts repository.BankAccountRepository
	ledger       repository.LedgerRepository
	requests     repository.TicketRequestRepository
	log          *logger.Logger
	metrics      *Metrics
}

// NewRefundService creates a RefundService
func NewRefundService(
	tx repository.Transactor,
	users repository.UserRepository,
	bankAccounts repository.BankAccountRepository,
	ledger repository.LedgerRepository,
	requests repository.TicketRequestRepository,
	log *logger.Logger,
	metrics *Metrics,
) *RefundService {
	if log == nil {
		log = logger.NewNop()
	}
	return &RefundService{
		tx:           tx,
		users:        users,
		bankAccounts: bankAccounts,
		ledger:       ledger,
		requests:     requests,
		log:          log.Named("refund"),
		metrics:      orNopMetrics(metrics),
	}
}

// ProcessRefund debits the owner's balance, records the refund and marks the
// request Refunded as one unit. It joins the caller's transaction when there is one.
func (s *RefundService) ProcessRefund(ctx context.Context, req *domain.TicketRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "service.refund.process")
	defer span.End()

	if req.TitleRequest != domain.TitleRefund {
		return domain.ErrInvalidTransition
	}
	if !req.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		account, err := s.bankAccounts.GetByUserID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("get bank account: %w", err)
		}
		if account == nil {
			return domain.ErrBankAccountNotFound
		}
		if !account.IsVerified {
			return domain.ErrBankAccountUnverified
		}

		if err := s.users.DebitBalance(ctx, req.UserID, req.Amount); err != nil {
			return err
		}

		entry := &domain.RefundHistory{
			ID:        uuid.New().String(),
			UserID:    req.UserID,
			RequestID: req.ID,
			Amount:    req.Amount,
			Status:    domain.RefundStatusCompleted,
			Reason:    domain.RefundReasonUserRequest,
			CreatedAt: time.Now(),
		}
		if err := s.ledger.InsertRefund(ctx, entry); err != nil {
			return fmt.Errorf("insert refund history: %w", err)
		}

		req.Status = domain.RequestStatusRefunded
		if err := s.requests.Update(ctx, req); err != nil {
			return fmt.Errorf("update ticket request: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.metrics.Refunds.Inc(ctx, telemetry.UserIDAttr(req.UserID))
	s.log.WithContext(ctx).Info("refund completed",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return nil
}
