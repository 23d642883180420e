package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

const defaultListLimit = 100

var one = decimal.NewFromInt(1)

// Service records instructor ledger movements.
type Service interface {
	RecordRefund(ctx context.Context, tx *gorm.DB, input RecordRefundInput) (*models.InstructorTransaction, error)
	InstructorShare(price decimal.Decimal) decimal.Decimal
	ListByInstructor(ctx context.Context, instructorID uuid.UUID, limit int) ([]models.InstructorTransaction, error)
	Balance(ctx context.Context, instructorID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo        Repository
	platformFee decimal.Decimal
}

// RecordRefundInput captures the refunded booking an instructor is debited for.
type RecordRefundInput struct {
	BookingID      uuid.UUID
	InstructorID   uuid.UUID
	Price          decimal.Decimal
	StripeRefundID string
}

// NewService wires a ledger service. platformFee is the share kept by the
// platform, e.g. 0.15.
func NewService(repo Repository, platformFee decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if platformFee.IsNegative() || platformFee.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("platform fee must be in [0, 1), got %s", platformFee)
	}
	return &service{repo: repo, platformFee: platformFee}, nil
}

// InstructorShare is the part of price owed to the instructor.
func (s *service) InstructorShare(price decimal.Decimal) decimal.Decimal {
	return types.RoundMoney(price.Mul(one.Sub(s.platformFee)))
}

// RecordRefund appends the negative instructor share for a refunded booking.
func (s *service) RecordRefund(ctx context.Context, tx *gorm.DB, input RecordRefundInput) (*models.InstructorTransaction, error) {
	if input.BookingID == uuid.Nil {
		return nil, fmt.Errorf("booking id is required")
	}
	if input.InstructorID == uuid.Nil {
		return nil, fmt.Errorf("instructor id is required")
	}
	if input.Price.IsNegative() {
		return nil, fmt.Errorf("price must not be negative")
	}

	bookingID := input.BookingID
	entry := &models.InstructorTransaction{
		InstructorID: input.InstructorID,
		BookingID:    &bookingID,
		Type:         enums.TransactionTypeRefund,
		Amount:       s.InstructorShare(input.Price).Neg(),
		Description:  fmt.Sprintf("Reembolso da aula %s", input.BookingID),
	}
	if input.StripeRefundID != "" {
		refundID := input.StripeRefundID
		entry.StripeRefundID = &refundID
	}

	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListByInstructor(ctx context.Context, instructorID uuid.UUID, limit int) ([]models.InstructorTransaction, error) {
	if instructorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "instructor id required")
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	rows, err := s.repo.ListByInstructor(ctx, instructorID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list instructor transactions")
	}
	return rows, nil
}

func (s *service) Balance(ctx context.Context, instructorID uuid.UUID) (decimal.Decimal, error) {
	if instructorID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "instructor id required")
	}
	total, err := s.repo.Balance(ctx, instructorID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute instructor balance")
	}
	return total, nil
}
