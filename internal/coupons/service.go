package coupons

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/pkg/db"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/outbox/payloads"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

const (
	MessageNotFound  = "Cupom não encontrado"
	MessageInactive  = "Este cupom não está mais ativo"
	MessageExpired   = "Este cupom expirou"
	MessageExhausted = "Este cupom atingiu o limite de usos"
	MessageApplied   = "Cupom aplicado com sucesso"

	maxListLimit = 200
)

var hundred = decimal.NewFromInt(100)

// ValidationResult is the outcome of checking a coupon against a pass. An
// unusable coupon is a normal result with Valid=false, never an error.
type ValidationResult struct {
	Valid          bool
	Message        string
	Code           string
	DiscountType   enums.DiscountType
	OriginalPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	NewPrice       decimal.Decimal
}

// RedeemInput identifies the checkout consuming a coupon.
type RedeemInput struct {
	Code      string
	UserID    uuid.UUID
	SessionID string
}

// RedeemResult reports whether a use was recorded.
type RedeemResult struct {
	Redeemed  bool
	Duplicate bool
	Reason    string
	Coupon    *models.Coupon
}

// CreateInput describes an admin-created coupon.
type CreateInput struct {
	Code          string     `json:"code" validate:"required,max=64"`
	DiscountType  string     `json:"discount_type" validate:"required,discount_type"`
	DiscountValue string     `json:"discount_value" validate:"required"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxUses       *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
}

type Service interface {
	Validate(ctx context.Context, code, passType string) (*ValidationResult, error)
	Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*RedeemResult, error)
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	List(ctx context.Context, limit int) ([]models.Coupon, error)
	SetActive(ctx context.Context, code string, active bool) error
}

type ServiceParams struct {
	Repo    *Repository
	Catalog *passes.Catalog
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    *Repository
	catalog *passes.Catalog
	outbox  outbox.Emitter
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupons repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	catalog := params.Catalog
	if catalog == nil {
		catalog = passes.DefaultCatalog()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		catalog: catalog,
		outbox:  params.Outbox,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Validate prices passType with the coupon applied. It never consumes a use.
func (s *service) Validate(ctx context.Context, code, passType string) (*ValidationResult, error) {
	plan, err := s.catalog.Lookup(passType)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Code:          code,
		OriginalPrice: plan.Price,
		NewPrice:      plan.Price,
	}
	if strings.TrimSpace(code) == "" {
		result.Message = MessageNotFound
		return result, nil
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			result.Message = MessageNotFound
			return result, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if reason := unusableReason(coupon, s.now()); reason != "" {
		result.Message = reason
		return result, nil
	}

	discount := Discount(coupon.DiscountType, coupon.DiscountValue, plan.Price)
	result.Valid = true
	result.Message = MessageApplied
	result.DiscountType = coupon.DiscountType
	result.DiscountAmount = discount
	result.NewPrice = types.RoundMoney(plan.Price.Sub(discount))
	return result, nil
}

// Discount computes the amount taken off price, never more than price itself.
func Discount(discountType enums.DiscountType, value, price decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch discountType {
	case enums.DiscountTypePercentage:
		amount = price.Mul(value).Div(hundred)
	case enums.DiscountTypeFixed:
		amount = value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(price) {
		amount = price
	}
	return types.RoundMoney(amount)
}

func unusableReason(coupon *models.Coupon, now time.Time) string {
	switch {
	case !coupon.IsActive:
		return MessageInactive
	case coupon.ExpiresAt != nil && !coupon.ExpiresAt.After(now):
		return MessageExpired
	case coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses:
		return MessageExhausted
	default:
		return ""
	}
}

// Redeem records one use of a coupon for a paid checkout inside tx. The
// counter only moves while the coupon is active and below max uses, and a
// session can consume at most one use.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*RedeemResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if strings.TrimSpace(input.Code) == "" {
		return &RedeemResult{Reason: MessageNotFound}, nil
	}
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	repo := s.repo.WithTx(tx)
	coupon, err := repo.FindByCode(ctx, input.Code)
	if err != nil {
		if db.IsNotFound(err) {
			return &RedeemResult{Reason: MessageNotFound}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	exists, err := repo.RedemptionExists(ctx, input.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check coupon redemption")
	}
	if exists {
		return &RedeemResult{Duplicate: true, Coupon: coupon}, nil
	}

	ok, err := repo.IncrementUsage(ctx, coupon.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !ok {
		reason := unusableReason(coupon, s.now())
		if reason == "" {
			reason = MessageExhausted
		}
		return &RedeemResult{Reason: reason, Coupon: coupon}, nil
	}

	redemption := &models.CouponRedemption{
		CouponID:        coupon.ID,
		UserID:          input.UserID,
		StripeSessionID: input.SessionID,
	}
	if err := repo.InsertRedemption(ctx, redemption); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon redemption")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCouponRedeemed,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   coupon.ID,
		Actor:         outbox.StudentActor(input.UserID),
		Data: payloads.CouponRedeemedEvent{
			CouponID:  coupon.ID,
			Code:      coupon.Code,
			UserID:    input.UserID,
			SessionID: input.SessionID,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit coupon redeemed")
	}

	coupon.UsedCount++
	return &RedeemResult{Redeemed: true, Coupon: coupon}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code required")
	}
	// Checkout strips spaces from pasted codes, so a stored code must not
	// contain any.
	if strings.ContainsFunc(code, unicode.IsSpace) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code must not contain spaces")
	}
	discountType, err := enums.ParseDiscountType(input.DiscountType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	value, err := decimal.NewFromString(strings.TrimSpace(input.DiscountValue))
	if err != nil || !value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be a positive decimal")
	}
	if discountType == enums.DiscountTypePercentage && value.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}

	coupon := &models.Coupon{
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: types.RoundMoney(value),
		IsActive:      true,
		ExpiresAt:     input.ExpiresAt,
		MaxUses:       input.MaxUses,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "coupons_code_key") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, limit int) ([]models.Coupon, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return rows, nil
}

func (s *service) SetActive(ctx context.Context, code string, active bool) error {
	ok, err := s.repo.SetActive(ctx, code, active)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return nil
}
