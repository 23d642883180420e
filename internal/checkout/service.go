package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/vrumi/vrumi-backend/internal/coupons"
	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/metrics"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

// Metadata keys read back by the webhook.
const (
	MetadataPassType        = "pass_type"
	MetadataUserID          = "user_id"
	MetadataCouponCode      = "coupon_code"
	MetadataSecondUserEmail = "second_user_email"

	// minimumChargeCents is the smallest BRL amount Stripe Checkout accepts.
	minimumChargeCents int64 = 50
)

// CreateSessionInput describes a pass purchase.
type CreateSessionInput struct {
	UserID          uuid.UUID
	Email           string
	PassType        string
	CouponCode      string
	SecondUserEmail string
	SuccessURL      string
	CancelURL       string
}

// SessionResult is returned to the client to redirect into Stripe Checkout.
type SessionResult struct {
	SessionID      string          `json:"session_id"`
	URL            string          `json:"url"`
	PassType       enums.PassType  `json:"pass_type"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Amount         decimal.Decimal `json:"amount"`
}

type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*SessionResult, error)
}

type ServiceParams struct {
	Stripe  StripeSessionClient
	Catalog *passes.Catalog
	Coupons coupons.Service
	Config  config.StripeConfig
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

type service struct {
	stripe  StripeSessionClient
	catalog *passes.Catalog
	coupons coupons.Service
	cfg     config.StripeConfig
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe session client required")
	}
	if params.Coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupons service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	catalog := params.Catalog
	if catalog == nil {
		catalog = passes.DefaultCatalog()
	}
	return &service{
		stripe:  params.Stripe,
		catalog: catalog,
		coupons: params.Coupons,
		cfg:     params.Config,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*SessionResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	plan, err := s.catalog.Lookup(input.PassType)
	if err != nil {
		return nil, err
	}

	secondEmail := strings.ToLower(strings.TrimSpace(input.SecondUserEmail))
	if plan.Family {
		if secondEmail == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "second user email required for family pass")
		}
		if secondEmail == strings.ToLower(strings.TrimSpace(input.Email)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "second user email must differ from the purchaser")
		}
	} else {
		secondEmail = ""
	}

	amount := plan.Price
	discount := decimal.Zero
	couponCode := strings.TrimSpace(input.CouponCode)
	if couponCode != "" {
		validation, err := s.coupons.Validate(ctx, couponCode, string(plan.Type))
		if err != nil {
			return nil, err
		}
		if !validation.Valid {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon").
				WithDetails(map[string]string{"coupon_code": validation.Message})
		}
		amount = validation.NewPrice
		discount = validation.DiscountAmount
	}

	amountCents := types.ToMinorUnits(amount)
	if amountCents < minimumChargeCents {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discounted price is below the minimum charge")
	}

	successURL := firstNonEmpty(input.SuccessURL, s.cfg.SuccessURL)
	cancelURL := firstNonEmpty(input.CancelURL, s.cfg.CancelURL)
	currency := firstNonEmpty(strings.ToLower(s.cfg.Currency), "brl")

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(input.UserID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(plan.Name),
					},
				},
			},
		},
		Metadata: map[string]string{
			MetadataPassType: string(plan.Type),
			MetadataUserID:   input.UserID.String(),
		},
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if couponCode != "" {
		params.Metadata[MetadataCouponCode] = couponCode
	}
	if secondEmail != "" {
		params.Metadata[MetadataSecondUserEmail] = secondEmail
	}

	sess, err := s.stripe.Create(ctx, params)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "pass_type", plan.Type), "checkout.session_create_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, err.Error())
	}
	s.metrics.CheckoutSession(string(plan.Type))

	return &SessionResult{
		SessionID:      sess.ID,
		URL:            sess.URL,
		PassType:       plan.Type,
		OriginalPrice:  plan.Price,
		DiscountAmount: discount,
		Amount:         amount,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
