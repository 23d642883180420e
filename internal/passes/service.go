package passes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/db"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/outbox/payloads"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

var two = decimal.NewFromInt(2)

// Directory resolves family beneficiaries by email.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
}

// DirectoryFunc binds directory lookups to the grant transaction.
type DirectoryFunc func(tx *gorm.DB) Directory

// GrantInput describes a paid checkout that should become passes.
type GrantInput struct {
	UserID          uuid.UUID
	PassType        enums.PassType
	SessionID       string
	EventID         string
	SecondUserEmail string
	CouponCode      string
	// PaidAmount is the amount actually charged. Zero falls back to the
	// catalog price.
	PaidAmount decimal.Decimal
}

// GrantResult lists the rows written for a checkout.
type GrantResult struct {
	Passes              []models.UserPass
	BeneficiaryResolved bool
	// AlreadyGranted is set when the checkout session already produced
	// passes; nothing was written.
	AlreadyGranted bool
}

// Beneficiaries returns the user ids that received a pass.
func (r GrantResult) Beneficiaries() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Passes))
	for _, pass := range r.Passes {
		ids = append(ids, pass.UserID)
	}
	return ids
}

// Service grants and reads passes.
type Service interface {
	Grant(ctx context.Context, tx *gorm.DB, input GrantInput) (*GrantResult, error)
	Active(ctx context.Context, userID uuid.UUID) (*models.UserPass, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.UserPass, error)
	AdminDelete(ctx context.Context, passID uuid.UUID) error
	Catalog() *Catalog
}

// Notifier tells live entitlement watchers to re-evaluate a user.
type Notifier interface {
	NotifyChanged(ctx context.Context, userID uuid.UUID) error
}

// ServiceParams wires the passes service. Notifier is optional.
type ServiceParams struct {
	Repo      *Repository
	Directory DirectoryFunc
	Outbox    outbox.Emitter
	Catalog   *Catalog
	Notifier  Notifier
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      *Repository
	directory DirectoryFunc
	outbox    outbox.Emitter
	catalog   *Catalog
	notifier  Notifier
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "passes repository required")
	}
	if params.Directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user directory required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	catalog := params.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		directory: params.Directory,
		outbox:    params.Outbox,
		catalog:   catalog,
		notifier:  params.Notifier,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) Catalog() *Catalog {
	return s.catalog
}

// Grant writes the passes bought by a checkout inside tx. Family passes split
// the price between two rows with the same expiry; the odd centavo stays on
// the purchaser row so both rows add up to the amount paid.
func (s *service) Grant(ctx context.Context, tx *gorm.DB, input GrantInput) (*GrantResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	plan, err := s.catalog.Lookup(string(input.PassType))
	if err != nil {
		return nil, err
	}

	total := plan.Price
	if input.PaidAmount.IsPositive() {
		total = types.RoundMoney(input.PaidAmount)
	}

	repo := s.repo.WithTx(tx)
	if input.SessionID != "" {
		exists, err := repo.ExistsForSession(ctx, input.SessionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check checkout session")
		}
		if exists {
			s.logg.Info(s.logg.WithField(ctx, "session_id", input.SessionID), "passes.session_already_granted")
			return &GrantResult{BeneficiaryResolved: true, AlreadyGranted: true}, nil
		}
	}

	now := s.now().UTC()
	expiresAt := now.Add(plan.Duration())

	newPass := func(userID uuid.UUID, price decimal.Decimal) models.UserPass {
		pass := models.UserPass{
			UserID:        userID,
			PassType:      plan.Type,
			Price:         price,
			PaymentStatus: enums.PaymentStatusCompleted,
			ExpiresAt:     expiresAt,
			PurchasedAt:   now,
		}
		if input.SessionID != "" {
			pass.StripeSessionID = stringPtr(input.SessionID)
		}
		if input.EventID != "" {
			pass.StripeEventID = stringPtr(input.EventID)
		}
		if code := strings.TrimSpace(input.CouponCode); code != "" {
			pass.CouponCode = stringPtr(code)
		}
		return pass
	}

	result := &GrantResult{BeneficiaryResolved: true}
	if !plan.Family {
		result.Passes = []models.UserPass{newPass(input.UserID, total)}
	} else {
		beneficiary, err := s.resolveBeneficiary(ctx, tx, input)
		if err != nil {
			return nil, err
		}
		if beneficiary == nil {
			result.BeneficiaryResolved = false
			result.Passes = []models.UserPass{newPass(input.UserID, total)}
		} else {
			secondShare := total.Div(two).Truncate(2)
			result.Passes = []models.UserPass{
				newPass(input.UserID, total.Sub(secondShare)),
				newPass(beneficiary.ID, secondShare),
			}
		}
	}

	for i := range result.Passes {
		if err := repo.Create(ctx, &result.Passes[i]); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pass")
		}
		if err := s.emitGranted(ctx, tx, input, result.Passes[i]); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit pass granted")
		}
	}

	if !result.BeneficiaryResolved {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"purchaser_id": input.UserID.String(),
			"session_id":   input.SessionID,
		}), "passes.family_beneficiary_unresolved")
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFamilyBeneficiaryUnresolved,
			AggregateType: enums.AggregatePass,
			AggregateID:   result.Passes[0].ID,
			Actor:         outbox.StudentActor(input.UserID),
			Data: payloads.FamilyBeneficiaryUnresolvedEvent{
				PurchaserID:     input.UserID,
				PassID:          result.Passes[0].ID,
				SecondUserEmail: strings.TrimSpace(input.SecondUserEmail),
				SessionID:       input.SessionID,
			},
			OccurredAt: now,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit beneficiary unresolved")
		}
	}

	return result, nil
}

// resolveBeneficiary returns nil when the second email is blank, unknown, or
// belongs to the purchaser.
func (s *service) resolveBeneficiary(ctx context.Context, tx *gorm.DB, input GrantInput) (*models.Profile, error) {
	email := strings.TrimSpace(input.SecondUserEmail)
	if email == "" {
		return nil, nil
	}
	profile, err := s.directory(tx).FindByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve family beneficiary")
	}
	if profile.ID == input.UserID {
		return nil, nil
	}
	return profile, nil
}

func (s *service) emitGranted(ctx context.Context, tx *gorm.DB, input GrantInput, pass models.UserPass) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPassGranted,
		AggregateType: enums.AggregatePass,
		AggregateID:   pass.ID,
		Actor:         outbox.StudentActor(input.UserID),
		Data: payloads.PassGrantedEvent{
			PassID:      pass.ID,
			UserID:      pass.UserID,
			PurchaserID: input.UserID,
			PassType:    pass.PassType,
			Price:       pass.Price.StringFixed(2),
			ExpiresAt:   pass.ExpiresAt,
			SessionID:   input.SessionID,
		},
		OccurredAt: pass.PurchasedAt,
	})
}

// Active returns the pass currently granting access, or nil.
func (s *service) Active(ctx context.Context, userID uuid.UUID) (*models.UserPass, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	pass, err := s.repo.ActiveForUser(ctx, userID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active pass")
	}
	return pass, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.UserPass, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passes")
	}
	return rows, nil
}

// AdminDelete removes a pass and wakes the holder's entitlement watchers so
// an open gate drops without waiting for the next recheck.
func (s *service) AdminDelete(ctx context.Context, passID uuid.UUID) error {
	if passID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "pass id required")
	}
	pass, err := s.repo.FindByID(ctx, passID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pass not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pass")
	}
	deleted, err := s.repo.Delete(ctx, passID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete pass")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pass not found")
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyChanged(ctx, pass.UserID); err != nil {
			s.logg.Error(s.logg.WithUserID(ctx, pass.UserID.String()), "passes.entitlement_notify_failed", err)
		}
	}
	return nil
}

func stringPtr(v string) *string {
	return &v
}
