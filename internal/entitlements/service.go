package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
)

// ActivePassFinder looks up the pass currently granting access.
type ActivePassFinder interface {
	Active(ctx context.Context, userID uuid.UUID) (*models.UserPass, error)
}

// Decision is the evaluated gate state for one user.
type Decision struct {
	State     enums.EntitlementState
	Pass      *models.UserPass
	CheckedAt time.Time
}

// Granted reports whether premium content is unlocked.
func (d Decision) Granted() bool {
	return d.State == enums.EntitlementGranted
}

// Evaluator computes the gate state.
type Evaluator interface {
	Evaluate(ctx context.Context, userID uuid.UUID) (Decision, error)
}

type Service struct {
	passes ActivePassFinder
	now    func() time.Time
}

func NewService(passes ActivePassFinder, now func() time.Time) (*Service, error) {
	if passes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "active pass finder required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{passes: passes, now: now}, nil
}

// Evaluate resolves the gate: granted while a completed pass has not expired,
// blocked otherwise.
func (s *Service) Evaluate(ctx context.Context, userID uuid.UUID) (Decision, error) {
	if userID == uuid.Nil {
		return Decision{State: enums.EntitlementUnknown}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	now := s.now()
	pass, err := s.passes.Active(ctx, userID)
	if err != nil {
		return Decision{State: enums.EntitlementUnknown}, err
	}
	if pass == nil || !pass.GrantsAccess(now) {
		return Decision{State: enums.EntitlementBlocked, CheckedAt: now}, nil
	}
	return Decision{State: enums.EntitlementGranted, Pass: pass, CheckedAt: now}, nil
}
