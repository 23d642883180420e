package passes

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

// Plan is one purchasable pass.
type Plan struct {
	Type         enums.PassType  `json:"pass_type"`
	Name         string          `json:"name"`
	DurationDays int             `json:"duration_days"`
	Price        decimal.Decimal `json:"price"`
	Family       bool            `json:"family"`
}

// Duration returns the validity window granted by the plan.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// Catalog is the closed table of pass plans.
type Catalog struct {
	plans map[enums.PassType]Plan
}

var defaultPlans = []Plan{
	{Type: enums.PassTypeIndividual30, Name: "Passe Individual 30 dias", DurationDays: 30, Price: decimal.RequireFromString("29.90")},
	{Type: enums.PassTypeIndividual90, Name: "Passe Individual 90 dias", DurationDays: 90, Price: decimal.RequireFromString("69.90")},
	{Type: enums.PassTypeFamily90, Name: "Passe Família 90 dias", DurationDays: 90, Price: decimal.RequireFromString("99.90"), Family: true},
}

// DefaultCatalog returns the built-in price table.
func DefaultCatalog() *Catalog {
	plans := make(map[enums.PassType]Plan, len(defaultPlans))
	for _, plan := range defaultPlans {
		plans[plan.Type] = plan
	}
	return &Catalog{plans: plans}
}

// NewCatalog applies configured price overrides to the built-in table.
func NewCatalog(cfg config.PassesConfig) (*Catalog, error) {
	catalog := DefaultCatalog()
	overrides := map[enums.PassType]string{
		enums.PassTypeIndividual30: cfg.Individual30Price,
		enums.PassTypeIndividual90: cfg.Individual90Price,
		enums.PassTypeFamily90:     cfg.Family90Price,
	}
	for passType, raw := range overrides {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", passType, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive", passType)
		}
		plan := catalog.plans[passType]
		plan.Price = types.RoundMoney(price)
		catalog.plans[passType] = plan
	}
	return catalog, nil
}

// Lookup resolves a raw pass type into its plan.
func (c *Catalog) Lookup(passType string) (Plan, error) {
	parsed, err := enums.ParsePassType(strings.TrimSpace(passType))
	if err != nil {
		return Plan{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pass type")
	}
	plan, ok := c.plans[parsed]
	if !ok {
		return Plan{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid pass type")
	}
	return plan, nil
}

// Plans lists every plan ordered by price.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, plan := range c.plans {
		out = append(out, plan)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
