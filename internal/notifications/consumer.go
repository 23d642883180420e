package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/outbox/idempotency"
	"github.com/vrumi/vrumi-backend/pkg/outbox/payloads"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

const domainNotificationConsumer = "domain-notifications"

const (
	linkPasses   = "/meus-passes"
	linkBookings = "/minhas-aulas"
)

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns pass and refund events into
// in-app notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a domain notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	switch eventType {
	case enums.EventPassGranted, enums.EventBookingRefunded, enums.EventFamilyBeneficiaryUnresolved:
	default:
		c.logg.Debug(logCtx, "notifications.skip_event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "notifications.decode_envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, envelope.EventID)

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "notifications.idempotency_check", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "notifications.already_processed")
		return processResult{ack: true}
	}

	notifications, err := buildNotifications(eventType, envelope.Data)
	if err == nil {
		for i := range notifications {
			if err = c.repo.Create(ctx, &notifications[i]); err != nil {
				break
			}
		}
	}
	if err != nil {
		c.logg.Error(logCtx, "notifications.handle_failed", err)
		_ = c.idempotency.Release(ctx, domainNotificationConsumer, envelope.EventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "created", len(notifications)), "notifications.created")
	return processResult{ack: true}
}

func buildNotifications(eventType enums.OutboxEventType, data json.RawMessage) ([]models.Notification, error) {
	switch eventType {
	case enums.EventPassGranted:
		var payload payloads.PassGrantedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode pass_granted: %w", err)
		}
		if payload.UserID == uuid.Nil {
			return nil, fmt.Errorf("pass_granted without user id")
		}
		body := fmt.Sprintf("Seu passe está ativo até %s. Bons estudos!", payload.ExpiresAt.Format("02/01/2006"))
		if payload.PurchaserID != uuid.Nil && payload.PurchaserID != payload.UserID {
			body = fmt.Sprintf("Você recebeu acesso por um Passe Família, válido até %s.", payload.ExpiresAt.Format("02/01/2006"))
		}
		return []models.Notification{{
			UserID: payload.UserID,
			Title:  "Passe liberado",
			Body:   body,
			Link:   stringPtr(linkPasses),
		}}, nil

	case enums.EventFamilyBeneficiaryUnresolved:
		var payload payloads.FamilyBeneficiaryUnresolvedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode family_beneficiary_unresolved: %w", err)
		}
		if payload.PurchaserID == uuid.Nil {
			return nil, fmt.Errorf("family_beneficiary_unresolved without purchaser id")
		}
		return []models.Notification{{
			UserID: payload.PurchaserID,
			Title:  "Segundo acesso pendente",
			Body: fmt.Sprintf("Não encontramos uma conta para %s. Peça para a pessoa se cadastrar e fale com o suporte para liberar o acesso.",
				payload.SecondUserEmail),
			Link: stringPtr(linkPasses),
		}}, nil

	case enums.EventBookingRefunded:
		var payload payloads.BookingRefundedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode booking_refunded: %w", err)
		}
		if payload.StudentID == uuid.Nil {
			return nil, fmt.Errorf("booking_refunded without student id")
		}
		amount := formatBRL(types.FromMinorUnits(payload.AmountCents))
		rows := []models.Notification{{
			UserID: payload.StudentID,
			Title:  "Reembolso confirmado",
			Body:   fmt.Sprintf("O reembolso de %s da sua aula foi processado e a aula foi cancelada.", amount),
			Link:   stringPtr(linkBookings),
		}}
		if payload.InstructorID != nil && *payload.InstructorID != uuid.Nil {
			rows = append(rows, models.Notification{
				UserID: *payload.InstructorID,
				Title:  "Aula cancelada com reembolso",
				Body:   "Uma aula sua foi reembolsada ao aluno e o valor foi estornado do seu saldo.",
				Link:   stringPtr(linkBookings),
			})
		}
		return rows, nil
	}
	return nil, nil
}

func formatBRL(amount decimal.Decimal) string {
	return "R$ " + strings.Replace(types.RoundMoney(amount).StringFixed(2), ".", ",", 1)
}

func stringPtr(value string) *string {
	return &value
}
