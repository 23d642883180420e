package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/outbox/payloads"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// RevenueEventRow is one row of the revenue_events table. Grants carry gross
// revenue, refunds carry a refund amount; net is gross minus refund.
type RevenueEventRow struct {
	EventID           string             `bigquery:"event_id"`
	EventType         string             `bigquery:"event_type"`
	OccurredAt        time.Time          `bigquery:"occurred_at"`
	UserID            *string            `bigquery:"user_id"`
	PassType          *string            `bigquery:"pass_type"`
	SessionID         *string            `bigquery:"session_id"`
	CouponCode        *string            `bigquery:"coupon_code"`
	BookingID         *string            `bigquery:"booking_id"`
	InstructorID      *string            `bigquery:"instructor_id"`
	GrossRevenueCents int64              `bigquery:"gross_revenue_cents"`
	RefundCents       int64              `bigquery:"refund_cents"`
	NetRevenueCents   int64              `bigquery:"net_revenue_cents"`
	Currency          string             `bigquery:"currency"`
	Payload           cbigquery.NullJSON `bigquery:"payload"`
}

type rowBuilder func(envelope outbox.PayloadEnvelope) (RevenueEventRow, error)

var rowBuilders = map[enums.OutboxEventType]rowBuilder{
	enums.EventPassGranted:     passGrantedRow,
	enums.EventCouponRedeemed:  couponRedeemedRow,
	enums.EventBookingRefunded: bookingRefundedRow,
}

// Supports reports whether the event type feeds the revenue table.
func Supports(eventType enums.OutboxEventType) bool {
	_, ok := rowBuilders[eventType]
	return ok
}

// BuildRow maps an outbox envelope to its revenue row.
func BuildRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (RevenueEventRow, error) {
	build, ok := rowBuilders[eventType]
	if !ok {
		return RevenueEventRow{}, fmt.Errorf("%w: %s", ErrUnsupportedEventType, eventType)
	}
	row, err := build(envelope)
	if err != nil {
		return RevenueEventRow{}, err
	}
	row.EventID = envelope.EventID
	row.EventType = string(eventType)
	if row.OccurredAt.IsZero() {
		row.OccurredAt = envelope.OccurredAt
	}
	row.OccurredAt = row.OccurredAt.UTC()
	row.NetRevenueCents = row.GrossRevenueCents - row.RefundCents
	row.Currency = "BRL"
	row.Payload = encodeJSON(envelope.Data)
	return row, nil
}

func passGrantedRow(envelope outbox.PayloadEnvelope) (RevenueEventRow, error) {
	var payload payloads.PassGrantedEvent
	if err := envelope.DecodeData(&payload); err != nil {
		return RevenueEventRow{}, fmt.Errorf("decode pass_granted: %w", err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(payload.Price))
	if err != nil {
		return RevenueEventRow{}, fmt.Errorf("parse pass price %q: %w", payload.Price, err)
	}
	return RevenueEventRow{
		UserID:            uuidPtr(payload.UserID),
		PassType:          stringPtr(string(payload.PassType)),
		SessionID:         stringPtr(payload.SessionID),
		GrossRevenueCents: types.ToMinorUnits(price),
	}, nil
}

func couponRedeemedRow(envelope outbox.PayloadEnvelope) (RevenueEventRow, error) {
	var payload payloads.CouponRedeemedEvent
	if err := envelope.DecodeData(&payload); err != nil {
		return RevenueEventRow{}, fmt.Errorf("decode coupon_redeemed: %w", err)
	}
	return RevenueEventRow{
		UserID:     uuidPtr(payload.UserID),
		SessionID:  stringPtr(payload.SessionID),
		CouponCode: stringPtr(payload.Code),
	}, nil
}

func bookingRefundedRow(envelope outbox.PayloadEnvelope) (RevenueEventRow, error) {
	var payload payloads.BookingRefundedEvent
	if err := envelope.DecodeData(&payload); err != nil {
		return RevenueEventRow{}, fmt.Errorf("decode booking_refunded: %w", err)
	}
	row := RevenueEventRow{
		OccurredAt:  payload.RefundedAt,
		UserID:      uuidPtr(payload.StudentID),
		BookingID:   uuidPtr(payload.BookingID),
		RefundCents: payload.AmountCents,
	}
	if payload.InstructorID != nil {
		row.InstructorID = uuidPtr(*payload.InstructorID)
	}
	return row, nil
}

func encodeJSON(raw json.RawMessage) cbigquery.NullJSON {
	if len(raw) == 0 {
		return cbigquery.NullJSON{}
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}
}

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func uuidPtr(value uuid.UUID) *string {
	if value == uuid.Nil {
		return nil
	}
	s := value.String()
	return &s
}
