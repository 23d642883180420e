package enums

import "fmt"

// OutboxAggregateType identifies the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregatePass    OutboxAggregateType = "pass"
	AggregateBooking OutboxAggregateType = "booking"
	AggregateCoupon  OutboxAggregateType = "coupon"
	AggregateUser    OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePass,
	AggregateBooking,
	AggregateCoupon,
	AggregateUser,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventPassGranted                 OutboxEventType = "pass_granted"
	EventFamilyBeneficiaryUnresolved OutboxEventType = "family_beneficiary_unresolved"
	EventCouponRedeemed              OutboxEventType = "coupon_redeemed"
	EventBookingRefunded             OutboxEventType = "booking_refunded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPassGranted,
	EventFamilyBeneficiaryUnresolved,
	EventCouponRedeemed,
	EventBookingRefunded,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
