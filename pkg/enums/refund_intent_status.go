package enums

import "fmt"

// RefundIntentStatus tracks progress of a refund through the processor and the local write.
type RefundIntentStatus string

const (
	RefundIntentPending            RefundIntentStatus = "pending"
	RefundIntentProcessorSucceeded RefundIntentStatus = "processor_succeeded"
	RefundIntentResolved           RefundIntentStatus = "resolved"
	RefundIntentFailed             RefundIntentStatus = "failed"
)

var validRefundIntentStatuses = []RefundIntentStatus{
	RefundIntentPending,
	RefundIntentProcessorSucceeded,
	RefundIntentResolved,
	RefundIntentFailed,
}

// String implements fmt.Stringer.
func (r RefundIntentStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundIntentStatus.
func (r RefundIntentStatus) IsValid() bool {
	for _, candidate := range validRefundIntentStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundIntentStatus converts raw input into a RefundIntentStatus.
func ParseRefundIntentStatus(value string) (RefundIntentStatus, error) {
	for _, candidate := range validRefundIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund intent status %q", value)
}
