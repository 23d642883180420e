package enums

// OutboxDLQErrorReason records why the relay gave up on an outbox row.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts means publishing kept failing transiently.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonUnresolvable covers unregistered event types and
	// payloads that no longer decode.
	OutboxDLQReasonUnresolvable OutboxDLQErrorReason = "unresolvable"
	// OutboxDLQReasonTopicMissing means the routed topic does not exist.
	OutboxDLQReasonTopicMissing OutboxDLQErrorReason = "topic_missing"
	// OutboxDLQReasonPublishRejected means Pub/Sub refused the message outright.
	OutboxDLQReasonPublishRejected OutboxDLQErrorReason = "publish_rejected"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonUnresolvable, OutboxDLQReasonTopicMissing, OutboxDLQReasonPublishRejected:
		return true
	default:
		return false
	}
}

// Retryable reports whether replaying the row without a code or infra change
// could succeed.
func (r OutboxDLQErrorReason) Retryable() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonTopicMissing
}
