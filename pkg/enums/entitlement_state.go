package enums

// EntitlementState is the gate state for premium content.
// Unknown is only observed before the first evaluation completes.
type EntitlementState string

const (
	EntitlementUnknown EntitlementState = "unknown"
	EntitlementGranted EntitlementState = "granted"
	EntitlementBlocked EntitlementState = "blocked"
)

func (e EntitlementState) String() string {
	return string(e)
}

// Resolved reports whether the gate has left the unknown state.
func (e EntitlementState) Resolved() bool {
	return e == EntitlementGranted || e == EntitlementBlocked
}
