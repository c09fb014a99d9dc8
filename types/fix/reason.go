package fix

// Reason explains an accept or reject decision.
type Reason string

const (
	ReasonFirstPosition     Reason = "first_position"
	ReasonTimeoutOverride   Reason = "timeout_override"
	ReasonSpeedOK           Reason = "speed_ok"
	ReasonSpeedTooHigh      Reason = "speed_too_high"
	ReasonTimeDeltaTooSmall Reason = "time_delta_too_small"
	ReasonExcludedZone      Reason = "excluded_zone"
	ReasonMalformedInput    Reason = "malformed_input"

	// ReasonOutOfScope marks candidates the engine ignored entirely.
	// Nothing is recorded for them.
	ReasonOutOfScope Reason = "out_of_scope"
)

func (r Reason) String() string {
	return string(r)
}

// Accepting reports whether the reason belongs to an accept decision.
func (r Reason) Accepting() bool {
	switch r {
	case ReasonFirstPosition, ReasonTimeoutOverride, ReasonSpeedOK:
		return true
	}
	return false
}
