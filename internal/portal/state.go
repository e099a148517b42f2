package portal

import "fmt"

// State is the config portal lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePortalStarting
	StatePortalActive
	StatePortalSaved
	StatePortalTimedOut
	StatePortalClosedByUser
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePortalStarting:
		return "PORTAL_STARTING"
	case StatePortalActive:
		return "PORTAL_ACTIVE"
	case StatePortalSaved:
		return "PORTAL_SAVED"
	case StatePortalTimedOut:
		return "PORTAL_TIMED_OUT"
	case StatePortalClosedByUser:
		return "PORTAL_CLOSED_BY_USER"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the portal is finishing from s.
func (s State) Terminal() bool {
	return s == StatePortalSaved || s == StatePortalTimedOut || s == StatePortalClosedByUser
}
