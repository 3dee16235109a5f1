package models

// SessionStatus is derived from the ready and valid flags.
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "IDLE"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSolved     SessionStatus = "SOLVED"
)

// StatusFor maps the ready/valid flag pair onto a SessionStatus.
func StatusFor(ready, valid bool) SessionStatus {
	switch {
	case !ready:
		return SessionStatusIdle
	case valid:
		return SessionStatusSolved
	default:
		return SessionStatusInProgress
	}
}
