package database

import (
	"strings"
	"time"
)

// State is the state of a call session.
const (
	// Idle means no session exists for the pair. It is never stored; a
	// session record is created directly in Ringing.
	Idle = iota

	// Ringing means the caller sent an offer and the callee has not answered.
	Ringing

	// Active means the callee answered and negotiation is in progress.
	Active

	// Ended means either party hung up, disconnected or the ring timed out.
	Ended
)

// SessionInfo is a struct for a call session between exactly two users. It is
// keyed by the unordered username pair; negotiation stays pinned to the
// connection references captured when the session was created.
type SessionInfo struct {
	ID         string
	Caller     string
	Callee     string
	CallerConn string
	CalleeConn string
	State      int
	CreatedAt  time.Time
	AnsweredAt time.Time
}

// SessionID returns the session key for the unordered pair of usernames.
func SessionID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "#" + b
}

// CanAnswer returns whether an answer is legal in the current state.
func (s *SessionInfo) CanAnswer() bool {
	return s.State == Ringing
}

// CanSignal returns whether candidate exchange is legal in the current state.
func (s *SessionInfo) CanSignal() bool {
	return s.State == Ringing || s.State == Active
}

// IsLive returns whether the session has not ended yet.
func (s *SessionInfo) IsLive() bool {
	return s.State != Ended
}

// Involves reports whether the given username is one of the two parties.
func (s *SessionInfo) Involves(username string) bool {
	return s.Caller == username || s.Callee == username
}

// Counterpart returns the other party of the given username.
func (s *SessionInfo) Counterpart(username string) string {
	if s.Caller == username {
		return s.Callee
	}
	return s.Caller
}

// CounterpartConn returns the pinned connection of the party opposite to the
// given username.
func (s *SessionInfo) CounterpartConn(username string) string {
	if s.Caller == username {
		return s.CalleeConn
	}
	return s.CallerConn
}

// StateName returns a readable name for diagnostics.
func StateName(state int) string {
	switch state {
	case Idle:
		return "idle"
	case Ringing:
		return "ringing"
	case Active:
		return "active"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// StateNames joins readable names for a set of states, for diagnostics.
func StateNames(states []int) string {
	names := make([]string, 0, len(states))
	for _, s := range states {
		names = append(names, StateName(s))
	}
	return strings.Join(names, "|")
}

// DeepCopy creates a deep copy of the given SessionInfo.
func (s *SessionInfo) DeepCopy() *SessionInfo {
	return &SessionInfo{
		ID:         s.ID,
		Caller:     s.Caller,
		Callee:     s.Callee,
		CallerConn: s.CallerConn,
		CalleeConn: s.CalleeConn,
		State:      s.State,
		CreatedAt:  s.CreatedAt,
		AnsweredAt: s.AnsweredAt,
	}
}
