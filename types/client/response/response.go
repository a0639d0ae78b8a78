// Package response provides outbound event types sent to clients.
package response

import "encoding/json"

// Constants for outbound event names.
const (
	INCOMINGCALL      = "incoming-call"
	CALLANSWERED      = "call-answered"
	ICECANDIDATE      = "ice-candidate"
	CALLENDED         = "call-ended"
	RECEIVEMESSAGE    = "receive-message"
	RECEIVEFILE       = "receive-file"
	USERONLINE        = "user-online"
	USEROFFLINE       = "user-offline"
	USERSLIST         = "users-list"
	TARGETUNREACHABLE = "target-unreachable"
	SESSIONREPLACED   = "session-replaced"
)

// Frame is the envelope every outbound event is wrapped in, symmetric to the
// inbound request.Common.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// IncomingCall notifies the callee of a ringing call. CallerID pins the rest
// of the negotiation to the caller's connection instance.
type IncomingCall struct {
	Offer          json.RawMessage `json:"offer"`
	CallerUsername string          `json:"callerUsername"`
	CallerID       string          `json:"callerId"`
}

// CallAnswered delivers the answer back to the caller. CalleeID pins the rest
// of the negotiation to the callee's connection instance.
type CallAnswered struct {
	Answer   json.RawMessage `json:"answer"`
	CalleeID string          `json:"calleeId"`
}

// IceCandidate relays a network path candidate.
type IceCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
}

// ReceiveMessage delivers a chat message. Timestamp is Unix milliseconds.
type ReceiveMessage struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// ReceiveFile delivers a file reference. Timestamp is Unix milliseconds.
type ReceiveFile struct {
	From      string          `json:"from"`
	FileInfo  json.RawMessage `json:"fileInfo"`
	Timestamp int64           `json:"timestamp"`
}

// Presence announces a user going online or offline.
type Presence struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// UserEntry is one row of the presence snapshot.
type UserEntry struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// TargetUnreachable tells the sender that a routed event was dropped because
// its target does not exist or is offline.
type TargetUnreachable struct {
	Event  string `json:"event"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}
