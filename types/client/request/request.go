// Package request contains inbound client event types.
package request

import "encoding/json"

// Constants for inbound event names. These are the wire contract and mirror
// the event vocabulary the web client already speaks.
const (
	LOGIN        = "login"
	CALLUSER     = "call-user"
	ANSWERCALL   = "answer-call"
	ICECANDIDATE = "ice-candidate"
	HANGUP       = "hang-up"
	SENDMESSAGE  = "send-message"
	SENDFILE     = "send-file"
)

// Common is the frame envelope every inbound event is wrapped in.
type Common struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Login is the first event a connection must send.
type Login struct {
	Username string `json:"username"`
}

// CallUser initiates a call. The offer is opaque to the relay.
type CallUser struct {
	Username       string          `json:"username"`
	Offer          json.RawMessage `json:"offer"`
	CallerUsername string          `json:"callerUsername"`
}

// AnswerCall answers a ringing call. The target is the caller's connection
// reference carried by the earlier incoming-call event.
type AnswerCall struct {
	Answer   json.RawMessage `json:"answer"`
	CallerID string          `json:"callerId"`
}

// IceCandidate relays a network path candidate to a pinned connection.
type IceCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
	TargetID  string          `json:"targetId"`
}

// HangUp ends a call with the pinned connection.
type HangUp struct {
	TargetID string `json:"targetId"`
}

// SendMessage relays a chat message to a username.
type SendMessage struct {
	TargetUsername string `json:"targetUsername"`
	Message        string `json:"message"`
	Type           string `json:"type"`
}

// SendFile relays a file reference to a username. The file bytes never pass
// through the relay; only the reference returned by the upload API does.
type SendFile struct {
	TargetUsername string          `json:"targetUsername"`
	FileInfo       json.RawMessage `json:"fileInfo"`
}
