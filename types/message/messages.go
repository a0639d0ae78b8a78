// Package message provides the parsed event types handed to the router.
package message

import "encoding/json"

// Login is sent when a connection authenticates with a username.
type Login struct {
	ConnRef  string
	Username string
}

// CallUser is sent when a client initiates a call by username.
type CallUser struct {
	ConnRef        string
	TargetUsername string
	Offer          json.RawMessage
}

// AnswerCall is sent when a callee answers a ringing call.
type AnswerCall struct {
	ConnRef   string
	CallerRef string
	Answer    json.RawMessage
}

// IceCandidate is sent when a client forwards a network path candidate.
type IceCandidate struct {
	ConnRef   string
	TargetRef string
	Candidate json.RawMessage
}

// HangUp is sent when a client ends a call.
type HangUp struct {
	ConnRef   string
	TargetRef string
}

// SendMessage is sent when a client relays a chat message.
type SendMessage struct {
	ConnRef        string
	TargetUsername string
	Body           string
	ContentType    string
}

// SendFile is sent when a client relays a file reference.
type SendFile struct {
	ConnRef        string
	TargetUsername string
	FileInfo       json.RawMessage
}

// Disconnect is sent when a connection closes, explicitly or abruptly.
type Disconnect struct {
	ConnRef string
}
