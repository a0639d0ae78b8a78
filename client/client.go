// Package client contains a Go client for the relay. It drives the HTTP
// registration side-channel and the websocket event protocol, and is used by
// the end-to-end tests.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	apirequest "relay/types/api/request"
	apiresponse "relay/types/api/response"
	"relay/types/client/request"
)

// ErrTimeout is returned when no expected event arrives in time.
var ErrTimeout = errors.New("timed out waiting for event")

// Event is one frame received from the relay.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one user of the relay.
type Client struct {
	username string
	baseURL  string
	socket   *websocket.Conn
	events   chan Event
	readErr  chan error
}

// New creates a new client against the given base URL (http or https).
func New(baseURL, username string) *Client {
	return &Client{
		username: username,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		events:   make(chan Event, 32),
		readErr:  make(chan error, 1),
	}
}

// Register creates the username through the registration side-channel.
func (c *Client) Register() error {
	body, err := json.Marshal(apirequest.Register{Username: c.username})
	if err != nil {
		return err
	}
	resp, err := http.Post(c.baseURL+"/api/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		var apiErr apiresponse.Error
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("registration failed with %d: %s", resp.StatusCode, apiErr.Error)
	}
	return nil
}

// Users fetches the presence listing through the side-channel.
func (c *Client) Users() ([]apiresponse.UserEntry, error) {
	resp, err := http.Get(c.baseURL + "/api/users")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var entries []apiresponse.UserEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return entries, nil
}

// Connect dials the websocket endpoint, logs in and starts consuming events.
func (c *Client) Connect() error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	c.socket = conn

	if err := c.send(request.LOGIN, request.Login{Username: c.username}); err != nil {
		return err
	}

	go func() {
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				c.readErr <- err
				close(c.events)
				return
			}
			c.events <- ev
		}
	}()
	return nil
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	if c.socket == nil {
		return nil
	}
	return c.socket.Close()
}

// WaitFor consumes events until one of the given type arrives. Other events
// are discarded.
func (c *Client) WaitFor(eventType string, timeout time.Duration) (Event, error) {
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return Event{}, errors.New("connection closed")
			}
			if ev.Type == eventType {
				return ev, nil
			}
		case <-deadline:
			return Event{}, fmt.Errorf("%s: %w", eventType, ErrTimeout)
		}
	}
}

// Call initiates a call toward the target username with the given offer.
func (c *Client) Call(target string, offer json.RawMessage) error {
	return c.send(request.CALLUSER, request.CallUser{
		Username:       target,
		Offer:          offer,
		CallerUsername: c.username,
	})
}

// Answer answers a ringing call pinned to the caller's connection.
func (c *Client) Answer(callerID string, answer json.RawMessage) error {
	return c.send(request.ANSWERCALL, request.AnswerCall{
		Answer:   answer,
		CallerID: callerID,
	})
}

// SendCandidate relays a network path candidate to a pinned connection.
func (c *Client) SendCandidate(targetID string, candidate json.RawMessage) error {
	return c.send(request.ICECANDIDATE, request.IceCandidate{
		Candidate: candidate,
		TargetID:  targetID,
	})
}

// HangUp ends the call with a pinned connection.
func (c *Client) HangUp(targetID string) error {
	return c.send(request.HANGUP, request.HangUp{TargetID: targetID})
}

// SendMessage relays a chat message to a username.
func (c *Client) SendMessage(target, text string) error {
	return c.send(request.SENDMESSAGE, request.SendMessage{
		TargetUsername: target,
		Message:        text,
		Type:           "text",
	})
}

// SendFile relays a file reference to a username.
func (c *Client) SendFile(target string, fileInfo json.RawMessage) error {
	return c.send(request.SENDFILE, request.SendFile{
		TargetUsername: target,
		FileInfo:       fileInfo,
	})
}

// send wraps a payload in the frame envelope and writes it.
func (c *Client) send(eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	if err := c.socket.WriteJSON(request.Common{Type: eventType, Payload: raw}); err != nil {
		return fmt.Errorf("failed to send %s: %w", eventType, err)
	}
	return nil
}
