// Package controller handles the per-connection websocket protocol: envelope
// parsing, the login handshake, dispatch into the router and the outbound
// writer goroutine.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"relay/broker"
	"relay/broker/subscription"
	"relay/metric"
	"relay/pkg/socket"
	"relay/signal/router"
	"relay/types/client/request"
	"relay/types/client/response"
	"relay/types/message"
)

// ErrNotLoggedIn is returned when the first frame on a connection is not a
// login event.
var ErrNotLoggedIn = errors.New("first event must be login")

// Controller handles websocket connections.
type Controller struct {
	router *router.Router
	broker *broker.Broker
	metric *metric.Metrics
	debug  bool
}

// New creates a new instance of Controller.
func New(rt *router.Router, b *broker.Broker, m *metric.Metrics, debug bool) *Controller {
	return &Controller{
		router: rt,
		broker: b,
		metric: m,
		debug:  debug,
	}
}

// Process runs a connection until it closes. The connection reference is
// allocated by the transport handler and identifies this socket for the
// lifetime of the connection.
func (c *Controller) Process(conn socket.Socket, connRef string) error {
	c.metric.IncrementWebSocketConnections()
	defer c.metric.DecrementWebSocketConnections()

	// 01. The first frame must be a login; everything else is routed only
	// for a bound connection.
	username, err := c.awaitLogin(conn)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	// 02. Subscribe the outbound channels before login is processed so the
	// presence snapshot published by the router cannot be lost.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientSub := c.broker.Subscribe(broker.Client, broker.Detail(connRef))
	presenceSub := c.broker.Subscribe(broker.Presence, broker.Broadcast)
	defer func() {
		if err := c.broker.Unsubscribe(broker.Client, broker.Detail(connRef), clientSub); err != nil {
			log.Printf("unsubscribe client channel: %v", err)
		}
		if err := c.broker.Unsubscribe(broker.Presence, broker.Broadcast, presenceSub); err != nil {
			log.Printf("unsubscribe presence channel: %v", err)
		}
	}()
	if err := c.router.Login(message.Login{ConnRef: connRef, Username: username}); err != nil {
		// An unregistered username gets an explicit failure frame before
		// the connection is dropped. The writer has not started yet, so
		// this is the only write on the socket.
		if writeErr := conn.WriteJSON(response.Frame{
			Type: response.TARGETUNREACHABLE,
			Payload: response.TargetUnreachable{
				Event:  request.LOGIN,
				Target: username,
				Reason: "unknown user",
			},
		}); writeErr != nil {
			log.Printf("failed to report login failure: %v", writeErr)
		}
		return fmt.Errorf("login of %s: %w", username, err)
	}

	// 03. Only a logged-in connection gets the writer goroutine; it is the
	// sole writer on the socket from here on. Frames queued between the
	// subscribe above and this point are drained in order.
	go c.sendResponse(ctx, conn, username, clientSub, presenceSub)
	defer func() {
		if err := c.router.Disconnect(message.Disconnect{ConnRef: connRef}); err != nil {
			log.Printf("disconnect cleanup of %s: %v", connRef, err)
		}
	}()

	if err := c.receiveRequest(conn, connRef); err != nil {
		if c.debug {
			log.Printf("connection %s of %s closed: %v", connRef, username, err)
		}
	}
	return nil
}

// awaitLogin reads the first frame and extracts the username.
func (c *Controller) awaitLogin(conn socket.Socket) (string, error) {
	var req request.Common
	if err := conn.Read(&req); err != nil {
		return "", fmt.Errorf("failed to read login message: %w", err)
	}
	if req.Type != request.LOGIN {
		return "", fmt.Errorf("expected type '%s', got '%s': %w", request.LOGIN, req.Type, ErrNotLoggedIn)
	}
	var payload request.Login
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal login payload: %w", err)
	}
	if payload.Username == "" {
		return "", fmt.Errorf("empty username: %w", ErrNotLoggedIn)
	}
	return payload.Username, nil
}

// sendResponse writes outbound frames to the client until the context is
// cancelled. Presence frames about the connection's own user are skipped so
// that broadcasts reach everyone except the sender.
func (c *Controller) sendResponse(ctx context.Context, conn socket.Socket, username string,
	clientSub, presenceSub *subscription.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-clientSub.Receive():
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("failed to send response: %v", err)
				return
			}
			// A superseded connection is force-closed once it has been told.
			if frame, isFrame := msg.(response.Frame); isFrame && frame.Type == response.SESSIONREPLACED {
				if err := conn.Close(); err != nil {
					log.Printf("failed to close superseded connection: %v", err)
				}
				return
			}
		case msg, ok := <-presenceSub.Receive():
			if !ok {
				return
			}
			frame, isFrame := msg.(response.Frame)
			if isFrame {
				if pres, isPresence := frame.Payload.(response.Presence); isPresence && pres.Username == username {
					continue
				}
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("failed to send response: %v", err)
				return
			}
		}
	}
}

// receiveRequest reads frames from the websocket and dispatches them until
// the connection fails.
func (c *Controller) receiveRequest(conn socket.Socket, connRef string) error {
	for {
		var req request.Common
		if err := conn.Read(&req); err != nil {
			return fmt.Errorf("failed to parse common message: %w", err)
		}
		if err := c.handleRequest(req, connRef); err != nil {
			c.metric.CountDroppedEvent(router.DropMalformedEvent)
			log.Printf("error handling %s request: %v", req.Type, err)
			continue
		}
	}
}

// handleRequest parses the request type and calls the corresponding handler
// function. A malformed event is dropped; it never terminates the connection.
func (c *Controller) handleRequest(req request.Common, connRef string) error {
	var err error
	switch req.Type {
	case request.CALLUSER:
		err = c.handleCallUser(req, connRef)
	case request.ANSWERCALL:
		err = c.handleAnswerCall(req, connRef)
	case request.ICECANDIDATE:
		err = c.handleIceCandidate(req, connRef)
	case request.HANGUP:
		err = c.handleHangUp(req, connRef)
	case request.SENDMESSAGE:
		err = c.handleSendMessage(req, connRef)
	case request.SENDFILE:
		err = c.handleSendFile(req, connRef)
	case request.LOGIN:
		// Already logged in on this connection.
		err = fmt.Errorf("duplicate login event")
	default:
		err = fmt.Errorf("invalid request type: %s", req.Type)
	}
	return err
}

// handleCallUser handles the call-user event. The caller's identity comes
// from the binding, never from the payload.
func (c *Controller) handleCallUser(req request.Common, connRef string) error {
	var payload request.CallUser
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal call-user payload: %w", err)
	}
	if payload.Username == "" || len(payload.Offer) == 0 {
		return fmt.Errorf("call-user requires username and offer")
	}
	return c.router.CallUser(message.CallUser{
		ConnRef:        connRef,
		TargetUsername: payload.Username,
		Offer:          payload.Offer,
	})
}

// handleAnswerCall handles the answer-call event.
func (c *Controller) handleAnswerCall(req request.Common, connRef string) error {
	var payload request.AnswerCall
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal answer-call payload: %w", err)
	}
	if payload.CallerID == "" || len(payload.Answer) == 0 {
		return fmt.Errorf("answer-call requires callerId and answer")
	}
	return c.router.AnswerCall(message.AnswerCall{
		ConnRef:   connRef,
		CallerRef: payload.CallerID,
		Answer:    payload.Answer,
	})
}

// handleIceCandidate handles the ice-candidate event.
func (c *Controller) handleIceCandidate(req request.Common, connRef string) error {
	var payload request.IceCandidate
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal ice-candidate payload: %w", err)
	}
	if payload.TargetID == "" || len(payload.Candidate) == 0 {
		return fmt.Errorf("ice-candidate requires targetId and candidate")
	}
	return c.router.IceCandidate(message.IceCandidate{
		ConnRef:   connRef,
		TargetRef: payload.TargetID,
		Candidate: payload.Candidate,
	})
}

// handleHangUp handles the hang-up event.
func (c *Controller) handleHangUp(req request.Common, connRef string) error {
	var payload request.HangUp
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal hang-up payload: %w", err)
	}
	if payload.TargetID == "" {
		return fmt.Errorf("hang-up requires targetId")
	}
	return c.router.HangUp(message.HangUp{
		ConnRef:   connRef,
		TargetRef: payload.TargetID,
	})
}

// handleSendMessage handles the send-message event.
func (c *Controller) handleSendMessage(req request.Common, connRef string) error {
	var payload request.SendMessage
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal send-message payload: %w", err)
	}
	if payload.TargetUsername == "" {
		return fmt.Errorf("send-message requires targetUsername")
	}
	contentType := payload.Type
	if contentType == "" {
		contentType = "text"
	}
	return c.router.SendMessage(message.SendMessage{
		ConnRef:        connRef,
		TargetUsername: payload.TargetUsername,
		Body:           payload.Message,
		ContentType:    contentType,
	})
}

// handleSendFile handles the send-file event.
func (c *Controller) handleSendFile(req request.Common, connRef string) error {
	var payload request.SendFile
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal send-file payload: %w", err)
	}
	if payload.TargetUsername == "" || len(payload.FileInfo) == 0 {
		return fmt.Errorf("send-file requires targetUsername and fileInfo")
	}
	return c.router.SendFile(message.SendFile{
		ConnRef:        connRef,
		TargetUsername: payload.TargetUsername,
		FileInfo:       payload.FileInfo,
	})
}
