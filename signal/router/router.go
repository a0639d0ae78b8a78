// Package router implements the signaling core: it validates inbound events
// against the presence registry, enforces per-pair call session state, and
// forwards reshaped events to the target's bound connection through the
// broker.
package router

import (
	"errors"
	"fmt"
	"log"
	"time"

	"relay/broker"
	"relay/database"
	"relay/metric"
	"relay/types/client/response"
	"relay/types/message"
)

// Drop reasons reported through metrics when an event is not forwarded.
const (
	DropUnknownUser       = "unknown-user"
	DropTargetOffline     = "target-offline"
	DropStaleBinding      = "stale-binding"
	DropProtocolViolation = "protocol-violation"
	DropQueueFull         = "queue-full"
	DropMalformedEvent    = "malformed-event"
)

// ErrUnknownUser is returned by Login when the username was never registered.
// The connection is not worth keeping in that case.
var ErrUnknownUser = errors.New("unknown user")

// Router owns all event routing. Handlers are invoked synchronously from each
// connection's read loop, so events from one connection are processed in
// arrival order; the database serializes cross-connection access.
type Router struct {
	config   Config
	broker   *broker.Broker
	database database.Database
	metric   *metric.Metrics
}

// New creates a new instance of Router.
func New(config Config, b *broker.Broker, db database.Database, m *metric.Metrics) *Router {
	return &Router{
		config:   config.withDefaults(),
		broker:   b,
		database: db,
		metric:   m,
	}
}

// Login binds the username to the connection, announces presence to everyone
// else and sends the full presence snapshot to the sender. A login for a user
// that is already online supersedes the previous connection: the old binding
// is removed, its sessions are ended and the old connection is told to close.
func (r *Router) Login(msg message.Login) error {
	user, err := r.database.FindUserInfoByUsername(msg.Username)
	if err != nil {
		r.metric.CountDroppedEvent(DropUnknownUser)
		return fmt.Errorf("%s: %w", msg.Username, ErrUnknownUser)
	}

	if user.IsReachable() && user.ConnRef != msg.ConnRef {
		r.supersede(user)
	}

	if _, err := r.database.SetUserOnline(msg.Username, msg.ConnRef); err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	if _, err := r.database.CreateBindingInfo(msg.ConnRef, msg.Username); err != nil {
		return fmt.Errorf("create binding: %w", err)
	}
	if !user.Online {
		r.metric.IncrementOnlineUsers()
	}

	r.broadcastPresence(response.USERONLINE, msg.Username, true)
	r.sendSnapshot(msg.ConnRef)
	return nil
}

// CallUser initiates a call toward a username. The target must be online; the
// pair must not already have a live session.
func (r *Router) CallUser(msg message.CallUser) error {
	binding, err := r.database.FindBindingInfoByRef(msg.ConnRef)
	if err != nil {
		r.metric.CountDroppedEvent(DropStaleBinding)
		return fmt.Errorf("resolve caller: %w", err)
	}
	caller := binding.Username

	target, err := r.database.FindUserInfoByUsername(msg.TargetUsername)
	if err != nil || !target.IsReachable() {
		r.notifyUnreachable(msg.ConnRef, "call-user", msg.TargetUsername)
		return nil
	}

	session, err := r.database.CreateSessionInfo(caller, msg.TargetUsername, msg.ConnRef, target.ConnRef)
	if err != nil {
		r.metric.CountDroppedEvent(DropProtocolViolation)
		log.Printf("call-user from %s to %s rejected: %v", caller, msg.TargetUsername, err)
		return nil
	}
	r.metric.IncrementActiveCalls()
	r.scheduleRingTimeout(session)

	r.unicast(target.ConnRef, response.INCOMINGCALL, response.IncomingCall{
		Offer:          msg.Offer,
		CallerUsername: caller,
		CallerID:       msg.ConnRef,
	})
	return nil
}

// AnswerCall transitions the pair's session from Ringing to Active and
// delivers the answer to the caller's pinned connection.
func (r *Router) AnswerCall(msg message.AnswerCall) error {
	callee, caller, ok := r.resolvePair(msg.ConnRef, msg.CallerRef, "answer-call")
	if !ok {
		return nil
	}

	id := database.SessionID(caller, callee)
	if _, err := r.database.UpdateSessionInfoState(id, []int{database.Ringing}, database.Active); err != nil {
		r.metric.CountDroppedEvent(DropProtocolViolation)
		log.Printf("answer-call from %s dropped: %v", callee, err)
		return nil
	}

	r.unicast(msg.CallerRef, response.CALLANSWERED, response.CallAnswered{
		Answer:   msg.Answer,
		CalleeID: msg.ConnRef,
	})
	return nil
}

// IceCandidate relays a candidate to the pinned target connection. Candidates
// are legal any time between Ringing and Ended, in either direction.
func (r *Router) IceCandidate(msg message.IceCandidate) error {
	sender, target, ok := r.resolvePair(msg.ConnRef, msg.TargetRef, "ice-candidate")
	if !ok {
		return nil
	}

	session, err := r.database.FindSessionInfoByID(database.SessionID(sender, target))
	if err != nil || !session.CanSignal() {
		r.metric.CountDroppedEvent(DropProtocolViolation)
		log.Printf("ice-candidate from %s to %s outside a live session", sender, target)
		return nil
	}

	r.unicast(msg.TargetRef, response.ICECANDIDATE, response.IceCandidate{
		Candidate: msg.Candidate,
	})
	return nil
}

// HangUp ends the pair's session from any non-Ended state and notifies the
// pinned target connection.
func (r *Router) HangUp(msg message.HangUp) error {
	sender, target, ok := r.resolvePair(msg.ConnRef, msg.TargetRef, "hang-up")
	if !ok {
		return nil
	}

	id := database.SessionID(sender, target)
	if _, err := r.database.UpdateSessionInfoState(id, []int{database.Ringing, database.Active}, database.Ended); err != nil {
		r.metric.CountDroppedEvent(DropProtocolViolation)
		log.Printf("hang-up from %s dropped: %v", sender, err)
		return nil
	}
	r.dropSession(id)

	r.unicast(msg.TargetRef, response.CALLENDED, nil)
	return nil
}

// SendMessage relays a chat message to an online username. No session is
// required; messages are fire-and-forget.
func (r *Router) SendMessage(msg message.SendMessage) error {
	binding, err := r.database.FindBindingInfoByRef(msg.ConnRef)
	if err != nil {
		r.metric.CountDroppedEvent(DropStaleBinding)
		return fmt.Errorf("resolve sender: %w", err)
	}

	target, err := r.database.FindUserInfoByUsername(msg.TargetUsername)
	if err != nil || !target.IsReachable() {
		r.notifyUnreachable(msg.ConnRef, "send-message", msg.TargetUsername)
		return nil
	}

	r.unicast(target.ConnRef, response.RECEIVEMESSAGE, response.ReceiveMessage{
		From:      binding.Username,
		Message:   msg.Body,
		Type:      msg.ContentType,
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}

// SendFile relays a file reference to an online username. The bytes live in
// the upload sidecar; only the reference passes through here.
func (r *Router) SendFile(msg message.SendFile) error {
	binding, err := r.database.FindBindingInfoByRef(msg.ConnRef)
	if err != nil {
		r.metric.CountDroppedEvent(DropStaleBinding)
		return fmt.Errorf("resolve sender: %w", err)
	}

	target, err := r.database.FindUserInfoByUsername(msg.TargetUsername)
	if err != nil || !target.IsReachable() {
		r.notifyUnreachable(msg.ConnRef, "send-file", msg.TargetUsername)
		return nil
	}

	r.unicast(target.ConnRef, response.RECEIVEFILE, response.ReceiveFile{
		From:      binding.Username,
		FileInfo:  msg.FileInfo,
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}

// Disconnect cleans up after a closed connection: the binding is removed, the
// user goes offline, every session the user was party to is ended with a
// call-ended to the remaining party, and the presence change is broadcast.
// Duplicate disconnects are no-ops.
func (r *Router) Disconnect(msg message.Disconnect) error {
	binding, err := r.database.DeleteBindingInfoByRef(msg.ConnRef)
	if err != nil {
		// Already cleaned up, or superseded by a newer login.
		return nil
	}
	username := binding.Username

	if _, err := r.database.SetUserOffline(username); err != nil {
		return fmt.Errorf("set user offline: %w", err)
	}
	r.metric.DecrementOnlineUsers()

	r.endSessionsFor(username)

	r.broadcastPresence(response.USEROFFLINE, username, false)
	return nil
}

// supersede evicts a user's previous connection on re-login: its sessions are
// ended, the stale binding is removed, and the old connection is told its
// session was replaced so it can close.
func (r *Router) supersede(user *database.UserInfo) {
	log.Printf("superseding connection %s of %s", user.ConnRef, user.Username)
	r.endSessionsFor(user.Username)
	if _, err := r.database.DeleteBindingInfoByRef(user.ConnRef); err == nil {
		r.unicast(user.ConnRef, response.SESSIONREPLACED, nil)
	}
}

// endSessionsFor ends every live session the user is party to and notifies
// the counterpart's pinned connection.
func (r *Router) endSessionsFor(username string) {
	sessions, err := r.database.FindSessionInfoByParticipant(username)
	if err != nil {
		log.Printf("find sessions of %s: %v", username, err)
		return
	}
	for _, session := range sessions {
		if _, err := r.database.UpdateSessionInfoState(session.ID,
			[]int{database.Ringing, database.Active}, database.Ended); err != nil {
			continue
		}
		r.dropSession(session.ID)
		r.unicast(session.CounterpartConn(username), response.CALLENDED, nil)
	}
}

// scheduleRingTimeout ends the session if it is still Ringing after the
// configured timeout. The created timestamp distinguishes the session from a
// later one reusing the same pair key.
func (r *Router) scheduleRingTimeout(session *database.SessionInfo) {
	id, created := session.ID, session.CreatedAt
	time.AfterFunc(r.config.RingTimeout, func() {
		current, err := r.database.FindSessionInfoByID(id)
		if err != nil || !current.CreatedAt.Equal(created) {
			return
		}
		if _, err := r.database.UpdateSessionInfoState(id, []int{database.Ringing}, database.Ended); err != nil {
			return
		}
		log.Printf("session %s timed out while ringing", id)
		r.dropSession(id)
		r.unicast(current.CallerConn, response.CALLENDED, nil)
		r.unicast(current.CalleeConn, response.CALLENDED, nil)
	})
}

// dropSession deletes an ended session record and updates the gauge.
func (r *Router) dropSession(id string) {
	if err := r.database.DeleteSessionInfoByID(id); err != nil {
		log.Printf("delete session %s: %v", id, err)
		return
	}
	r.metric.DecrementActiveCalls()
}

// resolvePair resolves the sender's and the target's usernames from their
// connection references. A failed resolution drops the event and, for a stale
// target, acknowledges the sender.
func (r *Router) resolvePair(senderRef, targetRef, event string) (string, string, bool) {
	sender, err := r.database.FindBindingInfoByRef(senderRef)
	if err != nil {
		r.metric.CountDroppedEvent(DropStaleBinding)
		log.Printf("%s from unbound connection %s dropped", event, senderRef)
		return "", "", false
	}
	target, err := r.database.FindBindingInfoByRef(targetRef)
	if err != nil {
		r.notifyUnreachable(senderRef, event, targetRef)
		return "", "", false
	}
	return sender.Username, target.Username, true
}

// notifyUnreachable reports a dropped event back to its sender instead of
// failing silently.
func (r *Router) notifyUnreachable(connRef, event, target string) {
	r.metric.CountDroppedEvent(DropTargetOffline)
	r.unicast(connRef, response.TARGETUNREACHABLE, response.TargetUnreachable{
		Event:  event,
		Target: target,
		Reason: "target does not exist or is offline",
	})
}

// unicast publishes one frame to a single connection's outbound channel.
func (r *Router) unicast(connRef, event string, payload any) {
	delivered := r.broker.Publish(broker.Client, broker.Detail(connRef), response.Frame{
		Type:    event,
		Payload: payload,
	})
	if delivered == 0 {
		r.metric.CountDroppedEvent(DropQueueFull)
		log.Printf("no live subscriber for connection %s, %s dropped", connRef, event)
		return
	}
	r.metric.CountRoutedEvent(event)
}

// broadcastPresence publishes a presence change to every connected writer.
// Each writer skips frames about its own user.
func (r *Router) broadcastPresence(event, username string, online bool) {
	r.broker.Publish(broker.Presence, broker.Broadcast, response.Frame{
		Type:    event,
		Payload: response.Presence{Username: username, Online: online},
	})
	r.metric.CountRoutedEvent(event)
}

// sendSnapshot unicasts the full presence listing to a connection.
func (r *Router) sendSnapshot(connRef string) {
	users, err := r.database.FindAllUserInfo()
	if err != nil {
		log.Printf("list users: %v", err)
		return
	}
	entries := make([]response.UserEntry, 0, len(users))
	for _, user := range users {
		entries = append(entries, response.UserEntry{
			Username: user.Username,
			Online:   user.Online,
		})
	}
	r.unicast(connRef, response.USERSLIST, entries)
}
