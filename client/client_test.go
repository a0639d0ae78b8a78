package client_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/client"
	"relay/metric"
	"relay/signal"
	"relay/types/api/response"
	clientresponse "relay/types/client/response"
)

const waitTimeout = 2 * time.Second

// newRelay serves the full relay stack from a test server.
func newRelay(t *testing.T) *httptest.Server {
	t.Helper()
	metrics := metric.New(metric.Config{Port: metric.DefaultMetricsPort, Path: metric.DefaultMetricsPath})
	handler, err := signal.NewHandler(signal.Config{
		Port:      signal.DefaultPort,
		UploadDir: t.TempDir(),
	}, metrics)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// join registers and connects one user.
func join(t *testing.T, srv *httptest.Server, username string) *client.Client {
	t.Helper()
	c := client.New(srv.URL, username)
	require.NoError(t, c.Register())
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	// every login is acknowledged with the presence snapshot
	_, err := c.WaitFor(clientresponse.USERSLIST, waitTimeout)
	require.NoError(t, err)
	return c
}

func decodePayload[T any](t *testing.T, ev client.Event) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ev.Payload, &v))
	return v
}

func TestPresence(t *testing.T) {
	t.Run("given two users when second joins then first sees it come online", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")
		join(t, srv, "bob")

		ev, err := alice.WaitFor(clientresponse.USERONLINE, waitTimeout)
		require.NoError(t, err)
		presence := decodePayload[clientresponse.Presence](t, ev)
		assert.Equal(t, "bob", presence.Username)
		assert.True(t, presence.Online)

		users, err := alice.Users()
		require.NoError(t, err)
		assert.ElementsMatch(t, []response.UserEntry{
			{Username: "alice", Online: true},
			{Username: "bob", Online: true},
		}, users)
	})

	t.Run("given two users when one leaves then the other sees it go offline", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")
		bob := join(t, srv, "bob")
		_, err := alice.WaitFor(clientresponse.USERONLINE, waitTimeout)
		require.NoError(t, err)

		require.NoError(t, bob.Close())

		ev, err := alice.WaitFor(clientresponse.USEROFFLINE, waitTimeout)
		require.NoError(t, err)
		presence := decodePayload[clientresponse.Presence](t, ev)
		assert.Equal(t, "bob", presence.Username)
		assert.False(t, presence.Online)
	})
}

func TestCallSignaling(t *testing.T) {
	t.Run("given two users when call completes then every event reaches its peer", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")
		bob := join(t, srv, "bob")

		// alice rings bob with a real SDP offer
		offer, err := client.NewOffer()
		require.NoError(t, err)
		require.NoError(t, alice.Call("bob", offer))

		ev, err := bob.WaitFor(clientresponse.INCOMINGCALL, waitTimeout)
		require.NoError(t, err)
		incoming := decodePayload[clientresponse.IncomingCall](t, ev)
		assert.Equal(t, "alice", incoming.CallerUsername)
		assert.NotEmpty(t, incoming.CallerID)
		assert.JSONEq(t, string(offer), string(incoming.Offer))

		// bob answers toward alice's pinned connection
		answer, err := client.NewAnswer(incoming.Offer)
		require.NoError(t, err)
		require.NoError(t, bob.Answer(incoming.CallerID, answer))

		ev, err = alice.WaitFor(clientresponse.CALLANSWERED, waitTimeout)
		require.NoError(t, err)
		answered := decodePayload[clientresponse.CallAnswered](t, ev)
		assert.NotEmpty(t, answered.CalleeID)
		assert.JSONEq(t, string(answer), string(answered.Answer))

		// candidates flow in both directions
		candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host"}`)
		require.NoError(t, alice.SendCandidate(answered.CalleeID, candidate))
		ev, err = bob.WaitFor(clientresponse.ICECANDIDATE, waitTimeout)
		require.NoError(t, err)
		assert.JSONEq(t, string(candidate), string(decodePayload[clientresponse.IceCandidate](t, ev).Candidate))

		require.NoError(t, bob.SendCandidate(incoming.CallerID, candidate))
		_, err = alice.WaitFor(clientresponse.ICECANDIDATE, waitTimeout)
		require.NoError(t, err)

		// alice hangs up; bob gets exactly one call-ended
		require.NoError(t, alice.HangUp(answered.CalleeID))
		_, err = bob.WaitFor(clientresponse.CALLENDED, waitTimeout)
		require.NoError(t, err)
		_, err = bob.WaitFor(clientresponse.CALLENDED, 100*time.Millisecond)
		assert.ErrorIs(t, err, client.ErrTimeout)
	})

	t.Run("given offline callee when called then caller is told", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")

		// registered but never connected
		bob := client.New(srv.URL, "bob")
		require.NoError(t, bob.Register())

		offer, err := client.NewOffer()
		require.NoError(t, err)
		require.NoError(t, alice.Call("bob", offer))

		ev, err := alice.WaitFor(clientresponse.TARGETUNREACHABLE, waitTimeout)
		require.NoError(t, err)
		unreachable := decodePayload[clientresponse.TargetUnreachable](t, ev)
		assert.Equal(t, "call-user", unreachable.Event)
		assert.Equal(t, "bob", unreachable.Target)
	})

	t.Run("given live call when peer disconnects then call ends", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")
		bob := join(t, srv, "bob")

		offer, err := client.NewOffer()
		require.NoError(t, err)
		require.NoError(t, alice.Call("bob", offer))
		ev, err := bob.WaitFor(clientresponse.INCOMINGCALL, waitTimeout)
		require.NoError(t, err)
		incoming := decodePayload[clientresponse.IncomingCall](t, ev)
		answer, err := client.NewAnswer(incoming.Offer)
		require.NoError(t, err)
		require.NoError(t, bob.Answer(incoming.CallerID, answer))
		_, err = alice.WaitFor(clientresponse.CALLANSWERED, waitTimeout)
		require.NoError(t, err)

		require.NoError(t, bob.Close())

		_, err = alice.WaitFor(clientresponse.CALLENDED, waitTimeout)
		require.NoError(t, err)
	})
}

func TestMessaging(t *testing.T) {
	t.Run("given two users when message sent then it arrives attributed and timestamped", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")
		bob := join(t, srv, "bob")

		before := time.Now().UnixMilli()
		require.NoError(t, alice.SendMessage("bob", "hello bob"))

		ev, err := bob.WaitFor(clientresponse.RECEIVEMESSAGE, waitTimeout)
		require.NoError(t, err)
		received := decodePayload[clientresponse.ReceiveMessage](t, ev)
		assert.Equal(t, "alice", received.From)
		assert.Equal(t, "hello bob", received.Message)
		assert.Equal(t, "text", received.Type)
		assert.GreaterOrEqual(t, received.Timestamp, before)
	})

	t.Run("given two users when file reference sent then it arrives intact", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")
		bob := join(t, srv, "bob")

		fileInfo := json.RawMessage(`{"filename":"123-doc.pdf","originalname":"doc.pdf","size":2048,"path":"/uploads/123-doc.pdf"}`)
		require.NoError(t, alice.SendFile("bob", fileInfo))

		ev, err := bob.WaitFor(clientresponse.RECEIVEFILE, waitTimeout)
		require.NoError(t, err)
		received := decodePayload[clientresponse.ReceiveFile](t, ev)
		assert.Equal(t, "alice", received.From)
		assert.JSONEq(t, string(fileInfo), string(received.FileInfo))
	})

	t.Run("given offline target when message sent then sender is told", func(t *testing.T) {
		srv := newRelay(t)
		alice := join(t, srv, "alice")

		require.NoError(t, alice.SendMessage("nobody", "anyone there"))

		ev, err := alice.WaitFor(clientresponse.TARGETUNREACHABLE, waitTimeout)
		require.NoError(t, err)
		unreachable := decodePayload[clientresponse.TargetUnreachable](t, ev)
		assert.Equal(t, "send-message", unreachable.Event)
		assert.Equal(t, "nobody", unreachable.Target)
	})
}

func TestSupersede(t *testing.T) {
	t.Run("given online user when logged in again then old connection is replaced", func(t *testing.T) {
		srv := newRelay(t)
		old := join(t, srv, "alice")

		fresh := client.New(srv.URL, "alice")
		require.NoError(t, fresh.Connect())
		t.Cleanup(func() { _ = fresh.Close() })
		_, err := fresh.WaitFor(clientresponse.USERSLIST, waitTimeout)
		require.NoError(t, err)

		_, err = old.WaitFor(clientresponse.SESSIONREPLACED, waitTimeout)
		require.NoError(t, err)

		// the fresh connection stays usable
		bob := join(t, srv, "bob")
		require.NoError(t, bob.SendMessage("alice", "still there"))
		ev, err := fresh.WaitFor(clientresponse.RECEIVEMESSAGE, waitTimeout)
		require.NoError(t, err)
		assert.Equal(t, "bob", decodePayload[clientresponse.ReceiveMessage](t, ev).From)
	})
}
