package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/tangysync/internal/config"
	"github.com/1ureka/tangysync/internal/signaling"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRelay(t *testing.T, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func clientFor(srv *httptest.Server, handle string) *signaling.Client {
	return signaling.NewClient(config.RelayConfig{
		BaseURL: srv.URL + APIPrefix,
		Token:   handle,
		Timeout: 2 * time.Second,
	})
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestRelay(t, config.Default().Server)

	resp, err := http.Get(srv.URL + APIPrefix + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMissingTokenIsRejected(t *testing.T) {
	srv := newTestRelay(t, config.Default().Server)

	resp, err := http.Get(srv.URL + APIPrefix + signaling.PathInbox)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInboxIsDrainedOnRead(t *testing.T) {
	srv := newTestRelay(t, config.Default().Server)
	alice := clientFor(srv, "alice")
	bob := clientFor(srv, "bob")
	ctx := context.Background()

	status, err := alice.PostOffer(ctx, "bob", "offer-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
	_, err = alice.PostAnswer(ctx, "bob", "answer-1")
	require.NoError(t, err)

	msgs, status, err := bob.Inbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []signaling.Message{
		{Type: signaling.MsgTypeOffer, From: "alice", SDP: "offer-1"},
		{Type: signaling.MsgTypeAnswer, From: "alice", SDP: "answer-1"},
	}, msgs)

	msgs, _, err = bob.Inbox(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Alice's own inbox was never touched.
	msgs, _, err = alice.Inbox(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPostWithoutRecipient(t *testing.T) {
	srv := newTestRelay(t, config.Default().Server)

	status, err := clientFor(srv, "alice").PostOffer(context.Background(), "", "x")
	assert.Equal(t, http.StatusBadRequest, status)
	var serr *signaling.StatusError
	assert.ErrorAs(t, err, &serr)
}

func TestHeartbeatUpdatesPresence(t *testing.T) {
	srv := newTestRelay(t, config.Default().Server)
	ctx := context.Background()

	status, err := clientFor(srv, "bob").Heartbeat(ctx, signaling.Presence{Busy: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
	_, err = clientFor(srv, "alice").Heartbeat(ctx, signaling.Presence{})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+APIPrefix+"/presence", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer carol")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var peers []Peer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&peers))
	require.Len(t, peers, 2)
	assert.Equal(t, "alice", peers[0].Handle)
	assert.False(t, peers[0].Busy)
	assert.Equal(t, "bob", peers[1].Handle)
	assert.True(t, peers[1].Busy)
}

func TestThrottlePerHandle(t *testing.T) {
	srv := newTestRelay(t, config.ServerConfig{RequestsPerSecond: 0.1, Burst: 2})
	ctx := context.Background()
	alice := clientFor(srv, "alice")

	for range 2 {
		_, _, err := alice.Inbox(ctx)
		require.NoError(t, err)
	}
	_, status, err := alice.Inbox(ctx)
	assert.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status)

	// Another handle has its own budget.
	_, status, err = clientFor(srv, "bob").Inbox(ctx)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestSubscribeReceivesPushes(t *testing.T) {
	srv := newTestRelay(t, config.Default().Server)
	alice := clientFor(srv, "alice")
	bob := clientFor(srv, "bob")

	// Queued before the subscription exists.
	_, err := alice.PostOffer(context.Background(), "bob", "early")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan signaling.Message, 4)
	done := make(chan error, 1)
	go func() { done <- bob.Subscribe(ctx, func(m signaling.Message) { got <- m }) }()

	select {
	case m := <-got:
		assert.Equal(t, "early", m.SDP)
	case <-time.After(2 * time.Second):
		t.Fatal("queued message was not flushed")
	}

	_, err = alice.PostOffer(context.Background(), "bob", "late")
	require.NoError(t, err)

	select {
	case m := <-got:
		assert.Equal(t, signaling.Message{Type: signaling.MsgTypeOffer, From: "alice", SDP: "late"}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("pushed message not received")
	}

	// Pushed messages are not also queued.
	msgs, _, err := bob.Inbox(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(config.Default().Server).Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestRelay(t, config.Default().Server)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+APIPrefix+signaling.PathOffer, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Less(t, resp.StatusCode, 300)
	assert.True(t, strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST"))
}

func TestDeliverQueuesWhenPushBufferFull(t *testing.T) {
	s := New(config.Default().Server)
	ch := s.subscribe("bob")
	defer s.unsubscribe("bob", ch)

	msg := func(i int) signaling.Message {
		return signaling.Message{Type: signaling.MsgTypeOffer, From: "alice", SDP: strconv.Itoa(i)}
	}
	for i := range subscriberSize {
		require.True(t, s.deliver("bob", msg(i)))
	}
	require.Len(t, ch, subscriberSize)

	// The subscriber is full; the next message must not be lost.
	require.True(t, s.deliver("bob", msg(subscriberSize)))
	assert.Equal(t, []signaling.Message{msg(subscriberSize)}, s.inboxes["bob"])
}
