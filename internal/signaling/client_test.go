package signaling_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/tangysync/internal/config"
	"github.com/1ureka/tangysync/internal/relay"
	"github.com/1ureka/tangysync/internal/signaling"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newClient(baseURL, token string) *signaling.Client {
	return signaling.NewClient(config.RelayConfig{BaseURL: baseURL, Token: token, Timeout: 2 * time.Second})
}

func TestClientAgainstRelay(t *testing.T) {
	srv := httptest.NewServer(relay.New(config.Default().Server).Handler())
	defer srv.Close()
	base := srv.URL + relay.APIPrefix + "/"

	alice := newClient(base, "alice")
	bob := newClient(base, "bob")
	ctx := context.Background()

	offer := signaling.Offer{
		Type: signaling.OfferType, IP: "127.0.0.1", Port: 9000,
		Name: "a.mcdf", Size: 10, Chunk: 4,
	}
	sdp, err := offer.Encode()
	require.NoError(t, err)

	status, err := alice.PostOffer(ctx, "bob", sdp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)

	msgs, status, err := bob.Inbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	received := signaling.Offers(msgs)
	require.Len(t, received, 1)
	assert.Equal(t, "alice", received[0].From)
	assert.Equal(t, offer, received[0].Offer)

	status, err = bob.Heartbeat(ctx, signaling.Presence{Busy: false})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(relay.New(config.Default().Server).Handler())
	defer srv.Close()

	anon := newClient(srv.URL+relay.APIPrefix, "")
	status, err := anon.PostOffer(context.Background(), "bob", "x")

	assert.Equal(t, http.StatusUnauthorized, status)
	var serr *signaling.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.Code)
}

func TestClientUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := newClient("http://"+addr+"/api", "alice")
	msgs, status, err := c.Inbox(context.Background())
	assert.Error(t, err)
	assert.Zero(t, status)
	assert.Nil(t, msgs)
}

func TestClientTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := signaling.NewClient(config.RelayConfig{BaseURL: srv.URL, Token: "a", Timeout: 100 * time.Millisecond})
	start := time.Now()
	status, err := c.Heartbeat(context.Background(), signaling.Presence{})
	assert.Error(t, err)
	assert.Zero(t, status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSubscribeRejectedWithoutToken(t *testing.T) {
	srv := httptest.NewServer(relay.New(config.Default().Server).Handler())
	defer srv.Close()

	err := newClient(srv.URL+relay.APIPrefix, "").Subscribe(context.Background(), func(signaling.Message) {})
	var serr *signaling.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.Code)
}
