package firehose

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWebSocketURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoint = "wss://example.test/subscribe"
	cfg.WantedCollections = []string{"col1", "col2"}
	cfg.WantedDIDs = []string{"did1"}

	c, err := NewConsumer(cfg, func() int64 { return 8373 })
	require.NoError(t, err)

	u, err := c.buildWebSocketURL()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(u, "wss://"))
	assert.Contains(t, u, "cursor=8373")
	assert.Contains(t, u, "wantedCollections=col1")
	assert.Contains(t, u, "wantedCollections=col2")
	assert.Contains(t, u, "wantedDids=did1")
	assert.Contains(t, u, "compress=true")
}

func TestBuildWebSocketURLNoCursorWhenZero(t *testing.T) {
	cfg := DefaultConfig()
	c, err := NewConsumer(cfg, func() int64 { return 0 })
	require.NoError(t, err)

	u, err := c.buildWebSocketURL()
	require.NoError(t, err)
	assert.NotContains(t, u, "cursor=")
}

func TestForceReconnectIsNonBlocking(t *testing.T) {
	cfg := DefaultConfig()
	c, err := NewConsumer(cfg, nil)
	require.NoError(t, err)

	c.ForceReconnect()
	c.ForceReconnect() // second call must not block even though the buffer is size 1

	select {
	case <-c.reconnect:
	default:
		t.Fatal("expected a coalesced reconnect signal")
	}
}

func TestDeliverQueuesMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compress = false
	cfg.Bound = 4
	c, err := NewConsumer(cfg, nil)
	require.NoError(t, err)

	msg := []byte(`{"did":"did:plc:alice","time_us":1,"kind":"commit"}`)
	require.NoError(t, c.deliver(msg))

	select {
	case got := <-c.messages:
		assert.Equal(t, msg, got)
	case <-time.After(time.Second):
		t.Fatal("expected message to be queued")
	}
}

// TestReconnectAfterReceiveTimeout mirrors the upstream client's own
// "server goes silent" test: a server that accepts the connection and
// then never sends anything must cause connectAndConsume to return
// once the (shortened) silence timeout elapses, not hang forever.
func TestReconnectAfterReceiveTimeout(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.TimeoutSec = 1
	cfg.Compress = false

	c, err := NewConsumer(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	openFor, err := c.connectAndConsume(ctx)
	require.NoError(t, err)
	assert.Less(t, openFor, 2*time.Second, "should reconnect at the silence timeout, not wait for the server")
}

func TestConsumerDeliversTextFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	payload := []byte(`{"did":"did:plc:alice","time_us":42,"kind":"commit"}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.TimeoutSec = 1
	cfg.Compress = false

	c, err := NewConsumer(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan struct{})
	var got []byte
	go func() {
		got = <-c.messages
		close(done)
	}()

	go c.connectAndConsume(ctx)

	select {
	case <-done:
		assert.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("expected frame to be delivered")
	}
}
