package live

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hephaex/Barami/internal/query"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionCounter struct {
	open atomic.Int32
}

func (s *sessionCounter) SessionOpened() { s.open.Add(1) }
func (s *sessionCounter) SessionClosed() { s.open.Add(-1) }

func newTestServer(t *testing.T, interval time.Duration) (*query.Client, *Hub, *sessionCounter, query.Key, *httptest.Server) {
	t.Helper()

	q := query.NewClient(query.Config{StaleTime: time.Minute})
	counter := &sessionCounter{}
	hub := NewHub(q, counter)

	var calls atomic.Int32
	key := query.NewKey("systemStatus")
	fetch := func(context.Context) (int32, error) {
		return calls.Add(1), nil
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := query.Subscribe(q, key, fetch, query.WithRefetchInterval(interval))
		hub.Serve(w, r, Page{
			Name:    "overview",
			Slot:    "overview-live",
			Watches: []Watch{sub},
			Render: func(ctx context.Context) (string, error) {
				return fmt.Sprintf("<p>status %d</p>", sub.Latest().Data), nil
			},
		})
	}))

	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		q.Close()
	})
	return q, hub, counter, key, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSessionPushesRenderedFragment(t *testing.T) {
	_, _, counter, key, srv := newTestServer(t, 0)

	conn := dial(t, srv)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, "update", msg.Type)
	assert.Equal(t, "overview-live", msg.Slot)
	assert.Equal(t, key.String(), msg.Key)
	assert.Equal(t, "<p>status 1</p>", msg.HTML)
	assert.Equal(t, int32(1), counter.open.Load())
}

func TestSessionRefetchOnRequest(t *testing.T) {
	_, _, _, key, srv := newTestServer(t, 0)

	conn := dial(t, srv)
	defer conn.Close()

	first := readMessage(t, conn)
	require.Equal(t, "<p>status 1</p>", first.HTML)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "refetch", Key: key.String()}))
	second := readMessage(t, conn)
	assert.Equal(t, "<p>status 2</p>", second.HTML)
}

func TestSessionStopsPollingOnClose(t *testing.T) {
	q, _, counter, key, srv := newTestServer(t, 20*time.Millisecond)

	conn := dial(t, srv)
	readMessage(t, conn)
	readMessage(t, conn)
	assert.True(t, q.Polling(key))

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return !q.Polling(key) && counter.open.Load() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSessionIgnoresUnknownKeys(t *testing.T) {
	_, _, _, _, srv := newTestServer(t, 0)

	conn := dial(t, srv)
	defer conn.Close()
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "refetch", Key: query.NewKey("other").String()}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var msg Message
	err := conn.ReadJSON(&msg)
	assert.Error(t, err)
}
