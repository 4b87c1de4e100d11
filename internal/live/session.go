// Package live keeps an open page current over a websocket. A session
// subscribes to the page's query keys for as long as the socket is open and
// pushes the re-rendered fragment whenever one of them changes.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hephaex/Barami/internal/query"
	"github.com/hephaex/Barami/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Watch is an open query subscription.
type Watch interface {
	Key() query.Key
	Changes() <-chan struct{}
	Close()
}

// Page describes what a session keeps current.
type Page struct {
	Name    string
	Slot    string
	Watches []Watch
	Render  func(ctx context.Context) (string, error)
}

// Message is sent to the browser. Key is the canonical key that triggered
// the render.
type Message struct {
	Type  string `json:"type"`
	Slot  string `json:"slot,omitempty"`
	Key   string `json:"key,omitempty"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// ClientMessage is sent by the browser. "refetch" forces a reload of Key.
type ClientMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Observer counts open sessions.
type Observer interface {
	SessionOpened()
	SessionClosed()
}

type Hub struct {
	queries  *query.Client
	observer Observer
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(queries *query.Client, observer Observer) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		queries:  queries,
		observer: observer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close ends all sessions and waits for them to release their watches.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}

// Serve upgrades the request and runs a session until either side closes.
// The page's watches are always closed, even when the upgrade fails.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, page Page) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		closeWatches(page.Watches)
		logger.Error("Failed to upgrade live session", logger.String("page", page.Name), logger.Err(err))
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	s := newSession(conn, page, h.queries)
	if h.observer != nil {
		h.observer.SessionOpened()
		defer h.observer.SessionClosed()
	}

	logger.Info("Live session started",
		logger.String("session_id", s.id),
		logger.String("page", page.Name),
		logger.Int("keys", len(page.Watches)),
	)
	s.run(h.ctx)
	logger.Info("Live session ended", logger.String("session_id", s.id), logger.String("page", page.Name))
}

type session struct {
	id      string
	conn    *websocket.Conn
	page    Page
	queries *query.Client

	mu     sync.Mutex
	active map[string]Watch
}

func newSession(conn *websocket.Conn, page Page, queries *query.Client) *session {
	active := make(map[string]Watch, len(page.Watches))
	for _, w := range page.Watches {
		active[w.Key().String()] = w
	}
	return &session{
		id:      uuid.NewString(),
		conn:    conn,
		page:    page,
		queries: queries,
		active:  active,
	}
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()
	defer s.release()

	changed := make(chan string, len(s.page.Watches))
	for _, w := range s.page.Watches {
		go forward(ctx, w, changed)
	}
	go s.readLoop(ctx, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case key := <-changed:
			if !s.accepts(key) {
				continue
			}
			if err := s.push(ctx, key); err != nil {
				logger.Debug("Live session write failed", logger.String("session_id", s.id), logger.Err(err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func forward(ctx context.Context, w Watch, out chan<- string) {
	key := w.Key().String()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Changes():
			select {
			case out <- key:
			case <-ctx.Done():
				return
			}
		}
	}
}

// accepts drops changes for keys the session no longer watches.
func (s *session) accepts(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key]
	return ok
}

func (s *session) push(ctx context.Context, key string) error {
	msg := Message{Type: "update", Slot: s.page.Slot, Key: key}
	html, err := s.page.Render(ctx)
	if err != nil {
		msg.Type = "error"
		msg.Error = err.Error()
	} else {
		msg.HTML = html
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *session) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Live session read failed", logger.String("session_id", s.id), logger.Err(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.Type != "refetch" {
			continue
		}
		s.mu.Lock()
		w, ok := s.active[msg.Key]
		s.mu.Unlock()
		if !ok {
			continue
		}
		go func(key query.Key) {
			rctx, rcancel := context.WithTimeout(ctx, 30*time.Second)
			defer rcancel()
			if err := s.queries.Refetch(rctx, key); err != nil {
				logger.Debug("Live refetch failed", logger.String("key", key.Label()), logger.Err(err))
			}
		}(w.Key())
	}
}

// release closes every watch; the last close of a key stops its polling.
func (s *session) release() {
	s.mu.Lock()
	watches := make([]Watch, 0, len(s.active))
	for key, w := range s.active {
		watches = append(watches, w)
		delete(s.active, key)
	}
	s.mu.Unlock()

	closeWatches(watches)
}

func closeWatches(watches []Watch) {
	for _, w := range watches {
		w.Close()
	}
}
