package duobook

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// InvalidationHint is a push notification that a market's book changed. It
// carries no book data; the scheduler still polls via REST, which remains
// the system of record. A hint only lets the scheduler treat the
// instrument as eligible sooner than its backoff deadline would otherwise
// allow.
type InvalidationHint struct {
	ConditionID string
	ReceivedAt  time.Time
}

// HintConn is a single optional WebSocket connection used purely as a
// push-invalidation side channel, not the primary data path: one
// connection, no command protocol, no reconnect backoff policy of its own.
// The scheduler treats a dropped hint connection as "no hints," never as a
// fetch failure.
type HintConn struct {
	url    string
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	hints chan InvalidationHint
	done  chan struct{}
}

// NewHintConn returns an unconnected HintConn for url.
func NewHintConn(url string, logger *slog.Logger) *HintConn {
	if logger == nil {
		logger = slog.Default()
	}
	return &HintConn{
		url:    url,
		logger: logger,
		hints:  make(chan InvalidationHint, 256),
		done:   make(chan struct{}),
	}
}

// Connect dials the WebSocket endpoint and starts the read loop.
func (h *HintConn) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, h.url, http.Header{})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	go h.readLoop()
	return nil
}

// Hints returns the channel of invalidation hints, closed once the read
// loop exits. Client.ConnectHints ranges over it in a dedicated goroutine
// to translate each hint into the condition id venue.HintSource exposes.
func (h *HintConn) Hints() <-chan InvalidationHint {
	return h.hints
}

// Close shuts down the connection.
func (h *HintConn) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conn := h.conn
	h.mu.Unlock()

	close(h.done)
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

func (h *HintConn) readLoop() {
	defer close(h.hints)

	for {
		select {
		case <-h.done:
			return
		default:
		}

		h.mu.RLock()
		conn := h.conn
		h.mu.RUnlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-h.done:
			default:
				h.logger.Warn("hint connection read failed, hints disabled", "error", err)
			}
			return
		}

		conditionID := string(data)
		select {
		case h.hints <- InvalidationHint{ConditionID: conditionID, ReceivedAt: time.Now()}:
		default:
			h.logger.Debug("hint buffer full, dropping invalidation hint")
		}
	}
}
