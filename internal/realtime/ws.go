package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 16 << 10
)

// Inbound is a client frame. Data is decoded by the FrameHandler.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// FrameHandler processes one inbound frame. A returned error is sent back
// to the originating socket as an error frame; the connection stays open.
type FrameHandler func(ctx context.Context, in Inbound) error

// NewUpgrader returns a websocket upgrader that accepts the given origins.
// An empty list accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// Serve pumps frames between conn and sub until either side goes away.
// It owns conn and sub and releases both before returning.
func Serve(ctx context.Context, conn *websocket.Conn, sub *Subscription, handle FrameHandler) {
	replies := make(chan Envelope, 8)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		writeLoop(conn, sub, replies, done)
	}()

	readLoop(ctx, conn, handle, replies)

	close(done)
	<-writerDone
	sub.Close()
	_ = conn.Close()
}

func readLoop(ctx context.Context, conn *websocket.Conn, handle FrameHandler, replies chan<- Envelope) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reply := func(env Envelope) {
		select {
		case replies <- env:
		default:
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Str("component", "realtime").Err(err).Msg("socket closed")
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
			reply(ErrorEnvelope("invalid payload"))
			continue
		}
		if handle == nil {
			continue
		}
		if err := handle(ctx, in); err != nil {
			reply(ErrorEnvelope(err.Error()))
		}
	}
}

func writeLoop(conn *websocket.Conn, sub *Subscription, replies <-chan Envelope, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(env Envelope) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(env)
	}

	for {
		select {
		case env, ok := <-sub.C():
			if !ok {
				// dropped by the hub or hub closed
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				_ = conn.Close()
				return
			}
			if err := write(env); err != nil {
				_ = conn.Close()
				return
			}
		case env := <-replies:
			if err := write(env); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
