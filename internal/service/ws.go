package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/airenas/rt-caption-assistant/internal/api"
)

// WsConn is the websocket part the hub uses
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Ingest handles a text frame received from a client
type Ingest func(ctx context.Context, msg []byte) error

type client struct {
	id   string
	send chan []byte
}

// Hub broadcasts UI events to connected clients
type Hub struct {
	buffer int

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates Hub, buffer is the per client queue size
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{buffer: buffer, clients: map[*client]struct{}{}}
}

// Publish sends the event to all clients, a client with a full queue misses it
func (h *Hub) Publish(ev api.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		goapp.Log.Error().Err(err).Str("type", ev.Type).Msg("encode event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			droppedCounter.Inc()
			goapp.Log.Warn().Str("client", c.id).Str("type", ev.Type).Msg("client queue full")
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection pushes events to the connection and passes received text frames to ingest
// until the connection or ctx is closed
func (h *Hub) HandleConnection(ctx context.Context, conn WsConn, ingest Ingest) error {
	c := h.register()
	defer h.unregister(c)
	goapp.Log.Info().Str("client", c.id).Msg("connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					goapp.Log.Error().Err(err).Msg("write error")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	readCh := readWebSocket(ctx, conn)
loop:
	for {
		select {
		case <-ctx.Done():
			goapp.Log.Info().Msg("context canceled")
			break loop
		case d, ok := <-readCh:
			if !ok {
				goapp.Log.Info().Msg("channel closed")
				break loop
			}
			goapp.Log.Debug().Int("type", d.t).Send()
			if d.t != websocket.TextMessage || ingest == nil {
				continue
			}
			goapp.Log.Trace().Str("msg", string(d.msg)).Send()
			if err := ingest(ctx, d.msg); err != nil {
				goapp.Log.Error().Err(err).Msg("ingest")
			}
		}
	}
	cancel()
	_ = conn.Close()
	<-done
	goapp.Log.Info().Str("client", c.id).Msg("handleConnection finish")
	return nil
}

func (h *Hub) register() *client {
	res := &client{id: ulid.Make().String(), send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[res] = struct{}{}
	clientsGauge.Set(float64(len(h.clients)))
	return res
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	clientsGauge.Set(float64(len(h.clients)))
}

type data struct {
	t   int
	msg []byte
}

func readWebSocket(ctx context.Context, in WsConn) <-chan data {
	resCh := make(chan data)
	go func() {
		defer close(resCh)
		defer goapp.Log.Debug().Msg("read routine ended")
		for {
			mType, message, err := in.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure,
					websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
					goapp.Log.Info().Msg("connection closed")
					return
				}
				goapp.Log.Error().Err(err).Send()
				return
			}
			select {
			case resCh <- data{t: mType, msg: message}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return resCh
}
