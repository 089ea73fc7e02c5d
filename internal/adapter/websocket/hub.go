package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/talentvote/internal/domain"
)

// DefaultMaxClients bounds the number of concurrent live feed connections.
const DefaultMaxClients = 1000

var ErrHubStopped = errors.New("hub stopped")

// Observer is told about connection churn and published messages.
type Observer interface {
	ClientConnected()
	ClientDisconnected()
	MessagePublished()
}

type nopObserver struct{}

func (nopObserver) ClientConnected() {}
func (nopObserver) ClientDisconnected() {}
func (nopObserver) MessagePublished() {}

// Message is the envelope written to every live feed client.
type Message struct {
	Type string           `json:"type"`
	Data domain.FeedState `json:"data"`
}

const messageTypeFeed = "feed"

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

type cmdUnregister struct {
	conn *websocket.Conn
}

type cmdBroadcast struct {
	data []byte
}

type cmdClientCount struct {
	replyCh chan int
}

type cmdStop struct{}

func (cmdRegister) hubCmd() {}
func (cmdUnregister) hubCmd() {}
func (cmdBroadcast) hubCmd() {}
func (cmdClientCount) hubCmd() {}
func (cmdStop) hubCmd() {}

// Hub fans feed states out to connected WebSocket clients. All client bookkeeping happens on
// a single goroutine that processes commands in order.
type Hub struct {
	clock      clockwork.Clock
	observer   Observer
	snapshot   func() domain.FeedState
	maxClients int

	cmdCh    chan hubCmd
	stopOnce sync.Once
	stopped  chan struct{}
	clients  map[*websocket.Conn]*clientWriter
}

// NewHub starts a hub. snapshot supplies the state a client receives right after registering.
func NewHub(clock clockwork.Clock, snapshot func() domain.FeedState, maxClients int, observer Observer) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}

	h := &Hub{
		clock:      clock,
		observer:   observer,
		snapshot:   snapshot,
		maxClients: maxClients,
		cmdCh:      make(chan hubCmd, 256),
		stopped:    make(chan struct{}),
		clients:    make(map[*websocket.Conn]*clientWriter),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			c.errCh <- h.handleRegister(c.conn)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c.data)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			close(h.stopped)
			return
		}
	}
}

func (h *Hub) handleRegister(conn *websocket.Conn) error {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting live feed client: max clients reached", "max_clients", h.maxClients)
		_ = conn.Close()
		return fmt.Errorf("max clients (%d) reached", h.maxClients)
	}

	cw := newClientWriter(conn, h.clock)
	h.clients[conn] = cw
	h.observer.ClientConnected()

	if h.snapshot != nil {
		if data, err := encode(h.snapshot()); err == nil && cw.send(data) {
			h.observer.MessagePublished()
		}
	}

	slog.Debug("Live feed client registered", "clients", len(h.clients))
	return nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, ok := h.clients[conn]
	if !ok {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	h.observer.ClientDisconnected()
	slog.Debug("Live feed client unregistered", "clients", len(h.clients))
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		if !cw.send(data) {
			slow = append(slow, conn)
			continue
		}
		h.observer.MessagePublished()
	}

	for _, conn := range slow {
		slog.Info("Disconnecting slow live feed client")
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stopGraceful("server shutting down")
		delete(h.clients, conn)
		h.observer.ClientDisconnected()
	}
}

// Register adds conn to the hub and queues the current feed snapshot for it.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if h.submit(cmdRegister{conn: conn, errCh: errCh}) {
		select {
		case err := <-errCh:
			return err
		case <-h.stopped:
		}
	}
	_ = conn.Close()
	return ErrHubStopped
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.submit(cmdUnregister{conn: conn})
}

// Broadcast sends state to every connected client. Clients whose buffer is full are dropped.
func (h *Hub) Broadcast(state domain.FeedState) {
	data, err := encode(state)
	if err != nil {
		slog.Error("Failed to encode feed state", "error", err)
		return
	}
	h.submit(cmdBroadcast{data: data})
}

func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if h.submit(cmdClientCount{replyCh: replyCh}) {
		select {
		case n := <-replyCh:
			return n
		case <-h.stopped:
		}
	}
	return 0
}

// Stop closes every connection with a going-away frame and stops the hub. Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.submit(cmdStop{})
	})
	<-h.stopped
}

func (h *Hub) submit(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

func encode(state domain.FeedState) ([]byte, error) {
	return json.Marshal(Message{Type: messageTypeFeed, Data: state})
}
