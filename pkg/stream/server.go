// Package stream pushes simulation snapshots to WebSocket clients.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/rigid2d/pkg/logging"
)

// Message types sent to clients
const (
	TypeHello    = "hello"
	TypeSnapshot = "snapshot"
	TypeEvent    = "event"
)

const writeWait = 2 * time.Second

// Errors returned when a client cannot be registered or the server has stopped
var (
	ErrServerClosed = errors.New("stream server closed")
	ErrServerFull   = errors.New("stream server full")
)

// Message is the JSON envelope for everything written to a client
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hello is the first message a client receives
type Hello struct {
	ClientID uint64 `json:"clientId"`
	Scene    string `json:"scene,omitempty"`
}

type client struct {
	id   uint64
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Server tracks connected clients and broadcasts JSON messages to them. Clients are
// receive-only; anything they send is discarded.
type Server struct {
	Scene string

	upgrader    websocket.Upgrader
	clients     map[uint64]*client
	clientsLock sync.RWMutex
	nextID      uint64
	maxClients  int
	closed      bool
	logger      *logging.Logger
}

// NewServer creates a server accepting up to maxClients connections (0 means no limit)
func NewServer(maxClients int, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[uint64]*client),
		maxClients: maxClients,
		logger:     logger.With("component", "stream"),
	}
}

// HandleWS upgrades the request and registers the connection until it closes
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	s.clientsLock.RLock()
	full := s.maxClients > 0 && len(s.clients) >= s.maxClients
	closed := s.closed
	s.clientsLock.RUnlock()

	if closed {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}
	if full {
		s.logger.Warn(r.Context(), "rejecting stream client, server full", "remote", r.RemoteAddr)
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// register repeats the limit and closed checks under the write lock
	c := &client{conn: conn}
	if err := s.register(c); err != nil {
		s.logger.Warn(r.Context(), "rejecting stream client", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.logger.Info(r.Context(), "stream client connected", "client", c.id, "remote", r.RemoteAddr)
	defer s.removeClient(c)

	hello, err := json.Marshal(Message{Type: TypeHello, Data: Hello{ClientID: c.id, Scene: s.Scene}})
	if err == nil {
		err = c.write(hello)
	}
	if err != nil {
		s.logger.Warn(r.Context(), "failed to greet stream client", "client", c.id, "error", err)
		return
	}

	// Reading keeps control frames flowing and notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// register assigns c an id and adds it, unless the server is closed or full
func (s *Server) register(c *client) error {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.maxClients > 0 && len(s.clients) >= s.maxClients {
		return ErrServerFull
	}
	s.nextID++
	c.id = s.nextID
	s.clients[c.id] = c
	return nil
}

func (s *Server) removeClient(c *client) {
	s.clientsLock.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.clientsLock.Unlock()

	if ok {
		c.conn.Close()
		s.logger.Info(context.Background(), "stream client removed", "client", c.id)
	}
}

// Broadcast writes v as a JSON text message to every client and drops the clients whose
// write fails. It returns the number of clients that received the message.
func (s *Server) Broadcast(v interface{}) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode broadcast: %w", err)
	}

	s.clientsLock.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.clientsLock.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.write(data); err != nil {
			s.logger.Debug(context.Background(), "dropping stream client", "client", c.id, "error", err)
			s.removeClient(c)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Run broadcasts source() as a snapshot message rate times per second until ctx ends or
// the server is closed
func (s *Server) Run(ctx context.Context, source func() interface{}, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("invalid broadcast rate %d", rate)
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.isClosed() {
				return ErrServerClosed
			}
			if s.ClientCount() == 0 {
				continue
			}
			if _, err := s.Broadcast(Message{Type: TypeSnapshot, Data: source()}); err != nil {
				s.logger.Error(ctx, "snapshot broadcast failed", err)
			}
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return len(s.clients)
}

func (s *Server) isClosed() bool {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return s.closed
}

// Close disconnects every client and rejects new ones
func (s *Server) Close() {
	s.clientsLock.Lock()
	s.closed = true
	clients := s.clients
	s.clients = make(map[uint64]*client)
	s.clientsLock.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.mu.Unlock()
		c.conn.Close()
	}
	s.logger.Info(context.Background(), "stream server closed", "clients", len(clients))
}
