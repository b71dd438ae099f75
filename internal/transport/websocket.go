// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"colorizr/internal/param"
	"colorizr/internal/snapshot"

	"github.com/gorilla/websocket"
)

const writeTimeout = time.Second

// ParamMessage is sent by clients to change a parameter, either by plain
// value or by display text ("Cut", "12 dB").
type ParamMessage struct {
	Param string   `json:"param"`
	Value *float64 `json:"value,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// WebSocketTransport serves snapshots as JSON on /ws and applies parameter
// messages received from clients.
type WebSocketTransport struct {
	listener  net.Listener
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan View
	server    *http.Server
	params    ParamHandler
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport listens on addr and starts serving. params may be nil
// for a read-only stream.
func NewWebSocketTransport(addr string, params ParamHandler) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local monitoring pages are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan View, 16),
		params:    params,
		done:      make(chan struct{}),
	}
	wst.start()
	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("websocket server on ws://%s/ws", wst.listener.Addr())
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	logger.Infof("websocket client connected, total: %d", total)

	go wst.readLoop(conn)
}

// readLoop applies parameter messages until the client goes away.
func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := wst.applyMessage(data); err != nil {
			logger.Debugf("websocket message ignored: %v", err)
		}
	}
}

func (wst *WebSocketTransport) applyMessage(data []byte) error {
	if wst.params == nil {
		return errors.New("read-only stream")
	}
	var msg ParamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	id, ok := param.Lookup(msg.Param)
	if !ok {
		return fmt.Errorf("unknown parameter %q", msg.Param)
	}

	spec := &param.Schema[id]
	var value float64
	switch {
	case msg.Value != nil:
		value = *msg.Value
	case msg.Text != "":
		v, err := spec.Parse(msg.Text)
		if err != nil {
			return err
		}
		value = v
	default:
		return fmt.Errorf("no value for %q", msg.Param)
	}

	wst.params.SetTarget(id, value)
	logger.Debugf("%s set to %s by client", spec.Key, spec.Format(value))
	return nil
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, known := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if known {
		logger.Infof("websocket client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends views to all connected clients. It is the only
// writer on every connection.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case view := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(view); err != nil {
					logger.Debugf("websocket send error: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Send queues s for broadcast. Views are dropped when the queue is full or
// no client is connected.
func (wst *WebSocketTransport) Send(s *snapshot.Snapshot) error {
	if wst.Clients() == 0 {
		return nil
	}
	select {
	case wst.broadcast <- NewView(s):
	default:
		// Queue full, drop.
	}
	return nil
}

// Close shuts down the WebSocket server and disconnects all clients.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		logger.Infof("closing websocket server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		err = wst.server.Close()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
