// Package surface pushes launch instructions to presentation clients
// over WebSocket. A single goroutine owns all connection state; every
// operation goes through the command channel.
package surface

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	"github.com/flyimmer/breakloop-native-sub009/internal/metrics"
)

const writeTimeout = 5 * time.Second

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	deviceID string
	conn     *websocket.Conn
	errCh    chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	deviceID string
	conn     *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdPublish struct {
	deviceID string
	data     []byte
}

func (cmdPublish) hubCmd() {}

type cmdClientCount struct {
	deviceID string
	replyCh  chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// clientWriter serializes writes to one connection so a slow client
// never blocks the hub goroutine.
type clientWriter struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// Hub fans surface pushes out to the presentation clients of each
// device. It implements domain.SurfacePublisher.
type Hub struct {
	cmdCh        chan hubCmd
	clients      map[string]map[*websocket.Conn]*clientWriter
	maxPerDevice int
}

func NewHub(maxPerDevice int) *Hub {
	hub := &Hub{
		cmdCh:        make(chan hubCmd, 256),
		clients:      make(map[string]map[*websocket.Conn]*clientWriter),
		maxPerDevice: maxPerDevice,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.deviceID, c.conn)
		case cmdPublish:
			h.handlePublish(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients[c.deviceID])
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	clients, exists := h.clients[c.deviceID]
	if !exists {
		clients = make(map[*websocket.Conn]*clientWriter)
		h.clients[c.deviceID] = clients
	}
	if h.maxPerDevice > 0 && len(clients) >= h.maxPerDevice {
		slog.Warn("Rejecting surface client, device at capacity",
			"device_id", c.deviceID, "max", h.maxPerDevice)
		c.conn.Close()
		c.errCh <- fmt.Errorf("max surface clients per device (%d) reached", h.maxPerDevice)
		return
	}

	cw := newClientWriter(c.conn)
	clients[c.conn] = cw
	metrics.SurfaceClientsConnected.Inc()
	slog.Info("Surface client registered",
		"device_id", c.deviceID, "client_id", cw.id, "clients", len(clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(deviceID string, conn *websocket.Conn) {
	clients, exists := h.clients[deviceID]
	if !exists {
		return
	}
	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	metrics.SurfaceClientsConnected.Dec()

	if len(clients) == 0 {
		delete(h.clients, deviceID)
	}
	slog.Info("Surface client unregistered",
		"device_id", deviceID, "client_id", cw.id, "remaining", len(clients))
}

func (h *Hub) handlePublish(c cmdPublish) {
	clients, exists := h.clients[c.deviceID]
	if !exists {
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendCh <- c.data:
		default:
			slog.Warn("Disconnecting slow surface client",
				"device_id", c.deviceID, "client_id", cw.id)
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		h.handleUnregister(c.deviceID, conn)
	}
}

func (h *Hub) handleStop() {
	for deviceID, clients := range h.clients {
		for _, cw := range clients {
			cw.stop()
			metrics.SurfaceClientsConnected.Dec()
		}
		delete(h.clients, deviceID)
	}
}

// Register adds a presentation connection for a device and blocks until
// the hub has accepted or rejected it.
func (h *Hub) Register(deviceID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{deviceID: deviceID, conn: conn, errCh: errCh}
	return <-errCh
}

func (h *Hub) Unregister(deviceID string, conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{deviceID: deviceID, conn: conn}
}

// Publish pushes a launch instruction to every presentation client of
// the device. Never blocks on slow consumers.
func (h *Hub) Publish(deviceID string, surface domain.Surface) {
	data, err := json.Marshal(surface)
	if err != nil {
		slog.Error("Failed to marshal surface push", "error", err)
		return
	}
	h.cmdCh <- cmdPublish{deviceID: deviceID, data: data}
}

func (h *Hub) ClientCount(deviceID string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{deviceID: deviceID, replyCh: replyCh}
	return <-replyCh
}

func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
