package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cognipilot/dendrite/internal/logging"
	"github.com/cognipilot/dendrite/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
			return true
		}
		host := r.Host
		if strings.HasPrefix(origin, "http://") {
			return origin[len("http://"):] == host
		}
		if strings.HasPrefix(origin, "https://") {
			return origin[len("https://"):] == host
		}
		return false
	},
}

// WSMessage is one event forwarded to a connected client.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// WSManager fans registry.DeviceEvent out to every connected WebSocket
// client. Each client gets its own registry subscription, so a newly
// connected client immediately receives a device_discovered message for
// every device the registry already knows about, exactly as it would
// from a fresh registry.Subscribe call.
type WSManager struct {
	registry *registry.Registry
	logger   *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]uuid.UUID
}

// NewWSManager builds a WSManager reading events from reg.
func NewWSManager(reg *registry.Registry, logger *logging.Logger) *WSManager {
	return &WSManager{registry: reg, logger: logger.WithComponent("websocket"), clients: make(map[*wsClient]uuid.UUID)}
}

// HandleUpgrade upgrades the HTTP connection to a WebSocket and starts
// forwarding registry events to it until the client disconnects.
func (m *WSManager) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}
	subID, events := m.registry.Subscribe(64)

	m.mu.Lock()
	m.clients[client] = subID
	m.mu.Unlock()

	go m.writePump(client)
	go m.forwardEvents(client, events)
	go m.readPump(client, subID)
}

func (m *WSManager) forwardEvents(client *wsClient, events <-chan registry.DeviceEvent) {
	for {
		select {
		case <-client.done:
			return
		case ev := <-events:
			msg := toWSMessage(ev)
			if msg == nil {
				continue
			}
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			select {
			case client.send <- b:
			default:
				m.logger.Warn("websocket client send buffer full, dropping event")
			}
		}
	}
}

func toWSMessage(ev registry.DeviceEvent) *WSMessage {
	switch ev.Type {
	case registry.EventDiscovered:
		return &WSMessage{Type: "device_discovered", Data: toDeviceJSON(ev.Device)}
	case registry.EventUpdated, registry.EventRebinding:
		return &WSMessage{Type: "device_updated", Data: toDeviceJSON(ev.Device)}
	case registry.EventStatus:
		if ev.Device.Connectivity == registry.Offline {
			return &WSMessage{Type: "device_offline", Data: toDeviceJSON(ev.Device)}
		}
		return &WSMessage{Type: "device_updated", Data: toDeviceJSON(ev.Device)}
	case registry.EventRemoved:
		return &WSMessage{Type: "device_removed", Data: toDeviceJSON(ev.Device)}
	default:
		return nil
	}
}

func (m *WSManager) writePump(client *wsClient) {
	defer client.conn.Close()
	for b := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

func (m *WSManager) readPump(client *wsClient, subID uuid.UUID) {
	defer m.disconnect(client, subID)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *WSManager) disconnect(client *wsClient, subID uuid.UUID) {
	client.closeOnce.Do(func() {
		m.registry.Unsubscribe(subID)
		close(client.done)
		m.mu.Lock()
		delete(m.clients, client)
		m.mu.Unlock()
		close(client.send)
	})
}

// Close disconnects every client, for server shutdown.
func (m *WSManager) Close() {
	m.mu.Lock()
	clients := make(map[*wsClient]uuid.UUID, len(m.clients))
	for c, id := range m.clients {
		clients[c] = id
	}
	m.mu.Unlock()

	for client, subID := range clients {
		m.disconnect(client, subID)
		client.conn.Close()
	}
}
