package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

type Message struct {
	ClientID    string            `json:"client_id"`
	MessageType string            `json:"message_type"`
	Message     map[string]string `json:"message"`
}

type Connection struct {
	Socket     *websocket.Conn
	mu         sync.Mutex
	forwarders map[string]*forwarder
}

// forwarder is one running subscription of a connection.
type forwarder struct {
	cancel context.CancelFunc
}

// Concurrency handling - sending messages
func (c *Connection) WriteJson(message Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Socket.WriteJSON(message)
}

// PresetSource streams the preset list of the bound camera.
type PresetSource interface {
	SubscribePresets() (<-chan []models.Preset, func())
}

// DeviceSource streams the device lists loaded from the backend.
type DeviceSource interface {
	SubscribeDevices() (<-chan []models.Device, func())
}

// Hub serves the websocket clients: live view, preset and device list
// updates. Any source may be nil.
type Hub struct {
	live    *LiveView
	presets PresetSource
	devices DeviceSource

	mu      sync.Mutex
	sockets map[string]*Connection
}

func NewHub(live *LiveView, presets PresetSource, devices DeviceSource) *Hub {
	return &Hub{live: live, presets: presets, devices: devices, sockets: map[string]*Connection{}}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Hub) WebsocketHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Log.Error("websocket.WebsocketHandler(): " + err.Error())
		return
	}
	defer conn.Close()

	var message Message
	if err := conn.ReadJSON(&message); err != nil {
		return
	}
	clientID := message.ClientID
	connection := &Connection{Socket: conn, forwarders: map[string]*forwarder{}}
	h.mu.Lock()
	if old, exists := h.sockets[clientID]; exists {
		old.cancelAll()
	}
	h.sockets[clientID] = connection
	h.mu.Unlock()

	// Continuously read messages
	for {
		h.handle(clientID, connection, message)
		if err := conn.ReadJSON(&message); err != nil {
			break
		}
	}

	connection.cancelAll()
	h.mu.Lock()
	if h.sockets[clientID] == connection {
		delete(h.sockets, clientID)
	}
	h.mu.Unlock()
	log.Log.Info("websocket.WebsocketHandler(): " + clientID + ": terminated and disconnected websocket connection.")
}

func (h *Hub) handle(clientID string, connection *Connection, message Message) {
	switch message.MessageType {
	case "hello":
		connection.WriteJson(Message{
			ClientID:    clientID,
			MessageType: "hello-back",
			Message: map[string]string{
				"message": "Hello " + message.Message["client_id"] + "!",
			},
		})

	case "stream-sd":
		connection.WriteJson(Message{
			ClientID:    clientID,
			MessageType: "stream-sd",
			Message: map[string]string{
				"message": "Start streaming low resolution",
			},
		})
		if h.live == nil {
			return
		}
		connection.start("stream-sd", func(ctx context.Context) {
			ForwardSDStream(ctx, clientID, connection, h.live)
		})

	case "stop-sd":
		if !connection.stop("stream-sd") {
			log.Log.Error("websocket.handle(): streaming sd does not exist for " + clientID)
		}

	case "presets":
		if h.presets == nil {
			return
		}
		connection.start("presets", func(ctx context.Context) {
			ForwardPresets(ctx, clientID, connection, h.presets)
		})

	case "stop-presets":
		connection.stop("presets")

	case "devices":
		if h.devices == nil {
			return
		}
		connection.start("devices", func(ctx context.Context) {
			updates, cancel := h.devices.SubscribeDevices()
			defer cancel()
			forwardLists(ctx, clientID, connection, "devices", updates)
		})

	case "stop-devices":
		connection.stop("devices")
	}
}

// start runs a forwarder unless one with the same name is running. A
// forwarder that ends on its own, e.g. on a write error, can be started
// again.
func (c *Connection) start(name string, run func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.forwarders[name]; exists {
		log.Log.Info("websocket.start(): already running " + name)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &forwarder{cancel: cancel}
	c.forwarders[name] = f
	go func() {
		defer c.finished(name, f)
		run(ctx)
	}()
}

func (c *Connection) finished(name string, f *forwarder) {
	c.mu.Lock()
	if c.forwarders[name] == f {
		delete(c.forwarders, name)
	}
	c.mu.Unlock()
	f.cancel()
}

func (c *Connection) running(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.forwarders[name]
	return exists
}

func (c *Connection) stop(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, exists := c.forwarders[name]
	if exists {
		f.cancel()
		delete(c.forwarders, name)
	}
	return exists
}

func (c *Connection) cancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, f := range c.forwarders {
		f.cancel()
		delete(c.forwarders, name)
	}
}

// ForwardSDStream sends the live view as base64 JPEG images until ctx is
// done or the client goes away.
func ForwardSDStream(ctx context.Context, clientID string, connection *Connection, live *LiveView) {
	images, cancel := live.Subscribe()
	defer cancel()
	for {
		image, err := images.Take(ctx)
		if err != nil {
			break
		}
		err = connection.WriteJson(Message{
			ClientID:    clientID,
			MessageType: "image",
			Message: map[string]string{
				"base64": base64.StdEncoding.EncodeToString(image),
			},
		})
		if err != nil {
			log.Log.Error("websocket.ForwardSDStream(): " + err.Error())
			break
		}
	}
	log.Log.Info("websocket.ForwardSDStream(): stop sending streaming over websocket")
}

// ForwardPresets pushes every preset list change to the client.
func ForwardPresets(ctx context.Context, clientID string, connection *Connection, source PresetSource) {
	updates, cancel := source.SubscribePresets()
	defer cancel()
	forwardLists(ctx, clientID, connection, "presets", updates)
}

// forwardLists sends each list as a JSON string under messageType until
// ctx is done or the updates channel is closed.
func forwardLists[T any](ctx context.Context, clientID string, connection *Connection, messageType string, updates <-chan []T) {
	for {
		select {
		case <-ctx.Done():
			return
		case list, ok := <-updates:
			if !ok {
				return
			}
			data, _ := json.Marshal(list)
			err := connection.WriteJson(Message{
				ClientID:    clientID,
				MessageType: messageType,
				Message: map[string]string{
					messageType: string(data),
				},
			})
			if err != nil {
				log.Log.Error("websocket.forwardLists(): " + err.Error())
				return
			}
		}
	}
}
