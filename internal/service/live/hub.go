// Package live pushes annotated frames to websocket viewers.
package live

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"attendance/internal/logger"
	"attendance/internal/model"
)

const writeWait = 2 * time.Second

// Face is one labelled box in a broadcast frame.
type Face struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// FrameMessage is the JSON document sent to viewers.
type FrameMessage struct {
	Camera    model.CameraID `json:"camera"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Image     string         `json:"image"`
	Faces     []Face         `json:"faces"`
}

// NewFrameMessage encodes image and results for viewers.
func NewFrameMessage(frame model.Frame, image []byte, results []model.RecognitionResult) FrameMessage {
	faces := make([]Face, 0, len(results))
	for _, r := range results {
		faces = append(faces, Face{
			Label:      r.Label(),
			Confidence: r.Confidence,
			X:          r.Box.Min.X,
			Y:          r.Box.Min.Y,
			Width:      r.Box.Dx(),
			Height:     r.Box.Dy(),
		})
	}
	return FrameMessage{
		Camera:    frame.Camera,
		Seq:       frame.Seq,
		Timestamp: frame.CapturedAt,
		Image:     base64.StdEncoding.EncodeToString(image),
		Faces:     faces,
	}
}

// Hub fans frames out to connected viewers. Broadcast never blocks; a frame
// is dropped when the hub is behind. The client set is owned by Run, so a
// slow viewer only delays Run.
type Hub struct {
	clients    map[*websocket.Conn]bool
	count      atomic.Int32
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	logger     *logger.Logger
}

// NewHub creates a hub. Call Run in its own goroutine.
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 8),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until Stop.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.count.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int32(len(h.clients)))
			h.logger.Info("Viewer connected. Total: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.count.Store(int32(len(h.clients)))
			h.logger.Info("Viewer disconnected. Total: %d", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warning("Error sending frame to viewer: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.count.Store(int32(len(h.clients)))
		}
	}
}

// Stop closes every viewer and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

// Register adds a viewer. It returns false once the hub is stopped.
func (h *Hub) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stop:
		return false
	}
}

// Unregister removes a viewer.
func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Broadcast queues msg for every viewer. It reports false if the frame was
// dropped.
func (h *Hub) Broadcast(msg FrameMessage) bool {
	if h.ClientCount() == 0 {
		return false
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode frame for viewers: %v", err)
		return false
	}

	select {
	case h.broadcast <- payload:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}
