package live

import (
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"attendance/internal/logger"
	"attendance/internal/model"
)

func dialViewer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d viewers, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsFrames(t *testing.T) {
	hub := NewHub(logger.Discard())
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(ViewHandler(hub, logger.Discard()))
	defer srv.Close()

	conn := dialViewer(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	frame := model.Frame{Camera: 1, Seq: 7, CapturedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	results := []model.RecognitionResult{
		{Box: image.Rect(10, 20, 110, 140), Identity: "Alice", Confidence: 0.92, Accepted: true},
		{Box: image.Rect(200, 20, 260, 90), Confidence: 0.2},
	}
	if !hub.Broadcast(NewFrameMessage(frame, []byte("jpeg"), results)) {
		t.Fatal("Broadcast dropped the frame")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var got FrameMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Camera != 1 || got.Seq != 7 || got.Image != "anBlZw==" {
		t.Errorf("Unexpected message: %+v", got)
	}
	if len(got.Faces) != 2 || got.Faces[0].Label != "Alice" || got.Faces[1].Label != "Unknown" {
		t.Errorf("Unexpected faces: %+v", got.Faces)
	}
	if got.Faces[0].Width != 100 || got.Faces[0].Height != 120 {
		t.Errorf("Unexpected box: %+v", got.Faces[0])
	}
}

func TestHubBroadcastWithoutViewers(t *testing.T) {
	hub := NewHub(logger.Discard())
	go hub.Run()
	defer hub.Stop()

	if hub.Broadcast(FrameMessage{Camera: 1}) {
		t.Error("Expected broadcast without viewers to be skipped")
	}
}

func TestClientCountDoesNotWaitForSlowViewer(t *testing.T) {
	hub := NewHub(logger.Discard())
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(ViewHandler(hub, logger.Discard()))
	defer srv.Close()

	// The viewer never reads, so the socket buffers fill and writes stall
	// until the write deadline.
	conn := dialViewer(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	big := make([]byte, 4<<20)
	for i := 0; i < 4; i++ {
		hub.Broadcast(NewFrameMessage(model.Frame{Camera: 1, Seq: uint64(i)}, big, nil))
	}

	deadline := time.Now().Add(writeWait)
	for time.Now().Before(deadline) {
		start := time.Now()
		hub.ClientCount()
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Fatalf("ClientCount blocked for %v behind a slow viewer", elapsed)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(logger.Discard())
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(ViewHandler(hub, logger.Discard()))
	defer srv.Close()

	conn := dialViewer(t, srv)
	waitForClients(t, hub, 1)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestJSONHandler(t *testing.T) {
	h := JSONHandler(func(*http.Request) (any, error) {
		return map[string]int{"marked": 2}, nil
	}, logger.Discard())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"marked":2}` {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}

	failing := JSONHandler(func(*http.Request) (any, error) {
		return nil, errors.New("boom")
	}, logger.Discard())
	rec = httptest.NewRecorder()
	failing(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/stats", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}
