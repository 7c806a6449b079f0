package frontend

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/devcompass/internal/guard"
)

// upgrader keeps gorilla's default same-origin check.
var upgrader = websocket.Upgrader{}

const (
	topicJob      = "job"
	topicViewport = "viewport"
	topicAudio    = "audio"

	writeWait = 10 * time.Second
)

// event is the outgoing WebSocket message format.
type event struct {
	Type      string `json:"type"` // progress, failed, navigate, evict, transform, audio
	Status    string `json:"status,omitempty"`
	Text      string `json:"text,omitempty"`
	Width     int    `json:"width,omitempty"`
	Message   string `json:"message,omitempty"`
	To        string `json:"to,omitempty"`
	Transform string `json:"transform,omitempty"`
	Playing   bool   `json:"playing,omitempty"`
}

// viewportRequest is the incoming viewport WebSocket message format.
type viewportRequest struct {
	Op     string  `json:"op"` // in, out, reset, pan, wheel
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Factor float64 `json:"factor"`
}

// hub fans events out to the sockets subscribed to a topic. Slow clients
// lose events rather than blocking publishers.
type hub struct {
	mu      sync.Mutex
	clients map[string]map[uuid.UUID]chan []byte
	closed  bool
}

func newHub() *hub {
	return &hub{clients: map[string]map[uuid.UUID]chan []byte{}}
}

func (h *hub) subscribe(topic string) (uuid.UUID, <-chan []byte) {
	id := uuid.New()
	ch := make(chan []byte, 32)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	if h.clients[topic] == nil {
		h.clients[topic] = map[uuid.UUID]chan []byte{}
	}
	h.clients[topic][id] = ch
	return id, ch
}

func (h *hub) unsubscribe(topic string, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[topic][id]; ok {
		delete(h.clients[topic], id)
		close(ch)
	}
}

func (h *hub) publish(topic string, ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("frontend: encoding %s event: %v", ev.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients[topic] {
		select {
		case ch <- data:
		default:
			log.Printf("frontend: dropping %s event for slow client %s", ev.Type, id)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for topic, subs := range h.clients {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.clients, topic)
	}
}

// serveTopic upgrades the request and streams topic events until either
// side goes away. Incoming messages are passed to onMessage if set.
func (f *Frontend) serveTopic(w http.ResponseWriter, r *http.Request, topic string, first []event, onMessage func([]byte)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("frontend: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	id, events := f.hub.subscribe(topic)
	defer f.hub.unsubscribe(topic, id)

	for _, ev := range first {
		if err := writeEvent(conn, ev); err != nil {
			return
		}
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("frontend: websocket read: %v", err)
				}
				return
			}
			if onMessage != nil {
				onMessage(msg)
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("frontend: websocket write: %v", err)
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		log.Printf("frontend: websocket write: %v", err)
		return err
	}
	return nil
}

func (f *Frontend) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	var first []event
	if u, ok := f.poller.Current(); ok {
		first = append(first, progressEvent(u))
	}
	f.serveTopic(w, r, topicJob, first, nil)
}

func (f *Frontend) handleViewportSocket(w http.ResponseWriter, r *http.Request) {
	first := []event{{Type: "transform", Transform: f.view.Shown().String()}}
	f.serveTopic(w, r, topicViewport, first, func(msg []byte) {
		var req viewportRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Printf("frontend: invalid viewport message: %v", err)
			return
		}
		f.applyViewport(req)
	})
}

func (f *Frontend) handleAudioSocket(w http.ResponseWriter, r *http.Request) {
	f.serveTopic(w, r, topicAudio, []event{{Type: "audio", Playing: f.player.Playing()}}, nil)
}

// handleSessionSocket tells an open protected page to leave as soon as the
// session stops being valid.
func (f *Frontend) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("frontend: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	states, stop := f.gate.Subscribe()
	defer stop()

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	guard.Watch(ctx, states, func() {
		if err := writeEvent(conn, event{Type: "evict", To: f.entry}); err == nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
		}
	})
}
