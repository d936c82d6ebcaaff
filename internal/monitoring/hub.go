package monitoring

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// lines are dropped for it.
const subscriberBuffer = 256

// Hub writes diagnostic lines to a base logger and fans them out to any
// number of subscribers. Publishing never blocks: a subscriber whose
// channel is full misses lines.
type Hub struct {
	base func(format string, v ...interface{})

	mu          sync.Mutex
	subscribers map[string]chan string
	closed      bool
}

// NewHub creates a Hub that also writes every line to base. A nil base
// writes only to subscribers.
func NewHub(base func(format string, v ...interface{})) *Hub {
	return &Hub{
		base:        base,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber. The ID is used to unsubscribe.
func (h *Hub) Subscribe() (string, <-chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Logf formats a diagnostic line, writes it to the base logger and
// publishes each of its lines to subscribers.
func (h *Hub) Logf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if h.base != nil {
		h.base("%s", msg)
	}
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		h.publish(line)
	}
}

func (h *Hub) publish(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- line:
		default:
			// slow subscriber, drop rather than stall the control loop
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close closes all subscriber channels. Later subscribers receive a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// AttachAdminRoutes mounts a server-sent-events tail of diagnostic lines at
// /debug/tail. Debug routes are reachable only from localhost or over
// Tailscale.
func (h *Hub) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("tail", "live tail of bridge diagnostics (SSE)", h.ServeTail)
}

// ServeTail streams diagnostic lines as server-sent events until the client
// goes away or the hub closes.
func (h *Hub) ServeTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := h.Subscribe()
	defer h.Unsubscribe(id)

	// Send initial ping to establish connection
	if _, err := w.Write([]byte(": ping\n\n")); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case line, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
				log.Printf("tail write failed: %v", err)
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
