package preview

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ReloadPath is the SSE endpoint browsers subscribe to.
const ReloadPath = "/_docsmith/reload"

// ReloadHub fans snapshot fingerprints out to connected browsers.
type ReloadHub struct {
	mu          sync.RWMutex
	nextID      int
	clients     map[int]*reloadClient
	closed      bool
	fingerprint string
	heartbeat   time.Duration
}

type reloadClient struct {
	ch   chan string
	done chan struct{}
}

func NewReloadHub() *ReloadHub {
	return &ReloadHub{clients: map[int]*reloadClient{}, heartbeat: 30 * time.Second}
}

// ServeHTTP streams fingerprint events. The current fingerprint is sent on connect.
func (h *ReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &reloadClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "reload stream shutting down", http.StatusServiceUnavailable)
		return
	}
	id := h.nextID
	h.nextID++
	h.clients[id] = client
	current := h.fingerprint
	h.mu.Unlock()
	defer h.remove(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("Reload stream write", "error", err)
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(": connected\n\n") {
		return
	}
	if current != "" && !send(event(current)) {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case fp := <-client.ch:
			if !send(event(fp)) {
				return
			}
		}
	}
}

func event(fingerprint string) string {
	return "data: {\"fingerprint\":\"" + fingerprint + "\"}\n\n"
}

func (h *ReloadHub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected browsers.
func (h *ReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends fingerprint to every client. Repeats of the last value are
// dropped, and so are clients whose buffers are full.
func (h *ReloadHub) Broadcast(fingerprint string) {
	h.mu.Lock()
	if h.closed || fingerprint == "" || fingerprint == h.fingerprint {
		h.mu.Unlock()
		return
	}
	h.fingerprint = fingerprint
	ids := make([]int, 0, len(h.clients))
	targets := make([]*reloadClient, 0, len(h.clients))
	for id, c := range h.clients {
		ids = append(ids, id)
		targets = append(targets, c)
	}
	h.mu.Unlock()

	dropped := 0
	for i, c := range targets {
		select {
		case c.ch <- fingerprint:
		default:
			dropped++
			h.remove(ids[i])
		}
	}
	slog.Debug("Reload broadcast", "fingerprint", fingerprint, "clients", len(targets), "dropped", dropped)
}

// Shutdown disconnects all clients and rejects new ones.
func (h *ReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*reloadClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}

const reloadScript = `<script>(function () {
  if (window.__docsmithReload) return;
  window.__docsmithReload = true;
  var current = null;
  function connect() {
    var es = new EventSource('` + ReloadPath + `');
    es.onmessage = function (e) {
      try {
        var p = JSON.parse(e.data);
        if (current === null) { current = p.fingerprint; return; }
        if (p.fingerprint && p.fingerprint !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = function () { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();</script>
`
