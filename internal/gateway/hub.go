// Package gateway streams monitor events to WebSocket clients.
//
// Every event is wrapped in an envelope carrying its channel
// ("<type>:<symbol>"), a global sequence number and a per-channel sequence
// number. Clients detect gaps from channel_seq and backfill them over REST
// from the per-channel replay buffers.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradingbot/internal/monitor"
)

const (
	clientSendBuffer = 256
	replayCapacity   = 500
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

type latestEntry struct {
	Data []byte // envelope
	TS   time.Time
	Seq  int64
}

// Hub manages WebSocket clients and fans monitor events out to them.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry
	seq         int64
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer

	// Latency tracks event-to-broadcast delay.
	Latency *LatencyTracker

	now func() time.Time
	log *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(10000),
		now:         time.Now,
		log:         slog.Default().With("component", "gateway"),
	}
}

// Run broadcasts events until ctx is cancelled or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan monitor.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Publish(ev)
		}
	}
}

// Channel returns the channel name of an event.
func Channel(ev monitor.Event) string {
	return string(ev.Kind) + ":" + ev.Symbol
}

// Publish wraps ev in an envelope and sends it to every matching client.
func (h *Hub) Publish(ev monitor.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", "symbol", ev.Symbol, "error", err)
		return
	}
	now := h.now().UTC()
	if !ev.Timestamp.IsZero() {
		if ms := float64(now.Sub(ev.Timestamp).Microseconds()) / 1000.0; ms >= 0 {
			h.Latency.Record(ms)
		}
	}
	channel := Channel(ev)

	h.mu.Lock()
	h.channelSeqs[channel]++
	channelSeq := h.channelSeqs[channel]
	h.seq++
	seq := h.seq
	buf := buildEnvelope(channel, data, now, seq, channelSeq)
	h.latest[channel] = latestEntry{Data: buf, TS: now, Seq: channelSeq}
	rb, ok := h.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(replayCapacity)
		h.replayBufs[channel] = rb
	}
	h.mu.Unlock()
	rb.Push(channelSeq, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(ev.Symbol) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope hand-crafts the envelope JSON around an already encoded
// event.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// ServeWS upgrades the request to a WebSocket and registers the client.
// An optional last_ts query parameter (RFC3339Nano) limits the initial
// state to channels updated after it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade error", "error", err)
		return
	}
	client := &Client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		hub:  h,
		subs: make(map[string]bool),
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client connected", "clients", count)

	client.sendInitialState(r.URL.Query().Get("last_ts"))
	go client.writePump()
	go client.readPump()
}

// removeClient removes a client from the hub.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Latest returns the last envelope of every channel.
func (h *Hub) Latest() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) []json.RawMessage {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Stats is the gateway status served on /api/v1/ws/stats.
type Stats struct {
	Clients    int     `json:"clients"`
	Seq        int64   `json:"seq"`
	LatencyP50 float64 `json:"latency_p50_ms"`
	LatencyP95 float64 `json:"latency_p95_ms"`
	LatencyP99 float64 `json:"latency_p99_ms"`
}

// Stats returns client count, sequence and delivery latency percentiles.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	s := Stats{Clients: len(h.clients), Seq: h.seq}
	h.mu.RUnlock()
	s.LatencyP50, s.LatencyP95, s.LatencyP99 = h.Latency.Percentiles()
	return s
}

// RegisterRoutes registers the WebSocket endpoint and its REST companions.
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.ServeWS)

	mux.HandleFunc("GET /api/v1/ws/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.Latest())
	})

	// gap backfill: ?channel=signal:BTCUSDT&from=3&to=7
	mux.HandleFunc("GET /api/v1/ws/missed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		channel := q.Get("channel")
		from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
		if channel == "" || err1 != nil || err2 != nil || from > to {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel, from and to are required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"channel":  channel,
			"messages": h.ReplayRange(channel, from, to),
		})
	})

	mux.HandleFunc("GET /api/v1/ws/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.Stats())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
