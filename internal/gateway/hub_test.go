package gateway

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tradingbot/internal/model"
	"tradingbot/internal/monitor"
)

type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
}

func TestBuildEnvelope(t *testing.T) {
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)
	buf := buildEnvelope("signal:BTCUSDT", []byte(`{"type":"signal","price":101.5}`), now, 42, 7)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != "signal:BTCUSDT" || env.Seq != 42 || env.ChannelSeq != 7 {
		t.Errorf("envelope = %+v", env)
	}
	if ts, err := time.Parse(time.RFC3339Nano, env.TS); err != nil || !ts.Equal(now) {
		t.Errorf("ts = %q, %v", env.TS, err)
	}
	var ev monitor.Event
	if err := json.Unmarshal(env.Data, &ev); err != nil || ev.Price != 101.5 {
		t.Errorf("data = %s, %v", env.Data, err)
	}
}

func TestHub_PublishSequencesAndReplay(t *testing.T) {
	h := NewHub()
	for i := 0; i < 5; i++ {
		h.Publish(monitor.Event{Kind: monitor.EventUpdate, Symbol: "BTCUSDT", Price: float64(100 + i)})
	}
	h.Publish(monitor.Event{Kind: monitor.EventUpdate, Symbol: "ETHUSDT", Price: 10})

	got := h.ReplayRange("update:BTCUSDT", 2, 4)
	if len(got) != 3 {
		t.Fatalf("replay = %d envelopes, want 3", len(got))
	}
	var env envelope
	json.Unmarshal(got[0], &env)
	if env.ChannelSeq != 2 || env.Seq != 2 {
		t.Errorf("first replayed = %+v", env)
	}

	latest := h.Latest()
	json.Unmarshal(latest["update:ETHUSDT"], &env)
	if env.ChannelSeq != 1 || env.Seq != 6 {
		t.Errorf("latest ETH = %+v, want channel_seq 1 seq 6", env)
	}
	if h.ReplayRange("signal:XRPUSDT", 1, 10) != nil {
		t.Error("unknown channel should replay nothing")
	}
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelopes reads one frame, which may carry several newline-separated
// envelopes.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out []envelope
	for _, line := range strings.Split(string(raw), "\n") {
		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			t.Fatalf("bad envelope %q: %v", line, err)
		}
		out = append(out, env)
	}
	return out
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_WebSocketStream(t *testing.T) {
	h := NewHub()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// state published before the client connects arrives as initial state
	h.Publish(monitor.Event{Kind: monitor.EventUpdate, Symbol: "BTCUSDT", Price: 100})

	conn := dial(t, srv, "")
	waitClients(t, h, 1)
	if envs := readEnvelopes(t, conn); envs[0].Channel != "update:BTCUSDT" {
		t.Errorf("initial state = %+v", envs)
	}

	events := make(chan monitor.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, events)
	events <- monitor.Event{Kind: monitor.EventSignal, Symbol: "BTCUSDT", Price: 99, Signal: model.ActionBuy, Timestamp: time.Now()}

	envs := readEnvelopes(t, conn)
	if envs[0].Channel != "signal:BTCUSDT" {
		t.Fatalf("streamed = %+v", envs)
	}
	var ev monitor.Event
	json.Unmarshal(envs[0].Data, &ev)
	if ev.Signal != model.ActionBuy {
		t.Errorf("signal = %q", ev.Signal)
	}
	if h.Latency.Count() != 1 {
		t.Errorf("latency samples = %d, want 1", h.Latency.Count())
	}
}

func TestHub_SubscribeFiltersSymbols(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, h, 1)

	conn.WriteJSON(map[string]any{"type": "SUBSCRIBE", "symbols": []string{"ethusdt"}})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack map[string]any
	if err := conn.ReadJSON(&ack); err != nil || ack["type"] != "subscribed" {
		t.Fatalf("ack = %v, %v", ack, err)
	}

	h.Publish(monitor.Event{Kind: monitor.EventUpdate, Symbol: "BTCUSDT", Price: 1})
	h.Publish(monitor.Event{Kind: monitor.EventUpdate, Symbol: "ETHUSDT", Price: 2})

	envs := readEnvelopes(t, conn)
	for _, env := range envs {
		if env.Channel != "update:ETHUSDT" {
			t.Errorf("received unsubscribed channel %q", env.Channel)
		}
	}
}

func TestHub_PingPong(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, h, 1)

	conn.WriteJSON(map[string]any{"ping": 1234})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]any
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatal(err)
	}
	if pong["type"] != "pong" || pong["ping"].(float64) != 1234 {
		t.Errorf("pong = %v", pong)
	}
}

func TestHub_MissedEndpoint(t *testing.T) {
	h := NewHub()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	for i := 0; i < 3; i++ {
		h.Publish(monitor.Event{Kind: monitor.EventSignal, Symbol: "BTCUSDT", Signal: model.ActionSell})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ws/missed?channel=signal:BTCUSDT&from=2&to=3", nil))
	var body struct {
		Messages []envelope `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Messages) != 2 || body.Messages[1].ChannelSeq != 3 {
		t.Errorf("missed = %+v", body.Messages)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ws/missed?channel=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing range: code = %d", rec.Code)
	}
}

func TestReplayBuffer(t *testing.T) {
	rb := NewReplayBuffer(5)
	if got := rb.Range(1, 100); len(got) != 0 {
		t.Fatalf("empty buffer returned %d entries", len(got))
	}
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, []byte("msg"))
	}
	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}
	got := rb.Range(1, 10)
	if len(got) != 5 || got[0].Seq != 4 || got[4].Seq != 8 {
		t.Errorf("after wraparound = %+v, want seqs 4..8", got)
	}
	if got := rb.Range(5, 6); len(got) != 2 {
		t.Errorf("Range(5,6) = %d entries", len(got))
	}
}

func TestLatencyTracker(t *testing.T) {
	lt := NewLatencyTracker(10)
	if p50, p95, p99 := lt.Percentiles(); p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("empty = %v %v %v", p50, p95, p99)
	}
	for i := 1; i <= 20; i++ {
		lt.Record(float64(i))
	}
	if lt.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", lt.Count())
	}
	// holds 11..20
	p50, _, p99 := lt.Percentiles()
	if math.Abs(p50-15.5) > 1e-9 || math.Abs(p99-19.91) > 1e-9 {
		t.Errorf("p50=%v p99=%v, want 15.5 19.91", p50, p99)
	}
}
