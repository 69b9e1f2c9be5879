package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeBackend upgrades one connection and hands it to script.
func fakeBackend(t *testing.T, script func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readFrame(t *testing.T, conn *websocket.Conn) outgoing {
	t.Helper()
	var msg struct {
		Topic   string          `json:"topic"`
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
		Ref     string          `json:"ref"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	return outgoing{Topic: msg.Topic, Event: msg.Event, Payload: msg.Payload, Ref: msg.Ref}
}

func reply(conn *websocket.Conn, topic, ref, status string) error {
	return conn.WriteJSON(map[string]any{
		"topic":   topic,
		"event":   "phx_reply",
		"ref":     ref,
		"payload": map[string]any{"status": status, "response": map[string]any{}},
	})
}

func insert(conn *websocket.Conn, topic string, record map[string]any) error {
	return conn.WriteJSON(map[string]any{
		"topic": topic,
		"event": "postgres_changes",
		"ref":   nil,
		"payload": map[string]any{
			"ids": []int{1},
			"data": map[string]any{
				"type":             "INSERT",
				"schema":           "public",
				"table":            "messages",
				"commit_timestamp": "2025-01-02T10:00:00Z",
				"record":           record,
			},
		},
	})
}

func TestSubscribe_DeliversInserts(t *testing.T) {
	joined := make(chan map[string]any, 1)
	srv := fakeBackend(t, func(conn *websocket.Conn, r *http.Request) {
		assert.Equal(t, "anon", r.URL.Query().Get("apikey"))
		assert.Equal(t, protocolVersion, r.URL.Query().Get("vsn"))

		join := readFrame(t, conn)
		assert.Equal(t, "phx_join", join.Event)
		var payload map[string]any
		_ = json.Unmarshal(join.Payload.(json.RawMessage), &payload)
		joined <- payload

		_ = reply(conn, join.Topic, join.Ref, "ok")
		_ = insert(conn, join.Topic, map[string]any{
			"id": "other", "match_id": "m-2", "sender_id": "c-9", "content": "wrong match",
			"created_at": "2025-01-02T10:00:00Z",
		})
		_ = insert(conn, join.Topic, map[string]any{
			"id": "msg-1", "match_id": "m-1", "sender_id": "c-1", "content": "hello",
			"created_at": "2025-01-02T10:00:00.123456Z",
		})
		// keep the socket open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []Message
	c := &Client{URL: srv.URL, APIKey: "anon"}
	err := c.Subscribe(ctx, "m-1", func(m Message) {
		got = append(got, m)
		cancel()
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "msg-1", got[0].ID)
	assert.Equal(t, "c-1", got[0].SenderID)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 123456000, time.UTC), got[0].CreatedAt.UTC())

	payload := <-joined
	cfg := payload["config"].(map[string]any)
	changes := cfg["postgres_changes"].([]any)
	require.Len(t, changes, 1)
	change := changes[0].(map[string]any)
	assert.Equal(t, "INSERT", change["event"])
	assert.Equal(t, "messages", change["table"])
	assert.Equal(t, "match_id=eq.m-1", change["filter"])
}

func TestSubscribe_JoinRejected(t *testing.T) {
	srv := fakeBackend(t, func(conn *websocket.Conn, r *http.Request) {
		join := readFrame(t, conn)
		_ = reply(conn, join.Topic, join.Ref, "error")
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := (&Client{URL: srv.URL}).Subscribe(ctx, "m-1", func(Message) {})
	assert.ErrorIs(t, err, ErrJoinRejected)
}

func TestSubscribe_Heartbeat(t *testing.T) {
	beat := make(chan outgoing, 1)
	srv := fakeBackend(t, func(conn *websocket.Conn, r *http.Request) {
		join := readFrame(t, conn)
		_ = reply(conn, join.Topic, join.Ref, "ok")
		for {
			var f outgoing
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if f.Event == "heartbeat" {
				select {
				case beat <- f:
				default:
				}
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- (&Client{URL: srv.URL, HeartbeatInterval: 20 * time.Millisecond}).Subscribe(ctx, "m-1", func(Message) {})
	}()

	select {
	case f := <-beat:
		assert.Equal(t, "phoenix", f.Topic)
	case <-ctx.Done():
		t.Fatal("no heartbeat received")
	}
	cancel()
	assert.NoError(t, <-errc)
}

func TestSubscribe_DialFailure(t *testing.T) {
	err := (&Client{URL: "http://127.0.0.1:1"}).Subscribe(context.Background(), "m-1", func(Message) {})
	assert.Error(t, err)
}

func TestEndpoint(t *testing.T) {
	got, err := (&Client{URL: "https://project.example.co/", APIKey: "k"}).endpoint()
	require.NoError(t, err)
	assert.Equal(t, "wss://project.example.co/realtime/v1/websocket?apikey=k&vsn=1.0.0", got)

	_, err = (&Client{URL: "ftp://nope"}).endpoint()
	assert.Error(t, err)
}

func TestDecodeChange_UnixNanos(t *testing.T) {
	payload := []byte(`{"data":{"type":"INSERT","table":"messages","record":{
		"id":"x","match_id":"m","sender_id":"s","content":"hi","created_at":1735812000000000001}}}`)
	msg, ok, err := decodeChange(payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1735812000000000001), msg.CreatedAt.UnixNano())

	_, ok, err = decodeChange([]byte(`{"data":{"type":"UPDATE","table":"messages","record":{}}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}
