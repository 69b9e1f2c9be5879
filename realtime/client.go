// Package realtime subscribes to the managed backend's change feed for chat
// messages. The backend speaks the Phoenix channel protocol over a websocket;
// this package only consumes INSERT events on the messages table.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	protocolVersion          = "1.0.0"
	defaultHeartbeatInterval = 30 * time.Second
	writeTimeout             = 10 * time.Second
)

var ErrJoinRejected = errors.New("channel join rejected")

// Message is a chat message row as delivered by the change feed.
type Message struct {
	ID        string    `mapstructure:"id" json:"id"`
	MatchID   string    `mapstructure:"match_id" json:"matchId"`
	SenderID  string    `mapstructure:"sender_id" json:"senderId"`
	Content   string    `mapstructure:"content" json:"content"`
	CreatedAt time.Time `mapstructure:"created_at" json:"createdAt"`
}

// Client connects to {URL}/realtime/v1/websocket.
type Client struct {
	URL    string
	APIKey string
	// AccessToken is sent with the join so row level security applies to the
	// caller. Empty means the anon key's privileges.
	AccessToken string

	HeartbeatInterval time.Duration
	Dialer            *websocket.Dialer
	Logger            *zap.Logger
}

type envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type outgoing struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref"`
}

type changeEvent struct {
	Data struct {
		Type   string         `mapstructure:"type"`
		Table  string         `mapstructure:"table"`
		Record map[string]any `mapstructure:"record"`
	} `mapstructure:"data"`
}

// Topic returns the channel topic carrying the messages of matchID.
func Topic(matchID string) string {
	return "realtime:public:messages:match_id=eq." + matchID
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(c.URL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	u.Path += "/realtime/v1/websocket"
	q := u.Query()
	if c.APIKey != "" {
		q.Set("apikey", c.APIKey)
	}
	q.Set("vsn", protocolVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe joins the message feed of matchID and calls fn for every inserted
// message of that match until ctx is done. fn runs on the reading goroutine.
// Returns nil when ctx ends the subscription.
func (c *Client) Subscribe(ctx context.Context, matchID string, fn func(Message)) error {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		_ = conn.Close()
		wg.Wait()
	}()

	// Unblock the reader when ctx ends.
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	var (
		writeMu sync.Mutex
		ref     int
	)
	send := func(msg outgoing) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		ref++
		msg.Ref = strconv.Itoa(ref)
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(msg)
	}

	topic := Topic(matchID)
	join := map[string]any{
		"config": map[string]any{
			"broadcast": map[string]any{"self": false},
			"presence":  map[string]any{"key": ""},
			"postgres_changes": []map[string]any{{
				"event":  "INSERT",
				"schema": "public",
				"table":  "messages",
				"filter": "match_id=eq." + matchID,
			}},
		},
	}
	if c.AccessToken != "" {
		join["access_token"] = c.AccessToken
	}
	if err := send(outgoing{Topic: topic, Event: "phx_join", Payload: join}); err != nil {
		return c.readErr(ctx, fmt.Errorf("join %s: %w", topic, err))
	}
	joinRef := "1"

	interval := c.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := send(outgoing{Topic: "phoenix", Event: "heartbeat", Payload: map[string]any{}}); err != nil {
					log.Debug("heartbeat failed", zap.Error(err))
					return
				}
			}
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return c.readErr(ctx, fmt.Errorf("read realtime: %w", err))
		}

		switch {
		case env.Event == "phx_reply" && env.Topic == topic && env.Ref != nil && *env.Ref == joinRef:
			var reply struct {
				Status   string          `json:"status"`
				Response json.RawMessage `json:"response"`
			}
			if err := json.Unmarshal(env.Payload, &reply); err != nil {
				return fmt.Errorf("decode join reply: %w", err)
			}
			if reply.Status != "ok" {
				return fmt.Errorf("%w: %s", ErrJoinRejected, bytes.TrimSpace(reply.Response))
			}
			log.Info("subscribed", zap.String("topic", topic))

		case env.Topic == topic && (env.Event == "phx_error" || env.Event == "phx_close"):
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("channel %s closed by server (%s)", topic, env.Event)

		case env.Topic == topic && env.Event == "postgres_changes":
			msg, ok, err := decodeChange(env.Payload)
			if err != nil {
				log.Warn("skipping undecodable change", zap.Error(err))
				continue
			}
			if ok && msg.MatchID == matchID {
				fn(msg)
			}
		}
	}
}

// readErr turns a connection error caused by cancellation into a clean exit.
func (c *Client) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// decodeChange extracts the inserted row of a postgres_changes payload.
// ok is false for events other than message inserts.
func decodeChange(payload json.RawMessage) (Message, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Message{}, false, err
	}

	var evt changeEvent
	if err := mapstructure.Decode(raw, &evt); err != nil {
		return Message{}, false, err
	}
	if evt.Data.Type != "INSERT" || evt.Data.Table != "messages" || evt.Data.Record == nil {
		return Message{}, false, nil
	}

	var msg Message
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &msg,
		TagName: "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numberToTimeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return Message{}, false, err
	}
	if err := decoder.Decode(evt.Data.Record); err != nil {
		return Message{}, false, fmt.Errorf("decode message record: %w", err)
	}
	return msg, true, nil
}

// numberToTimeHook reads integer timestamps as unix nanoseconds.
func numberToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("timestamp %s: %w", n, err)
	}
	return time.Unix(0, i).UTC(), nil
}
