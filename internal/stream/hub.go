package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"backend-runstr/internal/logging"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "workout:"
	channelSuffix = ":live"
)

// Hub fans live session snapshots out to websocket viewers. With Redis
// configured, broadcasts are also published so viewers connected to other
// instances receive them; each instance skips its own echoes.
type Hub struct {
	origin  string
	redis   *redis.Client
	logger  *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	cancel  context.CancelFunc
}

type Client struct {
	SessionID string
	Send      chan []byte
}

type envelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		origin:  uuid.NewString(),
		redis:   redisClient,
		logger:  logging.OrDiscard(logger),
		clients: map[string]map[*Client]struct{}{},
		cancel:  cancel,
	}

	if redisClient != nil {
		pubsub := redisClient.PSubscribe(ctx, channelPrefix+"*"+channelSuffix)
		go h.subscribeRedis(ctx, pubsub)
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// Broadcast delivers payload to local viewers of sessionID and publishes it
// for other instances. Slow viewers drop messages rather than block the feed.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.origin, Payload: payload})
	if err != nil {
		h.logger.Warn("stream envelope encode failed", "session_id", sessionID, "error", err)
		return
	}
	if err := h.redis.Publish(context.Background(), redisChannel(sessionID), msg).Err(); err != nil {
		h.logger.Warn("redis publish failed", "session_id", sessionID, "error", err)
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(sessionID string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("stream payload encode failed", "session_id", sessionID, "error", err)
		return
	}
	h.Broadcast(sessionID, payload)
}

// Close stops the Redis subscription. Registered clients are left to their handlers.
func (h *Hub) Close() {
	h.cancel()
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Debug("ignoring malformed stream message", "channel", msg.Channel)
				continue
			}
			if env.Origin == h.origin {
				continue
			}
			if sessionID := sessionIDFromChannel(msg.Channel); sessionID != "" {
				h.deliver(sessionID, env.Payload)
			}
		}
	}
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
