// Package realtime streams question review events to connected
// dashboards. Rooms are keyed by exam: reviewers watching an exam's
// pipeline receive every workflow event for its questions.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains exam_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: events are published to
// Redis and the subscriber callback performs the local broadcast.
type Hub struct {
	// examID -> map[clientID]*Client
	exams    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per exam
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for
// cross-instance broadcast).
type RedisPublisher interface {
	PublishExamEvent(examID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to exam channels and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeExam(examID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		exams:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an exam room. Starts the Redis subscription
// for this exam when the first client joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.exams[c.ExamID] == nil {
		h.exams[c.ExamID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeExam(c.ExamID, func(event string, payload []byte) {
				h.BroadcastToExam(c.ExamID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.ExamID] = cancel
			}
		}
	}
	h.exams[c.ExamID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined exam room", zap.String("client_id", c.ID), zap.String("exam_id", c.ExamID.String()))
}

// Unregister removes a client from its exam room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.exams[c.ExamID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.exams, c.ExamID)
			if cancel, ok := h.subs[c.ExamID]; ok {
				cancel()
				delete(h.subs, c.ExamID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left exam room", zap.String("client_id", c.ID), zap.String("exam_id", c.ExamID.String()))
}

// BroadcastToExam sends a message to all clients in an exam room (local
// only).
func (h *Hub) BroadcastToExam(examID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.exams[examID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToExamOnly publishes to Redis only (no local broadcast) so the
// Redis subscriber callback performs the broadcast once for all
// instances, avoiding duplicate delivery to local clients.
func (h *Hub) PublishToExamOnly(examID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishExamEvent(examID, event, data)
		return
	}
	h.BroadcastToExam(examID, event, payload)
}

// RoomSize returns the number of connected clients watching an exam.
func (h *Hub) RoomSize(examID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exams[examID])
}
