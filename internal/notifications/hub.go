package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventConnected          = "connected"
	EventAnalysisCompleted  = "analysis_completed"
	EventAnalysisFailed     = "analysis_failed"
	EventScenariosUpdated   = "scenarios_updated"
	EventCommitmentsUpdated = "commitments_updated"

	subscriberBuffer = 10
)

type Event struct {
	Type         string      `json:"type"`
	EngagementID uuid.UUID   `json:"engagement_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Data         interface{} `json:"data,omitempty"`
}

// Hub раздает события анализа подписчикам конкретного клиента.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan Event]struct{}
}

// NewHub создает хаб для SSE-подписок.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[chan Event]struct{}),
	}
}

// Subscribe подписывает на события клиента и возвращает канал и функцию отписки.
func (h *Hub) Subscribe(engagementID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[engagementID]
	if !ok {
		subs = make(map[chan Event]struct{})
		h.subscribers[engagementID] = subs
	}
	subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if subs, exists := h.subscribers[engagementID]; exists {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.subscribers, engagementID)
				}
			}
			close(ch)
		})
	}
}

// Publish отправляет событие всем подписчикам клиента; медленные подписчики пропускают событие.
func (h *Hub) Publish(engagementID uuid.UUID, event Event) {
	event.EngagementID = engagementID
	event.Timestamp = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[engagementID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers возвращает число активных подписок клиента.
func (h *Hub) Subscribers(engagementID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[engagementID])
}
