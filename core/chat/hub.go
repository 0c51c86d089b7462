package chat

import (
	"context"
	"sync"

	"github.com/trezcool/masomo-chat/core"
)

type (
	// Subscriber is a member of a broadcast group.
	Subscriber interface {
		ID() string
		// Deliver must not block.
		Deliver(frame OutboundFrame) error
	}

	// Broadcaster maps group keys to sets of subscribers.
	//
	// Join and Leave are idempotent. Publish delivers to the members present when it is called;
	// a failed delivery is logged and does not prevent delivery to the other members.
	Broadcaster interface {
		Join(ctx context.Context, key string, sub Subscriber) error
		Leave(ctx context.Context, key string, sub Subscriber) error
		Publish(ctx context.Context, key string, frame OutboundFrame) error
		Members(key string) int
	}
)

// Hub is the in-process Broadcaster.
type Hub struct {
	logger core.Logger

	mu     sync.RWMutex
	groups map[string]map[string]Subscriber
}

var _ Broadcaster = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		logger: logger,
		groups: make(map[string]map[string]Subscriber),
	}
}

func (h *Hub) Join(_ context.Context, key string, sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[key]
	if !ok {
		group = make(map[string]Subscriber)
		h.groups[key] = group
	}
	group[sub.ID()] = sub
	return nil
}

func (h *Hub) Leave(_ context.Context, key string, sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[key]
	if !ok {
		return nil
	}
	delete(group, sub.ID())
	if len(group) == 0 {
		delete(h.groups, key)
	}
	return nil
}

func (h *Hub) Publish(_ context.Context, key string, frame OutboundFrame) error {
	for _, sub := range h.snapshot(key) {
		if err := sub.Deliver(frame); err != nil {
			h.logger.Warn("chat.Hub.Publish: delivering to "+sub.ID(), err, map[string]interface{}{"group": key})
		}
	}
	return nil
}

func (h *Hub) Members(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[key])
}

// Groups returns the number of non-empty groups.
func (h *Hub) Groups() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

func (h *Hub) snapshot(key string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	group := h.groups[key]
	subs := make([]Subscriber, 0, len(group))
	for _, sub := range group {
		subs = append(subs, sub)
	}
	return subs
}
