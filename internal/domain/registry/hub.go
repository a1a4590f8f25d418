package registry

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/event"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

// Registry is the connection table: which sessions are subscribed to which channel.
type Registry interface {
	Attach(key ChannelKey, conn Connector)
	Detach(key ChannelKey, connID uuid.UUID)
	DetachAll(connID uuid.UUID)
	Subscribers(key ChannelKey) []Connector
}

// Router delivers a decoded event to every session of the addressed channel.
// The returned count is the number of sessions targeted; zero is a valid outcome.
type Router interface {
	DeliverToGroup(groupID string, ev event.Eventer) int
	DeliverToUser(userID string, ev event.Eventer) int
}

// Observer receives routing outcomes.
type Observer interface {
	ObserveRouted(scope string, targets int)
	ObserveOverflow(scope string)
}

// Hubber defines the gateway for session management and event routing.
type Hubber interface {
	Registry
	Router
	IsOnline(userID string) bool
	Stats() model.HubStats
	Shutdown()
}

type hubConfig struct {
	mailboxSize int
	sendTimeout time.Duration
}

type counters struct {
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

type noopObserver struct{}

func (noopObserver) ObserveRouted(string, int) {}
func (noopObserver) ObserveOverflow(string)    {}

var _ Hubber = (*Hub)(nil)

// Hub implements a [SCALABLE_REGISTRY] using the channel cell pattern.
type Hub struct {
	// cells stores Map[ChannelKey]*Cell. Optimized for [READ_HEAVY] routing.
	cells sync.Map

	// [STRUCTURAL_LOCK]
	// Serializes attach/detach so a cell is never stopped while a new session joins it.
	mu   sync.Mutex
	subs map[uuid.UUID]map[ChannelKey]Connector

	config    hubConfig
	logger    *slog.Logger
	observer  Observer
	stats     counters
	startedAt time.Time
	closed    atomic.Bool
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs: make(map[uuid.UUID]map[ChannelKey]Connector),
		config: hubConfig{
			mailboxSize: 1024,
			sendTimeout: 100 * time.Millisecond,
		},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:  noopObserver{},
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) DeliverToGroup(groupID string, ev event.Eventer) int {
	return h.deliver(GroupChannel(groupID), ev)
}

func (h *Hub) DeliverToUser(userID string, ev event.Eventer) int {
	return h.deliver(UserChannel(userID), ev)
}

func (h *Hub) deliver(key ChannelKey, ev event.Eventer) int {
	if ev == nil || h.closed.Load() {
		return 0
	}

	val, ok := h.cells.Load(key)
	if !ok {
		h.observer.ObserveRouted(key.Scope.String(), 0)
		return 0
	}

	n, ok := val.(Celler).Push(ev)
	if !ok {
		h.stats.dropped.Add(1)
		h.observer.ObserveOverflow(key.Scope.String())
		h.logger.Warn("MAILBOX_OVERFLOW", "channel", key.String(), "event_id", ev.GetID())
		return 0
	}

	h.observer.ObserveRouted(key.Scope.String(), n)
	return n
}

// Attach subscribes a session to a channel. Attaching twice is a no-op.
func (h *Hub) Attach(key ChannelKey, conn Connector) {
	if h.closed.Load() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// [LAZY_INIT] Create the cell only when its first session arrives.
	val, ok := h.cells.Load(key)
	if !ok {
		val = NewCell(key, h.config.mailboxSize, h.config.sendTimeout, h.logger, &h.stats)
		h.cells.Store(key, val)
	}
	val.(Celler).Attach(conn)

	keys, ok := h.subs[conn.GetID()]
	if !ok {
		keys = make(map[ChannelKey]Connector)
		h.subs[conn.GetID()] = keys
	}
	keys[key] = conn
}

func (h *Hub) Detach(key ChannelKey, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachLocked(key, connID)
	if keys, ok := h.subs[connID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(h.subs, connID)
		}
	}
}

// DetachAll removes every subscription held by a session, as on disconnect.
func (h *Hub) DetachAll(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range h.subs[connID] {
		h.detachLocked(key, connID)
	}
	delete(h.subs, connID)
}

// detachLocked performs [GRACEFUL_RECLAMATION] of a cell once its last session leaves.
func (h *Hub) detachLocked(key ChannelKey, connID uuid.UUID) {
	val, ok := h.cells.Load(key)
	if !ok {
		return
	}
	cell := val.(Celler)
	if cell.Detach(connID) {
		cell.Stop()
		h.cells.Delete(key)
	}
}

func (h *Hub) Subscribers(key ChannelKey) []Connector {
	if val, ok := h.cells.Load(key); ok {
		return val.(Celler).Subscribers()
	}
	return nil
}

func (h *Hub) IsOnline(userID string) bool {
	return len(h.Subscribers(UserChannel(userID))) > 0
}

func (h *Hub) Stats() model.HubStats {
	st := model.HubStats{
		Delivered: h.stats.delivered.Load(),
		Dropped:   h.stats.dropped.Load(),
		Uptime:    time.Since(h.startedAt),
	}

	h.cells.Range(func(k, v any) bool {
		key := k.(ChannelKey)
		cell := v.(Celler)
		subs := len(cell.Subscribers())

		st.TotalChannels++
		switch key.Scope {
		case ScopeGroup:
			st.GroupChannels++
		case ScopeUser:
			st.UserChannels++
		}
		st.Channels = append(st.Channels, model.ChannelStats{
			Key:         key.String(),
			Subscribers: subs,
			Backlog:     cell.Backlog(),
		})
		return true
	})

	h.mu.Lock()
	st.TotalConnections = len(h.subs)
	h.mu.Unlock()

	sort.Slice(st.Channels, func(i, j int) bool { return st.Channels[i].Key < st.Channels[j].Key })
	return st
}

// Shutdown stops every cell and closes every session so transport loops unwind.
func (h *Hub) Shutdown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, keys := range h.subs {
		for _, conn := range keys {
			conn.Close()
			break
		}
	}
	h.subs = make(map[uuid.UUID]map[ChannelKey]Connector)

	h.cells.Range(func(k, v any) bool {
		v.(Celler).Stop()
		h.cells.Delete(k)
		return true
	})
	h.logger.Info("HUB_SHUTDOWN_COMPLETE")
}
