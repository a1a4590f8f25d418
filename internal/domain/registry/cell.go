/*
Package registry implements the broadcast router on top of an actor-style connection registry.

Key Architectural Concepts:
  - Channel Cells: every active channel key (a group or a single user) is an isolated Cell
    holding the sessions subscribed to it and a mailbox drained by its own goroutine.
  - Snapshot Routing: a delivery captures the subscriber set at routing time, so a session that
    subscribes afterwards never receives an earlier message through this path.
  - Failure Isolation: each session send is bounded by a timeout; a stalled session only costs
    its own cell that long and never fails the routing call.
  - Computational Efficiency: events are encoded into the wire format once and cached on the
    event for every subscriber.
*/
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/event"
)

// Celler defines the internal API for channel-specific delivery units.
type Celler interface {
	Push(ev event.Eventer) (int, bool)
	Attach(conn Connector)
	Detach(connID uuid.UUID) bool
	Subscribers() []Connector
	Backlog() int
	Stop()
}

// delivery pairs an event with the sessions subscribed when it was routed.
type delivery struct {
	ev      event.Eventer
	targets []Connector
}

// Cell implements [ISOLATED_DELIVERY] logic for a single channel.
type Cell struct {
	key ChannelKey

	// [MAILBOX]
	// Decouples the routing caller (the log consumer) from per-session writes.
	mailbox chan delivery

	// [SESSIONS]
	sessions map[uuid.UUID]Connector
	mu       sync.RWMutex

	doneCh   chan struct{}
	stopOnce sync.Once

	sendTimeout time.Duration
	logger      *slog.Logger
	stats       *counters
}

func NewCell(key ChannelKey, mailboxSize int, sendTimeout time.Duration, logger *slog.Logger, stats *counters) *Cell {
	c := &Cell{
		key:         key,
		mailbox:     make(chan delivery, mailboxSize),
		sessions:    make(map[uuid.UUID]Connector),
		doneCh:      make(chan struct{}),
		sendTimeout: sendTimeout,
		logger:      logger,
		stats:       stats,
	}
	go c.loop()
	return c
}

// Push snapshots the current subscribers and queues the event for them.
// It returns the number of targeted sessions and false on mailbox overflow.
func (c *Cell) Push(ev event.Eventer) (int, bool) {
	targets := c.Subscribers()
	if len(targets) == 0 {
		return 0, true
	}

	select {
	case c.mailbox <- delivery{ev: ev, targets: targets}:
		return len(targets), true
	case <-c.doneCh:
		return 0, true
	default:
		return 0, false
	}
}

func (c *Cell) Attach(conn Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[conn.GetID()] = conn
}

// Detach removes a session and reports whether the cell became empty.
func (c *Cell) Detach(connID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, connID)
	return len(c.sessions) == 0
}

func (c *Cell) Subscribers() []Connector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Connector, 0, len(c.sessions))
	for _, conn := range c.sessions {
		out = append(out, conn)
	}
	return out
}

func (c *Cell) Backlog() int { return len(c.mailbox) }

func (c *Cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case d := <-c.mailbox:
			c.deliver(d)
		}
	}
}

func (c *Cell) deliver(d delivery) {
	for _, conn := range d.targets {
		// Sessions closed since the snapshot are skipped silently.
		select {
		case <-conn.Done():
			continue
		default:
		}

		if conn.Send(d.ev, c.sendTimeout) {
			c.stats.delivered.Add(1)
			continue
		}

		c.stats.dropped.Add(1)
		c.logger.Warn("DELIVERY_DROPPED",
			"channel", c.key.String(),
			"conn_id", conn.GetID(),
			"user_id", conn.GetUserID(),
			"event_id", d.ev.GetID(),
			"dropped_total", conn.Dropped(),
		)
	}
}

func (c *Cell) Stop() {
	c.stopOnce.Do(func() { close(c.doneCh) })
}
