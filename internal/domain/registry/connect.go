package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HUB)
// This allows faking and decoupling from the concrete implementation
type Connector interface {
	GetID() uuid.UUID
	GetUserID() string
	GetMetadata() ConnectMetadata
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Done() <-chan struct{}
	Dropped() uint64
	Close() // Terminate connection and release resources
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Transport string // "ws", "lp"
	RemoteIP  string
	UserAgent string
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id             uuid.UUID
	userID         string
	metadata       ConnectMetadata
	createdAt      time.Time
	ctx            context.Context
	cancelFn       context.CancelFunc
	sendCh         chan event.Eventer
	closeOnce      sync.Once
	lastActivityAt atomic.Int64
	droppedCount   atomic.Uint64
}

// NewConnector binds a session to the caller's context; cancelling it closes the connector.
func NewConnector(ctx context.Context, userID string, bufferSize int, meta ConnectMetadata) Connector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	childCtx, cancel := context.WithCancel(ctx)

	c := &connect{
		id:        uuid.New(),
		userID:    userID,
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.Eventer, bufferSize),
	}
	c.lastActivityAt.Store(c.createdAt.UnixNano())
	return c
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID             { return c.id }
func (c *connect) GetUserID() string            { return c.userID }
func (c *connect) GetMetadata() ConnectMetadata { return c.metadata }
func (c *connect) Recv() <-chan event.Eventer   { return c.sendCh }
func (c *connect) Done() <-chan struct{}        { return c.ctx.Done() }
func (c *connect) Dropped() uint64              { return c.droppedCount.Load() }

// Send enqueues an event for the transport writer.
//
// A full buffer sheds low-priority events at once; others wait up to timeout so a stalled
// session cannot hold its cell longer than that.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	// 1. [LIFECYCLE_GATE] Immediately abort if the underlying transport is already dead.
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	// 2. [FAST_PATH] Buffer has room.
	select {
	case c.sendCh <- ev:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	default:
	}

	// 3. [BACKPRESSURE_THRESHOLD]
	return c.handleBackpressure(ev, timeout)
}

func (c *connect) handleBackpressure(ev event.Eventer, timeout time.Duration) bool {
	if ev.GetPriority() <= event.PriorityLow || timeout <= 0 {
		c.droppedCount.Add(1)
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	case <-timer.C:
		c.droppedCount.Add(1)
		return false
	}
}

// Close terminates the session. The send channel is never closed: cells may still hold the
// connector in a delivery snapshot, so readers select on Done instead.
func (c *connect) Close() {
	c.closeOnce.Do(c.cancelFn)
}
