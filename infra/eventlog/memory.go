package eventlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Log = (*MemoryLog)(nil)

// MemoryLog is an in-process log for single-instance deployments and tests.
// Retention keeps the newest maxLen records per topic; slow cursors skip what was trimmed.
type MemoryLog struct {
	mu      sync.Mutex
	topics  map[Topic]*memTopic
	maxLen  int
	now     func() time.Time
	closed  bool
	closeCh chan struct{}
}

type memTopic struct {
	entries []Entry
	last    Position
	// notify is closed and replaced on every append to wake blocked cursors.
	notify chan struct{}
}

type MemoryOption func(*MemoryLog)

func WithMaxLen(n int) MemoryOption {
	return func(l *MemoryLog) { l.maxLen = n }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLog) { l.now = now }
}

func NewMemoryLog(opts ...MemoryOption) *MemoryLog {
	l := &MemoryLog{
		topics:  make(map[Topic]*memTopic, len(Topics)),
		maxLen:  10000,
		now:     time.Now,
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, t := range Topics {
		l.topics[t] = &memTopic{notify: make(chan struct{})}
	}
	return l
}

func (l *MemoryLog) Append(ctx context.Context, topic Topic, rec Record) (Position, error) {
	if err := checkTopic(topic); err != nil {
		return Position{}, err
	}
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Position{}, ErrClosed
	}

	t := l.topics[topic]
	pos := t.last.next(uint64(l.now().UnixMilli()))
	t.entries = append(t.entries, Entry{Position: pos, Record: rec.Clone()})
	if l.maxLen > 0 && len(t.entries) > l.maxLen {
		trimmed := make([]Entry, l.maxLen)
		copy(trimmed, t.entries[len(t.entries)-l.maxLen:])
		t.entries = trimmed
	}
	t.last = pos

	close(t.notify)
	t.notify = make(chan struct{})

	return pos, nil
}

func (l *MemoryLog) Tail(ctx context.Context, topic Topic, from Position) (Cursor, error) {
	if err := checkTopic(topic); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if from == Latest {
		from = l.topics[topic].last
	}
	return &memCursor{log: l, topic: topic, pos: from, done: make(chan struct{})}, nil
}

// Len reports the number of retained records in a topic.
func (l *MemoryLog) Len(topic Topic) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.topics[topic]; ok {
		return len(t.entries)
	}
	return 0
}

func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.closeCh)
	}
	return nil
}

type memCursor struct {
	log   *MemoryLog
	topic Topic
	pos   Position

	done     chan struct{}
	doneOnce sync.Once
}

func (c *memCursor) Next(ctx context.Context) (Entry, error) {
	for {
		c.log.mu.Lock()
		if c.log.closed {
			c.log.mu.Unlock()
			return Entry{}, ErrClosed
		}

		t := c.log.topics[c.topic]
		idx := sort.Search(len(t.entries), func(i int) bool {
			return c.pos.Less(t.entries[i].Position)
		})
		if idx < len(t.entries) {
			e := t.entries[idx]
			c.pos = e.Position
			c.log.mu.Unlock()
			return Entry{Position: e.Position, Record: e.Record.Clone()}, nil
		}
		wait := t.notify
		c.log.mu.Unlock()

		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-c.done:
			return Entry{}, ErrClosed
		case <-c.log.closeCh:
			return Entry{}, ErrClosed
		case <-wait:
		}
	}
}

func (c *memCursor) Close() error {
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}
