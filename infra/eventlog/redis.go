package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

var _ Log = (*RedisLog)(nil)

// StreamKey maps a topic to its Redis stream, e.g. "chat:stream".
func StreamKey(t Topic) string { return string(t) + ":stream" }

// RedisLog stores each topic in a Redis stream. Retention is delegated to XADD MAXLEN ~.
type RedisLog struct {
	client redis.UniversalClient
	maxLen int64
	block  time.Duration
	batch  int64
	closed atomic.Bool
}

func NewRedisLog(client redis.UniversalClient, maxLen int64, block time.Duration) *RedisLog {
	if block <= 0 {
		block = 2 * time.Second
	}
	return &RedisLog{client: client, maxLen: maxLen, block: block, batch: 128}
}

func (l *RedisLog) Append(ctx context.Context, topic Topic, rec Record) (Position, error) {
	if err := checkTopic(topic); err != nil {
		return Position{}, err
	}
	if l.closed.Load() {
		return Position{}, ErrClosed
	}

	values := make(map[string]any, len(rec))
	for k, v := range rec {
		values[k] = v
	}

	id, err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(topic),
		MaxLen: l.maxLen,
		Approx: l.maxLen > 0,
		Values: values,
	}).Result()
	if err != nil {
		return Position{}, unavailable("append", topic, err)
	}
	return ParsePosition(id)
}

func (l *RedisLog) Tail(ctx context.Context, topic Topic, from Position) (Cursor, error) {
	if err := checkTopic(topic); err != nil {
		return nil, err
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}

	key := StreamKey(topic)
	last := from.String()

	// "$" is re-evaluated by every XREAD call; pin it to a concrete id now so records
	// appended between two blocking reads are not skipped.
	if from == Latest {
		msgs, err := l.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, unavailable("resolve latest", topic, err)
		}
		last = Beginning.String()
		if len(msgs) > 0 {
			last = msgs[0].ID
		}
	}

	return &redisCursor{log: l, topic: topic, key: key, last: last}, nil
}

func (l *RedisLog) Close() error {
	l.closed.Store(true)
	return nil
}

type redisCursor struct {
	log    *RedisLog
	topic  Topic
	key    string
	last   string
	buf    []redis.XMessage
	closed atomic.Bool
}

func (c *redisCursor) Next(ctx context.Context) (Entry, error) {
	for {
		if c.closed.Load() || c.log.closed.Load() {
			return Entry{}, ErrClosed
		}

		if len(c.buf) > 0 {
			msg := c.buf[0]
			c.buf = c.buf[1:]
			return toEntry(msg)
		}

		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}

		streams, err := c.log.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.key, c.last},
			Count:   c.log.batch,
			Block:   c.log.block,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return Entry{}, ctx.Err()
			}
			return Entry{}, unavailable("read", c.topic, err)
		}

		for _, s := range streams {
			if len(s.Messages) == 0 {
				continue
			}
			c.buf = append(c.buf, s.Messages...)
			c.last = s.Messages[len(s.Messages)-1].ID
		}
	}
}

func (c *redisCursor) Close() error {
	c.closed.Store(true)
	return nil
}

func toEntry(msg redis.XMessage) (Entry, error) {
	pos, err := ParsePosition(msg.ID)
	if err != nil {
		return Entry{}, err
	}
	rec := make(Record, len(msg.Values))
	for k, v := range msg.Values {
		switch s := v.(type) {
		case string:
			rec[k] = s
		default:
			rec[k] = fmt.Sprint(s)
		}
	}
	return Entry{Position: pos, Record: rec}, nil
}

func unavailable(op string, topic Topic, err error) error {
	return fmt.Errorf("%w: redis log: %s %s: %v", model.ErrUnavailable, op, topic, err)
}
