package eventlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func nextWithin(t *testing.T, c Cursor, d time.Duration) (Entry, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.Next(ctx)
}

func TestMemoryLog_TailLatestSkipsHistory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := NewMemoryLog()
	defer log.Close()

	// Given N records appended before the tail starts
	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, TopicChat, Record{"message": fmt.Sprintf("old-%d", i)})
		req.NoError(err)
	}

	cur, err := log.Tail(ctx, TopicChat, Latest)
	req.NoError(err)
	defer cur.Close()

	// When new records are appended after the handle is returned
	var appended []Position
	for i := 0; i < 3; i++ {
		pos, err := log.Append(ctx, TopicChat, Record{"message": fmt.Sprintf("new-%d", i)})
		req.NoError(err)
		appended = append(appended, pos)
	}

	// Then exactly the new ones are yielded, in append order
	for i := 0; i < 3; i++ {
		e, err := nextWithin(t, cur, time.Second)
		req.NoError(err)
		req.Equal(appended[i], e.Position)
		req.Equal(fmt.Sprintf("new-%d", i), e.Record["message"])
	}
	_, err = nextWithin(t, cur, 50*time.Millisecond)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestMemoryLog_TopicsAreIndependent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := NewMemoryLog()

	chat, err := log.Tail(ctx, TopicChat, Latest)
	req.NoError(err)
	_, err = log.Append(ctx, TopicNotification, Record{"title": "t"})
	req.NoError(err)

	_, err = nextWithin(t, chat, 50*time.Millisecond)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestMemoryLog_PositionsIncrease(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given a clock stuck in the same millisecond, then moving backwards
	ticks := []int64{1000, 1000, 999, 1001}
	var i int
	log := NewMemoryLog(WithClock(func() time.Time {
		ms := ticks[i%len(ticks)]
		i++
		return time.UnixMilli(ms)
	}))

	var prev Position
	for n := 0; n < len(ticks); n++ {
		pos, err := log.Append(ctx, TopicChat, Record{"n": fmt.Sprint(n)})
		req.NoError(err)
		req.True(prev.Less(pos), "%s must follow %s", pos, prev)
		prev = pos
	}
	req.Equal(Position{Ms: 1001}, prev)
}

func TestMemoryLog_BeginningReplaysRetained(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := NewMemoryLog(WithMaxLen(2))

	for i := 0; i < 4; i++ {
		_, err := log.Append(ctx, TopicChat, Record{"n": fmt.Sprint(i)})
		req.NoError(err)
	}
	req.Equal(2, log.Len(TopicChat))

	cur, err := log.Tail(ctx, TopicChat, Beginning)
	req.NoError(err)

	e, err := nextWithin(t, cur, time.Second)
	req.NoError(err)
	req.Equal("2", e.Record["n"])
}

func TestMemoryLog_RecordsAreImmutable(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := NewMemoryLog()

	cur, err := log.Tail(ctx, TopicChat, Latest)
	req.NoError(err)

	rec := Record{"message": "hi"}
	_, err = log.Append(ctx, TopicChat, rec)
	req.NoError(err)
	rec["message"] = "tampered"

	e, err := nextWithin(t, cur, time.Second)
	req.NoError(err)
	req.Equal("hi", e.Record["message"])
}

func TestMemoryLog_CloseUnblocksCursors(t *testing.T) {
	req := require.New(t)
	log := NewMemoryLog()

	cur, err := log.Tail(context.Background(), TopicChat, Latest)
	req.NoError(err)

	errCh := make(chan error, 1)
	go func() {
		_, err := cur.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	req.NoError(log.Close())

	select {
	case err := <-errCh:
		req.ErrorIs(err, ErrClosed)
	case <-time.After(time.Second):
		req.Fail("cursor still blocked after close")
	}

	_, err = log.Append(context.Background(), TopicChat, Record{})
	req.ErrorIs(err, ErrClosed)
}

func TestMemoryLog_CursorClose(t *testing.T) {
	req := require.New(t)
	log := NewMemoryLog()

	cur, err := log.Tail(context.Background(), TopicChat, Latest)
	req.NoError(err)
	req.NoError(cur.Close())
	req.NoError(cur.Close())

	_, err = cur.Next(context.Background())
	req.ErrorIs(err, ErrClosed)
}

func TestMemoryLog_UnknownTopic(t *testing.T) {
	req := require.New(t)
	log := NewMemoryLog()

	_, err := log.Append(context.Background(), Topic("audit"), Record{})
	req.ErrorIs(err, ErrUnknownTopic)
	_, err = log.Tail(context.Background(), Topic("audit"), Latest)
	req.ErrorIs(err, ErrUnknownTopic)
}
