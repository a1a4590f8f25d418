package pubsub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
)

var _ message.Subscriber = (*LogSubscriber)(nil)

var ErrSubscriberClosed = errors.New("pubsub: subscriber closed")

// LogSubscriber tails an event log topic from the latest position.
//
// Messages are handed out one at a time: the next record is read only after the previous one
// was acked or nacked, which keeps per-topic order. A nacked record is dropped, not redelivered.
type LogSubscriber struct {
	log        eventlog.Log
	logger     watermill.LoggerAdapter
	retryDelay time.Duration

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewLogSubscriber(log eventlog.Log, logger watermill.LoggerAdapter) *LogSubscriber {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &LogSubscriber{
		log:        log,
		logger:     logger,
		retryDelay: time.Second,
		closing:    make(chan struct{}),
	}
}

// Subscribe registers the tail before returning, so every record appended afterwards is delivered.
func (s *LogSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	select {
	case <-s.closing:
		return nil, ErrSubscriberClosed
	default:
	}

	cur, err := s.log.Tail(ctx, eventlog.Topic(topic), eventlog.Latest)
	if err != nil {
		return nil, err
	}

	out := make(chan *message.Message)
	s.wg.Add(1)
	go s.consume(ctx, topic, cur, out)
	return out, nil
}

func (s *LogSubscriber) consume(ctx context.Context, topic string, cur eventlog.Cursor, out chan<- *message.Message) {
	defer s.wg.Done()
	defer close(out)
	defer cur.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	fields := watermill.LogFields{"topic": topic}
	s.logger.Debug("TAIL_OPENED", fields)

	for {
		entry, err := cur.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, eventlog.ErrClosed) {
				s.logger.Debug("TAIL_CLOSED", fields)
				return
			}
			// [TRANSIENT_READ_FAILURE] The cursor keeps its position; retry after a pause.
			s.logger.Error("TAIL_READ_FAILED", err, fields)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
			continue
		}

		msg, err := toMessage(entry)
		if err != nil {
			s.logger.Error("RECORD_DECODE_FAILED", err, fields.Add(watermill.LogFields{"position": entry.Position.String()}))
			continue
		}
		msg.SetContext(ctx)

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}

		select {
		case <-msg.Acked():
		case <-msg.Nacked():
			s.logger.Info("RECORD_DROPPED", fields.Add(watermill.LogFields{
				"uuid":     msg.UUID,
				"position": entry.Position.String(),
			}))
		case <-ctx.Done():
			return
		}
	}
}

// Close cancels every tail and waits until their output channels are closed.
func (s *LogSubscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.wg.Wait()
	return nil
}
