package pubsub

import (
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
)

var _ message.Publisher = (*LogPublisher)(nil)

// LogPublisher appends watermill messages to an event log topic.
type LogPublisher struct {
	log    eventlog.Log
	logger watermill.LoggerAdapter
	closed atomic.Bool
}

func NewLogPublisher(log eventlog.Log, logger watermill.LoggerAdapter) *LogPublisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &LogPublisher{log: log, logger: logger}
}

// Publish appends messages in order; the first failure stops the batch.
// On success every message carries its position in the MetadataPosition key.
func (p *LogPublisher) Publish(topic string, messages ...*message.Message) error {
	if p.closed.Load() {
		return eventlog.ErrClosed
	}

	for _, msg := range messages {
		rec, err := toRecord(msg)
		if err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}

		pos, err := p.log.Append(msg.Context(), eventlog.Topic(topic), rec)
		if err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		msg.Metadata.Set(MetadataPosition, pos.String())

		p.logger.Trace("RECORD_APPENDED", watermill.LogFields{
			"topic":    topic,
			"uuid":     msg.UUID,
			"position": pos.String(),
		})
	}
	return nil
}

// Close stops accepting messages. The log itself is owned by the module lifecycle.
func (p *LogPublisher) Close() error {
	p.closed.Store(true)
	return nil
}
