package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/config"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "STOPPED"
	}
}

var (
	ErrIllegalState   = errors.New("consumer: illegal state transition")
	ErrConsumerClosed = errors.New("consumer: already stopped, create a new one")
)

// Consumer tails both topics from the latest position and routes every record.
//
// Lifecycle: Stopped -> Starting -> Running -> Stopping -> Stopped. The final Stopped is
// terminal; a stopped consumer cannot be started again.
type Consumer struct {
	state  atomic.Int32
	closed atomic.Bool

	router *message.Router
	sub    message.Subscriber
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan error
}

// NewConsumer builds the router and registers the topic handlers; nothing is read until Start.
func NewConsumer(cfg config.ConsumerConfig, handler *EventHandler, sub message.Subscriber, wlogger watermill.LoggerAdapter, logger *slog.Logger) (*Consumer, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wlogger)
	if err != nil {
		return nil, fmt.Errorf("consumer: router: %w", err)
	}
	handler.RegisterHandlers(router, sub, cfg.HandlerTimeout)

	return &Consumer{
		router: router,
		sub:    sub,
		logger: logger.With("component", "consumer"),
		done:   make(chan error, 1),
	}, nil
}

func (c *Consumer) State() State { return State(c.state.Load()) }

// Ready reports whether records are being consumed.
func (c *Consumer) Ready() bool { return c.State() == StateRunning }

// Start opens the tails and returns once every handler is subscribed. ctx bounds the
// start-up only; the consumer keeps running until Stop.
func (c *Consumer) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConsumerClosed
	}
	if !c.transition(StateStopped, StateStarting) {
		return fmt.Errorf("%w: start from %s", ErrIllegalState, c.State())
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	go func() {
		c.done <- c.router.Run(runCtx)
	}()

	select {
	case <-c.router.Running():
		c.state.Store(int32(StateRunning))
		c.logger.Info("CONSUMER_STARTED")
		return nil
	case err := <-c.done:
		cancel()
		c.terminate()
		if err == nil {
			err = errors.New("router exited before running")
		}
		return fmt.Errorf("consumer: start: %w", err)
	case <-ctx.Done():
		c.state.Store(int32(StateStopping))
		c.shutdown()
		return ctx.Err()
	}
}

// Stop halts new reads and gives in-flight records until the close timeout to finish.
func (c *Consumer) Stop() error {
	if !c.transition(StateRunning, StateStopping) {
		if c.closed.Load() {
			return ErrConsumerClosed
		}
		return fmt.Errorf("%w: stop from %s", ErrIllegalState, c.State())
	}
	c.logger.Info("CONSUMER_STOPPING")

	err := c.shutdown()
	c.logger.Info("CONSUMER_STOPPED")
	return err
}

func (c *Consumer) shutdown() error {
	// [BEST_EFFORT_DRAIN] Router.Close waits at most CloseTimeout for running handlers.
	err := c.router.Close()
	c.cancel()
	if cerr := c.sub.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if rerr := <-c.done; rerr != nil && err == nil {
		err = rerr
	}
	c.terminate()
	return err
}

func (c *Consumer) terminate() {
	c.closed.Store(true)
	c.state.Store(int32(StateStopped))
}

func (c *Consumer) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}
