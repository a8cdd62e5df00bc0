// Package bus connects the task monitor to a NATS message bus.
//
// The Bridge subscribes to activity observations published by a classifier
// and hands them to a Sink in arrival order. It also implements
// monitor.Publisher, sending every TaskStatus to the status subject as JSON.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nomis52/taskmonitor/messages"
)

// ErrAlreadyStarted is returned when Start is called on a running Bridge.
var ErrAlreadyStarted = errors.New("bridge already started")

// Sink receives decoded observations.
type Sink interface {
	Observe(ctx context.Context, obs messages.ActivityObservation) error
}

// Subjects names the subjects the Bridge uses.
type Subjects struct {
	Detections string
	Status     string
	// QueueGroup is optional. When set, monitors in the same group share the
	// detection stream instead of each receiving every message.
	QueueGroup string
}

// Bridge moves messages between the bus and a task session.
type Bridge struct {
	conn     Conn
	subjects Subjects
	logger   *slog.Logger

	mu  sync.Mutex
	sub Subscription
}

// NewBridge creates a Bridge on conn.
func NewBridge(conn Conn, subjects Subjects, logger *slog.Logger) *Bridge {
	return &Bridge{
		conn:     conn,
		subjects: subjects,
		logger:   logger.With("component", "bus"),
	}
}

// Start subscribes to the detections subject and forwards observations to
// sink. ctx is passed to sink for every message.
func (b *Bridge) Start(ctx context.Context, sink Sink) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		return ErrAlreadyStarted
	}

	handler := func(msg *nats.Msg) {
		b.handle(ctx, sink, msg)
	}

	var (
		sub Subscription
		err error
	)
	if b.subjects.QueueGroup != "" {
		sub, err = b.conn.QueueSubscribe(b.subjects.Detections, b.subjects.QueueGroup, handler)
	} else {
		sub, err = b.conn.Subscribe(b.subjects.Detections, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.subjects.Detections, err)
	}
	b.sub = sub

	b.logger.Info("listening for observations",
		"subject", b.subjects.Detections,
		"queue_group", b.subjects.QueueGroup,
	)
	return nil
}

// Stop unsubscribes from the detections subject.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub == nil {
		return nil
	}
	err := b.sub.Unsubscribe()
	b.sub = nil
	return err
}

// Publish sends status to the status subject.
func (b *Bridge) Publish(ctx context.Context, status messages.TaskStatus) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := b.conn.Publish(b.subjects.Status, data); err != nil {
		return fmt.Errorf("publish to %s: %w", b.subjects.Status, err)
	}
	return nil
}

func (b *Bridge) handle(ctx context.Context, sink Sink, msg *nats.Msg) {
	var obs messages.ActivityObservation
	if err := json.Unmarshal(msg.Data, &obs); err != nil {
		b.logger.Warn("dropping malformed observation", "subject", msg.Subject, "error", err)
		return
	}
	if err := sink.Observe(ctx, obs); err != nil {
		b.logger.Error("failed to handle observation", "labels", obs.LabelCandidates, "error", err)
	}
}
