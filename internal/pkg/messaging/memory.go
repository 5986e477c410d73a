package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// MemoryConfig configures the in-process broker.
type MemoryConfig struct {
	// Buffer is the per group queue length. Publish blocks when it is full.
	Buffer int
	// MaxAttempts bounds deliveries of a nacked message.
	MaxAttempts int
}

// Memory is an in-process broker. Messages published while a topic has no
// consumer are dropped, like core NATS.
type Memory struct {
	buffer      int
	maxAttempts int

	mu     sync.RWMutex
	topics map[string]map[string]*memoryGroup

	anon   atomic.Int64
	closed atomic.Bool
	done   chan struct{}
}

type memoryGroup struct {
	queue     chan *memoryMessage
	consumers int
}

// NewMemory returns an empty in-process broker.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &Memory{
		buffer:      cfg.Buffer,
		maxAttempts: cfg.MaxAttempts,
		topics:      make(map[string]map[string]*memoryGroup),
		done:        make(chan struct{}),
	}
}

// Close stops every consumer. Queued messages are discarded.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	close(m.done)
	return nil
}

// Publish enqueues one copy of msg per consumer group of destination.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}
	if m.closed.Load() {
		return PublishResult{}, io.ErrClosedPipe
	}

	m.mu.RLock()
	groups := make([]*memoryGroup, 0, len(m.topics[destination]))
	for _, g := range m.topics[destination] {
		groups = append(groups, g)
	}
	m.mu.RUnlock()

	now := time.Now()
	for _, g := range groups {
		mm := &memoryMessage{
			broker:    m,
			group:     g,
			topic:     destination,
			body:      msg.Body,
			key:       msg.Key,
			headers:   msg.Headers,
			timestamp: now,
			attempt:   1,
		}

		select {
		case g.queue <- mm:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		case <-m.done:
			return PublishResult{}, io.ErrClosedPipe
		}
	}

	return PublishResult{Topic: destination, Timestamp: now}, nil
}

// Consume joins the group of source and blocks until ctx is done or the
// broker is closed. Without WithGroup the consumer gets a private group.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := validateConsume(ctx, source, handler); err != nil {
		return err
	}
	if m.closed.Load() {
		return io.ErrClosedPipe
	}

	co := newConsumeOptions(opts...)
	group := co.group
	if group == "" {
		group = fmt.Sprintf("_anonymous_%d", m.anon.Inc())
	}

	g := m.join(source, group)
	defer m.leave(source, group)

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-m.done:
					return
				case mm := <-g.queue:
					if err := dispatch(ctx, DriverMemory, handler, mm, co.autoAck); err != nil {
						slog.ErrorContext(ctx, "memory broker failed to settle message", "topic", source, "error", err)
					}
				}
			}
		})
	}
	wg.Wait()

	return ctx.Err()
}

func (m *Memory) join(topic, group string) *memoryGroup {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups, ok := m.topics[topic]
	if !ok {
		groups = make(map[string]*memoryGroup)
		m.topics[topic] = groups
	}

	g, ok := groups[group]
	if !ok {
		g = &memoryGroup{queue: make(chan *memoryMessage, m.buffer)}
		groups[group] = g
	}
	g.consumers++

	return g
}

func (m *Memory) leave(topic, group string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.topics[topic][group]
	if !ok {
		return
	}

	g.consumers--
	if g.consumers > 0 {
		return
	}

	delete(m.topics[topic], group)
	if len(m.topics[topic]) == 0 {
		delete(m.topics, topic)
	}
}

type memoryMessage struct {
	responder

	broker    *Memory
	group     *memoryGroup
	topic     string
	body      []byte
	key       []byte
	headers   []Header
	timestamp time.Time
	attempt   int
}

func (mm *memoryMessage) Body() []byte         { return mm.body }
func (mm *memoryMessage) Key() []byte          { return mm.key }
func (mm *memoryMessage) Headers() []Header    { return mm.headers }
func (mm *memoryMessage) Topic() string        { return mm.topic }
func (mm *memoryMessage) Timestamp() time.Time { return mm.timestamp }

func (mm *memoryMessage) Ack(context.Context) error {
	mm.claim()
	return nil
}

// Nack requeues the message to its group until MaxAttempts is reached.
func (mm *memoryMessage) Nack(ctx context.Context) error {
	if !mm.claim() {
		return nil
	}

	if mm.attempt >= mm.broker.maxAttempts {
		slog.WarnContext(ctx, "memory broker dropped message after max attempts", "topic", mm.topic, "attempts", mm.attempt)
		return nil
	}

	retry := &memoryMessage{
		broker:    mm.broker,
		group:     mm.group,
		topic:     mm.topic,
		body:      mm.body,
		key:       mm.key,
		headers:   mm.headers,
		timestamp: mm.timestamp,
		attempt:   mm.attempt + 1,
	}

	select {
	case mm.group.queue <- retry:
		return nil
	default:
		return fmt.Errorf("messaging: memory queue of %s is full, message dropped", mm.topic)
	}
}
