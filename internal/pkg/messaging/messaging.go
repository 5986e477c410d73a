package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned for features the selected broker lacks.
	ErrUnsupported = errors.New("messaging: unsupported operation")
	// ErrTopicRequired is returned when the destination or source is empty.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrHandlerRequired is returned when Consume gets a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
	// ErrGroupRequired is returned by brokers that need a consumer group.
	ErrGroupRequired = errors.New("messaging: consumer group is required")
)

// Messaging publishes and consumes messages.
type Messaging interface {
	io.Closer

	// Publish sends msg to destination.
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)

	// Consume blocks delivering messages of source to handler until ctx is
	// done or the client is closed.
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one message. With auto ack enabled a nil error acks and a
// non-nil error nacks.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to publish.
type OutgoingMessage struct {
	Body []byte
	// Key is the partition key on Kafka.
	Key     []byte
	Headers []Header
	// Delay defers delivery on NSQ; other brokers reject it.
	Delay time.Duration
}

// Header is a message header. NSQ drops headers.
type Header struct {
	Key   string
	Value []byte
}

// PublishResult describes an accepted publish.
type PublishResult struct {
	Topic     string
	Timestamp time.Time
}

// Message is a received message.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	Topic() string
	Timestamp() time.Time

	// Ack confirms processing. Nack asks for redelivery where the broker can.
	// Only the first of Ack or Nack has an effect.
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// HeaderValue returns the first header of msg named key.
func HeaderValue(msg Message, key string) (string, bool) {
	for _, h := range msg.Headers() {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
