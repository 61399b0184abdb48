package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultExchangeName is the exchange security events are published to.
	DefaultExchangeName = "gatehouse.security"

	// publishBuffer is how many events may queue before new ones are
	// dropped. Dropping is acceptable: events are advisory.
	publishBuffer = 256

	publishTimeout = 5 * time.Second
)

// AMQPSink publishes events to a RabbitMQ topic exchange, routed by
// event name. Emit never blocks; events beyond the buffer are dropped.
type AMQPSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewAMQPSink connects to RabbitMQ, declares the exchange, and starts
// the publish loop.
func NewAMQPSink(amqpURL string, log *zap.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		DefaultExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	s := &AMQPSink{
		conn:    conn,
		channel: ch,
		log:     log,
		events:  make(chan Event, publishBuffer),
		done:    make(chan struct{}),
	}
	go s.publishLoop()
	return s, nil
}

// Emit implements Sink. Fire-and-forget: a full buffer drops the event.
func (s *AMQPSink) Emit(e Event) {
	select {
	case s.events <- e:
	default:
		// Best-effort only; never back-pressure the request path.
		s.log.Debug("security_event_dropped", zap.String("event", e.Name))
	}
}

// Close stops the publish loop and closes the connection. Buffered
// events are flushed first.
func (s *AMQPSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.events)
		<-s.done
		err = s.conn.Close()
	})
	return err
}

func (s *AMQPSink) publishLoop() {
	defer close(s.done)
	for e := range s.events {
		if err := s.publish(e); err != nil {
			// Swallowed: observability failures never affect requests.
			s.log.Debug("security_event_publish_failed",
				zap.String("event", e.Name),
				zap.Error(err),
			)
		}
	}
}

func (s *AMQPSink) publish(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return s.channel.PublishWithContext(ctx,
		DefaultExchangeName,
		e.Name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
}
