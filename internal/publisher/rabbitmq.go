package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

const (
	// ExchangeName receives one message per finished judge call. Consumers
	// bind their own queues; the judge never reads from it.
	ExchangeName = "judge.events"
	exchangeType = "topic"

	// Reconnection settings
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	publishTimeout = 5 * time.Second
)

// Publisher announces finished judge calls.
type Publisher interface {
	Publish(ctx context.Context, event *domain.JudgeEvent) error
	Close() error
}

var (
	_ Publisher = (*rabbitPublisher)(nil)
	_ Publisher = NopPublisher{}
)

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.JudgeEvent) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

type rabbitPublisher struct {
	url    string
	logger *zap.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	confirm chan amqp.Confirmation
	closed  bool

	// publishMu pairs each publish with its confirmation.
	publishMu sync.Mutex
}

// NewRabbitMQPublisher connects, declares the events exchange and keeps the
// connection alive in the background.
func NewRabbitMQPublisher(url string, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:    url,
		logger: logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.watchConnection()

	return p, nil
}

func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, exchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.confirm = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized", zap.String("exchange", ExchangeName))
	return nil
}

// watchConnection monitors the connection and reconnects on failure.
func (p *rabbitPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		// Block until the connection closes
		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting...",
			zap.String("reason", reason.Error()),
		)

		p.mu.Lock()
		p.channel = nil
		p.mu.Unlock()

		delay := reconnectDelay
		for {
			p.mu.RLock()
			closed := p.closed
			p.mu.RUnlock()
			if closed {
				return
			}

			time.Sleep(delay)

			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
				delay = min(delay*2, maxReconnectDelay)
				continue
			}

			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

// RoutingKey is "judge.<verdict>" for finished judgements and
// "judge.error.<kind>" for calls that ended in an error envelope.
func RoutingKey(event *domain.JudgeEvent) string {
	if event.ErrorKind != "" {
		return "judge.error." + string(event.ErrorKind)
	}
	return "judge." + string(event.Verdict)
}

func (p *rabbitPublisher) Publish(ctx context.Context, event *domain.JudgeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.RLock()
	ch, confirm := p.channel, p.confirm
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	tag := ch.GetNextPublishSeqNo()
	err = ch.PublishWithContext(publishCtx,
		ExchangeName,
		RoutingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.SubmissionID,
			Timestamp:    event.FinishedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	if err := awaitConfirm(publishCtx, confirm, tag); err != nil {
		return fmt.Errorf("%w (submission_id=%s)", err, event.SubmissionID)
	}

	p.logger.Debug("Published judge event",
		zap.String("submission_id", event.SubmissionID),
		zap.Int("body_size", len(body)),
	)
	return nil
}

// awaitConfirm waits for the confirmation of delivery tag. Confirmations for
// earlier tags arrive late after a timed out publish and are skipped.
func awaitConfirm(ctx context.Context, confirm <-chan amqp.Confirmation, tag uint64) error {
	for {
		select {
		case ack, ok := <-confirm:
			if !ok {
				return fmt.Errorf("rabbitmq: channel closed before confirmation")
			}
			if ack.DeliveryTag < tag {
				continue
			}
			if !ack.Ack {
				return fmt.Errorf("rabbitmq: broker nacked event")
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq: publish confirmation timeout")
		}
	}
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
