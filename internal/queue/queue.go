package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

const (
	RenderQueueName = "render_jobs"
	ExchangeName    = "shortform"
)

// Handler processes one render delivered from the queue
type Handler func(ctx context.Context, render *models.Render) error

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New creates a new queue client and declares the render topology
func New(cfg config.QueueConfig) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &Queue{conn: conn, channel: channel}
	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) declare() error {
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		RenderQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = q.channel.QueueBind(
		RenderQueueName,
		RenderQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return q.SetupDeadLetterQueue()
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishRender enqueues a render for the workers
func (q *Queue) PublishRender(ctx context.Context, render *models.Render) error {
	return q.publish(ctx, ExchangeName, RenderQueueName, render, nil, "")
}

func (q *Queue) publish(ctx context.Context, exchange, key string, render *models.Render, headers amqp.Table, expiration string) error {
	body, err := json.Marshal(render)
	if err != nil {
		return fmt.Errorf("failed to marshal render: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   expiration,
			MessageId:    render.ID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish render %s to %s: %w", render.ID, key, err)
	}

	return nil
}

// ConsumeRenders delivers renders to handler one at a time until ctx is done.
// Deliveries are acknowledged once settled: failures are routed to the retry
// queue or the dead letter queue according to settle. Interrupted renders are
// nacked back onto the render queue.
func (q *Queue) ConsumeRenders(ctx context.Context, handler Handler) error {
	// Set QoS to limit concurrent processing
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		RenderQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("render consumer channel closed")
			}
			q.handle(ctx, msg, handler)
		}
	}
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var render models.Render
	if err := json.Unmarshal(msg.Body, &render); err != nil {
		log.Error().Err(err).Str("message_id", msg.MessageId).Msg("dropping malformed render message")
		msg.Nack(false, false)
		return
	}

	retries := retryCount(msg.Headers)
	err := handler(ctx, &render)

	var settleErr error
	switch action, delay := settle(err, retries); action {
	case actionRequeue:
		msg.Nack(false, true)
		return
	case actionRetry:
		settleErr = q.publishRetry(ctx, &render, retries, delay)
	case actionDeadLetter:
		settleErr = q.PublishToDeadLetterQueue(ctx, &render, err.Error())
	}

	if settleErr != nil {
		log.Error().Err(settleErr).Str("render_id", render.ID).Msg("failed to reroute render, requeueing")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(RenderQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
