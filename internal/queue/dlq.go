package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

const (
	DeadLetterQueueName    = "render_jobs_dlq"
	DeadLetterExchangeName = "shortform_dlq"
	RetryQueueName         = "render_jobs_retry"
	MaxRetries             = 5
)

// ErrSkip marks a render that needs no further handling even though it was not rendered
var ErrSkip = errors.New("render skipped")

// ErrRequeue hands the delivery back to the broker unchanged
var ErrRequeue = errors.New("render requeued")

// Delayed is implemented by errors that ask for the render to be retried later
type Delayed interface {
	RetryAfter() time.Duration
}

type action int

const (
	actionAck action = iota
	actionRetry
	actionDeadLetter
	actionRequeue
)

// settle decides what happens to a delivery once the handler returned err
func settle(err error, retries int) (action, time.Duration) {
	if err == nil || errors.Is(err, ErrSkip) {
		return actionAck, 0
	}
	if errors.Is(err, ErrRequeue) {
		return actionRequeue, 0
	}

	var delayed Delayed
	if errors.As(err, &delayed) {
		if retries >= MaxRetries {
			return actionDeadLetter, 0
		}
		delay := delayed.RetryAfter()
		if delay <= 0 {
			delay = calculateBackoffDelay(retries)
		}
		return actionRetry, delay
	}

	return actionDeadLetter, 0
}

func retryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// SetupDeadLetterQueue sets up the dead letter queue infrastructure
func (q *Queue) SetupDeadLetterQueue() error {
	// Declare dead letter exchange
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	// Declare dead letter queue
	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	// Bind DLQ to exchange
	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Expired retry messages flow back to the render queue. The delay is
	// set per message.
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": RenderQueueName,
	}

	_, err = q.channel.QueueDeclare(
		RetryQueueName,
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	return nil
}

// PublishToRetryQueue parks a render in the retry queue for delay, or for
// an exponential backoff when delay is zero.
func (q *Queue) PublishToRetryQueue(ctx context.Context, render *models.Render, retryCount int, delay time.Duration) error {
	if retryCount >= MaxRetries {
		return q.PublishToDeadLetterQueue(ctx, render, "max retries exceeded")
	}
	if delay <= 0 {
		delay = calculateBackoffDelay(retryCount)
	}
	return q.publishRetry(ctx, render, retryCount, delay)
}

func (q *Queue) publishRetry(ctx context.Context, render *models.Render, retryCount int, delay time.Duration) error {
	headers := amqp.Table{
		"x-retry-count": int32(retryCount + 1),
	}

	err := q.publish(ctx, "", RetryQueueName, render, headers, strconv.FormatInt(delay.Milliseconds(), 10))
	if err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	log.Info().
		Str("render_id", render.ID).
		Int("retry", retryCount+1).
		Dur("delay", delay).
		Msg("render queued for retry")
	return nil
}

// PublishToDeadLetterQueue publishes a failed render to the dead letter queue
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, render *models.Render, reason string) error {
	headers := amqp.Table{
		"x-failure-reason": reason,
		"x-failed-at":      time.Now().Format(time.RFC3339),
	}

	if err := q.publish(ctx, DeadLetterExchangeName, DeadLetterQueueName, render, headers, ""); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	log.Warn().Str("render_id", render.ID).Str("reason", reason).Msg("render moved to dead letter queue")
	return nil
}

// ConsumeDLQ consumes messages from the dead letter queue for manual processing
func (q *Queue) ConsumeDLQ(ctx context.Context, handler func(*models.Render, string) error) error {
	msgs, err := q.channel.Consume(
		DeadLetterQueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register DLQ consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var render models.Render
				if err := json.Unmarshal(msg.Body, &render); err != nil {
					msg.Nack(false, false)
					continue
				}

				reason := ""
				if val, ok := msg.Headers["x-failure-reason"].(string); ok {
					reason = val
				}

				if err := handler(&render, reason); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// RetryFromDLQ puts a dead-lettered render back on the render queue with a fresh retry budget
func (q *Queue) RetryFromDLQ(ctx context.Context, render *models.Render) error {
	render.Status = models.RenderStatusQueued
	render.ErrorMsg = ""
	return q.PublishRender(ctx, render)
}

// calculateBackoffDelay calculates exponential backoff delay
func calculateBackoffDelay(retryCount int) time.Duration {
	// Exponential backoff: 1min, 2min, 4min, 8min, 16min
	baseDelay := 1 * time.Minute
	delay := baseDelay * (1 << retryCount) // 2^retryCount

	// Cap at 1 hour
	if delay > 1*time.Hour {
		delay = 1 * time.Hour
	}

	return delay
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}
