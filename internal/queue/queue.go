// internal/queue/queue.go
package queue

import (
	"context"
	"encoding/json"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// JobQueueName is the broker queue carrying dispatch nudges.
const JobQueueName = "dispatch_jobs"

type jobMessage struct {
	JobID int `json:"job_id"`
}

// Publisher pushes freshly enqueued job ids to the broker so a worker can
// claim them immediately instead of waiting for its next poll tick. The
// durable queue in Postgres remains the source of truth; losing a nudge only
// costs latency.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(JobQueueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) PublishJob(jobID int) error {
	body, err := json.Marshal(jobMessage{JobID: jobID})
	if err != nil {
		return err
	}
	return p.ch.Publish("", JobQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (p *Publisher) Close() {
	p.ch.Close()
	p.conn.Close()
}

// Consumer feeds nudges to a handler. Bad payloads are acked and dropped; a
// handler error nacks without requeue — the poll loop will pick the job up.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	Log  *zap.Logger
}

func NewConsumer(url string, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(JobQueueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, Log: log}, nil
}

func (c *Consumer) Consume(ctx context.Context, handler func(jobID int) error) error {
	deliveries, err := c.ch.Consume(JobQueueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var msg jobMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				c.Log.Warn("invalid nudge payload", zap.Error(err))
				d.Ack(false)
				continue
			}
			if err := handler(msg.JobID); err != nil {
				c.Log.Warn("nudge handling failed", zap.Int("job_id", msg.JobID), zap.Error(err))
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}

func (c *Consumer) Close() {
	c.ch.Close()
	c.conn.Close()
}
