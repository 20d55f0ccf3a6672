package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const maxBackoff = 30 * time.Second

// StartRoomAssignedConsumer connects to RabbitMQ, declares queueName
// (durable) and hands every message to sink.  It reconnects with
// exponential backoff whenever the broker goes away and only returns once
// ctx is cancelled.  Messages the sink rejects are nacked without requeue
// so a poison message cannot spin the loop.
func StartRoomAssignedConsumer(ctx context.Context, url, queueName string, sink Sink, log logrus.FieldLogger) error {
	if queueName == "" {
		queueName = DefaultRoomAssignedQueue
	}
	log = log.WithField("queue", queueName)

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("room-consumer: failed to dial broker; retrying in %s", backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect
		log.Info("room-consumer: connected")

		err = consumeLoop(ctx, conn, queueName, sink, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("room-consumer: consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, sink Sink, log logrus.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("room-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "queue declare")
	}

	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue consume")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(d.Body, sink); err != nil {
				log.WithError(err).Error("room-consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(body []byte, sink Sink) error {
	var ev RoomAssignedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	if ev.UserID == "" || ev.RoomNumber < 1 {
		return errors.Errorf("malformed event: user_id=%q room=%d", ev.UserID, ev.RoomNumber)
	}
	return sink.Deliver(ev)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
