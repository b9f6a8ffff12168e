package mq

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	mqotel "github.com/RodrigoCConte/monofloor-admin-sub002/pkg/mq"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 取消或 channel 关闭。
// SkipMessageError 直接 ack；其他错误首次重新入队，重投后仍失败进入死信。
func Consume(ctx context.Context, opts ConsumeOptions) error {
	c := Connection()
	if c == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log := logger.Named("rabbitmq").With(
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
	)
	log.Info("Started consuming messages", zap.Int("prefetch_count", opts.PrefetchCount))

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopped consuming messages")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", opts.Queue)
			}

			msgCtx, span := mqotel.StartConsume(ctx, opts.Queue, msg)
			err := opts.Handler(msgCtx, msg.Body)

			var skip *errors.SkipMessageError
			switch {
			case err == nil:
				mqotel.End(span, nil)
				_ = msg.Ack(false)
			case stderrors.As(err, &skip):
				mqotel.End(span, nil)
				log.Debug("Message skipped", zap.String("message_id", msg.MessageId), zap.String("reason", skip.Reason))
				_ = msg.Ack(false)
			default:
				mqotel.End(span, err)
				log.Error("Failed to process message",
					zap.String("message_id", msg.MessageId),
					zap.Bool("redelivered", msg.Redelivered),
					zap.Error(err),
				)
				_ = msg.Nack(false, !msg.Redelivered)
			}
		}
	}
}
