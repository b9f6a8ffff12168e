package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/cache"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/snowflake"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/mq"
)

// PublishFunc 与 mq.Publish 同签名，测试中替换为内存实现
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

const (
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// EventPublisher 把引擎事件发到 presence.events 交换机，连续失败时熔断
type EventPublisher struct {
	publish  PublishFunc
	exchange string
	breaker  *cache.CircuitBreaker
	clock    clock.Clock
	logger   *zap.Logger
}

// NewEventPublisher publish 为 nil 时使用 mq.Publish
func NewEventPublisher(publish PublishFunc, clk clock.Clock) *EventPublisher {
	if publish == nil {
		publish = mq.Publish
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &EventPublisher{
		publish:  publish,
		exchange: mq.EventsExchange,
		breaker:  cache.NewCircuitBreaker("event_publisher", breakerMaxFailures, breakerResetTimeout),
		clock:    clk,
		logger:   logger.Named("publisher"),
	}
}

// Publish 包装成 EventMessage 信封后发布，topic 即 routing key
func (p *EventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	messageID, err := snowflake.NextMessageID("evt")
	if err != nil {
		p.logger.Error("Failed to generate message ID",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to generate message ID: %w", err)
	}

	msg := model.EventMessage{
		Payload:    payload,
		MessageID:  messageID,
		EventKey:   topic,
		OccurredAt: p.clock.Now().UTC().Format(time.RFC3339),
	}

	err = p.breaker.Call(ctx, func(ctx context.Context) error {
		return p.publish(ctx, p.exchange, topic, messageID, msg)
	})
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("message_id", messageID),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	p.logger.Debug("Published event",
		zap.String("message_id", messageID),
		zap.String("topic", topic),
	)
	return nil
}

// GamificationPublisher 积分系统的异步客户端，扣分与倍率重置都走事件总线
type GamificationPublisher struct {
	events *EventPublisher
}

func NewGamificationPublisher(events *EventPublisher) *GamificationPublisher {
	return &GamificationPublisher{events: events}
}

func (g *GamificationPublisher) ApplyPenalty(ctx context.Context, workerID int64, amount int, reason string) error {
	return g.events.Publish(ctx, model.TopicGamificationPenalty, model.PenaltyEvent{
		WorkerID: workerID,
		Amount:   amount,
		Reason:   reason,
	})
}

func (g *GamificationPublisher) ResetMultiplier(ctx context.Context, workerID int64) error {
	return g.events.Publish(ctx, model.TopicGamificationMultReset, model.MultiplierResetEvent{WorkerID: workerID})
}
