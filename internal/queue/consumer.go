package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/mq"
)

// PositionRecorder 由 service.PresenceService 实现
type PositionRecorder interface {
	RecordPosition(ctx context.Context, workerID int64, r service.Reading) (*service.PositionResult, error)
}

// MessageMarker 消息幂等标记，由 cache.Markers 实现
type MessageMarker interface {
	TryMarkMessageProcessing(ctx context.Context, messageID string) (bool, error)
	UnmarkMessageProcessing(ctx context.Context, messageID string) error
	MarkMessageProcessed(ctx context.Context, messageID string) error
}

// PositionHandler 消费设备网关转发的定位点
type PositionHandler struct {
	presence PositionRecorder
	markers  MessageMarker
	logger   *zap.Logger
}

func NewPositionHandler(presence PositionRecorder, markers MessageMarker) *PositionHandler {
	return &PositionHandler{
		presence: presence,
		markers:  markers,
		logger:   logger.Named("position_consumer"),
	}
}

// Handle 定位非法时确认并丢弃，其他失败取消标记后交给 mq 重投
func (h *PositionHandler) Handle(ctx context.Context, body []byte) error {
	var msg model.PositionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return &errors.SkipMessageError{Reason: fmt.Sprintf("malformed position message: %v", err)}
	}

	if msg.MessageID != "" {
		first, err := h.markers.TryMarkMessageProcessing(ctx, msg.MessageID)
		if err != nil {
			// 标记失败时仍处理，定位写入本身对过期点是幂等的
			h.logger.Warn("Failed to check message processed status",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		} else if !first {
			h.logger.Info("Message already processed or being processed, skipping",
				zap.String("message_id", msg.MessageID),
				zap.Int64("worker_id", msg.WorkerID),
			)
			return &errors.SkipMessageError{Reason: fmt.Sprintf("Message %s already processed", msg.MessageID)}
		}
	}

	res, err := h.presence.RecordPosition(ctx, msg.WorkerID, service.Reading{
		Timestamp:  msg.RecordedAt,
		Latitude:   msg.Latitude,
		Longitude:  msg.Longitude,
		Accuracy:   msg.Accuracy,
		GPSEnabled: msg.GPSEnabled,
	})
	if err != nil {
		if stderrors.Is(err, errors.PositionInvalid) {
			h.logger.Warn("Dropping invalid position",
				zap.String("message_id", msg.MessageID),
				zap.Int64("worker_id", msg.WorkerID),
				zap.Error(err),
			)
			h.markProcessed(ctx, msg.MessageID)
			return &errors.SkipMessageError{Reason: err.Error()}
		}
		if msg.MessageID != "" {
			if uerr := h.markers.UnmarkMessageProcessing(ctx, msg.MessageID); uerr != nil {
				h.logger.Warn("Failed to unmark message", zap.String("message_id", msg.MessageID), zap.Error(uerr))
			}
		}
		return fmt.Errorf("failed to record position for worker %d: %w", msg.WorkerID, err)
	}

	h.logger.Debug("Processed position",
		zap.String("message_id", msg.MessageID),
		zap.Int64("worker_id", msg.WorkerID),
		zap.Bool("accepted", res.Accepted),
		zap.String("transition", res.Transition),
	)
	h.markProcessed(ctx, msg.MessageID)
	return nil
}

func (h *PositionHandler) markProcessed(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if err := h.markers.MarkMessageProcessed(ctx, messageID); err != nil {
		h.logger.Warn("Failed to mark message as processed",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}

// StartPositionConsumer 阻塞直到 ctx 取消
func StartPositionConsumer(ctx context.Context, h *PositionHandler) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.PositionsQueue,
		ConsumerTag:   "position_consumer",
		PrefetchCount: 50,
		Handler:       h.Handle,
	})
}

// StartAllConsumers 启动所有消费者，全部退出后返回
func StartAllConsumers(ctx context.Context, positions *PositionHandler) {
	var wg sync.WaitGroup

	consumers := []struct {
		name     string
		consumer func(context.Context) error
	}{
		{"positions", func(ctx context.Context) error { return StartPositionConsumer(ctx, positions) }},
	}

	for _, c := range consumers {
		wg.Add(1)
		go func(name string, consumer func(context.Context) error) {
			defer wg.Done()

			logger.Named("worker").Info("Starting consumer",
				zap.String("consumer_name", name),
			)

			if err := consumer(ctx); err != nil {
				logger.Named("worker").Error("Consumer exited with error",
					zap.String("consumer_name", name),
					zap.Error(err),
				)
			}
		}(c.name, c.consumer)
	}

	wg.Wait()

	logger.Named("worker").Info("All consumers stopped")
}
