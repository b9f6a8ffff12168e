package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
)

const closeTimeout = 15 * time.Second

// Close 逆序关闭：先断开 MQ，停止接收位置事件，最后关闭数据库
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	closeBackends(ctx, backends)
}

func closeBackends(ctx context.Context, bs []backend) {
	log := logger.Named("storage")
	for i := len(bs) - 1; i >= 0; i-- {
		started := time.Now()
		if err := bs[i].close(ctx); err != nil {
			log.Error("Failed to close storage backend", zap.String("backend", bs[i].name), zap.Error(err))
			continue
		}
		log.Info("Storage backend closed",
			zap.String("backend", bs[i].name),
			zap.Duration("took", time.Since(started)),
		)
	}
}
