package bootstrap

// 各进程入口共用的组装逻辑

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/cache"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/payroll"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/queue"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
)

const summaryCachePrefix = "summary"

// PolicyFromConfig 把环境变量配置转换为引擎阈值
func PolicyFromConfig(c *config.Config) service.Policy {
	p := service.DefaultPolicy()
	p.Location = c.Location()

	p.SweepInterval = c.SweepInterval
	p.GPSSilenceThreshold = c.GPSSilenceThreshold
	p.GPSConfirmMisses = c.GPSConfirmMisses
	p.MaxSessionDuration = c.MaxSessionDuration
	p.ManualPriorityWindow = c.ManualPriorityWindow
	p.GeofencePolicy = service.GeofencePolicy(c.GeofencePolicy)

	p.LunchPromptAfter = c.LunchPromptAfter
	p.LunchAlertMinutes = append([]int(nil), c.LunchAlertMinutes...)
	p.LunchTimeoutAfter = c.LunchTimeoutAfter
	p.BreakMandatoryHours = c.BreakMandatoryHours
	p.SkippedBreakXP = c.SkippedBreakXP

	p.LongBreakHours = c.LongBreakHours
	p.LongBreakInclusive = c.LongBreakInclusive
	p.LongBreakMinutes = c.LongBreakMinutes
	p.ShortBreakHours = c.ShortBreakHours
	p.ShortBreakMinutes = c.ShortBreakMinutes
	p.DailyNormalHours = c.DailyNormalHours

	p.AbsenceUnreportedXP = c.AbsenceUnreportedXP
	p.AbsenceNotifiedXP = c.AbsenceNotifiedXP
	return p
}

// Engine 组装好的服务与基础设施
type Engine struct {
	Deps     service.Deps
	Sessions *service.SessionService
	Presence *service.PresenceService
	Lunch    *service.LunchService
	Worktime *service.WorktimeService
	Absence  *service.AbsenceService
	Events   *queue.EventPublisher
	Markers  *cache.Markers
	Locker   *cache.RedisLocker
}

// Options publish 为 nil 时发往 RabbitMQ
type Options struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   goredis.Cmdable
	Publish queue.PublishFunc
	Clock   clock.Clock
	Logger  *zap.Logger
}

func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		opts.Config = &config.Cfg
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	rates, err := payroll.LoadRateTable(opts.Config.RateTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate table: %w", err)
	}

	events := queue.NewEventPublisher(opts.Publish, opts.Clock)
	repos := repository.New(opts.DB)
	deps := service.Deps{
		Repos:        repos,
		Publisher:    events,
		Gamification: queue.NewGamificationPublisher(events),
		Clock:        opts.Clock,
		Policy:       PolicyFromConfig(opts.Config),
		Logger:       opts.Logger,
	}

	geofence := service.NewGeofenceEvaluator(opts.Logger)
	e := &Engine{
		Deps:     deps,
		Sessions: service.NewSessionService(deps, geofence),
		Presence: service.NewPresenceService(deps, geofence),
		Events:   events,
		Markers:  cache.NewMarkers(opts.Redis),
		Locker:   cache.NewRedisLocker(opts.Redis),
	}
	e.Lunch = service.NewLunchService(deps, e.Sessions)
	e.Sessions.Observe(e.Lunch)
	e.Worktime = service.NewWorktimeService(deps, payroll.NewCalculator(rates), e.Lunch,
		cache.NewProtectedCache(opts.Redis, summaryCachePrefix, opts.Config.SummaryCacheTTL))
	e.Absence = service.NewAbsenceService(deps, repos.Schedule)

	opts.Logger.Info("Engine assembled",
		zap.String("workday_timezone", deps.Policy.Location.String()),
		zap.String("geofence_policy", string(deps.Policy.GeofencePolicy)),
		zap.String("currency", rates.Currency()),
		zap.Strings("roles", rates.Roles()),
	)
	return e, nil
}
