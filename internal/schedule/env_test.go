package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/cache"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/payroll"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/testfixtures"
)

const testDate = "2025-03-10"

type testEnv struct {
	repos    *repository.Repositories
	clock    *testfixtures.Clock
	pub      *testfixtures.Publisher
	game     *testfixtures.Gamification
	mr       *miniredis.Miniredis
	markers  *cache.Markers
	locker   *cache.RedisLocker
	deps     service.Deps
	sessions *service.SessionService
	presence *service.PresenceService
	lunch    *service.LunchService
	worktime *service.WorktimeService
	absence  *service.AbsenceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	policy := service.DefaultPolicy()
	policy.Location = time.UTC

	_, repos := testfixtures.NewRepositories(t)
	mr, client := testfixtures.NewRedis(t)
	env := &testEnv{
		repos:   repos,
		clock:   testfixtures.NewClock(testfixtures.ReferenceTime()),
		pub:     &testfixtures.Publisher{},
		game:    &testfixtures.Gamification{},
		mr:      mr,
		markers: cache.NewMarkers(client),
		locker:  cache.NewRedisLocker(client),
	}
	env.deps = service.Deps{
		Repos:        repos,
		Publisher:    env.pub,
		Gamification: env.game,
		Clock:        env.clock,
		Policy:       policy,
	}

	geofence := service.NewGeofenceEvaluator(nil)
	env.sessions = service.NewSessionService(env.deps, geofence)
	env.presence = service.NewPresenceService(env.deps, geofence)
	env.lunch = service.NewLunchService(env.deps, env.sessions)
	env.sessions.Observe(env.lunch)
	env.worktime = service.NewWorktimeService(env.deps, payroll.NewCalculator(nil), env.lunch, nil)
	env.absence = service.NewAbsenceService(env.deps, repos.Schedule)
	return env
}

func (e *testEnv) sweeper(locker Locker) *AutoCheckoutSweeper {
	return NewAutoCheckoutSweeper(e.deps, e.sessions, e.presence, locker)
}

func (e *testEnv) seed(t *testing.T, name string) (*model.Worker, *model.Site) {
	t.Helper()
	w := testfixtures.SeedWorker(t, e.repos, name, "applicator")
	s := testfixtures.SeedSite(t, e.repos, "Residencial Jardins", testfixtures.SiteCenter, 70, false)
	return w, s
}

func (e *testEnv) reading(meters float64, gps bool) service.Reading {
	p := testfixtures.NorthOf(testfixtures.SiteCenter, meters)
	return service.Reading{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   5,
		GPSEnabled: gps,
		Timestamp:  e.clock.Now(),
	}
}

func (e *testEnv) open(t *testing.T, workerID, siteID int64) *model.WorkSession {
	t.Helper()
	s, err := e.sessions.OpenSession(context.Background(), service.OpenRequest{
		WorkerID: workerID,
		SiteID:   siteID,
		Position: e.reading(10, true),
	})
	require.NoError(t, err)
	return s
}
