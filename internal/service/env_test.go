package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/payroll"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/testfixtures"
)

const testDate = "2025-03-10"

type testEnv struct {
	repos    *repository.Repositories
	clock    *testfixtures.Clock
	pub      *testfixtures.Publisher
	game     *testfixtures.Gamification
	sessions *SessionService
	presence *PresenceService
	lunch    *LunchService
	worktime *WorktimeService
	absence  *AbsenceService
}

func newTestEnv(t *testing.T, tweak ...func(*Policy)) *testEnv {
	t.Helper()

	policy := DefaultPolicy()
	policy.Location = time.UTC
	for _, fn := range tweak {
		fn(&policy)
	}

	_, repos := testfixtures.NewRepositories(t)
	env := &testEnv{
		repos: repos,
		clock: testfixtures.NewClock(testfixtures.ReferenceTime()),
		pub:   &testfixtures.Publisher{},
		game:  &testfixtures.Gamification{},
	}
	deps := Deps{
		Repos:        repos,
		Publisher:    env.pub,
		Gamification: env.game,
		Clock:        env.clock,
		Policy:       policy,
	}

	geofence := NewGeofenceEvaluator(nil)
	env.sessions = NewSessionService(deps, geofence)
	env.presence = NewPresenceService(deps, geofence)
	env.lunch = NewLunchService(deps, env.sessions)
	env.sessions.Observe(env.lunch)
	env.worktime = NewWorktimeService(deps, payroll.NewCalculator(nil), env.lunch, nil)
	env.absence = NewAbsenceService(deps, repos.Schedule)
	return env
}

// seed 一个在职工人与一个半径 70 米的工地
func (e *testEnv) seed(t *testing.T) (*model.Worker, *model.Site) {
	t.Helper()
	w := testfixtures.SeedWorker(t, e.repos, "Ana", "applicator")
	s := testfixtures.SeedSite(t, e.repos, "Residencial Jardins", testfixtures.SiteCenter, 70, false)
	return w, s
}

// readingAt 当前时刻、距工地中心 meters 米的定位
func (e *testEnv) readingAt(meters float64) Reading {
	p := testfixtures.NorthOf(testfixtures.SiteCenter, meters)
	return Reading{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   5,
		GPSEnabled: true,
		Timestamp:  e.clock.Now(),
	}
}

func (e *testEnv) open(t *testing.T, workerID, siteID int64, meters float64) *model.WorkSession {
	t.Helper()
	s, err := e.sessions.OpenSession(context.Background(), OpenRequest{WorkerID: workerID, SiteID: siteID, Position: e.readingAt(meters)})
	require.NoError(t, err)
	return s
}
