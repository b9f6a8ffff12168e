package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/testfixtures"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

// 距离 100 米、半径 70 米：flag 策略下照常开工，快照标记为围栏外，不发事件
func TestOpenSessionOutsideGeofenceIsFlagged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	session := env.open(t, w.ID, site.ID, 100)

	assert.True(t, session.OpenedOutOfArea)
	require.NotNil(t, session.OpenDistance)
	assert.InDelta(t, 100, *session.OpenDistance, 0.5)

	snap, err := env.presence.Snapshot(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, model.AreaStatusOut, snap.AreaStatus)
	require.NotNil(t, snap.SessionID)
	assert.Equal(t, session.ID, *snap.SessionID)

	assert.Empty(t, env.pub.Events())
}

func TestOpenSessionRejectPolicy(t *testing.T) {
	env := newTestEnv(t, func(p *Policy) { p.GeofencePolicy = GeofencePolicyReject })
	ctx := context.Background()
	w, site := env.seed(t)

	_, err := env.sessions.OpenSession(ctx, OpenRequest{WorkerID: w.ID, SiteID: site.ID, Position: env.readingAt(100)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.GeofenceOutside)

	var outside *errors.OutsideGeofenceError
	require.ErrorAs(t, err, &outside)
	assert.InDelta(t, 70, outside.RadiusMeters, 1e-9)

	_, err = env.sessions.GetOpenSession(ctx, w.ID)
	assert.ErrorIs(t, err, errors.NoOpenSession)

	// 围栏内可以正常开工
	session := env.open(t, w.ID, site.ID, 10)
	assert.False(t, session.OpenedOutOfArea)
}

func TestOpenSessionAlreadyOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	other := testfixtures.SeedSite(t, env.repos, "Galpao Norte", testfixtures.SiteCenter, 0, false)

	first := env.open(t, w.ID, site.ID, 0)

	_, err := env.sessions.OpenSession(ctx, OpenRequest{WorkerID: w.ID, SiteID: other.ID, Position: env.readingAt(0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.SessionAlreadyOpen)
	assert.EqualError(t, err, "already active at site Residencial Jardins")

	var open *errors.AlreadyOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, first.ID, open.SessionID)
}

func TestOpenSessionRequiresActiveWorkerAndSite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	_, err := env.sessions.OpenSession(ctx, OpenRequest{WorkerID: w.ID, SiteID: 9999, Position: env.readingAt(0)})
	assert.ErrorIs(t, err, errors.SiteNotFound)

	_, err = env.sessions.OpenSession(ctx, OpenRequest{WorkerID: 9999, SiteID: site.ID, Position: env.readingAt(0)})
	assert.ErrorIs(t, err, errors.WorkerNotFound)

	inactive := testfixtures.SeedWorker(t, env.repos, "Bruno", "assistant")
	inactive.Status = model.WorkerStatusInactive
	require.NoError(t, env.repos.Workers.Update(ctx, inactive))
	_, err = env.sessions.OpenSession(ctx, OpenRequest{WorkerID: inactive.ID, SiteID: site.ID, Position: env.readingAt(0)})
	assert.ErrorIs(t, err, errors.WorkerInactive)

	_, err = env.sessions.OpenSession(ctx, OpenRequest{WorkerID: w.ID, SiteID: site.ID})
	assert.ErrorIs(t, err, errors.InvalidRequest)
}

func TestOpenSessionWithoutGeofence(t *testing.T) {
	env := newTestEnv(t)
	w := testfixtures.SeedWorker(t, env.repos, "Ana", "applicator")
	site := testfixtures.SeedSite(t, env.repos, "Sem coordenadas", testfixtures.SiteCenter, 0, false)

	session := env.open(t, w.ID, site.ID, 5000)
	assert.False(t, session.OpenedOutOfArea)
	assert.Nil(t, session.OpenDistance)
}

func TestConcurrentOpenYieldsSingleSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	const attempts = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.sessions.OpenSession(ctx, OpenRequest{WorkerID: w.ID, SiteID: site.ID, Position: env.readingAt(0)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if stderrors.Is(err, errors.SessionAlreadyOpen) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	open, err := env.repos.Sessions.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCloseSessionComputesHours(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	session := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(2*time.Hour + 30*time.Minute)

	pos := env.readingAt(20)
	closed, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual, Position: &pos})
	require.NoError(t, err)

	assert.False(t, closed.IsOpen())
	assert.Equal(t, model.CloseReasonManual, closed.CloseReason)
	assert.False(t, closed.IsAutoClosed)
	assert.True(t, decimal.RequireFromString("2.50").Equal(closed.Hours()))
	require.NotNil(t, closed.CloseDistance)
	assert.InDelta(t, 20, *closed.CloseDistance, 0.5)

	events := env.pub.Topic(model.TopicSessionClosed)
	require.Len(t, events, 1)
	ev := events[0].Payload.(*model.SessionClosedEvent)
	assert.Equal(t, model.CloseReasonManual, ev.Reason)
	assert.Equal(t, "2.50", ev.HoursWorked)

	snap, err := env.presence.Snapshot(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.SessionID)
	assert.Equal(t, model.AreaStatusUnknown, snap.AreaStatus)

	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.SessionNotOpen)
	var notOpen *errors.NotOpenError
	require.ErrorAs(t, err, &notOpen)
	assert.False(t, notOpen.Conflict)
}

func TestCloseSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: 1, Reason: "COFFEE"})
	assert.ErrorIs(t, err, errors.CloseReasonInvalid)

	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: 404, Reason: model.CloseReasonManual})
	assert.ErrorIs(t, err, errors.SessionNotFound)
}

func TestHoursWorkedNeverExceedsElapsed(t *testing.T) {
	durations := []time.Duration{0, 59 * time.Second, 90*time.Minute + 17*time.Second, 9*time.Hour + 30*time.Minute, 15*time.Hour + 59*time.Minute + 59*time.Second}

	for _, d := range durations {
		t.Run(d.String(), func(t *testing.T) {
			env := newTestEnv(t)
			w, site := env.seed(t)

			session := env.open(t, w.ID, site.ID, 0)
			env.clock.Advance(d)
			closed, err := env.sessions.CloseSession(context.Background(), CloseRequest{SessionID: session.ID, Reason: model.CloseReasonEndOfShift})
			require.NoError(t, err)

			hours := closed.Hours().InexactFloat64()
			assert.GreaterOrEqual(t, hours, 0.0)
			assert.LessOrEqual(t, hours, d.Hours()+0.005)
			assert.True(t, closed.IsAutoClosed)
		})
	}
}

func TestCloseSessionBeforeOpenTimeClampsToZero(t *testing.T) {
	env := newTestEnv(t)
	w, site := env.seed(t)

	session := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(-time.Minute)

	closed, err := env.sessions.CloseSession(context.Background(), CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)
	assert.True(t, closed.Hours().IsZero())
}

func TestManualCloseClaimsRecentAutomaticClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	session := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(time.Hour)
	auto, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonGPSLost})
	require.NoError(t, err)
	assert.True(t, auto.IsAutoClosed)

	env.clock.Advance(10 * time.Second)
	claimed, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	assert.Equal(t, model.CloseReasonManual, claimed.CloseReason)
	assert.False(t, claimed.IsAutoClosed)
	assert.True(t, auto.Hours().Equal(claimed.Hours()))
	assert.True(t, auto.ClosedAt.Equal(*claimed.ClosedAt))

	events := env.pub.Topic(model.TopicSessionClosed)
	require.Len(t, events, 2)
	assert.Equal(t, model.CloseReasonManual, events[1].Payload.(*model.SessionClosedEvent).Reason)

	// 已被手动接管，再次手动下班视为已关闭
	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	assert.ErrorIs(t, err, errors.SessionNotOpen)
}

func TestManualCloseOutsidePriorityWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	session := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(time.Hour)
	_, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonGPSLost})
	require.NoError(t, err)

	env.clock.Advance(env.sessions.Policy.ManualPriorityWindow + time.Second)
	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	assert.ErrorIs(t, err, errors.SessionNotOpen)

	stored, err := env.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CloseReasonGPSLost, stored.CloseReason)
}

func TestConcurrentCloseClosesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	session := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(3 * time.Hour)

	reasons := []model.CloseReason{model.CloseReasonGPSLost, model.CloseReasonInactivity, model.CloseReasonEndOfShift}
	errs := make([]error, len(reasons))
	var wg sync.WaitGroup
	for i, reason := range reasons {
		i, reason := i, reason
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: reason})
		}()
	}
	wg.Wait()

	closed := 0
	for _, err := range errs {
		if err == nil {
			closed++
			continue
		}
		assert.ErrorIs(t, err, errors.SessionNotOpen)
	}
	assert.Equal(t, 1, closed)
	assert.Len(t, env.pub.Topic(model.TopicSessionClosed), 1)
}

func TestCloseOpenSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	w2 := testfixtures.SeedWorker(t, env.repos, "Caio", "assistant")

	env.open(t, w.ID, site.ID, 0)
	env.open(t, w2.ID, site.ID, 0)
	env.clock.Advance(8 * time.Hour)

	report, err := env.sessions.CloseOpenSessions(ctx, model.CloseReasonEndOfShift)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Closed)
	assert.Zero(t, report.Failed())
	assert.NotEmpty(t, report.RunID)

	open, err := env.repos.Sessions.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}
