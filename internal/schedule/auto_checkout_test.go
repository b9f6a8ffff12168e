package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
)

// 65 秒无定位、30 秒一次扫描、确认阈值 2：第二次静默扫描关闭
func TestSweepClosesSilentSessionOnSecondMiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t, "Ana")
	session := env.open(t, w.ID, site.ID)
	sweeper := env.sweeper(nil)

	env.clock.Advance(30 * time.Second)
	report, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Silent)

	env.clock.Advance(35 * time.Second)
	report, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Silent)
	assert.Empty(t, report.Closed)

	open, err := env.sessions.GetOpenSession(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, open.ID)

	env.clock.Advance(30 * time.Second)
	report, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Closed[model.CloseReasonGPSLost])
	assert.Zero(t, report.Failed())

	closed, err := env.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())
	assert.Equal(t, model.CloseReasonGPSLost, closed.CloseReason)
	assert.True(t, closed.IsAutoClosed)

	snap, err := env.presence.Snapshot(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, snap.Online)
	assert.Nil(t, snap.SessionID)

	events := env.pub.Topic(model.TopicSessionClosed)
	require.Len(t, events, 1)
	assert.Equal(t, model.CloseReasonGPSLost, events[0].Payload.(*model.SessionClosedEvent).Reason)
}

func TestSweepResetsMissesWhenSignalReturns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t, "Bruno")
	env.open(t, w.ID, site.ID)
	sweeper := env.sweeper(nil)

	env.clock.Advance(65 * time.Second)
	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	snap, err := env.presence.Snapshot(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ConsecutiveMisses)

	_, err = env.presence.RecordPosition(ctx, w.ID, env.reading(10, true))
	require.NoError(t, err)

	env.clock.Advance(30 * time.Second)
	report, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Silent)
	assert.Empty(t, report.Closed)

	snap, err = env.presence.Snapshot(ctx, w.ID)
	require.NoError(t, err)
	assert.Zero(t, snap.ConsecutiveMisses)

	open, err := env.sessions.GetOpenSession(ctx, w.ID)
	require.NoError(t, err)
	assert.NotNil(t, open)
}

func TestSweepTreatsDisabledGPSAsSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t, "Carla")
	session := env.open(t, w.ID, site.ID)
	sweeper := env.sweeper(nil)

	env.clock.Advance(5 * time.Second)
	_, err := env.presence.RecordPosition(ctx, w.ID, env.reading(0, false))
	require.NoError(t, err)

	env.clock.Advance(5 * time.Second)
	_, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	env.clock.Advance(30 * time.Second)
	report, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Closed[model.CloseReasonGPSLost])

	closed, err := env.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CloseReasonGPSLost, closed.CloseReason)
}

func TestSweepClosesLongSessionsForInactivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t, "Diego")
	session := env.open(t, w.ID, site.ID)
	sweeper := env.sweeper(nil)

	// 持续有定位，只有时长超限
	for i := 0; i < 4; i++ {
		env.clock.Advance(4*time.Hour + time.Minute)
		_, err := env.presence.RecordPosition(ctx, w.ID, env.reading(10, true))
		require.NoError(t, err)
	}

	report, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Closed[model.CloseReasonInactivity])

	closed, err := env.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CloseReasonInactivity, closed.CloseReason)
	assert.Equal(t, "16.07", closed.Hours().StringFixed(2))
}

func TestSweepManualCloseInsideWindowWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t, "Elisa")
	session := env.open(t, w.ID, site.ID)
	sweeper := env.sweeper(nil)

	env.clock.Advance(65 * time.Second)
	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	env.clock.Advance(30 * time.Second)
	_, err = sweeper.Sweep(ctx)
	require.NoError(t, err)

	env.clock.Advance(10 * time.Second)
	claimed, err := env.sessions.CloseSession(ctx, service.CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)
	assert.Equal(t, model.CloseReasonManual, claimed.CloseReason)
	assert.False(t, claimed.IsAutoClosed)
}

func TestSweepSkippedWhileAnotherReplicaHoldsLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t, "Fabio")
	env.open(t, w.ID, site.ID)

	a := env.sweeper(env.locker)
	b := env.sweeper(env.locker)

	env.clock.Advance(65 * time.Second)
	report, err := a.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Silent)

	// 同一周期内的第二个副本不会重复计数
	report, err = b.Sweep(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	snap, err := env.presence.Snapshot(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ConsecutiveMisses)

	env.mr.FastForward(30 * time.Second)
	env.clock.Advance(30 * time.Second)
	report, err = b.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Closed[model.CloseReasonGPSLost])
}

func TestSweepWithoutOpenSessions(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.sweeper(nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.NotEmpty(t, report.RunID)
}
