package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

func TestLunchPromptFiresOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	session := env.open(t, w.ID, site.ID, 0)

	env.clock.Advance(4*time.Hour - time.Minute)
	report, err := env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Prompted)

	rec, err := env.repos.Lunch.GetBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	env.clock.Advance(time.Minute)
	report, err = env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Prompted)

	env.clock.Advance(time.Minute)
	report, err = env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Prompted)

	rec, err = env.repos.Lunch.GetBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LunchStatePrompted, rec.State)
	assert.Equal(t, testDate, rec.WorkDate)
	assert.Len(t, env.pub.Topic(model.TopicLunchPrompt), 1)
}

func TestLunchAlertsEscalateWithoutRepeating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	env.open(t, w.ID, site.ID, 0)

	env.clock.Advance(4 * time.Hour)
	_, err := env.lunch.StartBreak(ctx, w.ID)
	require.NoError(t, err)

	env.clock.Advance(71 * time.Minute)
	report, err := env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Alerts)

	env.clock.Advance(20 * time.Minute)
	report, err = env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Alerts)

	report, err = env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Alerts)

	alerts := env.pub.Topic(model.TopicLunchAlert)
	require.Len(t, alerts, 3)
	var thresholds []int
	for _, a := range alerts {
		thresholds = append(thresholds, a.Payload.(*model.LunchAlertEvent).ThresholdMinutes)
	}
	assert.Equal(t, []int{70, 80, 90}, thresholds)
}

func TestLunchTimeoutClosesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	session := env.open(t, w.ID, site.ID, 0)

	env.clock.Advance(4 * time.Hour)
	_, err := env.lunch.StartBreak(ctx, w.ID)
	require.NoError(t, err)

	env.clock.Advance(121 * time.Minute)
	report, err := env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TimedOut)

	closed, err := env.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CloseReasonLunchTimeout, closed.CloseReason)
	assert.True(t, closed.IsAutoClosed)

	rec, err := env.repos.Lunch.GetBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LunchStateReturned, rec.State)
	require.NotNil(t, rec.BreakEnd)
	assert.True(t, closed.ClosedAt.Equal(*rec.BreakEnd))
	assert.NotNil(t, rec.FinalizedAt)
}

func TestLunchTimeoutDisabled(t *testing.T) {
	env := newTestEnv(t, func(p *Policy) { p.LunchTimeoutAfter = 0 })
	ctx := context.Background()
	w, site := env.seed(t)
	env.open(t, w.ID, site.ID, 0)

	_, err := env.lunch.StartBreak(ctx, w.ID)
	require.NoError(t, err)
	env.clock.Advance(5 * time.Hour)

	report, err := env.lunch.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.TimedOut)

	_, err = env.sessions.GetOpenSession(ctx, w.ID)
	assert.NoError(t, err)
}

func TestBreakTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	_, err := env.lunch.StartBreak(ctx, w.ID)
	assert.ErrorIs(t, err, errors.NoOpenSession)

	env.open(t, w.ID, site.ID, 0)

	_, err = env.lunch.EndBreak(ctx, w.ID)
	assert.ErrorIs(t, err, errors.LunchNotFound)

	env.clock.Advance(3 * time.Hour)
	rec, err := env.lunch.StartBreak(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LunchStateOnBreak, rec.State)

	_, err = env.lunch.StartBreak(ctx, w.ID)
	assert.ErrorIs(t, err, errors.LunchTransitionInvalid)

	env.clock.Advance(45 * time.Minute)
	rec, err = env.lunch.EndBreak(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LunchStateReturned, rec.State)
	assert.Equal(t, 45*time.Minute, rec.BreakDuration())

	_, err = env.lunch.EndBreak(ctx, w.ID)
	assert.ErrorIs(t, err, errors.LunchTransitionInvalid)

	minutes, err := env.lunch.BreakMinutes(ctx, w.ID, testDate)
	require.NoError(t, err)
	assert.Equal(t, 45, minutes)
}

func TestSessionCloseMarksSkippedBreak(t *testing.T) {
	tests := []struct {
		name    string
		shift   time.Duration
		skipped bool
	}{
		{"long shift without break", 6*time.Hour + 30*time.Minute, true},
		{"exactly mandatory hours", 6 * time.Hour, false},
		{"short shift", 3 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			w, site := env.seed(t)
			session := env.open(t, w.ID, site.ID, 0)

			env.clock.Advance(tt.shift)
			_, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
			require.NoError(t, err)

			rec, err := env.repos.Lunch.GetBySession(ctx, session.ID)
			require.NoError(t, err)
			if !tt.skipped {
				if rec != nil {
					assert.False(t, rec.Skipped)
				}
				return
			}
			require.NotNil(t, rec)
			assert.True(t, rec.Skipped)
			assert.Equal(t, model.LunchStateSkipped, rec.State)
			assert.NotNil(t, rec.FinalizedAt)
		})
	}
}

func TestSkippedBreakUsesDayTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	morning := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(4 * time.Hour)
	_, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: morning.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	rec, err := env.repos.Lunch.GetBySession(ctx, morning.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	env.clock.Advance(10 * time.Minute)
	afternoon := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(4 * time.Hour)
	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: afternoon.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	rec, err = env.repos.Lunch.GetBySession(ctx, afternoon.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Skipped)
	assert.Equal(t, model.LunchStateSkipped, rec.State)

	// 第三段会话不会再次标记
	env.clock.Advance(10 * time.Minute)
	evening := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(time.Hour)
	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: evening.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	report, err := env.lunch.ReviewSkippedBreaks(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Penalized)
	assert.Len(t, env.game.Penalties(), 1)
}

func TestBreakInEarlierSessionCoversDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)

	morning := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(3 * time.Hour)
	_, err := env.lunch.StartBreak(ctx, w.ID)
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	_, err = env.lunch.EndBreak(ctx, w.ID)
	require.NoError(t, err)
	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: morning.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	afternoon := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(4 * time.Hour)
	_, err = env.sessions.CloseSession(ctx, CloseRequest{SessionID: afternoon.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	rec, err := env.repos.Lunch.GetBySession(ctx, afternoon.ID)
	require.NoError(t, err)
	if rec != nil {
		assert.False(t, rec.Skipped)
	}

	report, err := env.lunch.ReviewSkippedBreaks(ctx, testDate)
	require.NoError(t, err)
	assert.Zero(t, report.Penalized)
}

func TestReviewSkippedBreaksPenalizesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	session := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(7 * time.Hour)
	_, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	env.game.Err = stderrors.New("gamification unavailable")
	report, err := env.lunch.ReviewSkippedBreaks(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed())
	assert.Zero(t, report.Penalized)

	env.game.Err = nil
	report, err = env.lunch.ReviewSkippedBreaks(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Penalized)

	report, err = env.lunch.ReviewSkippedBreaks(ctx, testDate)
	require.NoError(t, err)
	assert.Zero(t, report.Penalized)

	penalties := env.game.Penalties()
	require.Len(t, penalties, 1)
	assert.Equal(t, w.ID, penalties[0].WorkerID)
	assert.Equal(t, env.lunch.Policy.SkippedBreakXP, penalties[0].Amount)
	assert.Equal(t, "skipped_break", penalties[0].Reason)

	_, err = env.lunch.ReviewSkippedBreaks(ctx, "10/03/2025")
	assert.ErrorIs(t, err, errors.DateInvalid)
}

func TestAdjustBreakClearsSkippedBeforeReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	session := env.open(t, w.ID, site.ID, 0)
	start := env.clock.Now()
	env.clock.Advance(8 * time.Hour)
	_, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	breakStart := start.Add(4 * time.Hour)
	rec, err := env.lunch.AdjustBreak(ctx, session.ID, breakStart, breakStart.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, rec.Skipped)
	assert.True(t, rec.Adjusted)
	assert.Equal(t, model.LunchStateReturned, rec.State)

	report, err := env.lunch.ReviewSkippedBreaks(ctx, testDate)
	require.NoError(t, err)
	assert.Zero(t, report.Penalized)
	assert.Empty(t, env.game.Penalties())

	_, err = env.lunch.AdjustBreak(ctx, session.ID, breakStart, breakStart)
	assert.ErrorIs(t, err, errors.InvalidRequest)
}

func TestAdjustBreakAfterPenaltyIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	session := env.open(t, w.ID, site.ID, 0)
	env.clock.Advance(8 * time.Hour)
	_, err := env.sessions.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonManual})
	require.NoError(t, err)

	_, err = env.lunch.ReviewSkippedBreaks(ctx, testDate)
	require.NoError(t, err)

	start := env.clock.Now().Add(-4 * time.Hour)
	_, err = env.lunch.AdjustBreak(ctx, session.ID, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, errors.LunchTransitionInvalid)
}
