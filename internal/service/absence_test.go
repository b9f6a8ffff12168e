package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/testfixtures"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

func scheduleTask(t *testing.T, env *testEnv, workerID, siteID int64, start time.Time, d time.Duration) {
	t.Helper()
	require.NoError(t, env.repos.Schedule.Create(context.Background(), &model.ScheduledAssignment{
		WorkerID: workerID,
		SiteID:   siteID,
		TaskRef:  "task-1",
		StartsAt: start,
		EndsAt:   start.Add(d),
	}))
}

func TestDetectAbsencesUnreported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	scheduleTask(t, env, w.ID, site.ID, testfixtures.ReferenceTime(), 8*time.Hour)
	env.clock.Advance(12 * time.Hour)

	report, err := env.absence.DetectAbsences(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Unreported)

	records, err := env.absence.ListAbsences(ctx, w.ID, testDate, testDate)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.AbsenceKindUnreported, records[0].Kind)
	assert.Equal(t, env.absence.Policy.AbsenceUnreportedXP, records[0].XPPenalty)
	assert.True(t, records[0].MultiplierReset)

	// 再次执行不会重复扣分
	report, err = env.absence.DetectAbsences(ctx, testDate)
	require.NoError(t, err)
	assert.Zero(t, report.Inserted)

	require.Len(t, env.game.Penalties(), 1)
	assert.Equal(t, []int64{w.ID}, env.game.Resets())
}

func TestDetectAbsencesNotified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	scheduleTask(t, env, w.ID, site.ID, testfixtures.ReferenceTime(), 8*time.Hour)

	notice, err := env.absence.ReportAbsence(ctx, w.ID, testDate, "consulta medica")
	require.NoError(t, err)
	assert.Equal(t, "consulta medica", notice.Reason)

	env.clock.Advance(12 * time.Hour)
	report, err := env.absence.DetectAbsences(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)

	records, err := env.absence.ListAbsences(ctx, w.ID, testDate, testDate)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.AbsenceKindNotified, records[0].Kind)
	assert.Equal(t, "consulta medica", records[0].Reason)
	assert.Zero(t, records[0].XPPenalty)
	assert.False(t, records[0].MultiplierReset)

	assert.Empty(t, env.game.Penalties())
	assert.Empty(t, env.game.Resets())
}

func TestDetectAbsencesSkipsAttendedAndFutureTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	start := testfixtures.ReferenceTime()

	scheduleTask(t, env, w.ID, site.ID, start, 4*time.Hour)
	testfixtures.SeedClosedSession(t, env.repos, w.ID, site.ID, start.Add(time.Hour), 2*time.Hour)
	scheduleTask(t, env, w.ID, site.ID, start.Add(10*time.Hour), 2*time.Hour)

	env.clock.Advance(6 * time.Hour)
	report, err := env.absence.DetectAbsences(ctx, testDate)
	require.NoError(t, err)
	assert.Zero(t, report.Inserted)
	assert.Equal(t, 1, report.Processed)
}

func TestReportAbsenceOverridesReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, _ := env.seed(t)

	_, err := env.absence.ReportAbsence(ctx, w.ID, testDate, "chuva")
	require.NoError(t, err)
	notice, err := env.absence.ReportAbsence(ctx, w.ID, testDate, "  doente  ")
	require.NoError(t, err)
	assert.Equal(t, "doente", notice.Reason)

	_, err = env.absence.ReportAbsence(ctx, w.ID, testDate, " ")
	assert.ErrorIs(t, err, errors.InvalidRequest)
	_, err = env.absence.ReportAbsence(ctx, w.ID, "amanha", "chuva")
	assert.ErrorIs(t, err, errors.DateInvalid)
	_, err = env.absence.ReportAbsence(ctx, 9999, testDate, "chuva")
	assert.ErrorIs(t, err, errors.WorkerNotFound)
}

func TestListAbsencesRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, site := env.seed(t)
	other := testfixtures.SeedWorker(t, env.repos, "Bruno", "applicator")
	scheduleTask(t, env, w.ID, site.ID, testfixtures.ReferenceTime(), 8*time.Hour)
	scheduleTask(t, env, other.ID, site.ID, testfixtures.ReferenceTime(), 8*time.Hour)
	env.clock.Advance(12 * time.Hour)

	_, err := env.absence.DetectAbsences(ctx, testDate)
	require.NoError(t, err)

	records, err := env.absence.ListAbsences(ctx, w.ID, "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, w.ID, records[0].WorkerID)

	records, err = env.absence.ListAbsences(ctx, w.ID, "2025-03-11", "2025-03-31")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = env.absence.ListAbsences(ctx, w.ID, "2025-03-31", "2025-03-01")
	assert.ErrorIs(t, err, errors.InvalidRequest)
	_, err = env.absence.ListAbsences(ctx, w.ID, "2025-01-01", "2025-06-01")
	assert.ErrorIs(t, err, errors.InvalidRequest)
	_, err = env.absence.ListAbsences(ctx, w.ID, "march", "2025-03-31")
	assert.ErrorIs(t, err, errors.DateInvalid)
}
