package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/testfixtures"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

func TestPresenceSaveKeepsConcurrentMiss(t *testing.T) {
	_, repos := testfixtures.NewRepositories(t)
	ctx := context.Background()
	w := testfixtures.SeedWorker(t, repos, "Ana", "applicator")
	seen := testfixtures.ReferenceTime()

	require.NoError(t, repos.Presence.Save(ctx, &model.PresenceSnapshot{
		WorkerID:   w.ID,
		Online:     true,
		LastSeenAt: seen,
		AreaStatus: model.AreaStatusUnknown,
	}, nil))

	prev, err := repos.Presence.Get(ctx, w.ID)
	require.NoError(t, err)

	// 巡检在读取之后累加了一次
	misses, ok, err := repos.Presence.IncrementMisses(ctx, w.ID, seen)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, misses)

	next := *prev
	next.GPSEnabled = false
	next.LastSeenAt = seen.Add(30 * time.Second)
	err = repos.Presence.Save(ctx, &next, prev)
	assert.ErrorIs(t, err, repository.ErrSnapshotChanged)

	current, err := repos.Presence.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.ConsecutiveMisses)
	assert.True(t, current.LastSeenAt.Equal(seen))

	// 基于最新快照重试成功
	next = *current
	next.LastSeenAt = seen.Add(30 * time.Second)
	require.NoError(t, repos.Presence.Save(ctx, &next, current))

	current, err = repos.Presence.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.ConsecutiveMisses)
	assert.True(t, current.LastSeenAt.Equal(seen.Add(30*time.Second)))
}

func TestSummaryReplaceAdjustsWorkerTotals(t *testing.T) {
	_, repos := testfixtures.NewRepositories(t)
	ctx := context.Background()
	w := testfixtures.SeedWorker(t, repos, "Ana", "applicator")

	summary := func(date, paid string) *model.DailyWorkSummary {
		return &model.DailyWorkSummary{
			WorkerID:   w.ID,
			WorkDate:   date,
			Role:       w.Role,
			PaidHours:  decimal.RequireFromString(paid),
			ComputedAt: testfixtures.ReferenceTime(),
		}
	}
	totals := func() string {
		worker, err := repos.Workers.Get(ctx, w.ID)
		require.NoError(t, err)
		return worker.TotalHours.StringFixed(2)
	}

	require.NoError(t, repos.Summaries.Replace(ctx, summary("2025-03-10", "5.25")))
	assert.Equal(t, "5.25", totals())

	require.NoError(t, repos.Summaries.Replace(ctx, summary("2025-03-10", "4.75")))
	assert.Equal(t, "4.75", totals())

	require.NoError(t, repos.Summaries.Replace(ctx, summary("2025-03-11", "8")))
	assert.Equal(t, "12.75", totals())

	rows, err := repos.Summaries.ListForWorker(ctx, w.ID, "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-10", rows[0].WorkDate)

	// 累计值被外部修正后，再次下调不会变成负数
	w.TotalHours = decimal.RequireFromString("1")
	require.NoError(t, repos.Workers.Update(ctx, w))
	require.NoError(t, repos.Summaries.Replace(ctx, summary("2025-03-11", "2")))
	assert.Equal(t, "0.00", totals())

	err = repos.Summaries.Replace(ctx, &model.DailyWorkSummary{
		WorkerID:   w.ID + 999,
		WorkDate:   "2025-03-10",
		Role:       w.Role,
		PaidHours:  decimal.NewFromInt(3),
		ComputedAt: testfixtures.ReferenceTime(),
	})
	assert.ErrorIs(t, err, errors.WorkerNotFound)
}
