package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/geo"
)

// SiteCenter 测试工地中心（圣保罗）
var SiteCenter = geo.Point{Latitude: -23.5505, Longitude: -46.6333}

// NorthOf 返回 center 以北约 meters 米的点
func NorthOf(center geo.Point, meters float64) geo.Point {
	return geo.Point{Latitude: center.Latitude + meters/111195.0, Longitude: center.Longitude}
}

func SeedWorker(t testing.TB, repos *repository.Repositories, name, role string) *model.Worker {
	t.Helper()
	w := &model.Worker{
		Name:        name,
		Role:        role,
		Status:      model.WorkerStatusActive,
		TotalHours:  decimal.Zero,
		TotalAreaM2: decimal.Zero,
	}
	require.NoError(t, repos.Workers.Create(context.Background(), w))
	return w
}

// SeedSite radius<=0 表示不设围栏
func SeedSite(t testing.TB, repos *repository.Repositories, name string, center geo.Point, radius float64, travel bool) *model.Site {
	t.Helper()
	s := &model.Site{Name: name, IsTravelMode: travel}
	if radius > 0 {
		lat, lng, r := center.Latitude, center.Longitude, radius
		s.Latitude, s.Longitude, s.RadiusMeters = &lat, &lng, &r
	}
	require.NoError(t, repos.Sites.Create(context.Background(), s))
	return s
}

// SeedClosedSession 直接写入一条已关闭的会话
func SeedClosedSession(t testing.TB, repos *repository.Repositories, workerID, siteID int64, openedAt time.Time, d time.Duration) *model.WorkSession {
	t.Helper()
	ctx := context.Background()

	s := &model.WorkSession{
		WorkerID:      workerID,
		SiteID:        siteID,
		OpenedAt:      openedAt,
		OpenLatitude:  SiteCenter.Latitude,
		OpenLongitude: SiteCenter.Longitude,
	}
	require.NoError(t, repos.Sessions.Create(ctx, s))

	closedAt := openedAt.Add(d)
	ok, err := repos.Sessions.Close(ctx, s.ID, repository.CloseParams{
		ClosedAt:    closedAt,
		Reason:      model.CloseReasonManual,
		HoursWorked: model.HoursBetween(openedAt, closedAt),
	})
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := repos.Sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	return stored
}
