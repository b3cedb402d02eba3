package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// fakePositionsRepo 位置 Repository 测试替身
type fakePositionsRepo struct {
	repository.DronePositionsRepository

	nextID     int64
	positions  []*domain.DronePosition
	trajectory []*domain.DronePositionArchive
}

func (f *fakePositionsRepo) InsertPosition(_ context.Context, pos *domain.DronePosition) (int64, error) {
	f.nextID++
	stored := *pos
	stored.ID = f.nextID
	f.positions = append(f.positions, &stored)
	return f.nextID, nil
}

func (f *fakePositionsRepo) GetLatestPosition(_ context.Context, droneID string) (*domain.DronePosition, error) {
	for i := len(f.positions) - 1; i >= 0; i-- {
		if f.positions[i].DroneID == droneID {
			return f.positions[i], nil
		}
	}
	return nil, fmt.Errorf("no position for drone: drone_id=%s", droneID)
}

func (f *fakePositionsRepo) FetchArchivedTrajectory(_ context.Context, droneID string, _, _ time.Time, _ int) ([]*domain.DronePositionArchive, error) {
	return f.trajectory, nil
}

func archivedPoint(droneID string, lat, lon, alt, speed float64, ts time.Time) *domain.DronePositionArchive {
	return &domain.DronePositionArchive{
		DronePosition: domain.DronePosition{
			DroneID:   droneID,
			Latitude:  lat,
			Longitude: lon,
			Altitude:  alt,
			Speed:     sql.NullFloat64{Float64: speed, Valid: true},
			Timestamp: ts,
		},
	}
}

func TestIngestPosition_RefreshesCache(t *testing.T) {
	repo := &fakePositionsRepo{}
	kv := newFakeKV()
	svc := NewDronePositionCommandsSvc(repo, kv, zap.NewNop())

	speed := 4.2
	id, err := svc.IngestPosition(context.Background(), IngestPositionRequest{
		DroneID:   "drone-001",
		Longitude: 121.565,
		Latitude:  25.033,
		Altitude:  50,
		Speed:     &speed,
		Timestamp: time.Now().UnixMilli(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	cached, err := kv.Get(context.Background(), latestPositionKeyPrefix+"drone-001")
	require.NoError(t, err)

	var view PositionView
	require.NoError(t, json.Unmarshal([]byte(cached), &view))
	require.Equal(t, "drone-001", view.DroneID)
	require.NotNil(t, view.Speed)
	require.Equal(t, 4.2, *view.Speed)
}

func TestIngestPosition_RejectsBadCoordinates(t *testing.T) {
	svc := NewDronePositionCommandsSvc(&fakePositionsRepo{}, newFakeKV(), zap.NewNop())

	_, err := svc.IngestPosition(context.Background(), IngestPositionRequest{
		DroneID:   "drone-001",
		Longitude: 181,
		Latitude:  25,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestGetLatestPosition_CacheHit(t *testing.T) {
	repo := &fakePositionsRepo{}
	kv := newFakeKV()
	queries := NewDronePositionQueriesSvc(repo, kv, zap.NewNop())
	commands := NewDronePositionCommandsSvc(repo, kv, zap.NewNop())

	_, err := commands.IngestPosition(context.Background(), IngestPositionRequest{
		DroneID:   "drone-001",
		Longitude: 121.565,
		Latitude:  25.033,
		Altitude:  50,
	})
	require.NoError(t, err)

	// 清空热表后缓存仍可命中
	repo.positions = nil
	view, err := queries.GetLatestPosition(context.Background(), "drone-001")
	require.NoError(t, err)
	require.Equal(t, "drone-001", view.DroneID)
}

func TestGetLatestPosition_CacheMissFallsBackToSQL(t *testing.T) {
	repo := &fakePositionsRepo{}
	kv := newFakeKV()
	queries := NewDronePositionQueriesSvc(repo, kv, zap.NewNop())

	_, err := repo.InsertPosition(context.Background(), &domain.DronePosition{
		DroneID:   "drone-002",
		Longitude: 120.3,
		Latitude:  23.5,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	view, err := queries.GetLatestPosition(context.Background(), "drone-002")
	require.NoError(t, err)
	require.Equal(t, "drone-002", view.DroneID)

	// 回源后缓存被回填
	_, err = kv.Get(context.Background(), latestPositionKeyPrefix+"drone-002")
	require.NoError(t, err)
}

func TestTrajectoryStatistics(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := &fakePositionsRepo{
		trajectory: []*domain.DronePositionArchive{
			archivedPoint("drone-001", 25.0000, 121.0000, 50, 5.0, base),
			archivedPoint("drone-001", 25.0090, 121.0000, 80, 7.0, base.Add(2*time.Minute)),
			archivedPoint("drone-001", 25.0180, 121.0000, 60, 6.0, base.Add(4*time.Minute)),
		},
	}
	queries := NewDronePositionQueriesSvc(repo, newFakeKV(), zap.NewNop())

	stats, err := queries.TrajectoryStatistics(context.Background(), "drone-001", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, stats.PointCount)
	// 纬度 0.009° ≈ 1001m，两段约 2002m
	require.InDelta(t, 2002, stats.TotalDistanceMeters, 10)
	require.Equal(t, 7.0, stats.MaxSpeed)
	require.InDelta(t, 6.0, stats.AvgSpeed, 0.001)
	require.Equal(t, 50.0, stats.MinAltitude)
	require.Equal(t, 80.0, stats.MaxAltitude)
	require.Equal(t, 240.0, stats.DurationSeconds)
}

func TestTrajectoryStatistics_Empty(t *testing.T) {
	queries := NewDronePositionQueriesSvc(&fakePositionsRepo{}, newFakeKV(), zap.NewNop())

	start := time.Now().Add(-time.Hour)
	stats, err := queries.TrajectoryStatistics(context.Background(), "drone-404", start, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, stats.PointCount)
	require.Equal(t, 0.0, stats.TotalDistanceMeters)
}

func TestHaversineMeters(t *testing.T) {
	// 台北 101 到台北车站约 5km
	d := haversineMeters(25.0340, 121.5645, 25.0478, 121.5170)
	require.InDelta(t, 5050, d, 300)
}
