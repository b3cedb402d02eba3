package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// fakeStatusRepo 状态 Repository 测试替身
type fakeStatusRepo struct {
	repository.DroneStatusRepository

	inserted []*domain.DroneStatus
	series   []*domain.DroneStatusArchive
}

func (f *fakeStatusRepo) InsertStatus(_ context.Context, status *domain.DroneStatus) (int64, error) {
	f.inserted = append(f.inserted, status)
	return int64(len(f.inserted)), nil
}

func (f *fakeStatusRepo) FetchArchivedBatterySeries(_ context.Context, _ string, _, _ time.Time, _ int) ([]*domain.DroneStatusArchive, error) {
	return f.series, nil
}

func batterySample(battery float64, ts time.Time) *domain.DroneStatusArchive {
	return &domain.DroneStatusArchive{
		DroneStatus: domain.DroneStatus{
			DroneID:      "drone-001",
			FlightStatus: domain.FlightStatusFlying,
			BatteryLevel: battery,
			Timestamp:    ts,
		},
	}
}

func TestIngestStatus_Validation(t *testing.T) {
	svc := NewDroneStatusCommandsSvc(&fakeStatusRepo{}, zap.NewNop())

	_, err := svc.IngestStatus(context.Background(), IngestStatusRequest{
		DroneID:      "drone-001",
		FlightStatus: "warp_drive",
		BatteryLevel: 50,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid flight_status")

	_, err = svc.IngestStatus(context.Background(), IngestStatusRequest{
		DroneID:      "drone-001",
		FlightStatus: domain.FlightStatusFlying,
		BatteryLevel: 140,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "battery_level out of range")
}

func TestIngestStatus_DefaultsConnected(t *testing.T) {
	repo := &fakeStatusRepo{}
	svc := NewDroneStatusCommandsSvc(repo, zap.NewNop())

	_, err := svc.IngestStatus(context.Background(), IngestStatusRequest{
		DroneID:      "drone-001",
		FlightStatus: domain.FlightStatusHovering,
		BatteryLevel: 64,
	})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	require.True(t, repo.inserted[0].IsConnected)
	require.False(t, repo.inserted[0].Timestamp.IsZero())
}

func TestBatteryStatistics(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := &fakeStatusRepo{
		series: []*domain.DroneStatusArchive{
			batterySample(90, base),
			batterySample(75, base.Add(30*time.Minute)),
			batterySample(60, base.Add(time.Hour)),
		},
	}
	queries := NewDroneStatusQueriesSvc(repo, zap.NewNop())

	stats, err := queries.BatteryStatistics(context.Background(), "drone-001", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, stats.SampleCount)
	require.Equal(t, 90.0, stats.FirstBattery)
	require.Equal(t, 60.0, stats.LastBattery)
	require.Equal(t, 60.0, stats.MinBattery)
	require.Equal(t, 90.0, stats.MaxBattery)
	// 一小时掉电 30% -> 30%/h，剩余 60% 续航约 2h
	require.InDelta(t, 30.0, stats.ConsumptionRatePerHour, 0.001)
	require.InDelta(t, 2.0, stats.FlightTimeEstimateHours, 0.001)
}

func TestBatteryStatistics_Empty(t *testing.T) {
	queries := NewDroneStatusQueriesSvc(&fakeStatusRepo{}, zap.NewNop())

	start := time.Now().Add(-time.Hour)
	stats, err := queries.BatteryStatistics(context.Background(), "drone-404", start, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, stats.SampleCount)
	require.Equal(t, 0.0, stats.ConsumptionRatePerHour)
}
