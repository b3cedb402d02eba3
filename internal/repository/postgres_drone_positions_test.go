package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

func newPositionsRepoMock(t *testing.T) (*PostgresDronePositionsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresDronePositionsRepository(db), mock
}

func TestInsertPosition_Validation(t *testing.T) {
	repo, _ := newPositionsRepoMock(t)

	_, err := repo.InsertPosition(context.Background(), &domain.DronePosition{
		Longitude: 121.5, Latitude: 25.0, Timestamp: time.Now(),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "drone_id is required")

	_, err = repo.InsertPosition(context.Background(), &domain.DronePosition{
		DroneID: "drone-001", Longitude: 121.5, Latitude: 25.0,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timestamp is required")
}

func TestGetLatestPosition(t *testing.T) {
	repo, mock := newPositionsRepoMock(t)

	ts := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM drone_positions`).
		WithArgs("drone-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "drone_id", "longitude", "latitude", "altitude",
			"speed", "heading", "battery_level", "signal_strength", "timestamp", "created_at",
		}).AddRow(
			int64(9), "drone-001", 121.565, 25.033, 87.2,
			5.4, 180.0, 76.5, int64(-61), ts, ts,
		))

	p, err := repo.GetLatestPosition(context.Background(), "drone-001")
	require.NoError(t, err)
	require.Equal(t, "drone-001", p.DroneID)
	require.Equal(t, 121.565, p.Longitude)
	require.True(t, p.Speed.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPositions_TimeWindow(t *testing.T) {
	repo, mock := newPositionsRepoMock(t)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM drone_positions`).
		WithArgs("drone-001", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectQuery(`SELECT .+ FROM drone_positions .+ ORDER BY timestamp DESC`).
		WithArgs("drone-001", start, end, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "drone_id", "longitude", "latitude", "altitude",
			"speed", "heading", "battery_level", "signal_strength", "timestamp", "created_at",
		}))

	positions, total, err := repo.ListPositions(context.Background(), TelemetryFilters{
		DroneID:   "drone-001",
		StartTime: &start,
		EndTime:   &end,
	}, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 0, total)
	require.Empty(t, positions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionsArchiveBatch_NothingToMove(t *testing.T) {
	repo, mock := newPositionsRepoMock(t)

	cutoff := time.Date(2026, 7, 25, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WITH moved AS`).
		WithArgs(cutoff, "b2d4e6f8-0000-0000-0000-000000000002").
		WillReturnRows(sqlmock.NewRows([]string{"count", "min", "max"}).
			AddRow(0, cutoff, cutoff))

	result, err := repo.ArchiveBatch(context.Background(), cutoff, "b2d4e6f8-0000-0000-0000-000000000002", 50000)
	require.NoError(t, err)
	require.Equal(t, 0, result.Moved)
	require.NoError(t, mock.ExpectationsWereMet())
}
