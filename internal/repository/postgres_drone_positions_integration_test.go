// +build integration

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// 清理测试机身的遥测与归档数据
func cleanupTestPositions(db *sql.DB, droneID string) {
	db.Exec(`DELETE FROM drone_positions_archive WHERE drone_id = $1`, droneID)
	db.Exec(`DELETE FROM drone_positions WHERE drone_id = $1`, droneID)
}

func TestPostgresDronePositionsRepository_InsertAndLatest(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	const droneID = "it-drone-latest"
	cleanupTestPositions(db, droneID)
	defer cleanupTestPositions(db, droneID)

	repo := NewPostgresDronePositionsRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		pos := &domain.DronePosition{
			DroneID:   droneID,
			Longitude: 121.5 + float64(i)*0.001,
			Latitude:  25.03,
			Altitude:  50 + float64(i),
			Speed:     sql.NullFloat64{Float64: 5.5, Valid: true},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := repo.InsertPosition(ctx, pos); err != nil {
			t.Fatalf("Failed to insert position %d: %v", i, err)
		}
	}

	latest, err := repo.GetLatestPosition(ctx, droneID)
	if err != nil {
		t.Fatalf("Failed to get latest position: %v", err)
	}
	if !latest.Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Expected latest timestamp %v, got %v", base.Add(2*time.Minute), latest.Timestamp)
	}
	if latest.Altitude != 52 {
		t.Errorf("Expected altitude 52, got %f", latest.Altitude)
	}
}

// 热表插入 → 归档批次 → 归档表可读的完整回路
func TestPostgresDronePositionsRepository_ArchiveBatchRoundtrip(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	const droneID = "it-drone-archive"
	cleanupTestPositions(db, droneID)
	defer cleanupTestPositions(db, droneID)

	repo := NewPostgresDronePositionsRepository(db)
	ctx := context.Background()

	cutoff := time.Now().UTC().Truncate(time.Second)
	oldTs := cutoff.Add(-2 * time.Hour)

	// 两条 cutoff 之前的行应被归档，一条之后的行应留在热表
	for _, ts := range []time.Time{oldTs, oldTs.Add(30 * time.Minute), cutoff.Add(time.Hour)} {
		_, err := repo.InsertPosition(ctx, &domain.DronePosition{
			DroneID:   droneID,
			Longitude: 121.5,
			Latitude:  25.03,
			Altitude:  60,
			Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Failed to insert position at %v: %v", ts, err)
		}
	}

	batchID := uuid.NewString()
	result, err := repo.ArchiveBatch(ctx, cutoff, batchID, 1000)
	if err != nil {
		t.Fatalf("Failed to archive batch: %v", err)
	}
	if result.Moved != 2 {
		t.Fatalf("Expected 2 rows moved, got %d", result.Moved)
	}
	if !result.RangeStart.Equal(oldTs) {
		t.Errorf("Expected range start %v, got %v", oldTs, result.RangeStart)
	}
	if !result.RangeEnd.Equal(oldTs.Add(30 * time.Minute)) {
		t.Errorf("Expected range end %v, got %v", oldTs.Add(30*time.Minute), result.RangeEnd)
	}

	// 热表只剩 cutoff 之后那条
	rows, total, err := repo.ListPositions(ctx, TelemetryFilters{DroneID: droneID}, 1, 10)
	if err != nil {
		t.Fatalf("Failed to list hot positions: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Errorf("Expected 1 hot row, got total=%d len=%d", total, len(rows))
	}

	// 归档表按批次号可查到两条
	archived, archivedTotal, err := repo.ListArchivedPositions(ctx, TelemetryFilters{DroneID: droneID}, 1, 10)
	if err != nil {
		t.Fatalf("Failed to list archived positions: %v", err)
	}
	if archivedTotal != 2 {
		t.Errorf("Expected 2 archived rows, got %d", archivedTotal)
	}
	for _, row := range archived {
		if row.ArchiveBatchID != batchID {
			t.Errorf("Expected archive batch id %s, got %s", batchID, row.ArchiveBatchID)
		}
	}

	// 重复归档同一 cutoff 应为空批次
	empty, err := repo.ArchiveBatch(ctx, cutoff, uuid.NewString(), 1000)
	if err != nil {
		t.Fatalf("Failed to run empty archive batch: %v", err)
	}
	if empty.Moved != 0 {
		t.Errorf("Expected 0 rows moved on repeat, got %d", empty.Moved)
	}
}
