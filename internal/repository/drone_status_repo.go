package repository

import (
	"context"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// StatusFilters 状态查询过滤器
type StatusFilters struct {
	DroneID      string
	FlightStatus string
	StartTime    *time.Time
	EndTime      *time.Time
}

// DroneStatusRepository 无人机状态遥测Repository接口
type DroneStatusRepository interface {
	InsertStatus(ctx context.Context, status *domain.DroneStatus) (int64, error)
	ListStatus(ctx context.Context, filters StatusFilters, page, size int) ([]*domain.DroneStatus, int, error)
	GetLatestStatus(ctx context.Context, droneID string) (*domain.DroneStatus, error)
	ListLatestStatus(ctx context.Context) ([]*domain.DroneStatus, error)

	// 归档表只读查询
	ListArchivedStatus(ctx context.Context, filters StatusFilters, page, size int) ([]*domain.DroneStatusArchive, int, error)
	// FetchArchivedBatterySeries 按时间升序取某机的归档电量序列（统计用，不分页）
	FetchArchivedBatterySeries(ctx context.Context, droneID string, start, end time.Time, limit int) ([]*domain.DroneStatusArchive, error)

	// ArchiveBatch 把 timestamp < cutoff 的热表行移入归档表（单事务）
	ArchiveBatch(ctx context.Context, cutoff time.Time, batchID string, limit int) (*ArchiveBatchResult, error)
}
