package repository

import (
	"context"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// TelemetryFilters 遥测查询通用过滤器（热表与归档表共用）
type TelemetryFilters struct {
	DroneID   string
	StartTime *time.Time
	EndTime   *time.Time
}

// ArchiveBatchResult 单次归档批次的结果
type ArchiveBatchResult struct {
	Moved      int       // 移动行数
	RangeStart time.Time // 被归档行的最早采样时刻
	RangeEnd   time.Time // 被归档行的最晚采样时刻
}

// DronePositionsRepository 无人机位置遥测Repository接口
type DronePositionsRepository interface {
	InsertPosition(ctx context.Context, pos *domain.DronePosition) (int64, error)
	ListPositions(ctx context.Context, filters TelemetryFilters, page, size int) ([]*domain.DronePosition, int, error)
	GetLatestPosition(ctx context.Context, droneID string) (*domain.DronePosition, error)
	ListLatestPositions(ctx context.Context) ([]*domain.DronePosition, error)

	// 归档表只读查询
	ListArchivedPositions(ctx context.Context, filters TelemetryFilters, page, size int) ([]*domain.DronePositionArchive, int, error)
	// FetchArchivedTrajectory 按时间升序取某机的归档轨迹（统计/导出用，不分页）
	FetchArchivedTrajectory(ctx context.Context, droneID string, start, end time.Time, limit int) ([]*domain.DronePositionArchive, error)

	// ArchiveBatch 把 timestamp < cutoff 的热表行移入归档表（单事务）
	ArchiveBatch(ctx context.Context, cutoff time.Time, batchID string, limit int) (*ArchiveBatchResult, error)
}
