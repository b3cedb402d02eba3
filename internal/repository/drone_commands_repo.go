package repository

import (
	"context"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// CommandFilters 指令查询过滤器
type CommandFilters struct {
	DroneID     string
	CommandType string
	Status      string
	StartTime   *time.Time
	EndTime     *time.Time
}

// DroneCommandsRepository 无人机指令Repository接口
// 状态机：pending -> sent -> completed / failed
type DroneCommandsRepository interface {
	GetCommand(ctx context.Context, id int64) (*domain.DroneCommand, error)
	ListCommands(ctx context.Context, filters CommandFilters, page, size int) ([]*domain.DroneCommand, int, error)
	CreateCommand(ctx context.Context, cmd *domain.DroneCommand) (int64, error)

	// 状态流转（时间戳由各方法落库）
	MarkSent(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, completedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errorMessage string, failedAt time.Time) error

	// 归档表只读查询
	ListArchivedCommands(ctx context.Context, filters CommandFilters, page, size int) ([]*domain.DroneCommandArchive, int, error)

	// ArchiveBatch 把 issued_at < cutoff 的终态指令移入归档表（单事务）
	// pending/sent 状态的指令不归档
	ArchiveBatch(ctx context.Context, cutoff time.Time, batchID string, limit int) (*ArchiveBatchResult, error)
}
