package repository

import (
	"context"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// ArchiveTaskFilters 归档任务查询过滤器
type ArchiveTaskFilters struct {
	TableName string
	Status    string
	StartTime *time.Time
	EndTime   *time.Time
}

// ArchiveTasksRepository 归档任务簿记Repository接口
type ArchiveTasksRepository interface {
	GetTask(ctx context.Context, id int64) (*domain.ArchiveTask, error)
	GetTaskByBatchID(ctx context.Context, batchID string) (*domain.ArchiveTask, error)
	ListTasks(ctx context.Context, filters ArchiveTaskFilters, page, size int) ([]*domain.ArchiveTask, int, error)

	// CreateTask 批次开始时落一行 running 状态记录
	CreateTask(ctx context.Context, task *domain.ArchiveTask) (int64, error)
	// CompleteTask 批次成功：回填行数与实际时间窗
	CompleteTask(ctx context.Context, id int64, totalRecords int, rangeStart, rangeEnd time.Time) error
	// FailTask 批次失败：记录错误信息
	FailTask(ctx context.Context, id int64, errorMessage string) error
}
