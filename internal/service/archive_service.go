package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/models"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// ArchiveService 归档服务：热表 -> 归档表批次搬运 + 任务簿记
type ArchiveService interface {
	// RunTable 对单张热表执行一个归档批次
	RunTable(ctx context.Context, tableName, createdBy string) (*ArchiveTaskView, error)
	// RunAll 对全部热表各执行一个批次（调度器入口），单表失败不中断其余表
	RunAll(ctx context.Context, createdBy string) []*ArchiveTaskView

	GetTask(ctx context.Context, id int64) (*ArchiveTaskView, error)
	ListTasks(ctx context.Context, req ListArchiveTasksRequest) ([]*ArchiveTaskView, *models.Pagination, error)
}

// batchArchiver 三张热表 Repository 的归档入口签名一致
type batchArchiver func(ctx context.Context, cutoff time.Time, batchID string, limit int) (*repository.ArchiveBatchResult, error)

// archiveService 实现
type archiveService struct {
	tasksRepo  repository.ArchiveTasksRepository
	archivers  map[string]batchArchiver
	retention  time.Duration
	batchLimit int
	logger     *zap.Logger
}

// NewArchiveService 创建归档服务
func NewArchiveService(
	tasksRepo repository.ArchiveTasksRepository,
	positionsRepo repository.DronePositionsRepository,
	statusRepo repository.DroneStatusRepository,
	commandsRepo repository.DroneCommandsRepository,
	retention time.Duration,
	batchLimit int,
	logger *zap.Logger,
) ArchiveService {
	return &archiveService{
		tasksRepo: tasksRepo,
		archivers: map[string]batchArchiver{
			domain.ArchiveTablePositions: positionsRepo.ArchiveBatch,
			domain.ArchiveTableStatus:    statusRepo.ArchiveBatch,
			domain.ArchiveTableCommands:  commandsRepo.ArchiveBatch,
		},
		retention:  retention,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// ListArchiveTasksRequest 归档任务列表请求
type ListArchiveTasksRequest struct {
	Page      int
	PageSize  int
	TableName string
	Status    string
	StartTime *time.Time
	EndTime   *time.Time
}

// RunTable 单表归档批次：建任务 -> 搬运 -> 回填结果
func (s *archiveService) RunTable(ctx context.Context, tableName, createdBy string) (*ArchiveTaskView, error) {
	archiver, ok := s.archivers[tableName]
	if !ok {
		return nil, fmt.Errorf("invalid archive table: %s", tableName)
	}
	if createdBy == "" {
		createdBy = "scheduler"
	}

	cutoff := time.Now().Add(-s.retention)
	batchID := uuid.NewString()

	// 1. 任务簿记：running（实际时间窗完成后回填）
	task := &domain.ArchiveTask{
		BatchID:    batchID,
		TableName:  tableName,
		RangeStart: cutoff,
		RangeEnd:   cutoff,
		CreatedBy:  createdBy,
		StartedAt:  time.Now(),
	}
	taskID, err := s.tasksRepo.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive task: %w", err)
	}

	s.logger.Info("Archive batch started",
		zap.Int64("task_id", taskID),
		zap.String("batch_id", batchID),
		zap.String("table_name", tableName),
		zap.Time("cutoff", cutoff),
		zap.String("created_by", createdBy),
	)

	// 2. 搬运（单语句事务）
	result, err := archiver(ctx, cutoff, batchID, s.batchLimit)
	if err != nil {
		s.logger.Error("Archive batch failed",
			zap.Int64("task_id", taskID),
			zap.String("table_name", tableName),
			zap.Error(err),
		)
		if failErr := s.tasksRepo.FailTask(ctx, taskID, err.Error()); failErr != nil {
			s.logger.Error("Failed to mark archive task failed",
				zap.Int64("task_id", taskID),
				zap.Error(failErr),
			)
		}
		return nil, fmt.Errorf("archive batch failed: %w", err)
	}

	// 3. 回填结果
	if err := s.tasksRepo.CompleteTask(ctx, taskID, result.Moved, result.RangeStart, result.RangeEnd); err != nil {
		return nil, fmt.Errorf("failed to complete archive task: %w", err)
	}

	s.logger.Info("Archive batch completed",
		zap.Int64("task_id", taskID),
		zap.String("table_name", tableName),
		zap.Int("moved", result.Moved),
		zap.Time("range_start", result.RangeStart),
		zap.Time("range_end", result.RangeEnd),
	)

	return s.GetTask(ctx, taskID)
}

// RunAll 全表归档，单表失败不影响其余
func (s *archiveService) RunAll(ctx context.Context, createdBy string) []*ArchiveTaskView {
	tables := []string{
		domain.ArchiveTablePositions,
		domain.ArchiveTableStatus,
		domain.ArchiveTableCommands,
	}

	tasks := make([]*ArchiveTaskView, 0, len(tables))
	for _, table := range tables {
		task, err := s.RunTable(ctx, table, createdBy)
		if err != nil {
			s.logger.Error("Archive run skipped table after failure",
				zap.String("table_name", table),
				zap.Error(err),
			)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// GetTask 查询单个归档任务
func (s *archiveService) GetTask(ctx context.Context, id int64) (*ArchiveTaskView, error) {
	task, err := s.tasksRepo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return toArchiveTaskView(task), nil
}

// ListTasks 归档任务列表
func (s *archiveService) ListTasks(ctx context.Context, req ListArchiveTasksRequest) ([]*ArchiveTaskView, *models.Pagination, error) {
	tasks, total, err := s.tasksRepo.ListTasks(ctx, repository.ArchiveTaskFilters{
		TableName: req.TableName,
		Status:    req.Status,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toArchiveTaskViews(tasks), models.NewPagination(req.Page, req.PageSize, total), nil
}
