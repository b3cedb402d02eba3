package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// fakeTasksRepo 归档任务 Repository 测试替身
type fakeTasksRepo struct {
	repository.ArchiveTasksRepository

	nextID int64
	tasks  map[int64]*domain.ArchiveTask
}

func newFakeTasksRepo() *fakeTasksRepo {
	return &fakeTasksRepo{nextID: 1, tasks: map[int64]*domain.ArchiveTask{}}
}

func (f *fakeTasksRepo) CreateTask(_ context.Context, task *domain.ArchiveTask) (int64, error) {
	id := f.nextID
	f.nextID++
	stored := *task
	stored.ID = id
	stored.Status = domain.ArchiveTaskRunning
	f.tasks[id] = &stored
	return id, nil
}

func (f *fakeTasksRepo) CompleteTask(_ context.Context, id int64, total int, rangeStart, rangeEnd time.Time) error {
	task := f.tasks[id]
	if task == nil || task.Status != domain.ArchiveTaskRunning {
		return fmt.Errorf("archive task not in running state: id=%d", id)
	}
	task.Status = domain.ArchiveTaskCompleted
	task.TotalRecords = total
	task.RangeStart = rangeStart
	task.RangeEnd = rangeEnd
	return nil
}

func (f *fakeTasksRepo) FailTask(_ context.Context, id int64, msg string) error {
	task := f.tasks[id]
	if task == nil || task.Status != domain.ArchiveTaskRunning {
		return fmt.Errorf("archive task not in running state: id=%d", id)
	}
	task.Status = domain.ArchiveTaskFailed
	return nil
}

func (f *fakeTasksRepo) GetTask(_ context.Context, id int64) (*domain.ArchiveTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("archive task not found: id=%d", id)
	}
	return task, nil
}

// 归档入口替身：positions 成功，status 失败，commands 空批次
type archivingPositionsRepo struct{ repository.DronePositionsRepository }

func (archivingPositionsRepo) ArchiveBatch(_ context.Context, cutoff time.Time, _ string, _ int) (*repository.ArchiveBatchResult, error) {
	return &repository.ArchiveBatchResult{
		Moved:      250,
		RangeStart: cutoff.Add(-24 * time.Hour),
		RangeEnd:   cutoff.Add(-time.Minute),
	}, nil
}

type failingStatusRepo struct{ repository.DroneStatusRepository }

func (failingStatusRepo) ArchiveBatch(_ context.Context, _ time.Time, _ string, _ int) (*repository.ArchiveBatchResult, error) {
	return nil, fmt.Errorf("deadlock detected")
}

type emptyCommandsRepo struct{ repository.DroneCommandsRepository }

func (emptyCommandsRepo) ArchiveBatch(_ context.Context, cutoff time.Time, _ string, _ int) (*repository.ArchiveBatchResult, error) {
	return &repository.ArchiveBatchResult{Moved: 0, RangeStart: cutoff, RangeEnd: cutoff}, nil
}

func newTestArchiveService(tasksRepo *fakeTasksRepo) ArchiveService {
	return NewArchiveService(
		tasksRepo,
		archivingPositionsRepo{},
		failingStatusRepo{},
		emptyCommandsRepo{},
		720*time.Hour,
		50000,
		zap.NewNop(),
	)
}

func TestRunTable(t *testing.T) {
	tasksRepo := newFakeTasksRepo()
	svc := newTestArchiveService(tasksRepo)

	view, err := svc.RunTable(context.Background(), domain.ArchiveTablePositions, "admin")
	require.NoError(t, err)
	require.Equal(t, domain.ArchiveTaskCompleted, view.Status)
	require.Equal(t, 250, view.TotalRecords)
	require.Equal(t, "admin", view.CreatedBy)
	require.NotEmpty(t, view.BatchID)
}

func TestRunTable_FailureMarksTask(t *testing.T) {
	tasksRepo := newFakeTasksRepo()
	svc := newTestArchiveService(tasksRepo)

	_, err := svc.RunTable(context.Background(), domain.ArchiveTableStatus, "admin")
	require.Error(t, err)
	require.Contains(t, err.Error(), "deadlock")

	task, err := tasksRepo.GetTask(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, domain.ArchiveTaskFailed, task.Status)
}

func TestRunTable_InvalidTable(t *testing.T) {
	svc := newTestArchiveService(newFakeTasksRepo())

	_, err := svc.RunTable(context.Background(), "users", "admin")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid archive table")
}

func TestRunAll_ContinuesAfterFailure(t *testing.T) {
	tasksRepo := newFakeTasksRepo()
	svc := newTestArchiveService(tasksRepo)

	tasks := svc.RunAll(context.Background(), "")
	// status 表失败被跳过，其余两表完成
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		require.Equal(t, domain.ArchiveTaskCompleted, task.Status)
		require.Equal(t, "scheduler", task.CreatedBy)
	}
}
