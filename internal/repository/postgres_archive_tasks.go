package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PostgresArchiveTasksRepository 归档任务Repository实现（强类型版本）
type PostgresArchiveTasksRepository struct {
	db *sql.DB
}

// NewPostgresArchiveTasksRepository 创建归档任务Repository
func NewPostgresArchiveTasksRepository(db *sql.DB) *PostgresArchiveTasksRepository {
	return &PostgresArchiveTasksRepository{db: db}
}

// 确保实现了接口
var _ ArchiveTasksRepository = (*PostgresArchiveTasksRepository)(nil)

const archiveTaskColumns = `
	id,
	batch_id::text,
	table_name,
	range_start,
	range_end,
	total_records,
	status,
	created_by,
	started_at,
	finished_at,
	error_message
`

func scanArchiveTaskRow(row interface{ Scan(...any) error }) (*domain.ArchiveTask, error) {
	var t domain.ArchiveTask
	if err := row.Scan(
		&t.ID,
		&t.BatchID,
		&t.TableName,
		&t.RangeStart,
		&t.RangeEnd,
		&t.TotalRecords,
		&t.Status,
		&t.CreatedBy,
		&t.StartedAt,
		&t.FinishedAt,
		&t.ErrorMessage,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask 查询单个归档任务
func (r *PostgresArchiveTasksRepository) GetTask(ctx context.Context, id int64) (*domain.ArchiveTask, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id is required")
	}

	query := `SELECT ` + archiveTaskColumns + ` FROM archive_tasks WHERE id = $1`
	t, err := scanArchiveTaskRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("archive task not found: id=%d", id)
		}
		return nil, fmt.Errorf("failed to query archive task: %w", err)
	}
	return t, nil
}

// GetTaskByBatchID 按批次ID查询归档任务
func (r *PostgresArchiveTasksRepository) GetTaskByBatchID(ctx context.Context, batchID string) (*domain.ArchiveTask, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}

	query := `SELECT ` + archiveTaskColumns + ` FROM archive_tasks WHERE batch_id = $1::uuid`
	t, err := scanArchiveTaskRow(r.db.QueryRowContext(ctx, query, batchID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("archive task not found: batch_id=%s", batchID)
		}
		return nil, fmt.Errorf("failed to query archive task: %w", err)
	}
	return t, nil
}

// ListTasks 查询归档任务列表（按开始时间倒序，支持过滤和分页）
func (r *PostgresArchiveTasksRepository) ListTasks(ctx context.Context, filters ArchiveTaskFilters, page, size int) ([]*domain.ArchiveTask, int, error) {
	where := []string{}
	args := []any{}
	argN := 1

	if filters.TableName != "" {
		where = append(where, fmt.Sprintf("table_name = $%d", argN))
		args = append(args, filters.TableName)
		argN++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filters.Status)
		argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("started_at >= $%d", argN))
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("started_at <= $%d", argN))
		args = append(args, *filters.EndTime)
		argN++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM archive_tasks ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count archive tasks: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + archiveTaskColumns + ` FROM archive_tasks ` + whereClause + `
		ORDER BY started_at DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query archive tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*domain.ArchiveTask{}
	for rows.Next() {
		t, err := scanArchiveTaskRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan archive task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return tasks, total, nil
}

// CreateTask 批次开始时落一行 running 状态记录
func (r *PostgresArchiveTasksRepository) CreateTask(ctx context.Context, task *domain.ArchiveTask) (int64, error) {
	if task == nil {
		return 0, fmt.Errorf("task is required")
	}
	if task.BatchID == "" {
		return 0, fmt.Errorf("batch_id is required")
	}
	if !domain.ValidArchiveTable(task.TableName) {
		return 0, fmt.Errorf("invalid table_name: %s", task.TableName)
	}
	if task.CreatedBy == "" {
		return 0, fmt.Errorf("created_by is required")
	}

	startedAt := task.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	query := `
		INSERT INTO archive_tasks (batch_id, table_name, range_start, range_end, total_records, status, created_by, started_at)
		VALUES ($1::uuid, $2, $3, $4, 0, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		task.BatchID,
		task.TableName,
		task.RangeStart,
		task.RangeEnd,
		domain.ArchiveTaskRunning,
		task.CreatedBy,
		startedAt,
	).Scan(&id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("archive batch already exists: batch_id=%s", task.BatchID)
		}
		return 0, fmt.Errorf("failed to create archive task: %w", err)
	}

	return id, nil
}

// CompleteTask 批次成功：回填行数与实际时间窗
func (r *PostgresArchiveTasksRepository) CompleteTask(ctx context.Context, id int64, totalRecords int, rangeStart, rangeEnd time.Time) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}

	query := `
		UPDATE archive_tasks
		SET status = $2, total_records = $3, range_start = $4, range_end = $5, finished_at = NOW()
		WHERE id = $1 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, id,
		domain.ArchiveTaskCompleted, totalRecords, rangeStart, rangeEnd,
		domain.ArchiveTaskRunning)
	if err != nil {
		return fmt.Errorf("failed to complete archive task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("archive task not in running state: id=%d", id)
	}

	return nil
}

// FailTask 批次失败：记录错误信息
func (r *PostgresArchiveTasksRepository) FailTask(ctx context.Context, id int64, errorMessage string) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}

	query := `
		UPDATE archive_tasks
		SET status = $2, error_message = $3, finished_at = NOW()
		WHERE id = $1 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, id,
		domain.ArchiveTaskFailed, errorMessage,
		domain.ArchiveTaskRunning)
	if err != nil {
		return fmt.Errorf("failed to fail archive task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("archive task not in running state: id=%d", id)
	}

	return nil
}
