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

// PostgresDroneCommandsRepository 无人机指令Repository实现（强类型版本）
type PostgresDroneCommandsRepository struct {
	db *sql.DB
}

// NewPostgresDroneCommandsRepository 创建指令Repository
func NewPostgresDroneCommandsRepository(db *sql.DB) *PostgresDroneCommandsRepository {
	return &PostgresDroneCommandsRepository{db: db}
}

// 确保实现了接口
var _ DroneCommandsRepository = (*PostgresDroneCommandsRepository)(nil)

const commandColumns = `
	id,
	drone_id,
	command_type,
	command_data,
	status,
	issued_by,
	issued_at,
	executed_at,
	completed_at,
	error_message,
	created_at
`

func scanCommandRow(row interface{ Scan(...any) error }) (*domain.DroneCommand, error) {
	var c domain.DroneCommand
	if err := row.Scan(
		&c.ID,
		&c.DroneID,
		&c.CommandType,
		&c.CommandData,
		&c.Status,
		&c.IssuedBy,
		&c.IssuedAt,
		&c.ExecutedAt,
		&c.CompletedAt,
		&c.ErrorMessage,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCommandArchiveRow(row interface{ Scan(...any) error }) (*domain.DroneCommandArchive, error) {
	var a domain.DroneCommandArchive
	if err := row.Scan(
		&a.ID,
		&a.DroneID,
		&a.CommandType,
		&a.CommandData,
		&a.Status,
		&a.IssuedBy,
		&a.IssuedAt,
		&a.ExecutedAt,
		&a.CompletedAt,
		&a.ErrorMessage,
		&a.CreatedAt,
		&a.OriginalID,
		&a.ArchivedAt,
		&a.ArchiveBatchID,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// buildCommandWhere 构建指令查询 WHERE 子句（热表与归档表通用）
func buildCommandWhere(filters CommandFilters, args *[]any, argN *int) []string {
	var where []string

	if filters.DroneID != "" {
		where = append(where, fmt.Sprintf("drone_id = $%d", *argN))
		*args = append(*args, filters.DroneID)
		*argN++
	}
	if filters.CommandType != "" {
		where = append(where, fmt.Sprintf("command_type = $%d", *argN))
		*args = append(*args, filters.CommandType)
		*argN++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, filters.Status)
		*argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("issued_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("issued_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	return where
}

// GetCommand 查询单条指令
func (r *PostgresDroneCommandsRepository) GetCommand(ctx context.Context, id int64) (*domain.DroneCommand, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id is required")
	}

	query := `SELECT ` + commandColumns + ` FROM drone_commands WHERE id = $1`
	c, err := scanCommandRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("command not found: id=%d", id)
		}
		return nil, fmt.Errorf("failed to query command: %w", err)
	}
	return c, nil
}

// ListCommands 查询热表指令（按下发时间倒序，支持过滤和分页）
func (r *PostgresDroneCommandsRepository) ListCommands(ctx context.Context, filters CommandFilters, page, size int) ([]*domain.DroneCommand, int, error) {
	args := []any{}
	argN := 1
	where := buildCommandWhere(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM drone_commands ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count commands: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + commandColumns + ` FROM drone_commands ` + whereClause + `
		ORDER BY issued_at DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	commands := []*domain.DroneCommand{}
	for rows.Next() {
		c, err := scanCommandRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan command: %w", err)
		}
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return commands, total, nil
}

// CreateCommand 创建指令（初始状态 pending）
func (r *PostgresDroneCommandsRepository) CreateCommand(ctx context.Context, cmd *domain.DroneCommand) (int64, error) {
	if cmd == nil {
		return 0, fmt.Errorf("command is required")
	}
	if cmd.DroneID == "" {
		return 0, fmt.Errorf("drone_id is required")
	}
	if !domain.ValidCommandType(cmd.CommandType) {
		return 0, fmt.Errorf("invalid command_type: %s", cmd.CommandType)
	}

	issuedAt := cmd.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	query := `
		INSERT INTO drone_commands (drone_id, command_type, command_data, status, issued_by, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		cmd.DroneID,
		cmd.CommandType,
		cmd.CommandData,
		domain.CommandStatusPending,
		cmd.IssuedBy,
		issuedAt,
	).Scan(&id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return 0, fmt.Errorf("issuing user does not exist: user_id=%d", cmd.IssuedBy.Int64)
		}
		return 0, fmt.Errorf("failed to create command: %w", err)
	}

	return id, nil
}

// MarkSent 指令下发成功：pending -> sent
// WHERE 带状态条件，重复调用或乱序回执不会覆盖终态
func (r *PostgresDroneCommandsRepository) MarkSent(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}

	query := `
		UPDATE drone_commands
		SET status = $2, executed_at = NOW()
		WHERE id = $1 AND status = $3
	`
	res, err := r.db.ExecContext(ctx, query, id, domain.CommandStatusSent, domain.CommandStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark command sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("command not in pending state: id=%d", id)
	}

	return nil
}

// MarkCompleted 执行回执成功：sent -> completed
func (r *PostgresDroneCommandsRepository) MarkCompleted(ctx context.Context, id int64, completedAt time.Time) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	query := `
		UPDATE drone_commands
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, id, domain.CommandStatusCompleted, completedAt, domain.CommandStatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark command completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("command not in sent state: id=%d", id)
	}

	return nil
}

// MarkFailed 下发失败或执行失败：pending/sent -> failed
func (r *PostgresDroneCommandsRepository) MarkFailed(ctx context.Context, id int64, errorMessage string, failedAt time.Time) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}
	if failedAt.IsZero() {
		failedAt = time.Now()
	}

	query := `
		UPDATE drone_commands
		SET status = $2, error_message = $3, completed_at = $4
		WHERE id = $1 AND status IN ($5, $6)
	`
	res, err := r.db.ExecContext(ctx, query, id,
		domain.CommandStatusFailed, errorMessage, failedAt,
		domain.CommandStatusPending, domain.CommandStatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark command failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("command already in terminal state: id=%d", id)
	}

	return nil
}

const commandArchiveColumns = `
	id,
	drone_id,
	command_type,
	command_data,
	status,
	issued_by,
	issued_at,
	executed_at,
	completed_at,
	error_message,
	created_at,
	original_id,
	archived_at,
	archive_batch_id::text
`

// ListArchivedCommands 查询归档指令（只读，按下发时间倒序）
func (r *PostgresDroneCommandsRepository) ListArchivedCommands(ctx context.Context, filters CommandFilters, page, size int) ([]*domain.DroneCommandArchive, int, error) {
	args := []any{}
	argN := 1
	where := buildCommandWhere(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM drone_commands_archive ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count archived commands: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + commandArchiveColumns + ` FROM drone_commands_archive ` + whereClause + `
		ORDER BY issued_at DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query archived commands: %w", err)
	}
	defer rows.Close()

	records := []*domain.DroneCommandArchive{}
	for rows.Next() {
		a, err := scanCommandArchiveRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan archived command: %w", err)
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, total, nil
}

// ArchiveBatch 把 issued_at < cutoff 的终态指令移入归档表
// pending/sent 的在途指令保留在热表
func (r *PostgresDroneCommandsRepository) ArchiveBatch(ctx context.Context, cutoff time.Time, batchID string, limit int) (*ArchiveBatchResult, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}

	deleteClause := `
		DELETE FROM drone_commands
		WHERE issued_at < $1 AND status IN ('completed', 'failed')
		RETURNING *`
	if limit > 0 {
		deleteClause = fmt.Sprintf(`
		DELETE FROM drone_commands
		WHERE id IN (
			SELECT id FROM drone_commands
			WHERE issued_at < $1 AND status IN ('completed', 'failed')
			ORDER BY issued_at ASC LIMIT %d
		)
		RETURNING *`, limit)
	}

	query := `
		WITH moved AS (` + deleteClause + `
		), inserted AS (
			INSERT INTO drone_commands_archive
				(original_id, drone_id, command_type, command_data, status, issued_by, issued_at, executed_at, completed_at, error_message, created_at, archived_at, archive_batch_id)
			SELECT id, drone_id, command_type, command_data, status, issued_by, issued_at, executed_at, completed_at, error_message, created_at, NOW(), $2::uuid
			FROM moved
			RETURNING issued_at
		)
		SELECT COUNT(*), COALESCE(MIN(issued_at), $1), COALESCE(MAX(issued_at), $1) FROM inserted
	`

	result := &ArchiveBatchResult{}
	err := r.db.QueryRowContext(ctx, query, cutoff, batchID).Scan(
		&result.Moved,
		&result.RangeStart,
		&result.RangeEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to archive commands: %w", err)
	}

	return result, nil
}
