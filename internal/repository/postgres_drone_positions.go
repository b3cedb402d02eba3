package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PostgresDronePositionsRepository 无人机位置Repository实现（强类型版本）
type PostgresDronePositionsRepository struct {
	db *sql.DB
}

// NewPostgresDronePositionsRepository 创建位置Repository
func NewPostgresDronePositionsRepository(db *sql.DB) *PostgresDronePositionsRepository {
	return &PostgresDronePositionsRepository{db: db}
}

// 确保实现了接口
var _ DronePositionsRepository = (*PostgresDronePositionsRepository)(nil)

const positionColumns = `
	id,
	drone_id,
	longitude,
	latitude,
	altitude,
	speed,
	heading,
	battery_level,
	signal_strength,
	timestamp,
	created_at
`

func scanPositionRow(row interface{ Scan(...any) error }) (*domain.DronePosition, error) {
	var p domain.DronePosition
	if err := row.Scan(
		&p.ID,
		&p.DroneID,
		&p.Longitude,
		&p.Latitude,
		&p.Altitude,
		&p.Speed,
		&p.Heading,
		&p.BatteryLevel,
		&p.SignalStrength,
		&p.Timestamp,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPositionArchiveRow(row interface{ Scan(...any) error }) (*domain.DronePositionArchive, error) {
	var a domain.DronePositionArchive
	if err := row.Scan(
		&a.ID,
		&a.DroneID,
		&a.Longitude,
		&a.Latitude,
		&a.Altitude,
		&a.Speed,
		&a.Heading,
		&a.BatteryLevel,
		&a.SignalStrength,
		&a.Timestamp,
		&a.CreatedAt,
		&a.OriginalID,
		&a.ArchivedAt,
		&a.ArchiveBatchID,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// buildTelemetryWhere 构建遥测查询 WHERE 子句（热表与归档表通用）
func buildTelemetryWhere(filters TelemetryFilters, args *[]any, argN *int) []string {
	var where []string

	if filters.DroneID != "" {
		where = append(where, fmt.Sprintf("drone_id = $%d", *argN))
		*args = append(*args, filters.DroneID)
		*argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("timestamp >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("timestamp <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	return where
}

// InsertPosition 写入位置遥测
func (r *PostgresDronePositionsRepository) InsertPosition(ctx context.Context, pos *domain.DronePosition) (int64, error) {
	if pos == nil {
		return 0, fmt.Errorf("position is required")
	}
	if pos.DroneID == "" {
		return 0, fmt.Errorf("drone_id is required")
	}
	if pos.Timestamp.IsZero() {
		return 0, fmt.Errorf("timestamp is required")
	}

	query := `
		INSERT INTO drone_positions (drone_id, longitude, latitude, altitude, speed, heading, battery_level, signal_strength, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		pos.DroneID,
		pos.Longitude,
		pos.Latitude,
		pos.Altitude,
		pos.Speed,
		pos.Heading,
		pos.BatteryLevel,
		pos.SignalStrength,
		pos.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position: %w", err)
	}

	return id, nil
}

// ListPositions 查询热表位置（按时间倒序，支持过滤和分页）
func (r *PostgresDronePositionsRepository) ListPositions(ctx context.Context, filters TelemetryFilters, page, size int) ([]*domain.DronePosition, int, error) {
	args := []any{}
	argN := 1
	where := buildTelemetryWhere(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM drone_positions ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count positions: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + positionColumns + ` FROM drone_positions ` + whereClause + `
		ORDER BY timestamp DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []*domain.DronePosition{}
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return positions, total, nil
}

// GetLatestPosition 查询某机最新位置
func (r *PostgresDronePositionsRepository) GetLatestPosition(ctx context.Context, droneID string) (*domain.DronePosition, error) {
	if droneID == "" {
		return nil, fmt.Errorf("drone_id is required")
	}

	query := `SELECT ` + positionColumns + ` FROM drone_positions
		WHERE drone_id = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	p, err := scanPositionRow(r.db.QueryRowContext(ctx, query, droneID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no position for drone: drone_id=%s", droneID)
		}
		return nil, fmt.Errorf("failed to query latest position: %w", err)
	}
	return p, nil
}

// ListLatestPositions 查询全部机队的最新位置（每机一行）
func (r *PostgresDronePositionsRepository) ListLatestPositions(ctx context.Context) ([]*domain.DronePosition, error) {
	query := `SELECT DISTINCT ON (drone_id) ` + positionColumns + ` FROM drone_positions
		ORDER BY drone_id, timestamp DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest positions: %w", err)
	}
	defer rows.Close()

	positions := []*domain.DronePosition{}
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

const positionArchiveColumns = `
	id,
	drone_id,
	longitude,
	latitude,
	altitude,
	speed,
	heading,
	battery_level,
	signal_strength,
	timestamp,
	created_at,
	original_id,
	archived_at,
	archive_batch_id::text
`

// ListArchivedPositions 查询归档位置（只读，按时间倒序）
func (r *PostgresDronePositionsRepository) ListArchivedPositions(ctx context.Context, filters TelemetryFilters, page, size int) ([]*domain.DronePositionArchive, int, error) {
	args := []any{}
	argN := 1
	where := buildTelemetryWhere(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM drone_positions_archive ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count archived positions: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + positionArchiveColumns + ` FROM drone_positions_archive ` + whereClause + `
		ORDER BY timestamp DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query archived positions: %w", err)
	}
	defer rows.Close()

	records := []*domain.DronePositionArchive{}
	for rows.Next() {
		a, err := scanPositionArchiveRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan archived position: %w", err)
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, total, nil
}

// FetchArchivedTrajectory 按时间升序取某机的归档轨迹（统计/导出用）
func (r *PostgresDronePositionsRepository) FetchArchivedTrajectory(ctx context.Context, droneID string, start, end time.Time, limit int) ([]*domain.DronePositionArchive, error) {
	if droneID == "" {
		return nil, fmt.Errorf("drone_id is required")
	}
	if limit <= 0 {
		limit = 100000
	}

	query := `SELECT ` + positionArchiveColumns + ` FROM drone_positions_archive
		WHERE drone_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, droneID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived trajectory: %w", err)
	}
	defer rows.Close()

	records := []*domain.DronePositionArchive{}
	for rows.Next() {
		a, err := scanPositionArchiveRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived position: %w", err)
		}
		records = append(records, a)
	}

	return records, rows.Err()
}

// ArchiveBatch 把 timestamp < cutoff 的热表行移入归档表
// CTE 单语句执行，DELETE 与 INSERT 原子完成
func (r *PostgresDronePositionsRepository) ArchiveBatch(ctx context.Context, cutoff time.Time, batchID string, limit int) (*ArchiveBatchResult, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}

	deleteClause := `
		DELETE FROM drone_positions
		WHERE timestamp < $1
		RETURNING *`
	if limit > 0 {
		deleteClause = fmt.Sprintf(`
		DELETE FROM drone_positions
		WHERE id IN (SELECT id FROM drone_positions WHERE timestamp < $1 ORDER BY timestamp ASC LIMIT %d)
		RETURNING *`, limit)
	}

	query := `
		WITH moved AS (` + deleteClause + `
		), inserted AS (
			INSERT INTO drone_positions_archive
				(original_id, drone_id, longitude, latitude, altitude, speed, heading, battery_level, signal_strength, timestamp, created_at, archived_at, archive_batch_id)
			SELECT id, drone_id, longitude, latitude, altitude, speed, heading, battery_level, signal_strength, timestamp, created_at, NOW(), $2::uuid
			FROM moved
			RETURNING timestamp
		)
		SELECT COUNT(*), COALESCE(MIN(timestamp), $1), COALESCE(MAX(timestamp), $1) FROM inserted
	`

	result := &ArchiveBatchResult{}
	err := r.db.QueryRowContext(ctx, query, cutoff, batchID).Scan(
		&result.Moved,
		&result.RangeStart,
		&result.RangeEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to archive positions: %w", err)
	}

	return result, nil
}
