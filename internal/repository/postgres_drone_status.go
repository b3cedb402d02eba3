package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PostgresDroneStatusRepository 无人机状态Repository实现（强类型版本）
type PostgresDroneStatusRepository struct {
	db *sql.DB
}

// NewPostgresDroneStatusRepository 创建状态Repository
func NewPostgresDroneStatusRepository(db *sql.DB) *PostgresDroneStatusRepository {
	return &PostgresDroneStatusRepository{db: db}
}

// 确保实现了接口
var _ DroneStatusRepository = (*PostgresDroneStatusRepository)(nil)

const statusColumns = `
	id,
	drone_id,
	flight_status,
	battery_level,
	battery_voltage,
	temperature,
	altitude,
	is_connected,
	error_code,
	timestamp,
	created_at
`

func scanStatusRow(row interface{ Scan(...any) error }) (*domain.DroneStatus, error) {
	var s domain.DroneStatus
	if err := row.Scan(
		&s.ID,
		&s.DroneID,
		&s.FlightStatus,
		&s.BatteryLevel,
		&s.BatteryVoltage,
		&s.Temperature,
		&s.Altitude,
		&s.IsConnected,
		&s.ErrorCode,
		&s.Timestamp,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanStatusArchiveRow(row interface{ Scan(...any) error }) (*domain.DroneStatusArchive, error) {
	var a domain.DroneStatusArchive
	if err := row.Scan(
		&a.ID,
		&a.DroneID,
		&a.FlightStatus,
		&a.BatteryLevel,
		&a.BatteryVoltage,
		&a.Temperature,
		&a.Altitude,
		&a.IsConnected,
		&a.ErrorCode,
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

// buildStatusWhere 构建状态查询 WHERE 子句
func buildStatusWhere(filters StatusFilters, args *[]any, argN *int) []string {
	var where []string

	if filters.DroneID != "" {
		where = append(where, fmt.Sprintf("drone_id = $%d", *argN))
		*args = append(*args, filters.DroneID)
		*argN++
	}
	if filters.FlightStatus != "" {
		where = append(where, fmt.Sprintf("flight_status = $%d", *argN))
		*args = append(*args, filters.FlightStatus)
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

// InsertStatus 写入状态遥测
func (r *PostgresDroneStatusRepository) InsertStatus(ctx context.Context, status *domain.DroneStatus) (int64, error) {
	if status == nil {
		return 0, fmt.Errorf("status is required")
	}
	if status.DroneID == "" {
		return 0, fmt.Errorf("drone_id is required")
	}
	if !domain.ValidFlightStatus(status.FlightStatus) {
		return 0, fmt.Errorf("invalid flight_status: %s", status.FlightStatus)
	}
	if status.Timestamp.IsZero() {
		return 0, fmt.Errorf("timestamp is required")
	}

	query := `
		INSERT INTO drone_status (drone_id, flight_status, battery_level, battery_voltage, temperature, altitude, is_connected, error_code, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		status.DroneID,
		status.FlightStatus,
		status.BatteryLevel,
		status.BatteryVoltage,
		status.Temperature,
		status.Altitude,
		status.IsConnected,
		status.ErrorCode,
		status.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert status: %w", err)
	}

	return id, nil
}

// ListStatus 查询热表状态（按时间倒序，支持过滤和分页）
func (r *PostgresDroneStatusRepository) ListStatus(ctx context.Context, filters StatusFilters, page, size int) ([]*domain.DroneStatus, int, error) {
	args := []any{}
	argN := 1
	where := buildStatusWhere(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM drone_status ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count status: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + statusColumns + ` FROM drone_status ` + whereClause + `
		ORDER BY timestamp DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query status: %w", err)
	}
	defer rows.Close()

	records := []*domain.DroneStatus{}
	for rows.Next() {
		s, err := scanStatusRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan status: %w", err)
		}
		records = append(records, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, total, nil
}

// GetLatestStatus 查询某机最新状态
func (r *PostgresDroneStatusRepository) GetLatestStatus(ctx context.Context, droneID string) (*domain.DroneStatus, error) {
	if droneID == "" {
		return nil, fmt.Errorf("drone_id is required")
	}

	query := `SELECT ` + statusColumns + ` FROM drone_status
		WHERE drone_id = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	s, err := scanStatusRow(r.db.QueryRowContext(ctx, query, droneID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no status for drone: drone_id=%s", droneID)
		}
		return nil, fmt.Errorf("failed to query latest status: %w", err)
	}
	return s, nil
}

// ListLatestStatus 查询全部机队的最新状态（每机一行）
func (r *PostgresDroneStatusRepository) ListLatestStatus(ctx context.Context) ([]*domain.DroneStatus, error) {
	query := `SELECT DISTINCT ON (drone_id) ` + statusColumns + ` FROM drone_status
		ORDER BY drone_id, timestamp DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest status: %w", err)
	}
	defer rows.Close()

	records := []*domain.DroneStatus{}
	for rows.Next() {
		s, err := scanStatusRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		records = append(records, s)
	}

	return records, rows.Err()
}

const statusArchiveColumns = `
	id,
	drone_id,
	flight_status,
	battery_level,
	battery_voltage,
	temperature,
	altitude,
	is_connected,
	error_code,
	timestamp,
	created_at,
	original_id,
	archived_at,
	archive_batch_id::text
`

// ListArchivedStatus 查询归档状态（只读，按时间倒序）
func (r *PostgresDroneStatusRepository) ListArchivedStatus(ctx context.Context, filters StatusFilters, page, size int) ([]*domain.DroneStatusArchive, int, error) {
	args := []any{}
	argN := 1
	where := buildStatusWhere(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM drone_status_archive ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count archived status: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + statusArchiveColumns + ` FROM drone_status_archive ` + whereClause + `
		ORDER BY timestamp DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query archived status: %w", err)
	}
	defer rows.Close()

	records := []*domain.DroneStatusArchive{}
	for rows.Next() {
		a, err := scanStatusArchiveRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan archived status: %w", err)
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, total, nil
}

// FetchArchivedBatterySeries 按时间升序取某机的归档电量序列（统计用）
func (r *PostgresDroneStatusRepository) FetchArchivedBatterySeries(ctx context.Context, droneID string, start, end time.Time, limit int) ([]*domain.DroneStatusArchive, error) {
	if droneID == "" {
		return nil, fmt.Errorf("drone_id is required")
	}
	if limit <= 0 {
		limit = 100000
	}

	query := `SELECT ` + statusArchiveColumns + ` FROM drone_status_archive
		WHERE drone_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, droneID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived battery series: %w", err)
	}
	defer rows.Close()

	records := []*domain.DroneStatusArchive{}
	for rows.Next() {
		a, err := scanStatusArchiveRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived status: %w", err)
		}
		records = append(records, a)
	}

	return records, rows.Err()
}

// ArchiveBatch 把 timestamp < cutoff 的热表行移入归档表
// CTE 单语句执行，DELETE 与 INSERT 原子完成
func (r *PostgresDroneStatusRepository) ArchiveBatch(ctx context.Context, cutoff time.Time, batchID string, limit int) (*ArchiveBatchResult, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}

	deleteClause := `
		DELETE FROM drone_status
		WHERE timestamp < $1
		RETURNING *`
	if limit > 0 {
		deleteClause = fmt.Sprintf(`
		DELETE FROM drone_status
		WHERE id IN (SELECT id FROM drone_status WHERE timestamp < $1 ORDER BY timestamp ASC LIMIT %d)
		RETURNING *`, limit)
	}

	query := `
		WITH moved AS (` + deleteClause + `
		), inserted AS (
			INSERT INTO drone_status_archive
				(original_id, drone_id, flight_status, battery_level, battery_voltage, temperature, altitude, is_connected, error_code, timestamp, created_at, archived_at, archive_batch_id)
			SELECT id, drone_id, flight_status, battery_level, battery_voltage, temperature, altitude, is_connected, error_code, timestamp, created_at, NOW(), $2::uuid
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
		return nil, fmt.Errorf("failed to archive status: %w", err)
	}

	return result, nil
}
