package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PostgresRTKRepository RTK定位数据Repository实现（强类型版本）
type PostgresRTKRepository struct {
	db *sql.DB
}

// NewPostgresRTKRepository 创建RTK Repository
func NewPostgresRTKRepository(db *sql.DB) *PostgresRTKRepository {
	return &PostgresRTKRepository{db: db}
}

// 确保实现了接口
var _ RTKRepository = (*PostgresRTKRepository)(nil)

const rtkColumns = `
	id,
	device_id,
	longitude,
	latitude,
	altitude,
	fix_quality,
	satellite_count,
	hdop,
	timestamp,
	created_at,
	updated_at
`

func scanRTKRow(row interface{ Scan(...any) error }) (*domain.RTKData, error) {
	var d domain.RTKData
	if err := row.Scan(
		&d.ID,
		&d.DeviceID,
		&d.Longitude,
		&d.Latitude,
		&d.Altitude,
		&d.FixQuality,
		&d.SatelliteCount,
		&d.HDOP,
		&d.Timestamp,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// buildRTKWhere 构建 WHERE 子句
func buildRTKWhere(filters RTKFilters, args *[]any, argN *int) []string {
	var where []string

	if filters.DeviceID != "" {
		where = append(where, fmt.Sprintf("device_id = $%d", *argN))
		*args = append(*args, filters.DeviceID)
		*argN++
	}
	if filters.FixQuality != "" {
		where = append(where, fmt.Sprintf("fix_quality = $%d", *argN))
		*args = append(*args, filters.FixQuality)
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

// GetRTKData 查询单条RTK数据
func (r *PostgresRTKRepository) GetRTKData(ctx context.Context, id int64) (*domain.RTKData, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id is required")
	}

	query := `SELECT ` + rtkColumns + ` FROM rtk_data WHERE id = $1`
	d, err := scanRTKRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("rtk data not found: id=%d", id)
		}
		return nil, fmt.Errorf("failed to query rtk data: %w", err)
	}
	return d, nil
}

// ListRTKData 查询RTK数据列表（支持过滤和分页，按时间倒序）
func (r *PostgresRTKRepository) ListRTKData(ctx context.Context, filters RTKFilters, page, size int) ([]*domain.RTKData, int, error) {
	args := []any{}
	argN := 1
	where := buildRTKWhere(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM rtk_data ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rtk data: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + rtkColumns + ` FROM rtk_data ` + whereClause + `
		ORDER BY timestamp DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query rtk data: %w", err)
	}
	defer rows.Close()

	records := []*domain.RTKData{}
	for rows.Next() {
		d, err := scanRTKRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan rtk data: %w", err)
		}
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, total, nil
}

// CreateRTKData 创建RTK数据
func (r *PostgresRTKRepository) CreateRTKData(ctx context.Context, data *domain.RTKData) (int64, error) {
	if data == nil {
		return 0, fmt.Errorf("rtk data is required")
	}
	if data.DeviceID == "" {
		return 0, fmt.Errorf("device_id is required")
	}
	if data.Timestamp.IsZero() {
		return 0, fmt.Errorf("timestamp is required")
	}

	query := `
		INSERT INTO rtk_data (device_id, longitude, latitude, altitude, fix_quality, satellite_count, hdop, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		data.DeviceID,
		data.Longitude,
		data.Latitude,
		data.Altitude,
		data.FixQuality,
		data.SatelliteCount,
		data.HDOP,
		data.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rtk data: %w", err)
	}

	return id, nil
}

// UpdateRTKData 更新RTK数据（坐标修正等管理操作）
func (r *PostgresRTKRepository) UpdateRTKData(ctx context.Context, id int64, data *domain.RTKData) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}
	if data == nil {
		return fmt.Errorf("rtk data is required")
	}

	set := []string{
		"longitude = $2",
		"latitude = $3",
		"altitude = $4",
	}
	args := []any{id, data.Longitude, data.Latitude, data.Altitude}
	argN := 5

	if data.DeviceID != "" {
		set = append(set, fmt.Sprintf("device_id = $%d", argN))
		args = append(args, data.DeviceID)
		argN++
	}
	if data.FixQuality.Valid {
		set = append(set, fmt.Sprintf("fix_quality = $%d", argN))
		args = append(args, data.FixQuality.String)
		argN++
	}
	if data.SatelliteCount.Valid {
		set = append(set, fmt.Sprintf("satellite_count = $%d", argN))
		args = append(args, data.SatelliteCount.Int64)
		argN++
	}
	if data.HDOP.Valid {
		set = append(set, fmt.Sprintf("hdop = $%d", argN))
		args = append(args, data.HDOP.Float64)
		argN++
	}
	if !data.Timestamp.IsZero() {
		set = append(set, fmt.Sprintf("timestamp = $%d", argN))
		args = append(args, data.Timestamp)
		argN++
	}

	set = append(set, "updated_at = NOW()")
	query := "UPDATE rtk_data SET " + strings.Join(set, ", ") + " WHERE id = $1"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update rtk data: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rtk data not found: id=%d", id)
	}

	return nil
}

// DeleteRTKData 删除RTK数据
func (r *PostgresRTKRepository) DeleteRTKData(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM rtk_data WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rtk data: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rtk data not found: id=%d", id)
	}

	return nil
}

// UpsertVendorRecord 厂家拉取数据落库
// (device_id, timestamp) 唯一索引保证重复拉取幂等
func (r *PostgresRTKRepository) UpsertVendorRecord(ctx context.Context, data *domain.RTKData) error {
	if data == nil {
		return fmt.Errorf("rtk data is required")
	}
	if data.DeviceID == "" || data.Timestamp.IsZero() {
		return fmt.Errorf("device_id and timestamp are required")
	}

	query := `
		INSERT INTO rtk_data (device_id, longitude, latitude, altitude, fix_quality, satellite_count, hdop, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (device_id, timestamp)
		DO UPDATE SET longitude = EXCLUDED.longitude,
		              latitude = EXCLUDED.latitude,
		              altitude = EXCLUDED.altitude,
		              fix_quality = EXCLUDED.fix_quality,
		              satellite_count = EXCLUDED.satellite_count,
		              hdop = EXCLUDED.hdop,
		              updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		data.DeviceID,
		data.Longitude,
		data.Latitude,
		data.Altitude,
		data.FixQuality,
		data.SatelliteCount,
		data.HDOP,
		data.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rtk data: %w", err)
	}

	return nil
}
