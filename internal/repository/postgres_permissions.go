package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PostgresPermissionsRepository 权限Repository实现（强类型版本）
type PostgresPermissionsRepository struct {
	db *sql.DB
}

// NewPostgresPermissionsRepository 创建权限Repository
func NewPostgresPermissionsRepository(db *sql.DB) *PostgresPermissionsRepository {
	return &PostgresPermissionsRepository{db: db}
}

// 确保实现了接口
var _ PermissionsRepository = (*PostgresPermissionsRepository)(nil)

const permissionColumns = `
	permission_id,
	name,
	description,
	created_at,
	updated_at
`

func scanPermissionRow(row interface{ Scan(...any) error }) (*domain.Permission, error) {
	var p domain.Permission
	if err := row.Scan(
		&p.PermissionID,
		&p.Name,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPermission 查询单个权限
func (r *PostgresPermissionsRepository) GetPermission(ctx context.Context, permissionID int64) (*domain.Permission, error) {
	if permissionID <= 0 {
		return nil, fmt.Errorf("permission_id is required")
	}

	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE permission_id = $1`
	p, err := scanPermissionRow(r.db.QueryRowContext(ctx, query, permissionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("permission not found: permission_id=%d", permissionID)
		}
		return nil, fmt.Errorf("failed to query permission: %w", err)
	}
	return p, nil
}

// ListPermissions 查询权限列表（支持过滤和分页）
func (r *PostgresPermissionsRepository) ListPermissions(ctx context.Context, filter PermissionsFilter, page, size int) ([]*domain.Permission, int, error) {
	where := []string{}
	args := []any{}
	argN := 1

	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR COALESCE(description,'') ILIKE $%d)", argN, argN))
		args = append(args, "%"+filter.Search+"%")
		argN++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM permissions ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count permissions: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	query := `SELECT ` + permissionColumns + ` FROM permissions ` + whereClause + `
		ORDER BY name ASC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	perms := []*domain.Permission{}
	for rows.Next() {
		p, err := scanPermissionRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return perms, total, nil
}

// CreatePermission 创建权限
func (r *PostgresPermissionsRepository) CreatePermission(ctx context.Context, perm *domain.Permission) (int64, error) {
	if perm == nil {
		return 0, fmt.Errorf("permission is required")
	}
	if perm.Name == "" {
		return 0, fmt.Errorf("name is required")
	}

	var description any
	if perm.Description.Valid {
		description = perm.Description.String
	}

	var permissionID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO permissions (name, description) VALUES ($1, $2) RETURNING permission_id`,
		perm.Name, description,
	).Scan(&permissionID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("permission already exists: name=%s", perm.Name)
		}
		return 0, fmt.Errorf("failed to create permission: %w", err)
	}

	return permissionID, nil
}

// UpdatePermission 更新权限（部分更新）
func (r *PostgresPermissionsRepository) UpdatePermission(ctx context.Context, permissionID int64, perm *domain.Permission) error {
	if permissionID <= 0 {
		return fmt.Errorf("permission_id is required")
	}
	if perm == nil {
		return fmt.Errorf("permission is required")
	}

	set := []string{}
	args := []any{permissionID}
	argN := 2

	if perm.Name != "" {
		set = append(set, fmt.Sprintf("name = $%d", argN))
		args = append(args, perm.Name)
		argN++
	}
	if perm.Description.Valid {
		set = append(set, fmt.Sprintf("description = $%d", argN))
		args = append(args, perm.Description.String)
		argN++
	}

	if len(set) == 0 {
		return nil
	}

	set = append(set, "updated_at = NOW()")
	query := "UPDATE permissions SET " + strings.Join(set, ", ") + " WHERE permission_id = $1"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("permission already exists: name=%s", perm.Name)
		}
		return fmt.Errorf("failed to update permission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("permission not found: permission_id=%d", permissionID)
	}

	return nil
}

// DeletePermission 删除权限（连同 role_permissions 关联）
func (r *PostgresPermissionsRepository) DeletePermission(ctx context.Context, permissionID int64) error {
	if permissionID <= 0 {
		return fmt.Errorf("permission_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, permissionID); err != nil {
		return fmt.Errorf("failed to delete role permissions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE permission_id = $1`, permissionID)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("permission not found: permission_id=%d", permissionID)
	}

	return tx.Commit()
}
