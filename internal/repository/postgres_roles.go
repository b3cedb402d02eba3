package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PostgresRolesRepository 角色Repository实现（强类型版本）
// Repository层负责数据访问和数据完整性验证，业务规则在Service层
type PostgresRolesRepository struct {
	db *sql.DB
}

// NewPostgresRolesRepository 创建角色Repository
func NewPostgresRolesRepository(db *sql.DB) *PostgresRolesRepository {
	return &PostgresRolesRepository{db: db}
}

// 确保实现了接口
var _ RolesRepository = (*PostgresRolesRepository)(nil)

const roleColumns = `
	role_id,
	name,
	display_name,
	description,
	is_system,
	created_at,
	updated_at
`

func scanRoleRow(row interface{ Scan(...any) error }) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(
		&role.RoleID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRole 查询单个角色
func (r *PostgresRolesRepository) GetRole(ctx context.Context, roleID int64) (*domain.Role, error) {
	if roleID <= 0 {
		return nil, fmt.Errorf("role_id is required")
	}

	query := `SELECT ` + roleColumns + ` FROM roles WHERE role_id = $1`
	role, err := scanRoleRow(r.db.QueryRowContext(ctx, query, roleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("role not found: role_id=%d", roleID)
		}
		return nil, fmt.Errorf("failed to query role: %w", err)
	}
	return role, nil
}

// GetRoleByName 通过角色代码查询角色（用于程序引用）
func (r *PostgresRolesRepository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`
	role, err := scanRoleRow(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("role not found: name=%s", name)
		}
		return nil, fmt.Errorf("failed to query role: %w", err)
	}
	return role, nil
}

// ListRoles 查询角色列表（支持过滤和分页）
func (r *PostgresRolesRepository) ListRoles(ctx context.Context, filter RolesFilter, page, size int) ([]*domain.Role, int, error) {
	where := []string{}
	args := []any{}
	argN := 1

	if filter.Search != "" {
		where = append(where, fmt.Sprintf(
			"(name ILIKE $%d OR display_name ILIKE $%d OR COALESCE(description,'') ILIKE $%d)", argN, argN, argN))
		args = append(args, "%"+filter.Search+"%")
		argN++
	}
	if filter.IsSystem != nil {
		where = append(where, fmt.Sprintf("is_system = $%d", argN))
		args = append(args, *filter.IsSystem)
		argN++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM roles ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count roles: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `SELECT ` + roleColumns + ` FROM roles ` + whereClause + `
		ORDER BY is_system DESC, name ASC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := []*domain.Role{}
	for rows.Next() {
		role, err := scanRoleRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return roles, total, nil
}

// CreateRole 创建角色
func (r *PostgresRolesRepository) CreateRole(ctx context.Context, role *domain.Role) (int64, error) {
	if role == nil {
		return 0, fmt.Errorf("role is required")
	}
	if role.Name == "" {
		return 0, fmt.Errorf("name is required")
	}
	if role.DisplayName == "" {
		return 0, fmt.Errorf("display_name is required")
	}

	var description any
	if role.Description.Valid {
		description = role.Description.String
	}

	query := `
		INSERT INTO roles (name, display_name, description, is_system)
		VALUES ($1, $2, $3, $4)
		RETURNING role_id
	`

	var roleID int64
	err := r.db.QueryRowContext(ctx, query,
		role.Name,
		role.DisplayName,
		description,
		role.IsSystem,
	).Scan(&roleID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("role already exists: name=%s", role.Name)
		}
		return 0, fmt.Errorf("failed to create role: %w", err)
	}

	return roleID, nil
}

// UpdateRole 更新角色（部分更新）
// 数据一致性：is_system 不可改变
func (r *PostgresRolesRepository) UpdateRole(ctx context.Context, roleID int64, role *domain.Role) error {
	if roleID <= 0 {
		return fmt.Errorf("role_id is required")
	}
	if role == nil {
		return fmt.Errorf("role is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanRoleRow(tx.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE role_id = $1`, roleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("role not found: role_id=%d", roleID)
		}
		return fmt.Errorf("failed to query role: %w", err)
	}

	if role.IsSystem != existing.IsSystem {
		return fmt.Errorf("cannot change is_system: role_id=%d", roleID)
	}

	set := []string{}
	args := []any{roleID}
	argN := 2

	if role.Name != "" && role.Name != existing.Name {
		set = append(set, fmt.Sprintf("name = $%d", argN))
		args = append(args, role.Name)
		argN++
	}
	if role.DisplayName != "" && role.DisplayName != existing.DisplayName {
		set = append(set, fmt.Sprintf("display_name = $%d", argN))
		args = append(args, role.DisplayName)
		argN++
	}
	if role.Description.Valid {
		set = append(set, fmt.Sprintf("description = $%d", argN))
		args = append(args, role.Description.String)
		argN++
	}

	if len(set) == 0 {
		// 没有需要更新的字段（相同数据重复提交，幂等返回）
		return tx.Commit()
	}

	set = append(set, "updated_at = NOW()")
	query := "UPDATE roles SET " + strings.Join(set, ", ") + " WHERE role_id = $1"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("role already exists: name=%s", role.Name)
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	return tx.Commit()
}

// DeleteRole 删除角色（连同 user_roles / role_permissions 关联）
func (r *PostgresRolesRepository) DeleteRole(ctx context.Context, roleID int64) error {
	if roleID <= 0 {
		return fmt.Errorf("role_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role permissions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete user roles: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE role_id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("role not found: role_id=%d", roleID)
	}

	return tx.Commit()
}

// GetRolePermissions 查询角色的权限列表
func (r *PostgresRolesRepository) GetRolePermissions(ctx context.Context, roleID int64) ([]*domain.Permission, error) {
	query := `
		SELECT
			p.permission_id,
			p.name,
			p.description,
			p.created_at,
			p.updated_at
		FROM role_permissions rp
		JOIN permissions p ON rp.permission_id = p.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	perms := []*domain.Permission{}
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(
			&p.PermissionID,
			&p.Name,
			&p.Description,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, &p)
	}

	return perms, rows.Err()
}

// ReplaceRolePermissions 替换角色的权限分配（事务内先删后插）
// 幂等：传入相同 permissionIDs 结果一致
func (r *PostgresRolesRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if roleID <= 0 {
		return fmt.Errorf("role_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE role_id = $1)`, roleID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check role existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("role not found: role_id=%d", roleID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}

	for _, permID := range permissionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roleID, permID,
		); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
				return fmt.Errorf("permission not found: permission_id=%d", permID)
			}
			return fmt.Errorf("failed to assign permission %d: %w", permID, err)
		}
	}

	return tx.Commit()
}
