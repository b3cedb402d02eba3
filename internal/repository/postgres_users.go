package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PostgresUsersRepository 用户Repository实现（强类型版本）
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `
	user_id,
	username,
	password_hash,
	email,
	is_active,
	last_login_at,
	created_at,
	updated_at
`

func scanUserRow(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.IsActive,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser 获取用户基本信息
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	if userID <= 0 {
		return nil, sql.ErrNoRows
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	user, err := scanUserRow(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found: user_id=%d", userID)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetUserByUsername 根据用户名获取用户（登录用）
func (r *PostgresUsersRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, sql.ErrNoRows
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUserRow(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// ListUsers 列出用户（支持过滤和分页）
func (r *PostgresUsersRepository) ListUsers(ctx context.Context, filters UserFilters, page, size int) ([]*domain.User, int, error) {
	where := []string{}
	args := []any{}
	argN := 1

	if filters.IsActive != nil {
		where = append(where, fmt.Sprintf("u.is_active = $%d", argN))
		args = append(args, *filters.IsActive)
		argN++
	}
	if filters.Role != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM user_roles ur JOIN roles ro ON ur.role_id = ro.role_id WHERE ur.user_id = u.user_id AND ro.name = $%d)", argN))
		args = append(args, filters.Role)
		argN++
	}
	if filters.Search != "" {
		where = append(where, fmt.Sprintf("(u.username ILIKE $%d OR COALESCE(u.email,'') ILIKE $%d)", argN, argN))
		args = append(args, "%"+filters.Search+"%")
		argN++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	// 查询总数
	countQuery := "SELECT COUNT(*) FROM users u " + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	// 分页
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := `
		SELECT
			u.user_id,
			u.username,
			u.password_hash,
			u.email,
			u.is_active,
			u.last_login_at,
			u.created_at,
			u.updated_at
		FROM users u
		` + whereClause + `
		ORDER BY u.username ASC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, size, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, total, nil
}

// CreateUser 创建用户
func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) (int64, error) {
	if user == nil {
		return 0, fmt.Errorf("user is required")
	}
	if user.Username == "" {
		return 0, fmt.Errorf("username is required")
	}
	if len(user.PasswordHash) == 0 {
		return 0, fmt.Errorf("password_hash is required")
	}

	query := `
		INSERT INTO users (username, password_hash, email, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id
	`

	var email any
	if user.Email.Valid {
		email = user.Email.String
	}

	var userID int64
	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.PasswordHash,
		email,
		user.IsActive,
	).Scan(&userID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("username already exists: %s", user.Username)
		}
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}

	return userID, nil
}

// UpdateUser 更新用户（部分更新）
// 重复提交相同数据是幂等的：UPDATE 只按传入字段覆盖
func (r *PostgresUsersRepository) UpdateUser(ctx context.Context, userID int64, user *domain.User) error {
	if userID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if user == nil {
		return fmt.Errorf("user is required")
	}

	updates := []string{}
	args := []any{userID}
	argN := 2

	if user.Username != "" {
		updates = append(updates, fmt.Sprintf("username = $%d", argN))
		args = append(args, user.Username)
		argN++
	}
	if len(user.PasswordHash) > 0 {
		updates = append(updates, fmt.Sprintf("password_hash = $%d", argN))
		args = append(args, user.PasswordHash)
		argN++
	}
	if user.Email.Valid {
		updates = append(updates, fmt.Sprintf("email = $%d", argN))
		args = append(args, user.Email.String)
		argN++
	}

	// is_active 总是更新（bool 无法区分未设置）
	updates = append(updates, fmt.Sprintf("is_active = $%d", argN))
	args = append(args, user.IsActive)
	argN++

	updates = append(updates, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE users SET %s WHERE user_id = $1", strings.Join(updates, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("username already exists: %s", user.Username)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}

	return nil
}

// DeleteUser 删除用户（连同 user_roles 关联）
func (r *PostgresUsersRepository) DeleteUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("user_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user roles: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}

	return tx.Commit()
}

// TouchLastLogin 更新最近登录时间
func (r *PostgresUsersRepository) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to touch last_login_at: %w", err)
	}
	return nil
}

// GetUserRoles 查询用户的角色列表
func (r *PostgresUsersRepository) GetUserRoles(ctx context.Context, userID int64) ([]*domain.Role, error) {
	query := `
		SELECT
			ro.role_id,
			ro.name,
			ro.display_name,
			ro.description,
			ro.is_system,
			ro.created_at,
			ro.updated_at
		FROM user_roles ur
		JOIN roles ro ON ur.role_id = ro.role_id
		WHERE ur.user_id = $1
		ORDER BY ro.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	roles := []*domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(
			&role.RoleID,
			&role.Name,
			&role.DisplayName,
			&role.Description,
			&role.IsSystem,
			&role.CreatedAt,
			&role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}

	return roles, rows.Err()
}

// ReplaceUserRoles 替换用户的角色分配（事务内先删后插）
// 幂等：传入相同 roleIDs 结果一致
func (r *PostgresUsersRepository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if userID <= 0 {
		return fmt.Errorf("user_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 校验用户存在
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("user not found: user_id=%d", userID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}

	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, roleID,
		); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
				return fmt.Errorf("role not found: role_id=%d", roleID)
			}
			return fmt.Errorf("failed to assign role %d: %w", roleID, err)
		}
	}

	return tx.Commit()
}

// GetUserPermissions 解析用户的有效权限（roles -> role_permissions -> permissions，去重）
func (r *PostgresUsersRepository) GetUserPermissions(ctx context.Context, userID int64) ([]*domain.Permission, error) {
	query := `
		SELECT DISTINCT
			p.permission_id,
			p.name,
			p.description,
			p.created_at,
			p.updated_at
		FROM user_roles ur
		JOIN role_permissions rp ON ur.role_id = rp.role_id
		JOIN permissions p ON rp.permission_id = p.permission_id
		WHERE ur.user_id = $1
		ORDER BY p.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user permissions: %w", err)
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
