package domain

import (
	"database/sql"
)

// User 用户领域模型（对应 users 表）
type User struct {
	UserID       int64  `db:"user_id"`
	Username     string `db:"username"`      // NOT NULL UNIQUE
	PasswordHash []byte `db:"password_hash"` // NOT NULL: SHA-256(password)

	Email    sql.NullString `db:"email"`
	IsActive bool           `db:"is_active"` // NOT NULL DEFAULT TRUE

	LastLoginAt sql.NullTime `db:"last_login_at"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`

	// Roles 由 user_roles 关联表加载（非 users 表字段）
	Roles []*Role `db:"-"`
}
