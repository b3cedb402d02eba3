package domain

import (
	"database/sql"
)

// Permission 权限领域模型（对应 permissions 表）
// name 采用 "resource:action" 约定，如 "drone:command", "rtk:read"
type Permission struct {
	PermissionID int64          `db:"permission_id"`
	Name         string         `db:"name"` // NOT NULL UNIQUE
	Description  sql.NullString `db:"description"`

	CreatedAt sql.NullTime `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}
