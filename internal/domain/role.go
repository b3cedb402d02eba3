package domain

import (
	"database/sql"
)

// Role 角色领域模型（对应 roles 表）
type Role struct {
	RoleID      int64          `db:"role_id"`
	Name        string         `db:"name"`         // NOT NULL UNIQUE: 角色代码，用于程序引用
	DisplayName string         `db:"display_name"` // NOT NULL: 前端显示名称
	Description sql.NullString `db:"description"`
	IsSystem    bool           `db:"is_system"` // NOT NULL DEFAULT FALSE: 系统预定义角色不可删除

	CreatedAt sql.NullTime `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`

	// Permissions 由 role_permissions 关联表加载（非 roles 表字段）
	Permissions []*Permission `db:"-"`
}

// ProtectedRoles 受保护的关键系统角色（不能删除或禁用）
var ProtectedRoles = []string{"admin", "operator", "viewer"}

// IsProtectedRole 判断角色代码是否属于受保护角色
func IsProtectedRole(name string) bool {
	for _, p := range ProtectedRoles {
		if p == name {
			return true
		}
	}
	return false
}
