package repository

import (
	"context"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// RolesRepository 角色Repository接口
type RolesRepository interface {
	GetRole(ctx context.Context, roleID int64) (*domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	ListRoles(ctx context.Context, filter RolesFilter, page, size int) ([]*domain.Role, int, error)
	CreateRole(ctx context.Context, role *domain.Role) (int64, error)
	UpdateRole(ctx context.Context, roleID int64, role *domain.Role) error
	DeleteRole(ctx context.Context, roleID int64) error

	// 角色-权限关联（role_permissions 表）
	GetRolePermissions(ctx context.Context, roleID int64) ([]*domain.Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// RolesFilter 角色查询过滤器
type RolesFilter struct {
	Search   string // 模糊搜索 name, display_name, description
	IsSystem *bool
}
