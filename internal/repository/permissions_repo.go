package repository

import (
	"context"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// PermissionsRepository 权限Repository接口
type PermissionsRepository interface {
	GetPermission(ctx context.Context, permissionID int64) (*domain.Permission, error)
	ListPermissions(ctx context.Context, filter PermissionsFilter, page, size int) ([]*domain.Permission, int, error)
	CreatePermission(ctx context.Context, perm *domain.Permission) (int64, error)
	UpdatePermission(ctx context.Context, permissionID int64, perm *domain.Permission) error
	DeletePermission(ctx context.Context, permissionID int64) error
}

// PermissionsFilter 权限查询过滤器
type PermissionsFilter struct {
	Search string // 模糊搜索 name, description
}
