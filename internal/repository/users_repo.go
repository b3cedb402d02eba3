package repository

import (
	"context"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// UsersRepository 用户Repository接口
// 使用强类型领域模型，不使用map[string]any
type UsersRepository interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context, filters UserFilters, page, size int) ([]*domain.User, int, error)
	CreateUser(ctx context.Context, user *domain.User) (int64, error)
	UpdateUser(ctx context.Context, userID int64, user *domain.User) error
	DeleteUser(ctx context.Context, userID int64) error
	TouchLastLogin(ctx context.Context, userID int64) error

	// 用户-角色关联（user_roles 表）
	GetUserRoles(ctx context.Context, userID int64) ([]*domain.Role, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error

	// 权限解析：user -> roles -> permissions（去重）
	GetUserPermissions(ctx context.Context, userID int64) ([]*domain.Permission, error)
}

// UserFilters 用户查询过滤器
type UserFilters struct {
	IsActive *bool
	Role     string // 按角色代码过滤
	Search   string // 模糊搜索：username, email
}
