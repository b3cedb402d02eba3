package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/models"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// UserService 用户管理服务接口
type UserService interface {
	GetUser(ctx context.Context, userID int64) (*UserView, error)
	ListUsers(ctx context.Context, req ListUsersRequest) ([]*UserView, *models.Pagination, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (int64, error)
	UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest) error
	DeleteUser(ctx context.Context, userID int64) error

	GetUserRoles(ctx context.Context, userID int64) ([]*RoleView, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	GetUserPermissions(ctx context.Context, userID int64) ([]*PermissionView, error)
}

// userService 实现
type userService struct {
	usersRepo repository.UsersRepository
	logger    *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(usersRepo repository.UsersRepository, logger *zap.Logger) UserService {
	return &userService{usersRepo: usersRepo, logger: logger}
}

// UserView 用户视图（不暴露 password_hash）
type UserView struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	IsActive    bool     `json:"isActive"`
	LastLoginAt string   `json:"lastLoginAt,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

func toUserView(u *domain.User) *UserView {
	v := &UserView{
		UserID:   u.UserID,
		Username: u.Username,
		IsActive: u.IsActive,
	}
	if u.Email.Valid {
		v.Email = u.Email.String
	}
	if u.LastLoginAt.Valid {
		v.LastLoginAt = u.LastLoginAt.Time.Format("2006-01-02 15:04:05")
	}
	if u.CreatedAt.Valid {
		v.CreatedAt = u.CreatedAt.Time.Format("2006-01-02 15:04:05")
	}
	for _, r := range u.Roles {
		v.Roles = append(v.Roles, r.Name)
	}
	return v
}

// ListUsersRequest 用户列表请求
type ListUsersRequest struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	IsActive *bool
}

// GetUser 查询单个用户（带角色）
func (s *userService) GetUser(ctx context.Context, userID int64) (*UserView, error) {
	user, err := s.usersRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.usersRepo.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	user.Roles = roles
	return toUserView(user), nil
}

// ListUsers 用户列表
func (s *userService) ListUsers(ctx context.Context, req ListUsersRequest) ([]*UserView, *models.Pagination, error) {
	filters := repository.UserFilters{
		Search:   strings.TrimSpace(req.Search),
		Role:     strings.TrimSpace(req.Role),
		IsActive: req.IsActive,
	}

	users, total, err := s.usersRepo.ListUsers(ctx, filters, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}

	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}

	return views, models.NewPagination(req.Page, req.PageSize, total), nil
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    string  `json:"email"`
	RoleIDs  []int64 `json:"roleIds"`
}

// CreateUser 创建用户（密码 SHA-256 后落库）
func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (int64, error) {
	// 业务规则校验
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return 0, fmt.Errorf("username is required")
	}
	if len(req.Password) < 8 {
		return 0, fmt.Errorf("password must be at least 8 characters")
	}

	sum := sha256.Sum256([]byte(req.Password))
	user := &domain.User{
		Username:     req.Username,
		PasswordHash: sum[:],
		IsActive:     true,
	}
	if e := strings.TrimSpace(req.Email); e != "" {
		user.Email = sql.NullString{String: e, Valid: true}
	}

	userID, err := s.usersRepo.CreateUser(ctx, user)
	if err != nil {
		return 0, err
	}

	if len(req.RoleIDs) > 0 {
		if err := s.usersRepo.ReplaceUserRoles(ctx, userID, req.RoleIDs); err != nil {
			return 0, fmt.Errorf("user created but role assignment failed: %w", err)
		}
	}

	s.logger.Info("User created",
		zap.Int64("user_id", userID),
		zap.String("username", req.Username),
		zap.Int("role_count", len(req.RoleIDs)),
	)

	return userID, nil
}

// UpdateUserRequest 更新用户请求（部分更新）
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsActive *bool   `json:"isActive"`
}

// UpdateUser 更新用户
func (s *userService) UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest) error {
	patch := &domain.User{}

	if req.Email != nil {
		patch.Email = sql.NullString{String: strings.TrimSpace(*req.Email), Valid: true}
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return fmt.Errorf("password must be at least 8 characters")
		}
		sum := sha256.Sum256([]byte(*req.Password))
		patch.PasswordHash = sum[:]
	}
	if req.IsActive != nil {
		patch.IsActive = *req.IsActive
	}

	return s.usersRepo.UpdateUser(ctx, userID, patch)
}

// DeleteUser 删除用户
func (s *userService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.usersRepo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.Int64("user_id", userID))
	return nil
}

// GetUserRoles 查询用户角色
func (s *userService) GetUserRoles(ctx context.Context, userID int64) ([]*RoleView, error) {
	roles, err := s.usersRepo.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toRoleViews(roles), nil
}

// ReplaceUserRoles 整体替换用户角色（重复提交幂等）
func (s *userService) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if err := s.usersRepo.ReplaceUserRoles(ctx, userID, roleIDs); err != nil {
		return err
	}
	s.logger.Info("User roles replaced",
		zap.Int64("user_id", userID),
		zap.Int64s("role_ids", roleIDs),
	)
	return nil
}

// GetUserPermissions 解析用户权限（roles 并集去重）
func (s *userService) GetUserPermissions(ctx context.Context, userID int64) ([]*PermissionView, error) {
	perms, err := s.usersRepo.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toPermissionViews(perms), nil
}
