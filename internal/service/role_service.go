package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/models"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// RoleService 角色管理服务接口
type RoleService interface {
	GetRole(ctx context.Context, roleID int64) (*RoleView, error)
	ListRoles(ctx context.Context, req ListRolesRequest) ([]*RoleView, *models.Pagination, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (int64, error)
	UpdateRole(ctx context.Context, roleID int64, req UpdateRoleRequest) error
	DeleteRole(ctx context.Context, roleID int64) error

	GetRolePermissions(ctx context.Context, roleID int64) ([]*PermissionView, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// roleService 实现
type roleService struct {
	rolesRepo repository.RolesRepository
	logger    *zap.Logger
}

// NewRoleService 创建 RoleService 实例
func NewRoleService(rolesRepo repository.RolesRepository, logger *zap.Logger) RoleService {
	return &roleService{rolesRepo: rolesRepo, logger: logger}
}

// ListRolesRequest 角色列表请求
type ListRolesRequest struct {
	Page     int
	PageSize int
	Search   string
}

// GetRole 查询单个角色（带权限）
func (s *roleService) GetRole(ctx context.Context, roleID int64) (*RoleView, error) {
	role, err := s.rolesRepo.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perms, err := s.rolesRepo.GetRolePermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	role.Permissions = perms
	return toRoleView(role), nil
}

// ListRoles 角色列表
func (s *roleService) ListRoles(ctx context.Context, req ListRolesRequest) ([]*RoleView, *models.Pagination, error) {
	roles, total, err := s.rolesRepo.ListRoles(ctx, repository.RolesFilter{
		Search: strings.TrimSpace(req.Search),
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toRoleViews(roles), models.NewPagination(req.Page, req.PageSize, total), nil
}

// CreateRoleRequest 创建角色请求
type CreateRoleRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// CreateRole 创建角色（不允许复用系统角色名）
func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (int64, error) {
	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	if req.Name == "" {
		return 0, fmt.Errorf("name is required")
	}

	role := &domain.Role{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		IsSystem:    false,
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		role.Description = sql.NullString{String: d, Valid: true}
	}
	if role.DisplayName == "" {
		role.DisplayName = req.Name
	}

	roleID, err := s.rolesRepo.CreateRole(ctx, role)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Role created", zap.Int64("role_id", roleID), zap.String("name", req.Name))
	return roleID, nil
}

// UpdateRoleRequest 更新角色请求（部分更新）
type UpdateRoleRequest struct {
	DisplayName *string `json:"displayName"`
	Description *string `json:"description"`
}

// UpdateRole 更新角色（name/is_system 不可改）
func (s *roleService) UpdateRole(ctx context.Context, roleID int64, req UpdateRoleRequest) error {
	patch := &domain.Role{}
	if req.DisplayName != nil {
		patch.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Description != nil {
		patch.Description = sql.NullString{String: strings.TrimSpace(*req.Description), Valid: true}
	}
	return s.rolesRepo.UpdateRole(ctx, roleID, patch)
}

// DeleteRole 删除角色：系统保护角色不可删除
func (s *roleService) DeleteRole(ctx context.Context, roleID int64) error {
	role, err := s.rolesRepo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem || domain.IsProtectedRole(role.Name) {
		return fmt.Errorf("protected system role cannot be deleted: %s", role.Name)
	}

	if err := s.rolesRepo.DeleteRole(ctx, roleID); err != nil {
		return err
	}

	s.logger.Info("Role deleted", zap.Int64("role_id", roleID), zap.String("name", role.Name))
	return nil
}

// GetRolePermissions 查询角色权限
func (s *roleService) GetRolePermissions(ctx context.Context, roleID int64) ([]*PermissionView, error) {
	perms, err := s.rolesRepo.GetRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return toPermissionViews(perms), nil
}

// ReplaceRolePermissions 整体替换角色权限（重复提交幂等）
func (s *roleService) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if err := s.rolesRepo.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	s.logger.Info("Role permissions replaced",
		zap.Int64("role_id", roleID),
		zap.Int64s("permission_ids", permissionIDs),
	)
	return nil
}
