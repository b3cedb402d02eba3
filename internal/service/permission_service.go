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

// PermissionService 权限管理服务接口
type PermissionService interface {
	GetPermission(ctx context.Context, permissionID int64) (*PermissionView, error)
	ListPermissions(ctx context.Context, req ListPermissionsRequest) ([]*PermissionView, *models.Pagination, error)
	CreatePermission(ctx context.Context, req CreatePermissionRequest) (int64, error)
	UpdatePermission(ctx context.Context, permissionID int64, req UpdatePermissionRequest) error
	DeletePermission(ctx context.Context, permissionID int64) error
}

// permissionService 实现
type permissionService struct {
	permsRepo repository.PermissionsRepository
	logger    *zap.Logger
}

// NewPermissionService 创建 PermissionService 实例
func NewPermissionService(permsRepo repository.PermissionsRepository, logger *zap.Logger) PermissionService {
	return &permissionService{permsRepo: permsRepo, logger: logger}
}

// ListPermissionsRequest 权限列表请求
type ListPermissionsRequest struct {
	Page     int
	PageSize int
	Search   string
}

// GetPermission 查询单个权限
func (s *permissionService) GetPermission(ctx context.Context, permissionID int64) (*PermissionView, error) {
	perm, err := s.permsRepo.GetPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	return toPermissionView(perm), nil
}

// ListPermissions 权限列表
func (s *permissionService) ListPermissions(ctx context.Context, req ListPermissionsRequest) ([]*PermissionView, *models.Pagination, error) {
	perms, total, err := s.permsRepo.ListPermissions(ctx, repository.PermissionsFilter{
		Search: strings.TrimSpace(req.Search),
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toPermissionViews(perms), models.NewPagination(req.Page, req.PageSize, total), nil
}

// CreatePermissionRequest 创建权限请求
type CreatePermissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreatePermission 创建权限，name 约定 "resource:action" 格式
func (s *permissionService) CreatePermission(ctx context.Context, req CreatePermissionRequest) (int64, error) {
	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	if req.Name == "" {
		return 0, fmt.Errorf("name is required")
	}
	if !strings.Contains(req.Name, ":") {
		return 0, fmt.Errorf("permission name must follow resource:action format: %s", req.Name)
	}

	perm := &domain.Permission{Name: req.Name}
	if d := strings.TrimSpace(req.Description); d != "" {
		perm.Description = sql.NullString{String: d, Valid: true}
	}

	permissionID, err := s.permsRepo.CreatePermission(ctx, perm)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Permission created",
		zap.Int64("permission_id", permissionID),
		zap.String("name", req.Name),
	)
	return permissionID, nil
}

// UpdatePermissionRequest 更新权限请求（部分更新）
type UpdatePermissionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// UpdatePermission 更新权限
func (s *permissionService) UpdatePermission(ctx context.Context, permissionID int64, req UpdatePermissionRequest) error {
	patch := &domain.Permission{}
	if req.Name != nil {
		name := strings.ToLower(strings.TrimSpace(*req.Name))
		if !strings.Contains(name, ":") {
			return fmt.Errorf("permission name must follow resource:action format: %s", name)
		}
		patch.Name = name
	}
	if req.Description != nil {
		patch.Description = sql.NullString{String: strings.TrimSpace(*req.Description), Valid: true}
	}
	return s.permsRepo.UpdatePermission(ctx, permissionID, patch)
}

// DeletePermission 删除权限
func (s *permissionService) DeletePermission(ctx context.Context, permissionID int64) error {
	if err := s.permsRepo.DeletePermission(ctx, permissionID); err != nil {
		return err
	}
	s.logger.Info("Permission deleted", zap.Int64("permission_id", permissionID))
	return nil
}
