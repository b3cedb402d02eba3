package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// PermissionHandler RBAC 权限端点
type PermissionHandler struct {
	perms  service.PermissionService
	logger *zap.Logger
}

// NewPermissionHandler 创建权限 Handler
func NewPermissionHandler(perms service.PermissionService, logger *zap.Logger) *PermissionHandler {
	return &PermissionHandler{perms: perms, logger: logger}
}

// Collection GET/POST /api/rbac/permissions
func (h *PermissionHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/rbac/permissions/{id}
func (h *PermissionHandler) Item(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rbac/permissions/")
	permissionID, err := parseID(rest)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, permissionID)
	case http.MethodPut:
		h.update(w, r, permissionID)
	case http.MethodDelete:
		h.delete(w, r, permissionID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *PermissionHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	perms, pagination, err := h.perms.ListPermissions(r.Context(), service.ListPermissionsRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   r.URL.Query().Get("search"),
	})
	if err != nil {
		h.logger.Error("Failed to list permissions", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list permissions")
		return
	}
	okPaged(w, perms, pagination)
}

func (h *PermissionHandler) get(w http.ResponseWriter, r *http.Request, permissionID int64) {
	perm, err := h.perms.GetPermission(r.Context(), permissionID)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, perm)
}

func (h *PermissionHandler) create(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req service.CreatePermissionRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	permissionID, err := h.perms.CreatePermission(r.Context(), req)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, map[string]int64{"permissionId": permissionID})
}

func (h *PermissionHandler) update(w http.ResponseWriter, r *http.Request, permissionID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req service.UpdatePermissionRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.perms.UpdatePermission(r.Context(), permissionID, req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}

func (h *PermissionHandler) delete(w http.ResponseWriter, r *http.Request, permissionID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	if err := h.perms.DeletePermission(r.Context(), permissionID); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}
