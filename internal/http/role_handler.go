package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// RoleHandler RBAC 角色端点
type RoleHandler struct {
	roles  service.RoleService
	logger *zap.Logger
}

// NewRoleHandler 创建角色 Handler
func NewRoleHandler(roles service.RoleService, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, logger: logger}
}

// Collection GET/POST /api/rbac/roles
func (h *RoleHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/rbac/roles/{id}[/permissions]
func (h *RoleHandler) Item(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rbac/roles/")
	parts := strings.Split(rest, "/")

	roleID, err := parseID(parts[0])
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, roleID)
		case http.MethodPut:
			h.update(w, r, roleID)
		case http.MethodDelete:
			h.delete(w, r, roleID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "permissions" {
		switch r.Method {
		case http.MethodGet:
			h.getPermissions(w, r, roleID)
		case http.MethodPut:
			h.replacePermissions(w, r, roleID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *RoleHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	roles, pagination, err := h.roles.ListRoles(r.Context(), service.ListRolesRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   r.URL.Query().Get("search"),
	})
	if err != nil {
		h.logger.Error("Failed to list roles", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	okPaged(w, roles, pagination)
}

func (h *RoleHandler) get(w http.ResponseWriter, r *http.Request, roleID int64) {
	role, err := h.roles.GetRole(r.Context(), roleID)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, role)
}

func (h *RoleHandler) create(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req service.CreateRoleRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roleID, err := h.roles.CreateRole(r.Context(), req)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, map[string]int64{"roleId": roleID})
}

func (h *RoleHandler) update(w http.ResponseWriter, r *http.Request, roleID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req service.UpdateRoleRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.roles.UpdateRole(r.Context(), roleID, req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}

func (h *RoleHandler) delete(w http.ResponseWriter, r *http.Request, roleID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	if err := h.roles.DeleteRole(r.Context(), roleID); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}

func (h *RoleHandler) getPermissions(w http.ResponseWriter, r *http.Request, roleID int64) {
	perms, err := h.roles.GetRolePermissions(r.Context(), roleID)
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, perms)
}

func (h *RoleHandler) replacePermissions(w http.ResponseWriter, r *http.Request, roleID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req struct {
		PermissionIDs []int64 `json:"permissionIds"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.roles.ReplaceRolePermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}
