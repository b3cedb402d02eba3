package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// UserHandler RBAC 用户端点
type UserHandler struct {
	users  service.UserService
	logger *zap.Logger
}

// NewUserHandler 创建用户 Handler
func NewUserHandler(users service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Collection GET/POST /api/rbac/users
func (h *UserHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/rbac/users/{id}[/roles|/permissions]
func (h *UserHandler) Item(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rbac/users/")
	parts := strings.Split(rest, "/")

	userID, err := parseID(parts[0])
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, userID)
		case http.MethodPut:
			h.update(w, r, userID)
		case http.MethodDelete:
			h.delete(w, r, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "roles":
			switch r.Method {
			case http.MethodGet:
				h.getRoles(w, r, userID)
			case http.MethodPut:
				h.replaceRoles(w, r, userID)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
			return
		case "permissions":
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.getPermissions(w, r, userID)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *UserHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	q := r.URL.Query()

	req := service.ListUsersRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   q.Get("search"),
		Role:     q.Get("role"),
	}
	if v := q.Get("isActive"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}

	users, pagination, err := h.users.ListUsers(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	okPaged(w, users, pagination)
}

func (h *UserHandler) get(w http.ResponseWriter, r *http.Request, userID int64) {
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, user)
}

func (h *UserHandler) create(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req service.CreateUserRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.users.CreateUser(r.Context(), req)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, map[string]int64{"userId": userID})
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request, userID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req service.UpdateUserRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.users.UpdateUser(r.Context(), userID, req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}

func (h *UserHandler) delete(w http.ResponseWriter, r *http.Request, userID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}

func (h *UserHandler) getRoles(w http.ResponseWriter, r *http.Request, userID int64) {
	roles, err := h.users.GetUserRoles(r.Context(), userID)
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, roles)
}

func (h *UserHandler) replaceRoles(w http.ResponseWriter, r *http.Request, userID int64) {
	if !requirePermission(w, r, "rbac:manage") {
		return
	}

	var req struct {
		RoleIDs []int64 `json:"roleIds"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.users.ReplaceUserRoles(r.Context(), userID, req.RoleIDs); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}

func (h *UserHandler) getPermissions(w http.ResponseWriter, r *http.Request, userID int64) {
	perms, err := h.users.GetUserPermissions(r.Context(), userID)
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, perms)
}
