package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 基于标准库 http.ServeMux 的路由器，避免引入第三方路由依赖。
// 方法分发在各 Handler 内部完成。
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(logger *zap.Logger) *Router {
	return &Router{mux: http.NewServeMux(), logger: logger}
}

// ServeHTTP 实现 http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Handlers 路由注册所需的全部 Handler
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Roles         *RoleHandler
	Permissions   *PermissionHandler
	RTK           *RTKHandler
	DronePosition *DronePositionHandler
	DroneStatus   *DroneStatusHandler
	DroneCommand  *DroneCommandHandler
	ArchiveTasks  *ArchiveTasksHandler
}

// RegisterRoutes 注册全部路由；除登录与健康检查外均套会话中间件
func (rt *Router) RegisterRoutes(h Handlers, session *SessionMiddleware) {
	// 健康检查
	rt.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "up"})
	})

	// 认证
	rt.mux.HandleFunc("/api/auth/login", h.Auth.Login)
	rt.mux.HandleFunc("/api/auth/logout", session.Wrap(h.Auth.Logout))
	rt.mux.HandleFunc("/api/auth/me", session.Wrap(h.Auth.Me))

	// RBAC
	rt.mux.HandleFunc("/api/rbac/users", session.Wrap(h.Users.Collection))
	rt.mux.HandleFunc("/api/rbac/users/", session.Wrap(h.Users.Item))
	rt.mux.HandleFunc("/api/rbac/roles", session.Wrap(h.Roles.Collection))
	rt.mux.HandleFunc("/api/rbac/roles/", session.Wrap(h.Roles.Item))
	rt.mux.HandleFunc("/api/rbac/permissions", session.Wrap(h.Permissions.Collection))
	rt.mux.HandleFunc("/api/rbac/permissions/", session.Wrap(h.Permissions.Item))

	// RTK 定位数据
	rt.mux.HandleFunc("/api/rtk/data", session.Wrap(h.RTK.Data))
	rt.mux.HandleFunc("/api/rtk/data/", session.Wrap(h.RTK.Item))
	rt.mux.HandleFunc("/api/rtk/vendor-pull", session.Wrap(h.RTK.VendorPull))

	// 位置遥测
	rt.mux.HandleFunc("/api/drone-positions/data", session.Wrap(h.DronePosition.Data))
	rt.mux.HandleFunc("/api/drone-positions/data/latest", session.Wrap(h.DronePosition.Latest))
	rt.mux.HandleFunc("/api/drone-positions-archive/data", session.Wrap(h.DronePosition.ArchiveData))
	rt.mux.HandleFunc("/api/drone-positions-archive/statistics", session.Wrap(h.DronePosition.Statistics))
	rt.mux.HandleFunc("/api/drone-positions-archive/export", session.Wrap(h.DronePosition.Export))

	// 状态遥测
	rt.mux.HandleFunc("/api/drone-status/data", session.Wrap(h.DroneStatus.Data))
	rt.mux.HandleFunc("/api/drone-status/data/latest", session.Wrap(h.DroneStatus.Latest))
	rt.mux.HandleFunc("/api/drone-status-archive/data", session.Wrap(h.DroneStatus.ArchiveData))
	rt.mux.HandleFunc("/api/drone-status-archive/statistics", session.Wrap(h.DroneStatus.Statistics))

	// 指令
	rt.mux.HandleFunc("/api/drone-commands/data", session.Wrap(h.DroneCommand.Data))
	rt.mux.HandleFunc("/api/drone-commands/data/", session.Wrap(h.DroneCommand.Item))
	rt.mux.HandleFunc("/api/drone-commands/send", session.Wrap(h.DroneCommand.Send))
	rt.mux.HandleFunc("/api/drone-commands-archive/data", session.Wrap(h.DroneCommand.ArchiveData))

	// 归档任务
	rt.mux.HandleFunc("/api/archive-tasks", session.Wrap(h.ArchiveTasks.Trigger))
	rt.mux.HandleFunc("/api/archive-tasks/data", session.Wrap(h.ArchiveTasks.Data))
	rt.mux.HandleFunc("/api/archive-tasks/data/", session.Wrap(h.ArchiveTasks.Item))

	rt.logger.Info("HTTP routes registered")
}
