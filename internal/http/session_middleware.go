package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

type contextKey string

const sessionContextKey contextKey = "aiot-session"

// SessionMiddleware cookie -> Redis 会话解析，注入请求上下文
type SessionMiddleware struct {
	auth       service.AuthService
	cookieName string
	logger     *zap.Logger
}

// NewSessionMiddleware 创建会话中间件
func NewSessionMiddleware(auth service.AuthService, cookieName string, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{auth: auth, cookieName: cookieName, logger: logger}
}

// Wrap 要求已登录，未认证请求返回 HTTP 401
func (m *SessionMiddleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil || cookie.Value == "" {
			failAuth(w, "authentication required")
			return
		}

		session, err := m.auth.GetSession(r.Context(), cookie.Value)
		if err != nil {
			failAuth(w, "session expired or invalid")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next(w, r.WithContext(ctx))
	}
}

// SessionFromContext 取出当前会话，中间件保证受保护路由内非 nil
func SessionFromContext(ctx context.Context) *service.Session {
	session, _ := ctx.Value(sessionContextKey).(*service.Session)
	return session
}

// requirePermission 权限校验，失败时写响应并返回 false
func requirePermission(w http.ResponseWriter, r *http.Request, name string) bool {
	session := SessionFromContext(r.Context())
	if session == nil {
		failAuth(w, "authentication required")
		return false
	}
	if !session.HasPermission(name) {
		fail(w, http.StatusForbidden, "permission denied: "+name)
		return false
	}
	return true
}
