package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// AuthHandler 认证端点
type AuthHandler struct {
	auth       service.AuthService
	cookieName string
	secure     bool
	logger     *zap.Logger
}

// NewAuthHandler 创建认证 Handler
func NewAuthHandler(auth service.AuthService, cookieName string, secure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, cookieName: cookieName, secure: secure, logger: logger}
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req service.LoginRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.IPAddress = r.RemoteAddr
	req.UserAgent = r.UserAgent()

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		failAuth(w, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    resp.SessionID,
		Path:     "/",
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	ok(w, resp)
}

// Logout POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if cookie, err := r.Cookie(h.cookieName); err == nil {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("Failed to delete session on logout", zap.Error(err))
		}
	}

	// 过期 cookie
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	ok[any](w, nil)
}

// Me GET /api/auth/me（会话中间件之后）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		failAuth(w, "authentication required")
		return
	}
	ok(w, session)
}
