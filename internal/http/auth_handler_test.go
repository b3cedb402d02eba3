package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// fakeAuthService 内存会话，本包 HTTP 测试共用
type fakeAuthService struct {
	sessions map[string]*service.Session
	password string
}

func newFakeAuthService() *fakeAuthService {
	return &fakeAuthService{sessions: make(map[string]*service.Session), password: "secret-pass"}
}

func (f *fakeAuthService) Login(_ context.Context, req service.LoginRequest) (*service.LoginResponse, error) {
	if req.Password != f.password {
		return nil, fmt.Errorf("invalid credentials")
	}
	session := &service.Session{
		SessionID:   "sess-" + req.Username,
		UserID:      7,
		Username:    req.Username,
		Roles:       []string{"operator"},
		Permissions: []string{"drone:command"},
		IssuedAt:    time.Now(),
	}
	f.sessions[session.SessionID] = session
	return &service.LoginResponse{
		SessionID:   session.SessionID,
		UserID:      session.UserID,
		Username:    session.Username,
		Roles:       session.Roles,
		Permissions: session.Permissions,
	}, nil
}

func (f *fakeAuthService) Logout(_ context.Context, sessionID string) error {
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeAuthService) GetSession(_ context.Context, sessionID string) (*service.Session, error) {
	session, found := f.sessions[sessionID]
	if !found {
		return nil, fmt.Errorf("session expired or not found")
	}
	return session, nil
}

func (f *fakeAuthService) SessionTTL() time.Duration { return time.Hour }

// seedSession 预置会话并返回对应 cookie
func (f *fakeAuthService) seedSession(perms ...string) *http.Cookie {
	session := &service.Session{
		SessionID:   "sess-seeded",
		UserID:      42,
		Username:    "admin",
		Roles:       []string{"admin"},
		Permissions: perms,
		IssuedAt:    time.Now(),
	}
	f.sessions[session.SessionID] = session
	return &http.Cookie{Name: "aiot_session", Value: session.SessionID}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var result Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestLogin(t *testing.T) {
	auth := newFakeAuthService()
	handler := NewAuthHandler(auth, "aiot_session", false, zap.NewNop())

	body := strings.NewReader(`{"username":"alice","password":"secret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusOK, result.Status)

	// 会话进 cookie，不进响应体
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "aiot_session", cookies[0].Name)
	assert.Equal(t, "sess-alice", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, rec.Body.String(), "sess-alice")
}

func TestLogin_WrongPassword(t *testing.T) {
	auth := newFakeAuthService()
	handler := NewAuthHandler(auth, "aiot_session", false, zap.NewNop())

	body := strings.NewReader(`{"username":"alice","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	// 认证失败是信封约定的唯一非 200 情况
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	result := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusUnauthorized, result.Status)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogout(t *testing.T) {
	auth := newFakeAuthService()
	cookie := auth.seedSession()
	handler := NewAuthHandler(auth, "aiot_session", false, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, auth.sessions)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestAuthHandler_MethodNotAllowed(t *testing.T) {
	auth := newFakeAuthService()
	handler := NewAuthHandler(auth, "aiot_session", false, zap.NewNop())

	// 登录、登出只接受 POST
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	rec = httptest.NewRecorder()
	handler.Logout(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSessionMiddleware_MissingCookie(t *testing.T) {
	auth := newFakeAuthService()
	mw := NewSessionMiddleware(auth, "aiot_session", zap.NewNop())

	called := false
	wrapped := mw.Wrap(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	wrapped(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestSessionMiddleware_InjectsSession(t *testing.T) {
	auth := newFakeAuthService()
	cookie := auth.seedSession("rbac:manage")
	mw := NewSessionMiddleware(auth, "aiot_session", zap.NewNop())

	wrapped := mw.Wrap(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		require.NotNil(t, session)
		assert.Equal(t, "admin", session.Username)
		ok(w, session.Username)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	wrapped(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission_Denied(t *testing.T) {
	auth := newFakeAuthService()
	cookie := auth.seedSession() // 无任何权限
	mw := NewSessionMiddleware(auth, "aiot_session", zap.NewNop())

	wrapped := mw.Wrap(func(w http.ResponseWriter, r *http.Request) {
		if !requirePermission(w, r, "rbac:manage") {
			return
		}
		ok[any](w, nil)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/rbac/users", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	wrapped(rec, req)

	// 业务拒绝走 HTTP 200 + 信封 403
	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusForbidden, result.Status)
	assert.Contains(t, result.Message, "rbac:manage")
}
