package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
	"github.com/zanewnch/AIOT-sub003/internal/store"
)

// fakeKV 内存 KV（测试替身）
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) ScanKeys(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ store.KV = (*fakeKV)(nil)

// fakeUsersRepo 用户 Repository 测试替身
type fakeUsersRepo struct {
	repository.UsersRepository // 未覆盖的方法 panic，测试只走覆盖路径

	users       map[string]*domain.User
	roles       map[int64][]*domain.Role
	perms       map[int64][]*domain.Permission
	lastTouched int64
}

func (f *fakeUsersRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsersRepo) GetUserRoles(_ context.Context, userID int64) ([]*domain.Role, error) {
	return f.roles[userID], nil
}

func (f *fakeUsersRepo) GetUserPermissions(_ context.Context, userID int64) ([]*domain.Permission, error) {
	return f.perms[userID], nil
}

func (f *fakeUsersRepo) TouchLastLogin(_ context.Context, userID int64) error {
	f.lastTouched = userID
	return nil
}

func newTestAuthService(t *testing.T) (AuthService, *fakeUsersRepo, *fakeKV) {
	t.Helper()
	pw := sha256.Sum256([]byte("s3cret-pass"))
	repo := &fakeUsersRepo{
		users: map[string]*domain.User{
			"admin": {UserID: 1, Username: "admin", PasswordHash: pw[:], IsActive: true},
			"frozen": {
				UserID: 2, Username: "frozen", PasswordHash: pw[:], IsActive: false,
			},
		},
		roles: map[int64][]*domain.Role{
			1: {{RoleID: 1, Name: "admin", DisplayName: "Administrator"}},
		},
		perms: map[int64][]*domain.Permission{
			1: {{PermissionID: 1, Name: "drone:command"}},
		},
	}
	kv := newFakeKV()
	return NewAuthService(repo, kv, time.Hour, zap.NewNop()), repo, kv
}

func TestLogin(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Username: "admin",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	require.Equal(t, int64(1), resp.UserID)
	require.Equal(t, []string{"admin"}, resp.Roles)
	require.Equal(t, []string{"drone:command"}, resp.Permissions)
	require.Equal(t, int64(1), repo.lastTouched)

	// 会话可解析
	session, err := svc.GetSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, "admin", session.Username)
	require.True(t, session.HasPermission("drone:command"))
	require.False(t, session.HasPermission("rbac:admin"))
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), LoginRequest{
		Username: "admin",
		Password: "wrong",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid credentials")
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), LoginRequest{
		Username: "frozen",
		Password: "s3cret-pass",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not active")
}

func TestLogout(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Username: "admin",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), resp.SessionID))

	_, err = svc.GetSession(context.Background(), resp.SessionID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expired or not found")
}
