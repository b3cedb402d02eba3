package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/repository"
	"github.com/zanewnch/AIOT-sub003/internal/store"
)

// sessionKeyPrefix Redis 会话键前缀
const sessionKeyPrefix = "aiot:session:"

// Session 会话载荷（JSON 存 Redis，TTL 到期自动失效）
type Session struct {
	SessionID   string    `json:"session_id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	IssuedAt    time.Time `json:"issued_at"`
}

// HasPermission 会话是否持有指定权限
func (s *Session) HasPermission(name string) bool {
	for _, p := range s.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// AuthService 认证授权服务接口
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
	// GetSession 解析会话ID，未命中或过期返回错误
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// SessionTTL 用于设置 cookie 的 Max-Age
	SessionTTL() time.Duration
}

// authService 实现
type authService struct {
	usersRepo repository.UsersRepository
	kv        store.KV
	ttl       time.Duration
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(usersRepo repository.UsersRepository, kv store.KV, ttl time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		usersRepo: usersRepo,
		kv:        kv,
		ttl:       ttl,
		logger:    logger,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"` // 明文，服务端 SHA-256 后比对
	IPAddress string `json:"-"`        // 客户端 IP（用于日志）
	UserAgent string `json:"-"`        // 客户端 User-Agent（用于日志）
}

// LoginResponse 登录响应
type LoginResponse struct {
	SessionID   string   `json:"-"` // 写入 cookie，不出现在响应体
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Login 用户登录：校验凭证、加载角色权限、发会话
func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	// 1. 参数验证
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		s.logger.Warn("User login failed: missing credentials",
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
		)
		return nil, fmt.Errorf("missing credentials")
	}

	// 2. 凭证比对（SHA-256）
	user, err := s.usersRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		s.logger.Warn("User login failed: invalid credentials",
			zap.String("username", req.Username),
			zap.String("ip_address", req.IPAddress),
			zap.String("reason", "user_not_found"),
		)
		return nil, fmt.Errorf("invalid credentials")
	}

	sum := sha256.Sum256([]byte(req.Password))
	if !bytes.Equal(sum[:], user.PasswordHash) {
		s.logger.Warn("User login failed: invalid credentials",
			zap.String("username", req.Username),
			zap.String("ip_address", req.IPAddress),
			zap.String("reason", "password_mismatch"),
		)
		return nil, fmt.Errorf("invalid credentials")
	}

	if !user.IsActive {
		s.logger.Warn("User login failed: account not active",
			zap.Int64("user_id", user.UserID),
			zap.String("username", req.Username),
			zap.String("ip_address", req.IPAddress),
		)
		return nil, fmt.Errorf("user is not active")
	}

	// 3. 加载角色与权限快照进会话
	roles, err := s.usersRepo.GetUserRoles(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	perms, err := s.usersRepo.GetUserPermissions(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user permissions: %w", err)
	}

	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, r.Name)
	}
	permNames := make([]string, 0, len(perms))
	for _, p := range perms {
		permNames = append(permNames, p.Name)
	}

	// 4. 发会话
	session := &Session{
		SessionID:   uuid.NewString(),
		UserID:      user.UserID,
		Username:    user.Username,
		Roles:       roleNames,
		Permissions: permNames,
		IssuedAt:    time.Now(),
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKeyPrefix+session.SessionID, string(payload), s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	// 5. 登录后处理（失败不影响登录）
	if err := s.usersRepo.TouchLastLogin(ctx, user.UserID); err != nil {
		s.logger.Warn("Failed to update last_login_at",
			zap.Int64("user_id", user.UserID),
			zap.Error(err),
		)
	}

	s.logger.Info("User login successful",
		zap.Int64("user_id", user.UserID),
		zap.String("username", user.Username),
		zap.Strings("roles", roleNames),
		zap.String("ip_address", req.IPAddress),
		zap.String("user_agent", req.UserAgent),
	)

	return &LoginResponse{
		SessionID:   session.SessionID,
		UserID:      user.UserID,
		Username:    user.Username,
		Roles:       roleNames,
		Permissions: permNames,
	}, nil
}

// Logout 登出：删除会话
func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.kv.Del(ctx, sessionKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetSession 解析会话
func (s *authService) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	payload, err := s.kv.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		if err == store.ErrMiss {
			return nil, fmt.Errorf("session expired or not found")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (s *authService) SessionTTL() time.Duration { return s.ttl }
