// +build integration

package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/zanewnch/AIOT-sub003/internal/config"
	"github.com/zanewnch/AIOT-sub003/internal/database"
	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// 获取测试数据库连接
func getTestDB(t *testing.T) *sql.DB {
	cfg := &config.DatabaseConfig{
		Host:     getTestEnv("TEST_DB_HOST", "localhost"),
		Port:     getTestEnvInt("TEST_DB_PORT", 5432),
		User:     getTestEnv("TEST_DB_USER", "postgres"),
		Password: getTestEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getTestEnv("TEST_DB_NAME", "aiot_test"),
		SSLMode:  getTestEnv("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}

	return db
}

func getTestEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getTestEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func hashPassword(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}

// 清理测试用户及关联
func cleanupTestUser(db *sql.DB, username string) {
	db.Exec(`DELETE FROM user_roles WHERE user_id IN (SELECT user_id FROM users WHERE username = $1)`, username)
	db.Exec(`DELETE FROM users WHERE username = $1`, username)
}

func TestPostgresUsersRepository_CreateAndGet(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	cleanupTestUser(db, "it-user-create")
	defer cleanupTestUser(db, "it-user-create")

	repo := NewPostgresUsersRepository(db)
	ctx := context.Background()

	user := &domain.User{
		Username:     "it-user-create",
		PasswordHash: hashPassword("password123"),
		Email:        sql.NullString{String: "it@example.com", Valid: true},
		IsActive:     true,
	}

	userID, err := repo.CreateUser(ctx, user)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	got, err := repo.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if got.Username != "it-user-create" {
		t.Errorf("Expected username it-user-create, got %s", got.Username)
	}
	if !got.Email.Valid || got.Email.String != "it@example.com" {
		t.Errorf("Expected email it@example.com, got %v", got.Email)
	}

	// 用户名唯一约束
	if _, err := repo.CreateUser(ctx, user); err == nil {
		t.Error("Expected duplicate username error, got nil")
	}
}

func TestPostgresUsersRepository_ReplaceUserRoles(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	cleanupTestUser(db, "it-user-roles")
	defer cleanupTestUser(db, "it-user-roles")

	usersRepo := NewPostgresUsersRepository(db)
	rolesRepo := NewPostgresRolesRepository(db)
	ctx := context.Background()

	userID, err := usersRepo.CreateUser(ctx, &domain.User{
		Username:     "it-user-roles",
		PasswordHash: hashPassword("password123"),
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// 使用种子数据里的系统角色
	viewer, err := rolesRepo.GetRoleByName(ctx, "viewer")
	if err != nil {
		t.Skipf("Skipping: seed role 'viewer' not present: %v", err)
	}
	operator, err := rolesRepo.GetRoleByName(ctx, "operator")
	if err != nil {
		t.Skipf("Skipping: seed role 'operator' not present: %v", err)
	}

	if err := usersRepo.ReplaceUserRoles(ctx, userID, []int64{viewer.RoleID, operator.RoleID}); err != nil {
		t.Fatalf("Failed to replace user roles: %v", err)
	}

	roles, err := usersRepo.GetUserRoles(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to get user roles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("Expected 2 roles, got %d", len(roles))
	}

	// 相同入参重复提交幂等
	if err := usersRepo.ReplaceUserRoles(ctx, userID, []int64{viewer.RoleID, operator.RoleID}); err != nil {
		t.Fatalf("Replace with same roles failed: %v", err)
	}
	roles, err = usersRepo.GetUserRoles(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to get user roles: %v", err)
	}
	if len(roles) != 2 {
		t.Errorf("Expected 2 roles after idempotent replace, got %d", len(roles))
	}

	// 收窄到单角色
	if err := usersRepo.ReplaceUserRoles(ctx, userID, []int64{viewer.RoleID}); err != nil {
		t.Fatalf("Failed to narrow user roles: %v", err)
	}
	roles, err = usersRepo.GetUserRoles(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to get user roles: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "viewer" {
		t.Errorf("Expected single viewer role, got %v", roles)
	}
}
