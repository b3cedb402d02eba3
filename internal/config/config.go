package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aiot-data（HTTP API + 归档服务）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Session SessionConfig
	MQTT    MQTTConfig
	RTK     RTKVendorConfig
	Archive ArchiveConfig
}

// DatabaseConfig PostgreSQL 配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// SessionConfig 会话配置（cookie + Redis）
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// MQTTConfig MQTT 配置（无人机遥测上行 + 指令下行）
type MQTTConfig struct {
	Enabled       bool
	Broker        string
	ClientID      string
	Username      string
	Password      string
	PositionTopic string // 订阅：drones/+/position
	StatusTopic   string // 订阅：drones/+/status
	AckTopic      string // 订阅：drones/+/command_ack
	CommandTopic  string // 发布模板：drones/%s/commands
	QoS           byte
}

// RTKVendorConfig RTK 基准站厂家服务配置
type RTKVendorConfig struct {
	Enabled   bool
	BaseURL   string
	AppID     string
	SecretKey string
}

// ArchiveConfig 归档任务配置
type ArchiveConfig struct {
	// CronSpec 归档任务调度表达式（默认每天 03:00）
	CronSpec string
	// Retention 热表保留时长，早于 now-Retention 的数据移入归档表
	Retention time.Duration
	// BatchLimit 单次归档最大行数（0 表示不限制）
	BatchLimit int
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8010")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "aiot")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Session.CookieName = getEnv("SESSION_COOKIE", "aiot_session")
	cfg.Session.TTL = parseDuration(getEnv("SESSION_TTL", "24h"), 24*time.Hour)
	cfg.Session.Secure = getEnv("SESSION_SECURE", "false") == "true"

	// MQTT 遥测接入（默认禁用，本地 go run 时不依赖 broker）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "aiot-data")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.PositionTopic = getEnv("MQTT_POSITION_TOPIC", "drones/+/position")
	cfg.MQTT.StatusTopic = getEnv("MQTT_STATUS_TOPIC", "drones/+/status")
	cfg.MQTT.AckTopic = getEnv("MQTT_ACK_TOPIC", "drones/+/command_ack")
	cfg.MQTT.CommandTopic = getEnv("MQTT_COMMAND_TOPIC", "drones/%s/commands")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	// RTK 厂家服务
	cfg.RTK.Enabled = getEnv("RTK_VENDOR_ENABLED", "false") == "true"
	cfg.RTK.BaseURL = getEnv("RTK_VENDOR_BASE_URL", "")
	cfg.RTK.AppID = getEnv("RTK_VENDOR_APP_ID", "")
	cfg.RTK.SecretKey = getEnv("RTK_VENDOR_SECRET_KEY", "")

	// 归档策略
	cfg.Archive.CronSpec = getEnv("ARCHIVE_CRON", "0 3 * * *")
	cfg.Archive.Retention = parseDuration(getEnv("ARCHIVE_RETENTION", "720h"), 720*time.Hour)
	cfg.Archive.BatchLimit = parseInt(getEnv("ARCHIVE_BATCH_LIMIT", "50000"), 50000)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
