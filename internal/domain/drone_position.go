package domain

import (
	"database/sql"
	"time"
)

// DronePosition 无人机位置遥测（对应 drone_positions 热表）
type DronePosition struct {
	ID      int64  `db:"id"`
	DroneID string `db:"drone_id"` // NOT NULL: 机身编号

	Longitude float64 `db:"longitude"` // NOT NULL
	Latitude  float64 `db:"latitude"`  // NOT NULL
	Altitude  float64 `db:"altitude"`  // NOT NULL: 相对起飞点高度（米）

	Speed          sql.NullFloat64 `db:"speed"`   // 地速（m/s）
	Heading        sql.NullFloat64 `db:"heading"` // 航向角（0-360）
	BatteryLevel   sql.NullFloat64 `db:"battery_level"`
	SignalStrength sql.NullInt64   `db:"signal_strength"` // RSSI（dBm）

	Timestamp time.Time    `db:"timestamp"` // NOT NULL: 采样时刻
	CreatedAt sql.NullTime `db:"created_at"`
}

// DronePositionArchive 位置归档记录（对应 drone_positions_archive 表）
// 归档表是热表行的只读副本，附带归档批次信息
type DronePositionArchive struct {
	DronePosition

	OriginalID     int64     `db:"original_id"`      // NOT NULL: 热表原始行 ID
	ArchivedAt     time.Time `db:"archived_at"`      // NOT NULL
	ArchiveBatchID string    `db:"archive_batch_id"` // NOT NULL: UUID，关联 archive_tasks
}
