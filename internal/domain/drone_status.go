package domain

import (
	"database/sql"
	"time"
)

// 飞行状态枚举（flight_status 列取值）
const (
	FlightStatusGrounded  = "grounded"
	FlightStatusTakingOff = "taking_off"
	FlightStatusFlying    = "flying"
	FlightStatusHovering  = "hovering"
	FlightStatusReturning = "returning"
	FlightStatusLanding   = "landing"
	FlightStatusError     = "error"
)

// ValidFlightStatus 校验飞行状态取值
func ValidFlightStatus(s string) bool {
	switch s {
	case FlightStatusGrounded, FlightStatusTakingOff, FlightStatusFlying,
		FlightStatusHovering, FlightStatusReturning, FlightStatusLanding, FlightStatusError:
		return true
	}
	return false
}

// DroneStatus 无人机状态遥测（对应 drone_status 热表）
type DroneStatus struct {
	ID      int64  `db:"id"`
	DroneID string `db:"drone_id"` // NOT NULL

	FlightStatus string  `db:"flight_status"` // NOT NULL: grounded / flying / ...
	BatteryLevel float64 `db:"battery_level"` // NOT NULL: 0-100

	BatteryVoltage sql.NullFloat64 `db:"battery_voltage"` // V
	Temperature    sql.NullFloat64 `db:"temperature"`     // 机体温度（℃）
	Altitude       sql.NullFloat64 `db:"altitude"`
	IsConnected    bool            `db:"is_connected"` // NOT NULL DEFAULT TRUE
	ErrorCode      sql.NullString  `db:"error_code"`

	Timestamp time.Time    `db:"timestamp"` // NOT NULL
	CreatedAt sql.NullTime `db:"created_at"`
}

// DroneStatusArchive 状态归档记录（对应 drone_status_archive 表）
type DroneStatusArchive struct {
	DroneStatus

	OriginalID     int64     `db:"original_id"`
	ArchivedAt     time.Time `db:"archived_at"`
	ArchiveBatchID string    `db:"archive_batch_id"`
}
