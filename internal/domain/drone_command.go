package domain

import (
	"database/sql"
	"time"
)

// 指令类型枚举（command_type 列取值）
const (
	CommandTakeoff = "takeoff"
	CommandLand    = "land"
	CommandGoto    = "goto"
	CommandHover   = "hover"
	CommandReturn  = "return"
)

// 指令状态机：pending -> sent -> completed / failed
const (
	CommandStatusPending   = "pending"
	CommandStatusSent      = "sent"
	CommandStatusCompleted = "completed"
	CommandStatusFailed    = "failed"
)

// ValidCommandType 校验指令类型
func ValidCommandType(t string) bool {
	switch t {
	case CommandTakeoff, CommandLand, CommandGoto, CommandHover, CommandReturn:
		return true
	}
	return false
}

// DroneCommand 无人机指令（对应 drone_commands 热表）
type DroneCommand struct {
	ID      int64  `db:"id"`
	DroneID string `db:"drone_id"` // NOT NULL

	CommandType string         `db:"command_type"` // NOT NULL
	CommandData sql.NullString `db:"command_data"` // JSONB: 指令参数（goto 的目标坐标等）
	Status      string         `db:"status"`       // NOT NULL DEFAULT 'pending'

	IssuedBy sql.NullInt64 `db:"issued_by"` // users.user_id，厂家回传指令可为 NULL
	IssuedAt time.Time     `db:"issued_at"` // NOT NULL

	ExecutedAt   sql.NullTime   `db:"executed_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	ErrorMessage sql.NullString `db:"error_message"`

	CreatedAt sql.NullTime `db:"created_at"`
}

// DroneCommandArchive 指令归档记录（对应 drone_commands_archive 表）
type DroneCommandArchive struct {
	DroneCommand

	OriginalID     int64     `db:"original_id"`
	ArchivedAt     time.Time `db:"archived_at"`
	ArchiveBatchID string    `db:"archive_batch_id"`
}
