package domain

import (
	"database/sql"
	"time"
)

// 归档任务状态
const (
	ArchiveTaskRunning   = "running"
	ArchiveTaskCompleted = "completed"
	ArchiveTaskFailed    = "failed"
)

// 可归档的热表
const (
	ArchiveTablePositions = "drone_positions"
	ArchiveTableStatus    = "drone_status"
	ArchiveTableCommands  = "drone_commands"
)

// ValidArchiveTable 校验归档目标表
func ValidArchiveTable(t string) bool {
	switch t {
	case ArchiveTablePositions, ArchiveTableStatus, ArchiveTableCommands:
		return true
	}
	return false
}

// ArchiveTask 归档任务簿记（对应 archive_tasks 表）
// 一次 copy-to-archive 批次对应一行，batch_id 写入归档行的 archive_batch_id
type ArchiveTask struct {
	ID        int64  `db:"id"`
	BatchID   string `db:"batch_id"`   // NOT NULL UNIQUE: UUID
	TableName string `db:"table_name"` // NOT NULL: 热表名

	RangeStart time.Time `db:"range_start"` // NOT NULL: 归档时间窗下界
	RangeEnd   time.Time `db:"range_end"`   // NOT NULL: 归档时间窗上界（保留期截止点）

	TotalRecords int    `db:"total_records"` // NOT NULL DEFAULT 0
	Status       string `db:"status"`        // NOT NULL: running / completed / failed
	CreatedBy    string `db:"created_by"`    // NOT NULL: "scheduler" 或触发者 username

	StartedAt    time.Time      `db:"started_at"` // NOT NULL
	FinishedAt   sql.NullTime   `db:"finished_at"`
	ErrorMessage sql.NullString `db:"error_message"`
}
