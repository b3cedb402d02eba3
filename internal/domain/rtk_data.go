package domain

import (
	"database/sql"
	"time"
)

// RTKData RTK定位数据领域模型（对应 rtk_data 表）
// RTK = Real-Time Kinematic，厘米级 GPS 差分定位
type RTKData struct {
	ID       int64  `db:"id"`
	DeviceID string `db:"device_id"` // NOT NULL: 基准站/流动站设备编号

	Longitude float64 `db:"longitude"` // NOT NULL: WGS84 经度
	Latitude  float64 `db:"latitude"`  // NOT NULL: WGS84 纬度
	Altitude  float64 `db:"altitude"`  // NOT NULL: 海拔（米）

	FixQuality     sql.NullString  `db:"fix_quality"` // single / float / fixed
	SatelliteCount sql.NullInt64   `db:"satellite_count"`
	HDOP           sql.NullFloat64 `db:"hdop"` // 水平精度因子

	Timestamp time.Time    `db:"timestamp"` // NOT NULL: 采样时刻
	CreatedAt sql.NullTime `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}
