package service

import (
	"encoding/json"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// API 层返回的 JSON 视图。领域模型带 sql.Null* 字段，
// 不直接序列化，统一在这里转成前端消费的扁平结构。

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string { return t.Format(timeLayout) }

// RoleView 角色视图
type RoleView struct {
	RoleID      int64             `json:"roleId"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Description string            `json:"description,omitempty"`
	IsSystem    bool              `json:"isSystem"`
	CreatedAt   string            `json:"createdAt,omitempty"`
	Permissions []*PermissionView `json:"permissions,omitempty"`
}

func toRoleView(r *domain.Role) *RoleView {
	v := &RoleView{
		RoleID:      r.RoleID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		IsSystem:    r.IsSystem,
	}
	if r.Description.Valid {
		v.Description = r.Description.String
	}
	if r.CreatedAt.Valid {
		v.CreatedAt = formatTime(r.CreatedAt.Time)
	}
	for _, p := range r.Permissions {
		v.Permissions = append(v.Permissions, toPermissionView(p))
	}
	return v
}

func toRoleViews(roles []*domain.Role) []*RoleView {
	views := make([]*RoleView, 0, len(roles))
	for _, r := range roles {
		views = append(views, toRoleView(r))
	}
	return views
}

// PermissionView 权限视图
type PermissionView struct {
	PermissionID int64  `json:"permissionId"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

func toPermissionView(p *domain.Permission) *PermissionView {
	v := &PermissionView{
		PermissionID: p.PermissionID,
		Name:         p.Name,
	}
	if p.Description.Valid {
		v.Description = p.Description.String
	}
	if p.CreatedAt.Valid {
		v.CreatedAt = formatTime(p.CreatedAt.Time)
	}
	return v
}

func toPermissionViews(perms []*domain.Permission) []*PermissionView {
	views := make([]*PermissionView, 0, len(perms))
	for _, p := range perms {
		views = append(views, toPermissionView(p))
	}
	return views
}

// RTKDataView RTK 定位数据视图
type RTKDataView struct {
	ID             int64    `json:"id"`
	DeviceID       string   `json:"deviceId"`
	Longitude      float64  `json:"longitude"`
	Latitude       float64  `json:"latitude"`
	Altitude       float64  `json:"altitude"`
	FixQuality     string   `json:"fixQuality,omitempty"`
	SatelliteCount *int64   `json:"satelliteCount,omitempty"`
	HDOP           *float64 `json:"hdop,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

func toRTKDataView(d *domain.RTKData) *RTKDataView {
	v := &RTKDataView{
		ID:        d.ID,
		DeviceID:  d.DeviceID,
		Longitude: d.Longitude,
		Latitude:  d.Latitude,
		Altitude:  d.Altitude,
		Timestamp: formatTime(d.Timestamp),
	}
	if d.FixQuality.Valid {
		v.FixQuality = d.FixQuality.String
	}
	if d.SatelliteCount.Valid {
		v.SatelliteCount = &d.SatelliteCount.Int64
	}
	if d.HDOP.Valid {
		v.HDOP = &d.HDOP.Float64
	}
	return v
}

func toRTKDataViews(records []*domain.RTKData) []*RTKDataView {
	views := make([]*RTKDataView, 0, len(records))
	for _, d := range records {
		views = append(views, toRTKDataView(d))
	}
	return views
}

// PositionView 位置遥测视图（API 响应与 Redis 最新位置缓存共用）
type PositionView struct {
	ID             int64    `json:"id"`
	DroneID        string   `json:"droneId"`
	Longitude      float64  `json:"longitude"`
	Latitude       float64  `json:"latitude"`
	Altitude       float64  `json:"altitude"`
	Speed          *float64 `json:"speed,omitempty"`
	Heading        *float64 `json:"heading,omitempty"`
	BatteryLevel   *float64 `json:"batteryLevel,omitempty"`
	SignalStrength *int64   `json:"signalStrength,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

func toPositionView(p *domain.DronePosition) *PositionView {
	v := &PositionView{
		ID:        p.ID,
		DroneID:   p.DroneID,
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
		Altitude:  p.Altitude,
		Timestamp: formatTime(p.Timestamp),
	}
	if p.Speed.Valid {
		v.Speed = &p.Speed.Float64
	}
	if p.Heading.Valid {
		v.Heading = &p.Heading.Float64
	}
	if p.BatteryLevel.Valid {
		v.BatteryLevel = &p.BatteryLevel.Float64
	}
	if p.SignalStrength.Valid {
		v.SignalStrength = &p.SignalStrength.Int64
	}
	return v
}

func toPositionViews(positions []*domain.DronePosition) []*PositionView {
	views := make([]*PositionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, toPositionView(p))
	}
	return views
}

// PositionArchiveView 归档位置视图
type PositionArchiveView struct {
	PositionView
	OriginalID     int64  `json:"originalId"`
	ArchivedAt     string `json:"archivedAt"`
	ArchiveBatchID string `json:"archiveBatchId"`
}

func toPositionArchiveView(a *domain.DronePositionArchive) *PositionArchiveView {
	return &PositionArchiveView{
		PositionView:   *toPositionView(&a.DronePosition),
		OriginalID:     a.OriginalID,
		ArchivedAt:     formatTime(a.ArchivedAt),
		ArchiveBatchID: a.ArchiveBatchID,
	}
}

func toPositionArchiveViews(records []*domain.DronePositionArchive) []*PositionArchiveView {
	views := make([]*PositionArchiveView, 0, len(records))
	for _, a := range records {
		views = append(views, toPositionArchiveView(a))
	}
	return views
}

// StatusView 状态遥测视图
type StatusView struct {
	ID             int64    `json:"id"`
	DroneID        string   `json:"droneId"`
	FlightStatus   string   `json:"flightStatus"`
	BatteryLevel   float64  `json:"batteryLevel"`
	BatteryVoltage *float64 `json:"batteryVoltage,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Altitude       *float64 `json:"altitude,omitempty"`
	IsConnected    bool     `json:"isConnected"`
	ErrorCode      string   `json:"errorCode,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

func toStatusView(s *domain.DroneStatus) *StatusView {
	v := &StatusView{
		ID:           s.ID,
		DroneID:      s.DroneID,
		FlightStatus: s.FlightStatus,
		BatteryLevel: s.BatteryLevel,
		IsConnected:  s.IsConnected,
		Timestamp:    formatTime(s.Timestamp),
	}
	if s.BatteryVoltage.Valid {
		v.BatteryVoltage = &s.BatteryVoltage.Float64
	}
	if s.Temperature.Valid {
		v.Temperature = &s.Temperature.Float64
	}
	if s.Altitude.Valid {
		v.Altitude = &s.Altitude.Float64
	}
	if s.ErrorCode.Valid {
		v.ErrorCode = s.ErrorCode.String
	}
	return v
}

func toStatusViews(records []*domain.DroneStatus) []*StatusView {
	views := make([]*StatusView, 0, len(records))
	for _, s := range records {
		views = append(views, toStatusView(s))
	}
	return views
}

// StatusArchiveView 归档状态视图
type StatusArchiveView struct {
	StatusView
	OriginalID     int64  `json:"originalId"`
	ArchivedAt     string `json:"archivedAt"`
	ArchiveBatchID string `json:"archiveBatchId"`
}

func toStatusArchiveView(a *domain.DroneStatusArchive) *StatusArchiveView {
	return &StatusArchiveView{
		StatusView:     *toStatusView(&a.DroneStatus),
		OriginalID:     a.OriginalID,
		ArchivedAt:     formatTime(a.ArchivedAt),
		ArchiveBatchID: a.ArchiveBatchID,
	}
}

func toStatusArchiveViews(records []*domain.DroneStatusArchive) []*StatusArchiveView {
	views := make([]*StatusArchiveView, 0, len(records))
	for _, a := range records {
		views = append(views, toStatusArchiveView(a))
	}
	return views
}

// CommandView 指令视图
type CommandView struct {
	ID           int64           `json:"id"`
	DroneID      string          `json:"droneId"`
	CommandType  string          `json:"commandType"`
	CommandData  json.RawMessage `json:"commandData,omitempty"`
	Status       string          `json:"status"`
	IssuedBy     *int64          `json:"issuedBy,omitempty"`
	IssuedAt     string          `json:"issuedAt"`
	ExecutedAt   string          `json:"executedAt,omitempty"`
	CompletedAt  string          `json:"completedAt,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

func toCommandView(c *domain.DroneCommand) *CommandView {
	v := &CommandView{
		ID:          c.ID,
		DroneID:     c.DroneID,
		CommandType: c.CommandType,
		Status:      c.Status,
		IssuedAt:    formatTime(c.IssuedAt),
	}
	if c.CommandData.Valid {
		v.CommandData = json.RawMessage(c.CommandData.String)
	}
	if c.IssuedBy.Valid {
		v.IssuedBy = &c.IssuedBy.Int64
	}
	if c.ExecutedAt.Valid {
		v.ExecutedAt = formatTime(c.ExecutedAt.Time)
	}
	if c.CompletedAt.Valid {
		v.CompletedAt = formatTime(c.CompletedAt.Time)
	}
	if c.ErrorMessage.Valid {
		v.ErrorMessage = c.ErrorMessage.String
	}
	return v
}

func toCommandViews(commands []*domain.DroneCommand) []*CommandView {
	views := make([]*CommandView, 0, len(commands))
	for _, c := range commands {
		views = append(views, toCommandView(c))
	}
	return views
}

// CommandArchiveView 归档指令视图
type CommandArchiveView struct {
	CommandView
	OriginalID     int64  `json:"originalId"`
	ArchivedAt     string `json:"archivedAt"`
	ArchiveBatchID string `json:"archiveBatchId"`
}

func toCommandArchiveView(a *domain.DroneCommandArchive) *CommandArchiveView {
	return &CommandArchiveView{
		CommandView:    *toCommandView(&a.DroneCommand),
		OriginalID:     a.OriginalID,
		ArchivedAt:     formatTime(a.ArchivedAt),
		ArchiveBatchID: a.ArchiveBatchID,
	}
}

func toCommandArchiveViews(records []*domain.DroneCommandArchive) []*CommandArchiveView {
	views := make([]*CommandArchiveView, 0, len(records))
	for _, a := range records {
		views = append(views, toCommandArchiveView(a))
	}
	return views
}

// ArchiveTaskView 归档任务视图
type ArchiveTaskView struct {
	ID           int64  `json:"id"`
	BatchID      string `json:"batchId"`
	TableName    string `json:"tableName"`
	RangeStart   string `json:"rangeStart"`
	RangeEnd     string `json:"rangeEnd"`
	TotalRecords int    `json:"totalRecords"`
	Status       string `json:"status"`
	CreatedBy    string `json:"createdBy"`
	StartedAt    string `json:"startedAt"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func toArchiveTaskView(t *domain.ArchiveTask) *ArchiveTaskView {
	v := &ArchiveTaskView{
		ID:           t.ID,
		BatchID:      t.BatchID,
		TableName:    t.TableName,
		RangeStart:   formatTime(t.RangeStart),
		RangeEnd:     formatTime(t.RangeEnd),
		TotalRecords: t.TotalRecords,
		Status:       t.Status,
		CreatedBy:    t.CreatedBy,
		StartedAt:    formatTime(t.StartedAt),
	}
	if t.FinishedAt.Valid {
		v.FinishedAt = formatTime(t.FinishedAt.Time)
	}
	if t.ErrorMessage.Valid {
		v.ErrorMessage = t.ErrorMessage.String
	}
	return v
}

func toArchiveTaskViews(tasks []*domain.ArchiveTask) []*ArchiveTaskView {
	views := make([]*ArchiveTaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toArchiveTaskView(t))
	}
	return views
}
