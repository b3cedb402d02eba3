package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/models"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// DroneStatusQueriesSvc 状态遥测查询服务（CQRS 读侧）
type DroneStatusQueriesSvc interface {
	ListStatus(ctx context.Context, req ListStatusRequest) ([]*StatusView, *models.Pagination, error)
	GetLatestStatus(ctx context.Context, droneID string) (*StatusView, error)
	ListLatestStatus(ctx context.Context) ([]*StatusView, error)

	ListArchivedStatus(ctx context.Context, req ListStatusRequest) ([]*StatusArchiveView, *models.Pagination, error)
	// BatteryStatistics 归档电量序列的应用侧聚合
	BatteryStatistics(ctx context.Context, droneID string, start, end time.Time) (*BatteryStatistics, error)
}

// DroneStatusCommandsSvc 状态遥测写服务（CQRS 写侧）
type DroneStatusCommandsSvc interface {
	IngestStatus(ctx context.Context, req IngestStatusRequest) (int64, error)
}

// ListStatusRequest 状态列表请求
type ListStatusRequest struct {
	Page         int
	PageSize     int
	DroneID      string
	FlightStatus string
	StartTime    *time.Time
	EndTime      *time.Time
}

// droneStatusQueriesSvc 实现
type droneStatusQueriesSvc struct {
	statusRepo repository.DroneStatusRepository
	logger     *zap.Logger
}

// NewDroneStatusQueriesSvc 创建状态查询服务
func NewDroneStatusQueriesSvc(statusRepo repository.DroneStatusRepository, logger *zap.Logger) DroneStatusQueriesSvc {
	return &droneStatusQueriesSvc{statusRepo: statusRepo, logger: logger}
}

// ListStatus 热表状态列表
func (s *droneStatusQueriesSvc) ListStatus(ctx context.Context, req ListStatusRequest) ([]*StatusView, *models.Pagination, error) {
	records, total, err := s.statusRepo.ListStatus(ctx, repository.StatusFilters{
		DroneID:      req.DroneID,
		FlightStatus: req.FlightStatus,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toStatusViews(records), models.NewPagination(req.Page, req.PageSize, total), nil
}

// GetLatestStatus 某机最新状态
func (s *droneStatusQueriesSvc) GetLatestStatus(ctx context.Context, droneID string) (*StatusView, error) {
	status, err := s.statusRepo.GetLatestStatus(ctx, droneID)
	if err != nil {
		return nil, err
	}
	return toStatusView(status), nil
}

// ListLatestStatus 全机队最新状态
func (s *droneStatusQueriesSvc) ListLatestStatus(ctx context.Context) ([]*StatusView, error) {
	records, err := s.statusRepo.ListLatestStatus(ctx)
	if err != nil {
		return nil, err
	}
	return toStatusViews(records), nil
}

// ListArchivedStatus 归档状态列表
func (s *droneStatusQueriesSvc) ListArchivedStatus(ctx context.Context, req ListStatusRequest) ([]*StatusArchiveView, *models.Pagination, error) {
	records, total, err := s.statusRepo.ListArchivedStatus(ctx, repository.StatusFilters{
		DroneID:      req.DroneID,
		FlightStatus: req.FlightStatus,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toStatusArchiveViews(records), models.NewPagination(req.Page, req.PageSize, total), nil
}

// BatteryStatistics 电量统计结果
type BatteryStatistics struct {
	DroneID                 string  `json:"droneId"`
	StartTime               string  `json:"startTime"`
	EndTime                 string  `json:"endTime"`
	SampleCount             int     `json:"sampleCount"`
	FirstBattery            float64 `json:"firstBattery"`
	LastBattery             float64 `json:"lastBattery"`
	MinBattery              float64 `json:"minBattery"`
	MaxBattery              float64 `json:"maxBattery"`
	ConsumptionRatePerHour  float64 `json:"consumptionRatePerHour"`
	FlightTimeEstimateHours float64 `json:"flightTimeEstimateHours"`
}

// BatteryStatistics 首末样本差值换算 %/小时；剩余电量除以速率估算续航
func (s *droneStatusQueriesSvc) BatteryStatistics(ctx context.Context, droneID string, start, end time.Time) (*BatteryStatistics, error) {
	records, err := s.statusRepo.FetchArchivedBatterySeries(ctx, droneID, start, end, 0)
	if err != nil {
		return nil, err
	}

	stats := &BatteryStatistics{
		DroneID:     droneID,
		StartTime:   formatTime(start),
		EndTime:     formatTime(end),
		SampleCount: len(records),
	}
	if len(records) == 0 {
		return stats, nil
	}

	first := records[0]
	last := records[len(records)-1]
	stats.FirstBattery = first.BatteryLevel
	stats.LastBattery = last.BatteryLevel
	stats.MinBattery = first.BatteryLevel
	stats.MaxBattery = first.BatteryLevel

	for _, rec := range records {
		if rec.BatteryLevel < stats.MinBattery {
			stats.MinBattery = rec.BatteryLevel
		}
		if rec.BatteryLevel > stats.MaxBattery {
			stats.MaxBattery = rec.BatteryLevel
		}
	}

	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours > 0 && stats.FirstBattery > stats.LastBattery {
		stats.ConsumptionRatePerHour = (stats.FirstBattery - stats.LastBattery) / hours
		stats.FlightTimeEstimateHours = stats.LastBattery / stats.ConsumptionRatePerHour
	}

	return stats, nil
}

// droneStatusCommandsSvc 实现
type droneStatusCommandsSvc struct {
	statusRepo repository.DroneStatusRepository
	logger     *zap.Logger
}

// NewDroneStatusCommandsSvc 创建状态写服务
func NewDroneStatusCommandsSvc(statusRepo repository.DroneStatusRepository, logger *zap.Logger) DroneStatusCommandsSvc {
	return &droneStatusCommandsSvc{statusRepo: statusRepo, logger: logger}
}

// IngestStatusRequest 状态遥测上行（MQTT JSON 载荷）
type IngestStatusRequest struct {
	DroneID        string   `json:"droneId"`
	FlightStatus   string   `json:"flightStatus"`
	BatteryLevel   float64  `json:"batteryLevel"`
	BatteryVoltage *float64 `json:"batteryVoltage"`
	Temperature    *float64 `json:"temperature"`
	Altitude       *float64 `json:"altitude"`
	IsConnected    *bool    `json:"isConnected"` // 缺省按在线处理
	ErrorCode      string   `json:"errorCode"`
	Timestamp      int64    `json:"timestamp"` // Unix 毫秒，0 取服务端时间
}

// IngestStatus 状态遥测落库
func (s *droneStatusCommandsSvc) IngestStatus(ctx context.Context, req IngestStatusRequest) (int64, error) {
	if req.DroneID == "" {
		return 0, fmt.Errorf("drone_id is required")
	}
	if !domain.ValidFlightStatus(req.FlightStatus) {
		return 0, fmt.Errorf("invalid flight_status: %s", req.FlightStatus)
	}
	if req.BatteryLevel < 0 || req.BatteryLevel > 100 {
		return 0, fmt.Errorf("battery_level out of range: %f", req.BatteryLevel)
	}

	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp)
	}

	status := &domain.DroneStatus{
		DroneID:      req.DroneID,
		FlightStatus: req.FlightStatus,
		BatteryLevel: req.BatteryLevel,
		IsConnected:  true,
		Timestamp:    ts,
	}
	if req.IsConnected != nil {
		status.IsConnected = *req.IsConnected
	}
	if req.BatteryVoltage != nil {
		status.BatteryVoltage = sql.NullFloat64{Float64: *req.BatteryVoltage, Valid: true}
	}
	if req.Temperature != nil {
		status.Temperature = sql.NullFloat64{Float64: *req.Temperature, Valid: true}
	}
	if req.Altitude != nil {
		status.Altitude = sql.NullFloat64{Float64: *req.Altitude, Valid: true}
	}
	if req.ErrorCode != "" {
		status.ErrorCode = sql.NullString{String: req.ErrorCode, Valid: true}
	}

	return s.statusRepo.InsertStatus(ctx, status)
}
