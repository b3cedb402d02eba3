package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
	"github.com/zanewnch/AIOT-sub003/internal/models"
	"github.com/zanewnch/AIOT-sub003/internal/repository"
	"github.com/zanewnch/AIOT-sub003/internal/store"
)

// latestPositionKeyPrefix Redis 最新位置缓存键前缀
const latestPositionKeyPrefix = "aiot:latest:position:"

// latestPositionTTL 缓存时长：失联无人机的陈旧位置不长期驻留
const latestPositionTTL = 10 * time.Minute

// DronePositionQueriesSvc 位置遥测查询服务（CQRS 读侧）
type DronePositionQueriesSvc interface {
	ListPositions(ctx context.Context, req ListTelemetryRequest) ([]*PositionView, *models.Pagination, error)
	// GetLatestPosition 优先读 Redis 缓存，未命中回落 SQL
	GetLatestPosition(ctx context.Context, droneID string) (*PositionView, error)
	ListLatestPositions(ctx context.Context) ([]*PositionView, error)

	ListArchivedPositions(ctx context.Context, req ListTelemetryRequest) ([]*PositionArchiveView, *models.Pagination, error)
	// TrajectoryStatistics 遍历归档轨迹点做应用侧聚合
	TrajectoryStatistics(ctx context.Context, droneID string, start, end time.Time) (*TrajectoryStatistics, error)
}

// DronePositionCommandsSvc 位置遥测写服务（CQRS 写侧）
type DronePositionCommandsSvc interface {
	// IngestPosition 遥测落库并刷新最新位置缓存
	IngestPosition(ctx context.Context, req IngestPositionRequest) (int64, error)
}

// ListTelemetryRequest 遥测列表请求（位置/状态/指令共用基础字段）
type ListTelemetryRequest struct {
	Page      int
	PageSize  int
	DroneID   string
	StartTime *time.Time
	EndTime   *time.Time
}

// dronePositionQueriesSvc 实现
type dronePositionQueriesSvc struct {
	positionsRepo repository.DronePositionsRepository
	kv            store.KV
	logger        *zap.Logger
}

// NewDronePositionQueriesSvc 创建位置查询服务
func NewDronePositionQueriesSvc(positionsRepo repository.DronePositionsRepository, kv store.KV, logger *zap.Logger) DronePositionQueriesSvc {
	return &dronePositionQueriesSvc{positionsRepo: positionsRepo, kv: kv, logger: logger}
}

// ListPositions 热表位置列表
func (s *dronePositionQueriesSvc) ListPositions(ctx context.Context, req ListTelemetryRequest) ([]*PositionView, *models.Pagination, error) {
	positions, total, err := s.positionsRepo.ListPositions(ctx, repository.TelemetryFilters{
		DroneID:   req.DroneID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toPositionViews(positions), models.NewPagination(req.Page, req.PageSize, total), nil
}

// GetLatestPosition 最新位置：缓存优先，未命中回源并回填
func (s *dronePositionQueriesSvc) GetLatestPosition(ctx context.Context, droneID string) (*PositionView, error) {
	if droneID == "" {
		return nil, fmt.Errorf("drone_id is required")
	}

	if cached, err := s.kv.Get(ctx, latestPositionKeyPrefix+droneID); err == nil {
		var view PositionView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
		s.logger.Warn("Corrupt latest position cache entry, falling back to SQL",
			zap.String("drone_id", droneID),
		)
	}

	pos, err := s.positionsRepo.GetLatestPosition(ctx, droneID)
	if err != nil {
		return nil, err
	}
	view := toPositionView(pos)

	// 回填失败只记日志
	if payload, err := json.Marshal(view); err == nil {
		if err := s.kv.Set(ctx, latestPositionKeyPrefix+droneID, string(payload), latestPositionTTL); err != nil {
			s.logger.Warn("Failed to backfill latest position cache",
				zap.String("drone_id", droneID),
				zap.Error(err),
			)
		}
	}

	return view, nil
}

// ListLatestPositions 全机队最新位置
func (s *dronePositionQueriesSvc) ListLatestPositions(ctx context.Context) ([]*PositionView, error) {
	positions, err := s.positionsRepo.ListLatestPositions(ctx)
	if err != nil {
		return nil, err
	}
	return toPositionViews(positions), nil
}

// ListArchivedPositions 归档位置列表
func (s *dronePositionQueriesSvc) ListArchivedPositions(ctx context.Context, req ListTelemetryRequest) ([]*PositionArchiveView, *models.Pagination, error) {
	records, total, err := s.positionsRepo.ListArchivedPositions(ctx, repository.TelemetryFilters{
		DroneID:   req.DroneID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toPositionArchiveViews(records), models.NewPagination(req.Page, req.PageSize, total), nil
}

// TrajectoryStatistics 轨迹统计结果
type TrajectoryStatistics struct {
	DroneID             string  `json:"droneId"`
	StartTime           string  `json:"startTime"`
	EndTime             string  `json:"endTime"`
	PointCount          int     `json:"pointCount"`
	TotalDistanceMeters float64 `json:"totalDistanceMeters"`
	MaxSpeed            float64 `json:"maxSpeed"`
	AvgSpeed            float64 `json:"avgSpeed"`
	MinAltitude         float64 `json:"minAltitude"`
	MaxAltitude         float64 `json:"maxAltitude"`
	DurationSeconds     float64 `json:"durationSeconds"`
}

// TrajectoryStatistics 相邻轨迹点 Haversine 累加；速度取遥测采样值
func (s *dronePositionQueriesSvc) TrajectoryStatistics(ctx context.Context, droneID string, start, end time.Time) (*TrajectoryStatistics, error) {
	records, err := s.positionsRepo.FetchArchivedTrajectory(ctx, droneID, start, end, 0)
	if err != nil {
		return nil, err
	}

	stats := &TrajectoryStatistics{
		DroneID:    droneID,
		StartTime:  formatTime(start),
		EndTime:    formatTime(end),
		PointCount: len(records),
	}
	if len(records) == 0 {
		return stats, nil
	}

	var speedSum float64
	var speedCount int
	stats.MinAltitude = records[0].Altitude
	stats.MaxAltitude = records[0].Altitude

	for i, rec := range records {
		if i > 0 {
			prev := records[i-1]
			stats.TotalDistanceMeters += haversineMeters(
				prev.Latitude, prev.Longitude,
				rec.Latitude, rec.Longitude,
			)
		}
		if rec.Speed.Valid {
			speedSum += rec.Speed.Float64
			speedCount++
			if rec.Speed.Float64 > stats.MaxSpeed {
				stats.MaxSpeed = rec.Speed.Float64
			}
		}
		if rec.Altitude < stats.MinAltitude {
			stats.MinAltitude = rec.Altitude
		}
		if rec.Altitude > stats.MaxAltitude {
			stats.MaxAltitude = rec.Altitude
		}
	}

	if speedCount > 0 {
		stats.AvgSpeed = speedSum / float64(speedCount)
	}
	stats.DurationSeconds = records[len(records)-1].Timestamp.Sub(records[0].Timestamp).Seconds()

	return stats, nil
}

const earthRadiusMeters = 6371000.0

// haversineMeters 球面距离（米）
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// dronePositionCommandsSvc 实现
type dronePositionCommandsSvc struct {
	positionsRepo repository.DronePositionsRepository
	kv            store.KV
	logger        *zap.Logger
}

// NewDronePositionCommandsSvc 创建位置写服务
func NewDronePositionCommandsSvc(positionsRepo repository.DronePositionsRepository, kv store.KV, logger *zap.Logger) DronePositionCommandsSvc {
	return &dronePositionCommandsSvc{positionsRepo: positionsRepo, kv: kv, logger: logger}
}

// IngestPositionRequest 位置遥测上行（MQTT JSON 载荷）
type IngestPositionRequest struct {
	DroneID        string   `json:"droneId"`
	Longitude      float64  `json:"longitude"`
	Latitude       float64  `json:"latitude"`
	Altitude       float64  `json:"altitude"`
	Speed          *float64 `json:"speed"`
	Heading        *float64 `json:"heading"`
	BatteryLevel   *float64 `json:"batteryLevel"`
	SignalStrength *int64   `json:"signalStrength"`
	Timestamp      int64    `json:"timestamp"` // Unix 毫秒，0 取服务端时间
}

// IngestPosition 落库并刷新最新位置缓存
func (s *dronePositionCommandsSvc) IngestPosition(ctx context.Context, req IngestPositionRequest) (int64, error) {
	if req.DroneID == "" {
		return 0, fmt.Errorf("drone_id is required")
	}
	if req.Longitude < -180 || req.Longitude > 180 || req.Latitude < -90 || req.Latitude > 90 {
		return 0, fmt.Errorf("coordinates out of range: lon=%f lat=%f", req.Longitude, req.Latitude)
	}

	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp)
	}

	pos := &domain.DronePosition{
		DroneID:   req.DroneID,
		Longitude: req.Longitude,
		Latitude:  req.Latitude,
		Altitude:  req.Altitude,
		Timestamp: ts,
	}
	if req.Speed != nil {
		pos.Speed = sql.NullFloat64{Float64: *req.Speed, Valid: true}
	}
	if req.Heading != nil {
		pos.Heading = sql.NullFloat64{Float64: *req.Heading, Valid: true}
	}
	if req.BatteryLevel != nil {
		pos.BatteryLevel = sql.NullFloat64{Float64: *req.BatteryLevel, Valid: true}
	}
	if req.SignalStrength != nil {
		pos.SignalStrength = sql.NullInt64{Int64: *req.SignalStrength, Valid: true}
	}

	id, err := s.positionsRepo.InsertPosition(ctx, pos)
	if err != nil {
		return 0, err
	}
	pos.ID = id

	// 缓存刷新失败不影响落库结果
	if payload, err := json.Marshal(toPositionView(pos)); err == nil {
		if err := s.kv.Set(ctx, latestPositionKeyPrefix+req.DroneID, string(payload), latestPositionTTL); err != nil {
			s.logger.Warn("Failed to refresh latest position cache",
				zap.String("drone_id", req.DroneID),
				zap.Error(err),
			)
		}
	}

	return id, nil
}
