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

// RTKQueriesSvc RTK 定位数据查询服务（CQRS 读侧）
type RTKQueriesSvc interface {
	GetRTKData(ctx context.Context, id int64) (*RTKDataView, error)
	ListRTKData(ctx context.Context, req ListRTKDataRequest) ([]*RTKDataView, *models.Pagination, error)
}

// RTKCommandsSvc RTK 定位数据写服务（CQRS 写侧）
type RTKCommandsSvc interface {
	CreateRTKData(ctx context.Context, req CreateRTKDataRequest) (int64, error)
	UpdateRTKData(ctx context.Context, id int64, req CreateRTKDataRequest) error
	DeleteRTKData(ctx context.Context, id int64) error

	// PullFromVendor 从厂家拉取基准站修正记录并幂等落库
	PullFromVendor(ctx context.Context, deviceID string, start, end time.Time) (int, error)
}

// rtkQueriesSvc 实现
type rtkQueriesSvc struct {
	rtkRepo repository.RTKRepository
	logger  *zap.Logger
}

// NewRTKQueriesSvc 创建 RTK 查询服务
func NewRTKQueriesSvc(rtkRepo repository.RTKRepository, logger *zap.Logger) RTKQueriesSvc {
	return &rtkQueriesSvc{rtkRepo: rtkRepo, logger: logger}
}

// ListRTKDataRequest RTK 列表请求
type ListRTKDataRequest struct {
	Page       int
	PageSize   int
	DeviceID   string
	FixQuality string
	StartTime  *time.Time
	EndTime    *time.Time
}

// GetRTKData 查询单条
func (s *rtkQueriesSvc) GetRTKData(ctx context.Context, id int64) (*RTKDataView, error) {
	data, err := s.rtkRepo.GetRTKData(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRTKDataView(data), nil
}

// ListRTKData 分页列表
func (s *rtkQueriesSvc) ListRTKData(ctx context.Context, req ListRTKDataRequest) ([]*RTKDataView, *models.Pagination, error) {
	records, total, err := s.rtkRepo.ListRTKData(ctx, repository.RTKFilters{
		DeviceID:   req.DeviceID,
		FixQuality: req.FixQuality,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	return toRTKDataViews(records), models.NewPagination(req.Page, req.PageSize, total), nil
}

// rtkCommandsSvc 实现
type rtkCommandsSvc struct {
	rtkRepo repository.RTKRepository
	vendor  *RTKVendorClient // nil 表示厂家拉取未启用
	logger  *zap.Logger
}

// NewRTKCommandsSvc 创建 RTK 写服务，vendor 可为 nil
func NewRTKCommandsSvc(rtkRepo repository.RTKRepository, vendor *RTKVendorClient, logger *zap.Logger) RTKCommandsSvc {
	return &rtkCommandsSvc{rtkRepo: rtkRepo, vendor: vendor, logger: logger}
}

// CreateRTKDataRequest 创建/更新 RTK 数据请求
type CreateRTKDataRequest struct {
	DeviceID       string   `json:"deviceId"`
	Longitude      float64  `json:"longitude"`
	Latitude       float64  `json:"latitude"`
	Altitude       float64  `json:"altitude"`
	FixQuality     string   `json:"fixQuality"`
	SatelliteCount *int64   `json:"satelliteCount"`
	HDOP           *float64 `json:"hdop"`
	Timestamp      string   `json:"timestamp"` // RFC3339
}

func (req *CreateRTKDataRequest) toDomain() (*domain.RTKData, error) {
	// 经纬度范围校验
	if req.Longitude < -180 || req.Longitude > 180 {
		return nil, fmt.Errorf("longitude out of range: %f", req.Longitude)
	}
	if req.Latitude < -90 || req.Latitude > 90 {
		return nil, fmt.Errorf("latitude out of range: %f", req.Latitude)
	}

	data := &domain.RTKData{
		DeviceID:  req.DeviceID,
		Longitude: req.Longitude,
		Latitude:  req.Latitude,
		Altitude:  req.Altitude,
	}
	if req.FixQuality != "" {
		data.FixQuality = sql.NullString{String: req.FixQuality, Valid: true}
	}
	if req.SatelliteCount != nil {
		data.SatelliteCount = sql.NullInt64{Int64: *req.SatelliteCount, Valid: true}
	}
	if req.HDOP != nil {
		data.HDOP = sql.NullFloat64{Float64: *req.HDOP, Valid: true}
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %s", req.Timestamp)
		}
		data.Timestamp = ts
	} else {
		data.Timestamp = time.Now()
	}

	return data, nil
}

// CreateRTKData 创建
func (s *rtkCommandsSvc) CreateRTKData(ctx context.Context, req CreateRTKDataRequest) (int64, error) {
	data, err := req.toDomain()
	if err != nil {
		return 0, err
	}
	return s.rtkRepo.CreateRTKData(ctx, data)
}

// UpdateRTKData 更新（坐标修正等管理操作）
func (s *rtkCommandsSvc) UpdateRTKData(ctx context.Context, id int64, req CreateRTKDataRequest) error {
	data, err := req.toDomain()
	if err != nil {
		return err
	}
	return s.rtkRepo.UpdateRTKData(ctx, id, data)
}

// DeleteRTKData 删除
func (s *rtkCommandsSvc) DeleteRTKData(ctx context.Context, id int64) error {
	return s.rtkRepo.DeleteRTKData(ctx, id)
}

// PullFromVendor 厂家拉取：逐条 upsert，(device_id, timestamp) 幂等
func (s *rtkCommandsSvc) PullFromVendor(ctx context.Context, deviceID string, start, end time.Time) (int, error) {
	if s.vendor == nil {
		return 0, fmt.Errorf("rtk vendor client is not configured")
	}
	if deviceID == "" {
		return 0, fmt.Errorf("device_id is required")
	}

	records, err := s.vendor.FetchRecords(deviceID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch vendor records: %w", err)
	}

	saved := 0
	for _, rec := range records {
		data := &domain.RTKData{
			DeviceID:  rec.DeviceID,
			Longitude: rec.Longitude,
			Latitude:  rec.Latitude,
			Altitude:  rec.Altitude,
			Timestamp: time.UnixMilli(rec.Timestamp),
		}
		if rec.FixQuality != "" {
			data.FixQuality = sql.NullString{String: rec.FixQuality, Valid: true}
		}
		if rec.SatelliteCount > 0 {
			data.SatelliteCount = sql.NullInt64{Int64: rec.SatelliteCount, Valid: true}
		}
		if rec.HDOP > 0 {
			data.HDOP = sql.NullFloat64{Float64: rec.HDOP, Valid: true}
		}

		if err := s.rtkRepo.UpsertVendorRecord(ctx, data); err != nil {
			s.logger.Error("Failed to upsert vendor rtk record",
				zap.String("device_id", rec.DeviceID),
				zap.Int64("timestamp", rec.Timestamp),
				zap.Error(err),
			)
			continue
		}
		saved++
	}

	s.logger.Info("RTK vendor pull finished",
		zap.String("device_id", deviceID),
		zap.Int("fetched", len(records)),
		zap.Int("saved", saved),
	)

	return saved, nil
}
