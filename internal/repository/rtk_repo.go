package repository

import (
	"context"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

// RTKRepository RTK定位数据Repository接口
type RTKRepository interface {
	GetRTKData(ctx context.Context, id int64) (*domain.RTKData, error)
	ListRTKData(ctx context.Context, filters RTKFilters, page, size int) ([]*domain.RTKData, int, error)
	CreateRTKData(ctx context.Context, data *domain.RTKData) (int64, error)
	UpdateRTKData(ctx context.Context, id int64, data *domain.RTKData) error
	DeleteRTKData(ctx context.Context, id int64) error

	// UpsertVendorRecord 厂家拉取的基准站数据按 (device_id, timestamp) 幂等落库
	UpsertVendorRecord(ctx context.Context, data *domain.RTKData) error
}

// RTKFilters RTK查询过滤器
type RTKFilters struct {
	DeviceID   string
	FixQuality string
	StartTime  *time.Time
	EndTime    *time.Time
}
