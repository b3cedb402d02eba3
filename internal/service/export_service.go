package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/repository"
)

// exportRowLimit 单次导出最大行数，防止超大工作簿拖垮服务
const exportRowLimit = 200000

// ExportService 归档数据导出服务（xlsx）
type ExportService interface {
	// PositionsArchiveWorkbook 按时间窗导出某机的归档轨迹为工作簿
	PositionsArchiveWorkbook(ctx context.Context, droneID string, start, end time.Time) (*excelize.File, error)
}

// exportService 实现
type exportService struct {
	positionsRepo repository.DronePositionsRepository
	logger        *zap.Logger
}

// NewExportService 创建导出服务
func NewExportService(positionsRepo repository.DronePositionsRepository, logger *zap.Logger) ExportService {
	return &exportService{positionsRepo: positionsRepo, logger: logger}
}

// PositionsArchiveWorkbook 单 sheet，表头 + 数据行
func (s *exportService) PositionsArchiveWorkbook(ctx context.Context, droneID string, start, end time.Time) (*excelize.File, error) {
	records, err := s.positionsRepo.FetchArchivedTrajectory(ctx, droneID, start, end, exportRowLimit)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Positions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := []any{
		"ID", "Drone ID", "Longitude", "Latitude", "Altitude",
		"Speed", "Heading", "Battery Level", "Signal Strength",
		"Timestamp", "Archived At", "Batch ID",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, rec := range records {
		row := []any{
			rec.OriginalID,
			rec.DroneID,
			rec.Longitude,
			rec.Latitude,
			rec.Altitude,
		}
		// 可空列：空值导出为空单元格
		row = append(row, nullFloatCell(rec.Speed.Valid, rec.Speed.Float64))
		row = append(row, nullFloatCell(rec.Heading.Valid, rec.Heading.Float64))
		row = append(row, nullFloatCell(rec.BatteryLevel.Valid, rec.BatteryLevel.Float64))
		if rec.SignalStrength.Valid {
			row = append(row, rec.SignalStrength.Int64)
		} else {
			row = append(row, nil)
		}
		row = append(row, formatTime(rec.Timestamp), formatTime(rec.ArchivedAt), rec.ArchiveBatchID)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write data row: %w", err)
		}
	}

	s.logger.Info("Positions archive workbook built",
		zap.String("drone_id", droneID),
		zap.Int("row_count", len(records)),
	)

	return f, nil
}

func nullFloatCell(valid bool, v float64) any {
	if valid {
		return v
	}
	return nil
}
