package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// DronePositionHandler 位置遥测端点
type DronePositionHandler struct {
	queries service.DronePositionQueriesSvc
	export  service.ExportService
	logger  *zap.Logger
}

// NewDronePositionHandler 创建位置 Handler
func NewDronePositionHandler(queries service.DronePositionQueriesSvc, export service.ExportService, logger *zap.Logger) *DronePositionHandler {
	return &DronePositionHandler{queries: queries, export: export, logger: logger}
}

// Data GET /api/drone-positions/data
func (h *DronePositionHandler) Data(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := h.listRequest(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	positions, pagination, err := h.queries.ListPositions(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to list positions", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	okPaged(w, positions, pagination)
}

// Latest GET /api/drone-positions/data/latest[?droneId=]
func (h *DronePositionHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	droneID := r.URL.Query().Get("droneId")
	if droneID == "" {
		// 全机队最新位置
		positions, err := h.queries.ListLatestPositions(r.Context())
		if err != nil {
			h.logger.Error("Failed to list latest positions", zap.Error(err))
			fail(w, http.StatusInternalServerError, "failed to list latest positions")
			return
		}
		ok(w, positions)
		return
	}

	position, err := h.queries.GetLatestPosition(r.Context(), droneID)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, position)
}

// ArchiveData GET /api/drone-positions-archive/data
func (h *DronePositionHandler) ArchiveData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := h.listRequest(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	records, pagination, err := h.queries.ListArchivedPositions(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to list archived positions", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list archived positions")
		return
	}
	okPaged(w, records, pagination)
}

// Statistics GET /api/drone-positions-archive/statistics?droneId=&startTime=&endTime=
func (h *DronePositionHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	droneID := r.URL.Query().Get("droneId")
	if droneID == "" {
		fail(w, http.StatusBadRequest, "droneId is required")
		return
	}
	start, end, err := parseTimeWindow(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.queries.TrajectoryStatistics(r.Context(), droneID, start, end)
	if err != nil {
		h.logger.Error("Failed to compute trajectory statistics",
			zap.String("drone_id", droneID),
			zap.Error(err),
		)
		fail(w, http.StatusInternalServerError, "failed to compute trajectory statistics")
		return
	}
	ok(w, stats)
}

// Export GET /api/drone-positions-archive/export?droneId=&startTime=&endTime=
// 响应为 xlsx 工作簿而非 JSON 信封
func (h *DronePositionHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !requirePermission(w, r, "archive:export") {
		return
	}

	droneID := r.URL.Query().Get("droneId")
	if droneID == "" {
		fail(w, http.StatusBadRequest, "droneId is required")
		return
	}
	start, end, err := parseTimeWindow(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := h.export.PositionsArchiveWorkbook(r.Context(), droneID, start, end)
	if err != nil {
		h.logger.Error("Failed to build export workbook",
			zap.String("drone_id", droneID),
			zap.Error(err),
		)
		fail(w, http.StatusInternalServerError, "failed to build export workbook")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("positions_%s_%s.xlsx", droneID, time.Now().Format("20060102150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(w); err != nil {
		// 响应头已发出，只能记日志
		h.logger.Error("Failed to stream export workbook", zap.Error(err))
	}
}

func (h *DronePositionHandler) listRequest(r *http.Request) (service.ListTelemetryRequest, error) {
	page, pageSize := pageParams(r)

	startTime, err := parseTimeQuery(r, "startTime")
	if err != nil {
		return service.ListTelemetryRequest{}, err
	}
	endTime, err := parseTimeQuery(r, "endTime")
	if err != nil {
		return service.ListTelemetryRequest{}, err
	}

	return service.ListTelemetryRequest{
		Page:      page,
		PageSize:  pageSize,
		DroneID:   strings.TrimSpace(r.URL.Query().Get("droneId")),
		StartTime: startTime,
		EndTime:   endTime,
	}, nil
}
