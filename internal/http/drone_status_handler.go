package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// DroneStatusHandler 状态遥测端点
type DroneStatusHandler struct {
	queries service.DroneStatusQueriesSvc
	logger  *zap.Logger
}

// NewDroneStatusHandler 创建状态 Handler
func NewDroneStatusHandler(queries service.DroneStatusQueriesSvc, logger *zap.Logger) *DroneStatusHandler {
	return &DroneStatusHandler{queries: queries, logger: logger}
}

// Data GET /api/drone-status/data
func (h *DroneStatusHandler) Data(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := h.listRequest(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	records, pagination, err := h.queries.ListStatus(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to list status records", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list status records")
		return
	}
	okPaged(w, records, pagination)
}

// Latest GET /api/drone-status/data/latest[?droneId=]
func (h *DroneStatusHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	droneID := r.URL.Query().Get("droneId")
	if droneID == "" {
		records, err := h.queries.ListLatestStatus(r.Context())
		if err != nil {
			h.logger.Error("Failed to list latest status", zap.Error(err))
			fail(w, http.StatusInternalServerError, "failed to list latest status")
			return
		}
		ok(w, records)
		return
	}

	status, err := h.queries.GetLatestStatus(r.Context(), droneID)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, status)
}

// ArchiveData GET /api/drone-status-archive/data
func (h *DroneStatusHandler) ArchiveData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := h.listRequest(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	records, pagination, err := h.queries.ListArchivedStatus(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to list archived status", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list archived status")
		return
	}
	okPaged(w, records, pagination)
}

// Statistics GET /api/drone-status-archive/statistics?droneId=&startTime=&endTime=
func (h *DroneStatusHandler) Statistics(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.queries.BatteryStatistics(r.Context(), droneID, start, end)
	if err != nil {
		h.logger.Error("Failed to compute battery statistics",
			zap.String("drone_id", droneID),
			zap.Error(err),
		)
		fail(w, http.StatusInternalServerError, "failed to compute battery statistics")
		return
	}
	ok(w, stats)
}

func (h *DroneStatusHandler) listRequest(r *http.Request) (service.ListStatusRequest, error) {
	page, pageSize := pageParams(r)
	q := r.URL.Query()

	startTime, err := parseTimeQuery(r, "startTime")
	if err != nil {
		return service.ListStatusRequest{}, err
	}
	endTime, err := parseTimeQuery(r, "endTime")
	if err != nil {
		return service.ListStatusRequest{}, err
	}

	return service.ListStatusRequest{
		Page:         page,
		PageSize:     pageSize,
		DroneID:      strings.TrimSpace(q.Get("droneId")),
		FlightStatus: q.Get("flightStatus"),
		StartTime:    startTime,
		EndTime:      endTime,
	}, nil
}
