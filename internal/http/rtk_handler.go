package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// RTKHandler RTK 定位数据端点
type RTKHandler struct {
	queries  service.RTKQueriesSvc
	commands service.RTKCommandsSvc
	logger   *zap.Logger
}

// NewRTKHandler 创建 RTK Handler
func NewRTKHandler(queries service.RTKQueriesSvc, commands service.RTKCommandsSvc, logger *zap.Logger) *RTKHandler {
	return &RTKHandler{queries: queries, commands: commands, logger: logger}
}

// Data GET/POST /api/rtk/data
func (h *RTKHandler) Data(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item /api/rtk/data/{id}
func (h *RTKHandler) Item(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rtk/data/")
	id, err := parseID(rest)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VendorPull POST /api/rtk/vendor-pull
func (h *RTKHandler) VendorPull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !requirePermission(w, r, "rtk:manage") {
		return
	}

	start, end, err := parseTimeWindow(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.commands.PullFromVendor(r.Context(), r.URL.Query().Get("deviceId"), start, end)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, map[string]int{"saved": saved})
}

func (h *RTKHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	q := r.URL.Query()

	startTime, err := parseTimeQuery(r, "startTime")
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	endTime, err := parseTimeQuery(r, "endTime")
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	records, pagination, err := h.queries.ListRTKData(r.Context(), service.ListRTKDataRequest{
		Page:       page,
		PageSize:   pageSize,
		DeviceID:   q.Get("deviceId"),
		FixQuality: q.Get("fixQuality"),
		StartTime:  startTime,
		EndTime:    endTime,
	})
	if err != nil {
		h.logger.Error("Failed to list rtk data", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list rtk data")
		return
	}
	okPaged(w, records, pagination)
}

func (h *RTKHandler) get(w http.ResponseWriter, r *http.Request, id int64) {
	data, err := h.queries.GetRTKData(r.Context(), id)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, data)
}

func (h *RTKHandler) create(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, "rtk:manage") {
		return
	}

	var req service.CreateRTKDataRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.commands.CreateRTKData(r.Context(), req)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, map[string]int64{"id": id})
}

func (h *RTKHandler) update(w http.ResponseWriter, r *http.Request, id int64) {
	if !requirePermission(w, r, "rtk:manage") {
		return
	}

	var req service.CreateRTKDataRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.commands.UpdateRTKData(r.Context(), id, req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}

func (h *RTKHandler) delete(w http.ResponseWriter, r *http.Request, id int64) {
	if !requirePermission(w, r, "rtk:manage") {
		return
	}

	if err := h.commands.DeleteRTKData(r.Context(), id); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok[any](w, nil)
}
