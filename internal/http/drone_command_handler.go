package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// DroneCommandHandler 指令端点
type DroneCommandHandler struct {
	queries  service.DroneCommandQueriesSvc
	commands service.DroneCommandCommandsSvc
	logger   *zap.Logger
}

// NewDroneCommandHandler 创建指令 Handler
func NewDroneCommandHandler(queries service.DroneCommandQueriesSvc, commands service.DroneCommandCommandsSvc, logger *zap.Logger) *DroneCommandHandler {
	return &DroneCommandHandler{queries: queries, commands: commands, logger: logger}
}

// Data GET /api/drone-commands/data
func (h *DroneCommandHandler) Data(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := h.listRequest(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	commands, pagination, err := h.queries.ListCommands(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to list commands", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list commands")
		return
	}
	okPaged(w, commands, pagination)
}

// Item GET /api/drone-commands/data/{id}
func (h *DroneCommandHandler) Item(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/drone-commands/data/")
	id, err := parseID(rest)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	cmd, err := h.queries.GetCommand(r.Context(), id)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, cmd)
}

// Send POST /api/drone-commands/send
func (h *DroneCommandHandler) Send(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !requirePermission(w, r, "drone:command") {
		return
	}

	var req service.SendCommandRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// 下发人取会话用户，不信任请求体
	req.IssuedBy = SessionFromContext(r.Context()).UserID

	cmd, err := h.commands.SendCommand(r.Context(), req)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, cmd)
}

// ArchiveData GET /api/drone-commands-archive/data
func (h *DroneCommandHandler) ArchiveData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := h.listRequest(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	records, pagination, err := h.queries.ListArchivedCommands(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to list archived commands", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list archived commands")
		return
	}
	okPaged(w, records, pagination)
}

func (h *DroneCommandHandler) listRequest(r *http.Request) (service.ListCommandsRequest, error) {
	page, pageSize := pageParams(r)
	q := r.URL.Query()

	startTime, err := parseTimeQuery(r, "startTime")
	if err != nil {
		return service.ListCommandsRequest{}, err
	}
	endTime, err := parseTimeQuery(r, "endTime")
	if err != nil {
		return service.ListCommandsRequest{}, err
	}

	return service.ListCommandsRequest{
		Page:        page,
		PageSize:    pageSize,
		DroneID:     strings.TrimSpace(q.Get("droneId")),
		CommandType: q.Get("commandType"),
		Status:      q.Get("status"),
		StartTime:   startTime,
		EndTime:     endTime,
	}, nil
}
