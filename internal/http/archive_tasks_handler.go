package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zanewnch/AIOT-sub003/internal/service"
)

// ArchiveTasksHandler 归档任务端点
type ArchiveTasksHandler struct {
	archive service.ArchiveService
	logger  *zap.Logger
}

// NewArchiveTasksHandler 创建归档任务 Handler
func NewArchiveTasksHandler(archive service.ArchiveService, logger *zap.Logger) *ArchiveTasksHandler {
	return &ArchiveTasksHandler{archive: archive, logger: logger}
}

// Trigger POST /api/archive-tasks
// body: {"tableName": "..."} 省略 tableName 归档全部热表
func (h *ArchiveTasksHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !requirePermission(w, r, "archive:manage") {
		return
	}

	var req struct {
		TableName string `json:"tableName"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	createdBy := SessionFromContext(r.Context()).Username

	if req.TableName != "" {
		task, err := h.archive.RunTable(r.Context(), req.TableName, createdBy)
		if err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		ok(w, []*service.ArchiveTaskView{task})
		return
	}

	tasks := h.archive.RunAll(r.Context(), createdBy)
	ok(w, tasks)
}

// Data GET /api/archive-tasks/data
func (h *ArchiveTasksHandler) Data(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

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

	tasks, pagination, err := h.archive.ListTasks(r.Context(), service.ListArchiveTasksRequest{
		Page:      page,
		PageSize:  pageSize,
		TableName: q.Get("tableName"),
		Status:    q.Get("status"),
		StartTime: startTime,
		EndTime:   endTime,
	})
	if err != nil {
		h.logger.Error("Failed to list archive tasks", zap.Error(err))
		fail(w, http.StatusInternalServerError, "failed to list archive tasks")
		return
	}
	okPaged(w, tasks, pagination)
}

// Item GET /api/archive-tasks/data/{id}
func (h *ArchiveTasksHandler) Item(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/archive-tasks/data/")
	id, err := parseID(rest)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.archive.GetTask(r.Context(), id)
	if err != nil {
		fail(w, http.StatusNotFound, err.Error())
		return
	}
	ok(w, task)
}
