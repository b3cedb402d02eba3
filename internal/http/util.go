package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zanewnch/AIOT-sub003/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ok 成功响应
func ok[T any](w http.ResponseWriter, data T) {
	writeJSON(w, http.StatusOK, Ok(data))
}

// okPaged 分页成功响应
func okPaged[T any](w http.ResponseWriter, data T, p *models.Pagination) {
	writeJSON(w, http.StatusOK, OkPaged(data, p))
}

// fail 业务错误：HTTP 200 + 信封错误 status
func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, http.StatusOK, Fail(status, message))
}

// failAuth 认证失败：HTTP 401 + 信封 401
func failAuth(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, Fail(http.StatusUnauthorized, message))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return id, nil
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// parseTimeQuery 解析时间查询参数，支持 RFC3339 和 "2006-01-02 15:04:05"
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid %s: %s", key, s)
}

// parseTimeWindow 统计/导出接口的必填时间窗
func parseTimeWindow(r *http.Request) (time.Time, time.Time, error) {
	start, err := parseTimeQuery(r, "startTime")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTimeQuery(r, "endTime")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start == nil || end == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("startTime and endTime are required")
	}
	if end.Before(*start) {
		return time.Time{}, time.Time{}, fmt.Errorf("endTime must not be before startTime")
	}
	return *start, *end, nil
}

// pageParams 读取分页查询参数
func pageParams(r *http.Request) (page, pageSize int) {
	q := r.URL.Query()
	return parseInt(q.Get("page"), 1), parseInt(q.Get("pageSize"), 20)
}
