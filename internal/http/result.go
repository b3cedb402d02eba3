package httpapi

import (
	"net/http"

	"github.com/zanewnch/AIOT-sub003/internal/models"
)

// Result 统一响应信封
// - status: 200 成功；400/401/404/500 业务错误
// - 业务错误走 HTTP 200 + 信封 status（传输成功、结果在信封里）
// - 认证失败例外：HTTP 401 + 信封 401，方便前端拦截器统一跳转
type Result[T any] struct {
	Status     int                `json:"status"`
	Message    string             `json:"message"`
	Data       T                  `json:"data"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Status: http.StatusOK, Message: "ok", Data: data}
}

func OkPaged[T any](data T, p *models.Pagination) Result[T] {
	return Result[T]{Status: http.StatusOK, Message: "ok", Data: data, Pagination: p}
}

func Fail(status int, message string) Result[any] {
	return Result[any]{Status: status, Message: message, Data: nil}
}
