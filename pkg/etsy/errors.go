package etsy

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError Etsy 返回的非 2xx 响应
type APIError struct {
	Method      string
	Path        string
	StatusCode  int
	Code        string // error / invalid_grant ...
	Description string
}

func (e *APIError) Error() string {
	msg := e.Code
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return fmt.Sprintf("etsy %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Temporary 429 与 5xx 可以稍后重试
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient 区分 "暂时不可用" 与 "被 Etsy 拒绝"
// 非 APIError (网络错误、超时、解析失败) 都视为暂时性错误
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// StatusCode 取出 HTTP 状态码，非 APIError 返回 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
