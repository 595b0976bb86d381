// Package model 包含了应用的数据模型定义。
package model

import "net/http"

// ErrorKind 是网关错误分类的枚举。
type ErrorKind string

const (
	KindTimeout            ErrorKind = "timeout"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindNetworkUnavailable ErrorKind = "network_unavailable"
	KindUpstream           ErrorKind = "upstream"
	KindValidation         ErrorKind = "validation"
	KindUnknown            ErrorKind = "unknown"
)

// AppError 是传输网关和查询分发器所有失败路径统一输出的错误信封。
// 网关内部不允许裸错误穿透到调用方。
type AppError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"httpStatus,omitempty"`
}

// Error 实现 error 接口。
func (e *AppError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewAppError 创建一个新的错误信封。
func NewAppError(kind ErrorKind, message string, httpStatus int) *AppError {
	return &AppError{Kind: kind, Message: message, HTTPStatus: httpStatus}
}

// GatewayStatus 返回该错误映射到网关自身 API 的 HTTP 状态码。
// 映射独立于后端的原始状态码。
func (e *AppError) GatewayStatus() int {
	switch e.Kind {
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindServiceUnavailable, KindNetworkUnavailable:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
