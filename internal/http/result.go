package httpapi

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const apiVersion = "1.0.0"

// 错误码
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeNotFound      = "NOT_FOUND"
	CodeInternalError = "INTERNAL_ERROR"
)

// Meta 每个响应携带的元信息
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ErrorBody 错误响应体
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// Envelope 统一响应信封：成功 {data, meta}，失败 {error, meta}
type Envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
	Meta  Meta       `json:"meta"`
}

func newMeta() Meta {
	return Meta{
		RequestID: "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   apiVersion,
	}
}

func Ok(data any) Envelope {
	return Envelope{Data: data, Meta: newMeta()}
}

func Fail(code, message string, details map[string]any) Envelope {
	if details == nil {
		details = map[string]any{}
	}
	return Envelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
		Meta:  newMeta(),
	}
}
