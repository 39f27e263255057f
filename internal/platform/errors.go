package platform

import (
	"context"
	"errors"
	"fmt"
)

// ErrMalformedPayload 平台响应体无法解析
var ErrMalformedPayload = errors.New("platform payload malformed")

// ErrMalformedProduct 商品 JSON 不符合目录契约（模板/数据契约被破坏）
var ErrMalformedProduct = errors.New("product payload malformed")

// Error 平台返回的业务错误（非 2xx 响应）
type Error struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("platform error %d: %s (%s)", e.Status, e.Message, e.Description)
	}
	return fmt.Sprintf("platform error %d: %s", e.Status, e.Message)
}

// IsPlatformError 判断是否为平台业务错误
func IsPlatformError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsAbort 判断请求是否因被更新的请求取代而取消
// 取消不是失败，调用方应静默忽略。
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}
