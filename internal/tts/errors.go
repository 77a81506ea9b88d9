package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrProviderTimeout 单次调用超过超时时间。
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrProviderRateLimited 供应商返回限流。
	ErrProviderRateLimited = errors.New("provider rate limited")
	// ErrTransportAbort 连接失败、被取消或响应中断。
	ErrTransportAbort = errors.New("transport aborted")
)

// ProviderError 表示供应商返回了非成功响应。
type ProviderError struct {
	Provider string
	Status   int
	// Code 是供应商自己的错误码（如腾讯云的 AuthFailure.SecretIdNotFound），可为空。
	Code    string
	Message string
	// RateLimited 在状态码 429 或响应体声明配额耗尽时为 true。
	RateLimited bool
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[tts] %s 返回状态码 %d (%s): %s", e.Provider, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("[tts] %s 返回状态码 %d: %s", e.Provider, e.Status, e.Message)
}

// Is 让 errors.Is(err, ErrProviderRateLimited) 对限流响应成立。
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderRateLimited && e.RateLimited
}

// newStatusError 根据 HTTP 响应构造 ProviderError。
func newStatusError(provider string, status int, body []byte) *ProviderError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	return &ProviderError{
		Provider:    provider,
		Status:      status,
		Message:     msg,
		RateLimited: status == http.StatusTooManyRequests || strings.Contains(msg, "RESOURCE_EXHAUSTED"),
	}
}

// transportError 把底层网络错误归类为超时或传输中断。
func transportError(provider string, ctx context.Context, err error) error {
	if isTimeout(ctx, err) {
		return fmt.Errorf("[tts] %s 请求超时: %w: %v", provider, ErrProviderTimeout, err)
	}
	return fmt.Errorf("[tts] %s 请求失败: %w: %v", provider, ErrTransportAbort, err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsRateLimited 判断错误是否来自限流响应。
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrProviderRateLimited)
}
