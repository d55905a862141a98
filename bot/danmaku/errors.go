package danmaku

import (
	"errors"
	"fmt"
)

// Failure classes checked with errors.Is.
var (
	// ErrTimeout is returned when the control API does not answer in time.
	ErrTimeout = errors.New("danmaku: request timeout")

	// ErrUnreachable is returned when the control API cannot be reached.
	ErrUnreachable = errors.New("danmaku: api unreachable")

	// ErrBadStatus is returned for non-2xx responses.
	ErrBadStatus = errors.New("danmaku: unexpected status")
)

// APIError carries the failing operation and HTTP status of a control
// API call. It unwraps to one of the sentinel errors above.
type APIError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("danmaku: %s: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("danmaku: %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage renders any client error for chat output.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return fmt.Sprintf("未知错误：%v", err)
}

// UserMessage renders the error for chat output.
func (e *APIError) UserMessage() string {
	switch {
	case errors.Is(e.Err, ErrTimeout):
		return "请求超时，请稍后重试"
	case errors.Is(e.Err, ErrUnreachable):
		return "API连接失败，请检查地址是否正确"
	case e.Status != 0:
		body := e.Body
		if len(body) > 100 {
			body = body[:100]
		}
		return fmt.Sprintf("HTTP错误 %d：%s", e.Status, body)
	default:
		return fmt.Sprintf("未知错误：%v", e.Err)
	}
}
