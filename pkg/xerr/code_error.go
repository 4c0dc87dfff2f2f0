package xerr

import (
	"errors"
	"fmt"
)

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("Code: %d, Message: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

func (e *CodeError) Unwrap() error { return e.cause }

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// Wrap 携带底层错误，便于 errors.Is 判断
func Wrap(code int, msg string, cause error) *CodeError {
	return &CodeError{Code: code, Message: msg, cause: cause}
}

// As 取出链路上的 CodeError
func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
	GatewayTimeout      = 504
)

// 常用预定义错误
var (
	ErrSuccess      = New(OK, "Success")
	ErrServerError  = New(InternalServerError, "internal error, please contact support")
	ErrParam        = New(BadRequest, "invalid parameters")
	ErrUnauthorized = New(Unauthorized, "unauthorized")
)
