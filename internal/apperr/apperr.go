package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 业务错误分类，对外以 machine-readable 字符串返回
type Kind string

const (
	KindValidation       Kind = "validation"        // 入参非法（mode/洞号/杆数越界等）
	KindConflict         Kind = "conflict"          // 非法状态迁移 / 重复报名 / 脏写
	KindLocked           Kind = "locked"            // 记分卡已锁定
	KindNotFound         Kind = "not_found"         // 资源不存在
	KindAlreadyFinalized Kind = "already_finalized" // 比赛结果已定格
	KindAuthorization    Kind = "authorization"     // 非组长/非管理员执行特权操作
)

// Error 携带分类的业务错误，API 层统一映射为 4xx 响应
type Error struct {
	Kind    Kind
	Message string
	Err     error // 可选的底层错误
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建指定分类的业务错误
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并附加分类
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func Locked(format string, args ...interface{}) *Error {
	return New(KindLocked, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func AlreadyFinalized(format string, args ...interface{}) *Error {
	return New(KindAlreadyFinalized, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return New(KindAuthorization, format, args...)
}

// KindOf 提取错误分类，非业务错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus 业务错误分类到 HTTP 状态码的唯一映射
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindAlreadyFinalized:
		return http.StatusConflict
	case KindLocked:
		return http.StatusLocked
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
