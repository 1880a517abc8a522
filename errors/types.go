package errors

import (
	"errors"
	"net/http"
)

// Kind classifies a request outcome failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindDomain 服务端明确拒绝，原样返回给调用方
	KindDomain
	// KindTransport 网络、超时或响应格式错误，可重试
	KindTransport
	// KindAuthExpired 会话失效，强制清理本地会话，不能用旧 token 重试
	KindAuthExpired
)

func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindTransport:
		return "transport"
	case KindAuthExpired:
		return "auth_expired"
	default:
		return "unknown"
	}
}

// TransportKind narrows a KindTransport error.
type TransportKind string

const (
	TransportNetwork   TransportKind = "network"
	TransportTimeout   TransportKind = "timeout"
	TransportCanceled  TransportKind = "canceled"
	TransportMalformed TransportKind = "malformed"
	// TransportStatus 5xx 且没有可解析的错误体
	TransportStatus TransportKind = "status"
)

// Domain builds a server-side rejection with the backend's code and message.
func Domain(code int, format string, args ...any) *Error {
	err := New(code, format, args...)
	err.kind = KindDomain
	return err
}

// Transport builds a transport failure. code is the HTTP status when one was received, 0 otherwise.
func Transport(tk TransportKind, code int, cause error) *Error {
	msg := string(tk) + " failure"
	if cause != nil {
		msg = cause.Error()
	}
	err := New(code, msg)
	err.kind = KindTransport
	err.transport = tk
	err.cause = cause
	return err
}

// AuthExpired builds a session failure. cause may be the domain error that triggered it.
func AuthExpired(format string, args ...any) *Error {
	err := New(http.StatusUnauthorized, format, args...)
	err.kind = KindAuthExpired
	return err
}

func kindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.kind
	}
	return KindUnknown
}

func IsDomain(err error) bool {
	return kindOf(err) == KindDomain
}

func IsTransport(err error) bool {
	return kindOf(err) == KindTransport
}

func IsAuthExpired(err error) bool {
	return kindOf(err) == KindAuthExpired
}

// IsRetryable reports whether a read may be retried. Canceled requests are not.
func IsRetryable(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	return ge.kind == KindTransport && ge.transport != TransportCanceled
}

// Code returns the code of the first *Error in the chain, UnknownCode otherwise.
func Code(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return UnknownCode
}

// Message returns the backend message of the first *Error in the chain.
func Message(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// 4xx/5xx 构造器，主要给 mock 后端和测试使用

func BadRequest(format string, args ...any) *Error {
	return Domain(http.StatusBadRequest, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return Domain(http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return Domain(http.StatusForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Domain(http.StatusNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return Domain(http.StatusConflict, format, args...)
}

func UnprocessableEntity(format string, args ...any) *Error {
	return Domain(http.StatusUnprocessableEntity, format, args...)
}

func Internal(format string, args ...any) *Error {
	return Domain(http.StatusInternalServerError, format, args...)
}
