package errors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// UnknownCode 非 *Error 的错误统一视为 500
const UnknownCode = 500

// Status is the wire shape of a backend error: {"code": ..., "message": ...}
type Status struct {
	Code     int               `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error is a classified failure. Every error produced by the request path carries
// exactly one Kind so callers can branch without string matching.
type Error struct {
	Status
	kind      Kind
	transport TransportKind
	cause     error
}

// Error 格式 kind=domain, code=404, message=..., metadata={k=v}, cause=...
func (e *Error) Error() string {
	kind := e.kind.String()
	if e.transport != "" {
		kind += "/" + string(e.transport)
	}
	parts := []string{"kind=" + kind, "code=" + strconv.Itoa(e.Code), "message=" + e.Message}

	if len(e.Metadata) > 0 {
		kv := make([]string, 0, len(e.Metadata))
		for _, k := range slices.Sorted(maps.Keys(e.Metadata)) {
			kv = append(kv, k+"="+e.Metadata[k])
		}
		parts = append(parts, "metadata={"+strings.Join(kv, ", ")+"}")
	}
	if e.cause != nil {
		parts = append(parts, "cause="+e.cause.Error())
	}
	return strings.Join(parts, ", ")
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithMetadata returns a copy of e with m merged into its metadata.
func (e *Error) WithMetadata(m map[string]string) *Error {
	if len(m) == 0 {
		return e
	}

	err := e.clone()
	if err.Metadata == nil {
		err.Metadata = make(map[string]string, len(m))
	}
	maps.Copy(err.Metadata, m)
	return err
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}

	err := e.clone()
	err.cause = cause
	return err
}

func (e *Error) clone() *Error {
	var metadata map[string]string
	if len(e.Metadata) > 0 {
		metadata = maps.Clone(e.Metadata)
	}

	return &Error{
		Status: Status{
			Code:     e.Code,
			Message:  e.Message,
			Metadata: metadata,
		},
		kind:      e.kind,
		transport: e.transport,
		cause:     e.cause,
	}
}

// Is matches another *Error with the same kind, code and message.
func (e *Error) Is(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return e.kind == ge.kind && e.Code == ge.Code && e.Message == ge.Message
	}
	return false
}

func (e *Error) GetCode() int {
	return e.Code
}

func (e *Error) GetMessage() string {
	return e.Message
}

// GetMetadata returns a copy of the metadata.
func (e *Error) GetMetadata() map[string]string {
	if len(e.Metadata) == 0 {
		return nil
	}
	return maps.Clone(e.Metadata)
}

func (e *Error) GetCause() error {
	return e.cause
}

func (e *Error) Kind() Kind {
	return e.kind
}

// TransportKind is empty unless Kind is KindTransport.
func (e *Error) TransportKind() TransportKind {
	return e.transport
}

func message(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// New creates an unclassified error. Request-path code should use Domain,
// Transport or AuthExpired instead.
func New(code int, format string, args ...any) *Error {
	return &Error{
		Status: Status{
			Code:    code,
			Message: message(format, args),
		},
	}
}

// FromError converts any error to *Error, keeping an existing *Error in the chain.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	return New(UnknownCode, "%v", err).WithCause(err)
}

// Wrap returns nil if err is nil.
func Wrap(err error, code int, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return New(code, format, args...).WithCause(err)
}
