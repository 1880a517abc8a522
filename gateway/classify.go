package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/kochabx/blogkit/errors"
	corehttp "github.com/kochabx/blogkit/core/net/http"
)

// envelope 后端响应信封 {"data": ..., "error": {"code", "message"}}
// 也兼容不带信封的裸载荷和 {"message": "..."} 形式的错误体
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type wireError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// Classify 把 HTTP 状态码和响应体归为成功载荷、DomainError 或 TransportError 之一
func Classify(status int, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)

	if status >= 200 && status < 300 {
		if len(body) == 0 {
			return nil, nil
		}
		if !json.Valid(body) {
			return nil, errors.Transport(errors.TransportMalformed, status, stderrors.New("response body is not valid JSON"))
		}
		return successPayload(body), nil
	}

	if err, ok := domainError(status, body); ok {
		return nil, err
	}

	if status >= 400 && status < 500 {
		return nil, errors.Domain(status, "%s", http.StatusText(status))
	}
	return nil, errors.Transport(errors.TransportStatus, status, stderrors.New(statusText(status)))
}

// successPayload 有 data 字段取 data，否则整个 body 就是载荷
func successPayload(body []byte) json.RawMessage {
	if body[0] != '{' {
		return json.RawMessage(body)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return json.RawMessage(body)
	}
	if data, ok := fields["data"]; ok {
		if _, hasErr := fields["error"]; hasErr || len(fields) == 1 {
			return data
		}
	}
	return json.RawMessage(body)
}

func domainError(status int, body []byte) (*errors.Error, bool) {
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}

	raw := bytes.TrimSpace(env.Error)
	switch {
	case len(raw) > 0 && raw[0] == '{':
		var we wireError
		if err := json.Unmarshal(raw, &we); err != nil {
			return nil, false
		}
		code, meta := parseCode(we.Code, status)
		msg := we.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return errors.Domain(code, "%s", msg).WithMetadata(meta), true
	case len(raw) > 0 && raw[0] == '"':
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, false
		}
		return errors.Domain(status, "%s", msg), true
	case env.Message != "":
		return errors.Domain(status, "%s", env.Message), true
	}
	return nil, false
}

// parseCode 数字或数字字符串作为错误码，其他字符串保留到 metadata
func parseCode(raw json.RawMessage, status int) (int, map[string]string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return status, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n != 0 {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		return status, map[string]string{"code": s}
	}
	return status, nil
}

// classifyDoError 请求没有拿到响应时的分类
func classifyDoError(ctx context.Context, err error) *errors.Error {
	switch {
	case stderrors.Is(err, context.Canceled) || stderrors.Is(ctx.Err(), context.Canceled):
		return errors.Transport(errors.TransportCanceled, 0, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Transport(errors.TransportTimeout, 0, err)
	case stderrors.Is(err, corehttp.ErrBodyTooLarge):
		return errors.Transport(errors.TransportMalformed, 0, err)
	}

	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return errors.Transport(errors.TransportTimeout, 0, err)
	}
	return errors.Transport(errors.TransportNetwork, 0, err)
}

func statusText(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "unexpected status " + strconv.Itoa(status)
	}
	return strings.ToLower(text)
}
