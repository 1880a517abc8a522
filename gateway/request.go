package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// AuthMode 控制请求是否携带会话 token
type AuthMode uint8

const (
	// AuthOptional 有有效会话就带上 token
	AuthOptional AuthMode = iota
	// AuthNone 从不携带，登录、注册等
	AuthNone
	// AuthRequired 没有有效会话时直接失败，不发请求
	AuthRequired
)

func (m AuthMode) String() string {
	switch m {
	case AuthNone:
		return "none"
	case AuthRequired:
		return "required"
	default:
		return "optional"
	}
}

// Request 一次后端调用
type Request struct {
	Method string
	// Path 相对 baseURL 的路径，可以带查询串
	Path   string
	Query  url.Values
	Body   any
	Header map[string]string
	Auth   AuthMode
}

// RawBody 原样发送的请求体，用于 multipart 上传
type RawBody struct {
	ContentType string
	Reader      io.Reader
}

// Response 成功的响应，Data 是去掉信封后的载荷
type Response struct {
	Status    int
	Data      json.RawMessage
	Header    http.Header
	RequestID string
}

// Decode 把载荷解码到 v，载荷为空时 v 保持不变
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
