package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	defaultBufferSize = 4096
	maxBufferSize     = 1024 * 1024
	// 响应体上限，防止异常响应撑爆内存
	defaultMaxBodySize = 8 * 1024 * 1024
)

// ErrBodyTooLarge 响应体超过上限
var ErrBodyTooLarge = errors.New("response body too large")

// Doer 发送请求的最小接口，gateway 依赖它而不是具体实现
type Doer interface {
	Do(ctx context.Context, method, rawURL string, body any, opts ...RequestOption) (*Response, error)
}

// Response 已读取完毕的响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client HTTP 客户端，复用编码缓冲区
type Client struct {
	client      *http.Client
	header      map[string]string
	maxBodySize int64
	bufferPool  sync.Pool
}

// Option 客户端选项
type Option func(*Client)

// WithClient 使用自定义 http.Client
func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout 单次请求超时，包含读取响应体
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithDefaultHeader 每个请求都携带的头
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.header[key] = value
	}
}

// WithMaxBodySize 响应体上限
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// New 创建客户端
func New(opts ...Option) *Client {
	c := &Client{
		client:      &http.Client{},
		header:      map[string]string{HeaderAccept: ContentTypeJSON},
		maxBodySize: defaultMaxBodySize,
		bufferPool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type requestOptions struct {
	header      map[string]string
	query       url.Values
	contentType string
}

// RequestOption 单次请求选项
type RequestOption func(*requestOptions)

// WithHeader 设置请求头，覆盖默认头
func WithHeader(header map[string]string) RequestOption {
	return func(o *requestOptions) {
		maps.Copy(o.header, header)
	}
}

// WithQuery 追加查询参数
func WithQuery(query url.Values) RequestOption {
	return func(o *requestOptions) {
		for k, vs := range query {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// WithContentType body 为 io.Reader 时指定类型，如 multipart 边界
func WithContentType(ct string) RequestOption {
	return func(o *requestOptions) {
		o.contentType = ct
	}
}

// Do 发送请求并读取完整响应体。body 为 nil、io.Reader 或任意可 JSON 编码的值
func (c *Client) Do(ctx context.Context, method, rawURL string, body any, opts ...RequestOption) (*Response, error) {
	o := &requestOptions{
		header: maps.Clone(c.header),
		query:  url.Values{},
	}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
		}
		q := u.Query()
		for k, vs := range o.query {
			q[k] = append(q[k], vs...)
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	req, err := c.createRequest(ctx, method, rawURL, body, o)
	if err != nil {
		return nil, err
	}
	for k, v := range o.header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, c.maxBodySize)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) createRequest(ctx context.Context, method, rawURL string, body any, o *requestOptions) (*http.Request, error) {
	switch v := body.(type) {
	case nil:
		return http.NewRequestWithContext(ctx, method, rawURL, nil)
	case io.Reader:
		req, err := http.NewRequestWithContext(ctx, method, rawURL, v)
		if err == nil && o.contentType != "" {
			o.header[HeaderContentType] = o.contentType
		}
		return req, err
	default:
		buf := c.getBuffer()
		defer c.putBuffer(buf)

		if err := json.NewEncoder(buf).Encode(v); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		// buffer 会被归还复用，这里拷贝一份
		payload := bytes.Clone(buf.Bytes())
		o.header[HeaderContentType] = ContentTypeJSON
		return http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
	}
}

func (c *Client) getBuffer() *bytes.Buffer {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (c *Client) putBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxBufferSize {
		c.bufferPool.Put(buf)
	}
}
