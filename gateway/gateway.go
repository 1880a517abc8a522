// Package gateway 是所有后端调用的唯一出口：附加 token、归类结果、处理鉴权失败。
package gateway

import (
	"context"
	"io"
	"maps"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kochabx/blogkit/errors"
	corehttp "github.com/kochabx/blogkit/core/net/http"
	"github.com/kochabx/blogkit/log"
)

// Session gateway 对会话的全部依赖
type Session interface {
	// AuthToken 返回可附加的 token，会话不存在或已过期时 ok 为 false
	AuthToken() (token string, ok bool)
	// OnUnauthorized 后端拒绝了携带 token 的请求
	OnUnauthorized(token string)
}

// Sender 发送请求，Cache、Dispatcher、Controller 依赖它
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Gateway 请求网关
type Gateway struct {
	baseURL   string
	doer      corehttp.Doer
	session   atomic.Pointer[sessionHolder]
	authCodes map[int]struct{}
	logger    *log.Logger
	newID     func() string
}

type sessionHolder struct {
	s Session
}

// New 创建网关，baseURL 为后端根地址
func New(baseURL string, opts ...Option) (*Gateway, error) {
	if _, err := corehttp.Resolve(baseURL, "/"); err != nil {
		return nil, err
	}

	g := &Gateway{
		baseURL:   baseURL,
		authCodes: map[int]struct{}{http.StatusUnauthorized: {}},
		logger:    log.G,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.doer == nil {
		g.doer = corehttp.New()
	}

	return g, nil
}

// Attach 绑定会话。Controller 创建时依赖 gateway，所以会话在构造之后再绑定
func (g *Gateway) Attach(s Session) {
	if s == nil {
		g.session.Store(nil)
		return
	}
	g.session.Store(&sessionHolder{s: s})
}

func (g *Gateway) currentSession() Session {
	if h := g.session.Load(); h != nil {
		return h.s
	}
	return nil
}

// Send 发送请求。返回的错误一定是 Domain、Transport、AuthExpired 三类之一
func (g *Gateway) Send(ctx context.Context, req *Request) (*Response, error) {
	rawURL, err := corehttp.Resolve(g.baseURL, req.Path)
	if err != nil {
		return nil, errors.Transport(errors.TransportNetwork, 0, err)
	}

	header := make(map[string]string, len(req.Header)+2)
	maps.Copy(header, req.Header)

	requestID := header[corehttp.HeaderRequestID]
	if requestID == "" {
		requestID = g.newID()
		header[corehttp.HeaderRequestID] = requestID
	}

	var token string
	if req.Auth != AuthNone {
		if s := g.currentSession(); s != nil {
			token, _ = s.AuthToken()
		}
		if token == "" && req.Auth == AuthRequired {
			return nil, errors.AuthExpired("authentication required").
				WithMetadata(map[string]string{"path": req.Path})
		}
		if token != "" {
			header[corehttp.HeaderAuthorization] = "Bearer " + token
		}
	}

	opts := []corehttp.RequestOption{corehttp.WithHeader(header)}
	if len(req.Query) > 0 {
		opts = append(opts, corehttp.WithQuery(req.Query))
	}

	var body any = req.Body
	switch b := req.Body.(type) {
	case RawBody:
		body = b.Reader
		opts = append(opts, corehttp.WithContentType(b.ContentType))
	case *RawBody:
		body = b.Reader
		opts = append(opts, corehttp.WithContentType(b.ContentType))
	case io.Reader:
		body = b
	}

	start := time.Now()
	resp, err := g.doer.Do(ctx, req.Method, rawURL, body, opts...)
	if err != nil {
		terr := classifyDoError(ctx, err)
		g.logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Str("request_id", requestID).
			Str("transport", string(terr.TransportKind())).
			Dur("duration", time.Since(start)).
			Msg("request failed")
		return nil, terr
	}

	g.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Bool("auth", token != "").
		Dur("duration", time.Since(start)).
		Msg("request completed")

	data, err := Classify(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, g.onFailure(token, req, err)
	}

	return &Response{
		Status:    resp.StatusCode,
		Data:      data,
		Header:    resp.Header,
		RequestID: requestID,
	}, nil
}

// onFailure 携带 token 的请求收到鉴权失败码时通知会话，并升级为 AuthExpired
func (g *Gateway) onFailure(token string, req *Request, err error) error {
	if token == "" || !errors.IsDomain(err) {
		return err
	}
	if _, ok := g.authCodes[errors.Code(err)]; !ok {
		return err
	}

	g.logger.Info().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("code", errors.Code(err)).
		Msg("session rejected by server")

	if s := g.currentSession(); s != nil {
		s.OnUnauthorized(token)
	}
	return errors.AuthExpired("session rejected by server").WithCause(err)
}
