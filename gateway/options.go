package gateway

import (
	corehttp "github.com/kochabx/blogkit/core/net/http"
	"github.com/kochabx/blogkit/log"
)

type Option func(*Gateway)

// WithDoer 替换底层 HTTP 客户端
func WithDoer(d corehttp.Doer) Option {
	return func(g *Gateway) {
		if d != nil {
			g.doer = d
		}
	}
}

// WithSession 构造时直接绑定会话
func WithSession(s Session) Option {
	return func(g *Gateway) {
		g.Attach(s)
	}
}

// WithAuthFailureCodes 视为会话失效的错误码，默认 401
func WithAuthFailureCodes(codes ...int) Option {
	return func(g *Gateway) {
		if len(codes) == 0 {
			return
		}
		g.authCodes = make(map[int]struct{}, len(codes))
		for _, c := range codes {
			g.authCodes[c] = struct{}{}
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithRequestID 请求 ID 生成函数，测试里用固定值
func WithRequestID(fn func() string) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.newID = fn
		}
	}
}
