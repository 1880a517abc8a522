package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	kerrors "github.com/kochabx/blogkit/errors"
	transporthttp "github.com/kochabx/blogkit/transport/http"
)

const defaultClaimsKey = "claims"

var (
	ErrTokenMissing = errors.New("authorization token missing")
	ErrTokenInvalid = errors.New("authorization token invalid")
)

// Authenticator 校验 token 并返回声明
type Authenticator[T any] interface {
	Authenticate(ctx context.Context, token string) (T, error)
}

// AuthenticatorFunc 函数形式的 Authenticator
type AuthenticatorFunc[T any] func(ctx context.Context, token string) (T, error)

func (f AuthenticatorFunc[T]) Authenticate(ctx context.Context, token string) (T, error) {
	return f(ctx, token)
}

// TokenExtractor 从请求中取出 token
type TokenExtractor func(c *gin.Context) (string, error)

// BearerExtractor Authorization: Bearer <token>，前缀大小写不敏感
func BearerExtractor() TokenExtractor {
	return func(c *gin.Context) (string, error) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrTokenMissing
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func HeaderExtractor(name string) TokenExtractor {
	return func(c *gin.Context) (string, error) {
		if v := c.GetHeader(name); v != "" {
			return v, nil
		}
		return "", ErrTokenMissing
	}
}

func QueryExtractor(name string) TokenExtractor {
	return func(c *gin.Context) (string, error) {
		if v := c.Query(name); v != "" {
			return v, nil
		}
		return "", ErrTokenMissing
	}
}

func CookieExtractor(name string) TokenExtractor {
	return func(c *gin.Context) (string, error) {
		v, err := c.Cookie(name)
		if err != nil || v == "" {
			return "", ErrTokenMissing
		}
		return v, nil
	}
}

// ChainExtractor 依次尝试，返回第一个成功的
func ChainExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(c *gin.Context) (string, error) {
		for _, e := range extractors {
			if token, err := e(c); err == nil {
				return token, nil
			}
		}
		return "", ErrTokenMissing
	}
}

// AuthConfig 鉴权中间件配置
type AuthConfig[T any] struct {
	Authenticator Authenticator[T]
	// Extractor 默认 BearerExtractor
	Extractor TokenExtractor
	// ContextKey 声明写入 request context 的键，默认 "claims"
	ContextKey string
	SkipPaths  []string
	SkipFunc   func(*gin.Context) bool
	// ErrorHandler 默认返回 401 错误信封
	ErrorHandler   func(c *gin.Context, err error)
	SuccessHandler func(c *gin.Context, claims T)
}

// Auth 校验请求 token，声明通过 GetClaims 读取
func Auth[T any](cfg AuthConfig[T]) gin.HandlerFunc {
	if cfg.Extractor == nil {
		cfg.Extractor = BearerExtractor()
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultClaimsKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *gin.Context, err error) {
			transporthttp.GinError(c, kerrors.Unauthorized("%s", err.Error()))
		}
	}
	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		if shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}

		token, err := cfg.Extractor(c)
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}

		claims, err := cfg.Authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}

		ctx := context.WithValue(c.Request.Context(), cfg.ContextKey, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Set(cfg.ContextKey, claims)

		if cfg.SuccessHandler != nil {
			cfg.SuccessHandler(c, claims)
		}
		c.Next()
	}
}

// GetClaims 读取 Auth 写入的声明，key 默认 "claims"
func GetClaims[T any](ctx context.Context, key ...string) (T, bool) {
	k := defaultClaimsKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	v, ok := ctx.Value(k).(T)
	return v, ok
}
