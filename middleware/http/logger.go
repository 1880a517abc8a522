package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kochabx/blogkit/log"
)

// LoggerConfig 访问日志配置
type LoggerConfig struct {
	// RequestBody 记录请求体，密码和 token 由日志的脱敏规则处理
	RequestBody bool
	HandlerName bool
	SkipPaths   []string
	SkipFunc    func(*gin.Context) bool
	Logger      *log.Logger
}

// Logger 访问日志。4xx 记为 warn，5xx 记为 error
func Logger(cfgs ...LoggerConfig) gin.HandlerFunc {
	cfg := LoggerConfig{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = log.G
	}
	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		if shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}

		start := time.Now()

		var requestBody []byte
		if cfg.RequestBody && c.ContentType() == gin.MIMEJSON {
			if body, err := c.GetRawData(); err == nil {
				if json.Valid(body) {
					requestBody = body
				}
				c.Request.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = cfg.Logger.Error()
		case status >= http.StatusBadRequest:
			event = cfg.Logger.Warn()
		default:
			event = cfg.Logger.Info()
		}

		event = event.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Dur("duration", time.Since(start)).
			Bool("auth", c.GetHeader("Authorization") != "")

		if query := c.Request.URL.RawQuery; query != "" {
			event = event.Str("query", query)
		}
		if requestID := c.GetHeader("X-Request-Id"); requestID != "" {
			event = event.Str("request_id", requestID)
		}
		if cfg.HandlerName {
			event = event.Str("handler", c.HandlerName())
		}
		if len(requestBody) > 0 {
			event = event.RawJSON("request_body", requestBody)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.ByType(gin.ErrorTypePrivate).String())
		}

		event.Send()
	}
}
