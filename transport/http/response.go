package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/blogkit/errors"
)

const defaultErrorMsg = "operation failed"

// ErrorBody 信封里的错误对象
type ErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Envelope 统一响应信封，成功时只有 data，失败时只有 error
type Envelope[T any] struct {
	Data  T          `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// GinJSON 写入成功响应
//
//	GinJSON(c, http.StatusCreated, blog)
//	// 201 {"data":{"_id":"...","title":"..."}}
func GinJSON(c *gin.Context, status int, data any) {
	if c == nil {
		return
	}
	c.JSON(status, &Envelope[any]{Data: data})
}

// GinJSONE 写入错误响应并中止后续处理。HTTP 状态码取自错误码，非法时按 500 处理
//
// data 参数支持：
//   - error: 优先从 errors.Error 中提取消息和 metadata
//   - string: 直接作为消息
//   - nil: 使用默认错误消息
func GinJSONE(c *gin.Context, code int, data any) {
	if c == nil {
		return
	}

	body := &ErrorBody{Code: code, Message: defaultErrorMsg}
	switch v := data.(type) {
	case error:
		e := errors.FromError(v)
		body.Message = e.GetMessage()
		body.Details = e.GetMetadata()
	case string:
		body.Message = v
	}

	status := code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, &Envelope[any]{Error: body})
}

// GinError 按错误自带的码写入错误响应
func GinError(c *gin.Context, err error) {
	GinJSONE(c, errors.FromError(err).GetCode(), err)
}
