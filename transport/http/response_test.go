package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/gateway"
)

func TestGinJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		status int
		data   any
		want   string
	}{
		{
			name:   "map data",
			status: http.StatusOK,
			data:   map[string]string{"key": "value"},
			want:   `{"data":{"key":"value"}}`,
		},
		{
			name:   "created",
			status: http.StatusCreated,
			data:   []int{1, 2},
			want:   `{"data":[1,2]}`,
		},
		{
			name:   "nil data",
			status: http.StatusOK,
			data:   nil,
			want:   `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinJSON(c, tt.status, tt.data)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGinJSONE(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		code       int
		data       any
		wantStatus int
		want       string
	}{
		{
			name:       "structured error",
			code:       409,
			data:       kerrors.Conflict("email already registered"),
			wantStatus: 409,
			want:       `{"error":{"code":409,"message":"email already registered"}}`,
		},
		{
			name:       "standard error",
			code:       500,
			data:       errors.New("standard error"),
			wantStatus: 500,
			want:       `{"error":{"code":500,"message":"standard error"}}`,
		},
		{
			name:       "string message",
			code:       400,
			data:       "bad request",
			wantStatus: 400,
			want:       `{"error":{"code":400,"message":"bad request"}}`,
		},
		{
			name:       "nil",
			code:       500,
			data:       nil,
			wantStatus: 500,
			want:       `{"error":{"code":500,"message":"operation failed"}}`,
		},
		{
			name:       "business code outside http range",
			code:       10001,
			data:       "custom",
			wantStatus: 500,
			want:       `{"error":{"code":10001,"message":"custom"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinJSONE(c, tt.code, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			assert.True(t, c.IsAborted())
		})
	}
}

func TestEnvelopeClassifiesOnClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	GinError(c, kerrors.NotFound("blog not found"))

	_, err := gateway.Classify(w.Code, w.Body.Bytes())
	require.Error(t, err)
	assert.True(t, kerrors.IsDomain(err))
	assert.Equal(t, http.StatusNotFound, kerrors.Code(err))
	assert.Equal(t, "blog not found", kerrors.Message(err))

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	GinJSON(c, http.StatusOK, map[string]string{"title": "hello"})

	data, err := gateway.Classify(w.Code, w.Body.Bytes())
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"hello"}`, string(data))
}

func TestGinJSONWithNilContext(t *testing.T) {
	GinJSON(nil, http.StatusOK, "test")
	GinJSONE(nil, 500, "error")
}
