package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/blogkit/core/auth/jwt"
	"github.com/kochabx/blogkit/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT(t *testing.T) *jwt.JWT {
	t.Helper()
	j, err := jwt.New(&jwt.Config{Secret: "middleware-test", TTL: time.Hour})
	require.NoError(t, err)
	return j
}

func jwtAuth(j *jwt.JWT) AuthenticatorFunc[*jwt.Claims] {
	return func(_ context.Context, token string) (*jwt.Claims, error) {
		return j.Parse(token)
	}
}

func serve(r *gin.Engine, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPathMatcher(t *testing.T) {
	pm := NewPathMatcher([]string{"/health", "/auth/**", "/blogs/*/reaction"})

	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/live", false},
		{"/auth", true},
		{"/auth/login", true},
		{"/authz", false},
		{"/blogs/1/reaction", true},
		{"/blogs/1/2/reaction", false},
		{"/users/me", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pm.Match(tt.path), tt.path)
	}

	var nilMatcher *PathMatcher
	assert.False(t, nilMatcher.Match("/health"))
}

func TestExtractors(t *testing.T) {
	tests := []struct {
		name      string
		extractor TokenExtractor
		setup     func(r *http.Request)
		want      string
		wantErr   bool
	}{
		{"bearer", BearerExtractor(), func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc", false},
		{"bearer lowercase", BearerExtractor(), func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc", false},
		{"bearer empty", BearerExtractor(), func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") }, "", true},
		{"basic", BearerExtractor(), func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "", true},
		{"header", HeaderExtractor("X-Token"), func(r *http.Request) { r.Header.Set("X-Token", "abc") }, "abc", false},
		{"query", QueryExtractor("token"), func(r *http.Request) { r.URL.RawQuery = "token=abc" }, "abc", false},
		{"cookie", CookieExtractor("session"), func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: "abc"}) }, "abc", false},
		{"chain falls through", ChainExtractor(BearerExtractor(), QueryExtractor("token")), func(r *http.Request) { r.URL.RawQuery = "token=abc" }, "abc", false},
		{"chain exhausted", ChainExtractor(BearerExtractor(), QueryExtractor("token")), func(*http.Request) {}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(c.Request)

			token, err := tt.extractor(c)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTokenMissing)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestAuth(t *testing.T) {
	j := newJWT(t)
	token, _, err := j.Generate("user-1", "ada@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Auth(AuthConfig[*jwt.Claims]{
		Authenticator: jwtAuth(j),
		SkipPaths:     []string{"/health"},
	}))
	r.GET("/users/me", func(c *gin.Context) {
		claims, ok := GetClaims[*jwt.Claims](c.Request.Context())
		require.True(t, ok)
		fromGin, _ := c.Get(defaultClaimsKey)
		assert.Same(t, claims, fromGin)
		c.String(http.StatusOK, claims.Subject)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, http.MethodGet, "/users/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())

	w = serve(r, http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":{"code":401,"message":"authorization token missing"}}`, w.Body.String())

	w = serve(r, http.MethodGet, "/users/me", map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":401`)

	w = serve(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthCustomHandlers(t *testing.T) {
	var succeeded string
	r := gin.New()
	r.Use(Auth(AuthConfig[string]{
		Authenticator: AuthenticatorFunc[string](func(_ context.Context, token string) (string, error) {
			if token != "letmein" {
				return "", ErrTokenInvalid
			}
			return "admin", nil
		}),
		Extractor:  HeaderExtractor("X-Token"),
		ContextKey: "who",
		SkipFunc:   func(c *gin.Context) bool { return c.Request.Method == http.MethodOptions },
		ErrorHandler: func(c *gin.Context, err error) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"reason": err.Error()})
		},
		SuccessHandler: func(c *gin.Context, who string) { succeeded = who },
	}))
	r.Any("/", func(c *gin.Context) {
		who, _ := GetClaims[string](c.Request.Context(), "who")
		c.String(http.StatusOK, who)
	})

	w := serve(r, http.MethodGet, "/", map[string]string{"X-Token": "letmein"})
	assert.Equal(t, "admin", w.Body.String())
	assert.Equal(t, "admin", succeeded)

	w = serve(r, http.MethodGet, "/", map[string]string{"X-Token": "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"reason":"authorization token invalid"}`, w.Body.String())

	w = serve(r, http.MethodOptions, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetClaimsMissing(t *testing.T) {
	_, ok := GetClaims[*jwt.Claims](context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), defaultClaimsKey, "not claims")
	_, ok = GetClaims[*jwt.Claims](ctx)
	assert.False(t, ok)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Recovery(RecoveryConfig{StackTrace: true, Logger: log.NewWriter(&buf)}))
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	r.GET("/error", func(*gin.Context) { panic(errors.New("wrapped boom")) })

	w := serve(r, http.MethodGet, "/panic", map[string]string{"X-Request-Id": "req-1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Body.String(), "no error body so clients treat it as a transport failure")
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "req-1")

	w = serve(r, http.MethodGet, "/error", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Logger(LoggerConfig{
		Logger:      log.NewWriter(&buf),
		RequestBody: true,
		SkipPaths:   []string{"/health"},
	}))
	r.POST("/auth/login", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.ShouldBindJSON(&body))
		c.Status(http.StatusBadRequest)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"status":400`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"path":"/auth/login"`)
	assert.Contains(t, out, `"request_body":{"email":"a@b.c"}`)

	buf.Reset()
	serve(r, http.MethodGet, "/health", nil)
	assert.Empty(t, buf.String())
}
