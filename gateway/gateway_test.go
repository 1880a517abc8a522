package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/blogkit/errors"
	corehttp "github.com/kochabx/blogkit/core/net/http"
	"github.com/kochabx/blogkit/log"
)

type fakeSession struct {
	mu           sync.Mutex
	token        string
	unauthorized []string
}

func (s *fakeSession) AuthToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *fakeSession) OnUnauthorized(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unauthorized = append(s.unauthorized, token)
	if s.token == token {
		s.token = ""
	}
}

func newTestGateway(t *testing.T, h http.HandlerFunc, opts ...Option) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithLogger(log.Nop())}, opts...)
	g, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return g
}

func TestSendSuccessEnvelope(t *testing.T) {
	var gotAuth, gotID string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(corehttp.HeaderAuthorization)
		gotID = r.Header.Get(corehttp.HeaderRequestID)
		assert.Equal(t, "/blogs", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"data":[{"id":"b1"}]}`))
	}, WithSession(&fakeSession{token: "tok-1"}), WithRequestID(func() string { return "req-1" }))

	resp, err := g.Send(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/blogs",
		Query:  map[string][]string{"page": {"2"}},
	})
	require.NoError(t, err)

	var blogs []struct{ ID string }
	require.NoError(t, resp.Decode(&blogs))
	assert.Equal(t, "b1", blogs[0].ID)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "req-1", gotID)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestSendAuthNoneSkipsToken(t *testing.T) {
	var gotAuth string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(corehttp.HeaderAuthorization)
		_, _ = w.Write([]byte(`{"token":"t","expiredAt":"2030-01-01T00:00:00Z"}`))
	}, WithSession(&fakeSession{token: "old"}))

	resp, err := g.Send(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/login", Body: map[string]string{"email": "a@b.c"}, Auth: AuthNone})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
	assert.JSONEq(t, `{"token":"t","expiredAt":"2030-01-01T00:00:00Z"}`, string(resp.Data))
}

func TestSendAuthRequiredWithoutSession(t *testing.T) {
	called := false
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, WithSession(&fakeSession{}))

	_, err := g.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/users/me", Auth: AuthRequired})
	require.Error(t, err)
	assert.True(t, errors.IsAuthExpired(err))
	assert.False(t, called)
}

func TestSendUnauthorizedClearsSession(t *testing.T) {
	sess := &fakeSession{token: "tok-1"}
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"token revoked"}}`))
	}, WithSession(sess))

	_, err := g.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/users/me"})
	require.Error(t, err)
	assert.True(t, errors.IsAuthExpired(err))

	var de *errors.Error
	require.True(t, errors.As(errors.Unwrap(err), &de))
	assert.Equal(t, errors.KindDomain, de.Kind())
	assert.Equal(t, "token revoked", de.GetMessage())
	assert.Equal(t, []string{"tok-1"}, sess.unauthorized)

	_, ok := sess.AuthToken()
	assert.False(t, ok)
}

func TestSendUnauthorizedWithoutTokenIsDomain(t *testing.T) {
	sess := &fakeSession{}
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}, WithSession(sess))

	_, err := g.Send(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/login", Auth: AuthNone})
	require.Error(t, err)
	assert.True(t, errors.IsDomain(err))
	assert.Equal(t, "Invalid credentials", errors.Message(err))
	assert.Empty(t, sess.unauthorized)
}

func TestSendCustomAuthFailureCodes(t *testing.T) {
	sess := &fakeSession{token: "tok"}
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"419","message":"session expired"}}`))
	}, WithSession(sess), WithAuthFailureCodes(419))

	_, err := g.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/users/me"})
	assert.True(t, errors.IsAuthExpired(err))
	assert.Equal(t, []string{"tok"}, sess.unauthorized)
}

func TestSendTransportErrors(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		g, err := New("http://127.0.0.1:1", WithLogger(log.Nop()))
		require.NoError(t, err)
		_, err = g.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/blogs"})
		require.Error(t, err)
		assert.True(t, errors.IsTransport(err))
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("timeout", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := g.Send(ctx, &Request{Method: http.MethodGet, Path: "/blogs"})
		var e *errors.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, errors.TransportTimeout, e.TransportKind())
	})

	t.Run("canceled", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := g.Send(ctx, &Request{Method: http.MethodGet, Path: "/blogs"})
		var e *errors.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, errors.TransportCanceled, e.TransportKind())
		assert.False(t, errors.IsRetryable(err))
	})

	t.Run("server error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		})
		_, err := g.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/blogs"})
		var e *errors.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, errors.TransportStatus, e.TransportKind())
		assert.Equal(t, http.StatusBadGateway, e.GetCode())
	})
}

func TestSendRawBody(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get(corehttp.HeaderContentType), "multipart/form-data"))
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := g.Send(context.Background(), &Request{
		Method: http.MethodPatch,
		Path:   "/users/avatar",
		Body:   RawBody{ContentType: "multipart/form-data; boundary=x", Reader: strings.NewReader("--x--")},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Nil(t, resp.Data)
}

func TestNewInvalidBaseURL(t *testing.T) {
	_, err := New("localhost:8080")
	assert.Error(t, err)
}

func TestResponseDecodeEmpty(t *testing.T) {
	v := map[string]string{"keep": "me"}
	require.NoError(t, (&Response{Data: json.RawMessage("null")}).Decode(&v))
	assert.Equal(t, "me", v["keep"])
}
