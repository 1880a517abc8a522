package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(401, "unauthorized access")
	if err.GetCode() != 401 {
		t.Errorf("expected code 401, got %d", err.GetCode())
	}
	if err.GetMessage() != "unauthorized access" {
		t.Errorf("expected message 'unauthorized access', got %s", err.GetMessage())
	}
	if err.Kind() != KindUnknown {
		t.Errorf("expected unknown kind, got %s", err.Kind())
	}
}

func TestWithMetadata(t *testing.T) {
	err := Domain(404, "not found")

	same := err.WithMetadata(map[string]string{})
	assert.Same(t, err, same)

	withMeta := err.WithMetadata(map[string]string{"path": "/blogs/1", "method": "GET"})
	assert.NotSame(t, err, withMeta)
	assert.Nil(t, err.GetMetadata())
	assert.Equal(t, "/blogs/1", withMeta.GetMetadata()["path"])
	assert.Equal(t, KindDomain, withMeta.Kind())
	assert.Equal(t, "kind=domain, code=404, message=not found, metadata={method=GET, path=/blogs/1}", withMeta.Error())
}

func TestWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transport(TransportNetwork, 0, cause)

	assert.Same(t, cause, err.GetCause())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, TransportNetwork, err.TransportKind())
	assert.Contains(t, err.Error(), "kind=transport/network")
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		domain      bool
		transport   bool
		authExpired bool
		retryable   bool
	}{
		{"domain", Domain(422, "invalid email"), true, false, false, false},
		{"timeout", Transport(TransportTimeout, 0, context.DeadlineExceeded), false, true, false, true},
		{"canceled", Transport(TransportCanceled, 0, context.Canceled), false, true, false, false},
		{"malformed", Transport(TransportMalformed, 200, errors.New("bad json")), false, true, false, true},
		{"auth expired", AuthExpired("session expired"), false, false, true, false},
		{"wrapped domain", fmt.Errorf("login: %w", Domain(401, "bad credentials")), true, false, false, false},
		{"plain", errors.New("boom"), false, false, false, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.domain, IsDomain(tt.err))
			assert.Equal(t, tt.transport, IsTransport(tt.err))
			assert.Equal(t, tt.authExpired, IsAuthExpired(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestAuthExpiredWrapsDomain(t *testing.T) {
	domain := Unauthorized("token revoked")
	err := AuthExpired("session rejected by server").WithCause(domain)

	assert.True(t, IsAuthExpired(err))
	var de *Error
	require.True(t, errors.As(err.GetCause(), &de))
	assert.Equal(t, KindDomain, de.Kind())
	assert.Equal(t, 401, Code(err))
}

func TestIs(t *testing.T) {
	a := Domain(409, "email taken")
	b := Domain(409, "email taken").WithMetadata(map[string]string{"field": "email"})
	c := New(409, "email taken")

	assert.True(t, errors.Is(b, a))
	assert.False(t, errors.Is(c, a))
}

func TestFromError(t *testing.T) {
	stdErr := errors.New("standard error")
	wrapped := FromError(stdErr)
	assert.Equal(t, UnknownCode, wrapped.GetCode())
	assert.Same(t, stdErr, wrapped.GetCause())

	existing := NotFound("not found")
	assert.Same(t, existing, FromError(existing))
	assert.Same(t, existing, FromError(fmt.Errorf("ctx: %w", existing)))
	assert.Nil(t, FromError(nil))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Login failed!", Message(fmt.Errorf("x: %w", BadRequest("Login failed!"))))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Empty(t, Message(nil))
}
