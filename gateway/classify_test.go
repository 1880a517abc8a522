package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/blogkit/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		data      string
		kind      errors.Kind
		transport errors.TransportKind
		code      int
		message   string
	}{
		{name: "envelope", status: 200, body: `{"data":{"id":1},"error":null}`, data: `{"id":1}`},
		{name: "bare object", status: 200, body: `{"token":"t","expiredAt":1700000000}`, data: `{"token":"t","expiredAt":1700000000}`},
		{name: "bare array", status: 200, body: `[1,2]`, data: `[1,2]`},
		{name: "data with siblings", status: 200, body: `{"data":[],"total":0}`, data: `{"data":[],"total":0}`},
		{name: "empty", status: 204, body: ``},
		{name: "malformed 2xx", status: 200, body: `<html>`, kind: errors.KindTransport, transport: errors.TransportMalformed, code: 200},
		{name: "error object", status: 404, body: `{"error":{"code":404,"message":"blog not found"}}`, kind: errors.KindDomain, code: 404, message: "blog not found"},
		{name: "error code fallback", status: 409, body: `{"error":{"message":"email taken"}}`, kind: errors.KindDomain, code: 409, message: "email taken"},
		{name: "error string", status: 400, body: `{"error":"bad input"}`, kind: errors.KindDomain, code: 400, message: "bad input"},
		{name: "message body", status: 401, body: `{"message":"Invalid credentials"}`, kind: errors.KindDomain, code: 401, message: "Invalid credentials"},
		{name: "domain 5xx", status: 500, body: `{"error":{"code":500,"message":"db down"}}`, kind: errors.KindDomain, code: 500, message: "db down"},
		{name: "bare 4xx", status: 403, body: ``, kind: errors.KindDomain, code: 403, message: "Forbidden"},
		{name: "bare 5xx", status: 503, body: `Service Unavailable`, kind: errors.KindTransport, transport: errors.TransportStatus, code: 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Classify(tt.status, []byte(tt.body))
			if tt.kind == errors.KindUnknown {
				require.NoError(t, err)
				if tt.data == "" {
					assert.Empty(t, data)
				} else {
					assert.JSONEq(t, tt.data, string(data))
				}
				return
			}

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.kind, e.Kind())
			assert.Equal(t, tt.transport, e.TransportKind())
			assert.Equal(t, tt.code, e.GetCode())
			if tt.message != "" {
				assert.Equal(t, tt.message, e.GetMessage())
			}
		})
	}
}

func TestClassifyStringCode(t *testing.T) {
	_, err := Classify(422, []byte(`{"error":{"code":"EMAIL_INVALID","message":"invalid email"}}`))
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 422, e.GetCode())
	assert.Equal(t, "EMAIL_INVALID", e.GetMetadata()["code"])
}
