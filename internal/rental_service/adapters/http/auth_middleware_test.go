package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("ops-secret")

func TestIssueOpsToken_Validation(t *testing.T) {
	_, err := IssueOpsToken(nil, "alice", time.Hour, time.Now())
	assert.Error(t, err)
	_, err = IssueOpsToken(testSecret, "", time.Hour, time.Now())
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(NewOpsHandler(seededRegistry(t), nil, logger, validator.New()), testSecret)

	valid, err := IssueOpsToken(testSecret, "alice", time.Hour, time.Now())
	require.NoError(t, err)
	expired, err := IssueOpsToken(testSecret, "alice", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	foreign, err := IssueOpsToken([]byte("other-secret"), "alice", time.Hour, time.Now())
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: opsTokenIssuer, Subject: "alice"}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name         string
		path         string
		header       string
		expectedCode int
	}{
		{name: "valid token", path: "/v1/numbers", header: "Bearer " + valid, expectedCode: http.StatusOK},
		{name: "missing header", path: "/v1/numbers", expectedCode: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/v1/numbers", header: "ApiKey " + valid, expectedCode: http.StatusUnauthorized},
		{name: "expired", path: "/v1/numbers", header: "Bearer " + expired, expectedCode: http.StatusUnauthorized},
		{name: "foreign signature", path: "/v1/numbers", header: "Bearer " + foreign, expectedCode: http.StatusUnauthorized},
		{name: "no expiry", path: "/v1/numbers", header: "Bearer " + noExpiry, expectedCode: http.StatusUnauthorized},
		{name: "health stays open", path: "/healthz", expectedCode: http.StatusOK},
		{name: "number lookup guarded", path: "/v1/numbers/79991234567", expectedCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.expectedCode, rr.Code)
		})
	}
}

func TestAuthMiddleware_StoresOperator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	token, err := IssueOpsToken(testSecret, "bob", time.Minute, time.Now())
	require.NoError(t, err)

	var got string
	handler := AuthMiddleware(testSecret, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = OperatorFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "bob", got)
}
