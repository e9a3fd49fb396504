package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chatstream/pkg/logger"
)

const secret = "test-secret"

func sign(t *testing.T, claims Claims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUsername(r.Context())))
	})
}

func TestAuth(t *testing.T) {
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad signature", "Bearer " + sign(t, Claims{Username: "ada"}, "other"), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "ada", ExpiresAt: past},
		}, secret), http.StatusUnauthorized, ""},
		{"no identity", "Bearer " + sign(t, Claims{}, secret), http.StatusUnauthorized, ""},
		{"username claim", "Bearer " + sign(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: future},
			Username:         "ada",
		}, secret), http.StatusOK, "ada"},
		{"subject fallback", "bearer " + sign(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "grace"},
		}, secret), http.StatusOK, "grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Auth(secret)(echoUser()).ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				require.Equal(t, tt.user, rec.Body.String())
			} else {
				require.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestLoggingSetsCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(CorrelationHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(CorrelationHeader, "given")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "given", seen)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(echoUser())

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUsername(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("ada"))
	require.Equal(t, http.StatusOK, send("ada"))
	require.Equal(t, http.StatusTooManyRequests, send("ada"))
	require.Equal(t, http.StatusOK, send("grace"))
}

func TestValidation(t *testing.T) {
	require.NoError(t, ValidateMessageContent("hi"))
	require.Error(t, ValidateMessageContent("  \n"))
	require.Error(t, ValidateMessageContent("\xff"))

	require.NoError(t, ValidateChatID("0190a8b4-7c1e-7000-8000-000000000000"))
	require.Error(t, ValidateChatID("nope"))

	require.NoError(t, ValidateFilename("notes.txt"))
	require.Error(t, ValidateFilename("../etc/passwd"))
	require.Error(t, ValidateFilename(""))

	require.Error(t, ValidateUsername(""))
}
