package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/gostepup/internal/pkg/clock"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/jwt"
	"github.com/shandysiswandi/gostepup/internal/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJWT struct{}

func (fakeJWT) Generate(int64, string) (string, error) { return "good", nil }

func (fakeJWT) Verify(token string) (jwt.Claims, error) {
	if token != "good" {
		return jwt.Claims{}, jwt.ErrInvalidToken
	}
	return jwt.Claims{AccountID: 42, Email: "ana@example.com"}, nil
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type created struct {
	ID int64 `json:"id"`
}

func (created) StatusCode() int { return http.StatusCreated }
func (created) Message() string { return "created" }

func newTestRouter(limiter ratelimit.Limiter) *Router {
	return NewRouter(Config{
		UUID:       fixedID("cid-1"),
		JWT:        fakeJWT{},
		Instrument: instrument.NewNoop(),
		Limiter:    limiter,
		Clock:      clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter_Envelopes(t *testing.T) {
	t.Parallel()

	ro := newTestRouter(nil)
	ro.POST("/api/v1/identity/signup", func(r *Request) (any, error) {
		var in struct {
			Email string `json:"email"`
		}
		if err := r.DecodeBody(&in); err != nil {
			return nil, err
		}
		return created{ID: 7}, nil
	})
	ro.GET("/api/v1/rejected", func(*Request) (any, error) {
		return nil, goerror.NewRejected(errors.New("expired"), "OTP has expired", "otp_expired", goerror.CodeInvalidInput)
	})
	ro.GET("/api/v1/boom", func(*Request) (any, error) {
		return nil, errors.New("plain")
	})

	t.Run("success with status and message", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/signup", strings.NewReader(`{"email":"a@b.c"}`))
		rec := httptest.NewRecorder()

		ro.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "created", body["message"])
		assert.Equal(t, float64(7), body["data"].(map[string]any)["id"])
		assert.Equal(t, "cid-1", rec.Header().Get(HeaderCorrelationID))
	})

	t.Run("unknown field is invalid format", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/signup", strings.NewReader(`{"email":"a@b.c","x":1}`))
		rec := httptest.NewRecorder()

		ro.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body", decode(t, rec)["message"])
	})

	t.Run("rejection carries reason", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/rejected", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()

		ro.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "OTP has expired", body["message"])
		assert.Equal(t, "otp_expired", body["error"].(map[string]any)["reason"])
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()

		ro.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", decode(t, rec)["message"])
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		ro.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_Authentication(t *testing.T) {
	t.Parallel()

	ro := newTestRouter(nil)
	ro.GET("/api/v1/identity/channel/status", func(r *Request) (any, error) {
		return map[string]int64{"account_id": jwt.GetAuth(r.Context()).AccountID}, nil
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer bad", want: http.StatusUnauthorized},
		{name: "valid token", header: "bearer good", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/identity/channel/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			ro.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("health is public", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		ro.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	// Arrange
	ro := newTestRouter(ratelimit.NewMemory(2, time.Minute))
	ro.POST("/api/v1/identity/login", func(*Request) (any, error) {
		return map[string]string{"ok": "1"}, nil
	})

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/login", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		ro.ServeHTTP(rec, req)
		return rec
	}

	// Act & Assert
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	rec := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)

	// /health is outside /api and never throttled
	for range 5 {
		rec := httptest.NewRecorder()
		ro.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRouter_RateLimitSkipsTelegramWebhook(t *testing.T) {
	t.Parallel()

	// Arrange
	ro := newTestRouter(ratelimit.NewMemory(5, time.Minute))
	ro.POSTRaw("/api/v1/identity/telegram/webhook", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	ro.POST("/api/v1/identity/login", func(*Request) (any, error) {
		return map[string]string{"ok": "1"}, nil
	})

	call := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "149.154.167.220:443"
		rec := httptest.NewRecorder()
		ro.ServeHTTP(rec, req)
		return rec
	}

	// Act & Assert
	for i := range 8 {
		rec := call("/api/v1/identity/telegram/webhook")
		assert.Equal(t, http.StatusOK, rec.Code, "update %d", i+1)
		assert.Empty(t, rec.Header().Get("Retry-After"))
	}

	// other routes from the same address are still limited
	for range 5 {
		assert.Equal(t, http.StatusOK, call("/api/v1/identity/login").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, call("/api/v1/identity/login").Code)
}

func TestRouter_Recover(t *testing.T) {
	t.Parallel()

	ro := newTestRouter(nil)
	ro.GET("/api/v1/panic", func(*Request) (any, error) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/panic", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()

	ro.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["message"])
}

func TestRealIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "true client ip", headers: map[string]string{"True-Client-IP": "1.1.1.1"}, remote: "9.9.9.9:1", want: "1.1.1.1"},
		{name: "forwarded first hop", headers: map[string]string{"X-Forwarded-For": " 2.2.2.2 , 3.3.3.3"}, remote: "9.9.9.9:1", want: "2.2.2.2"},
		{name: "garbage header falls back", headers: map[string]string{"X-Real-IP": "nope"}, remote: "9.9.9.9:1", want: "9.9.9.9"},
		{name: "unparseable remote", remote: "pipe", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, realIP(req))
		})
	}
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), nil, mw("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
