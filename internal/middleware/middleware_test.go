package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sroanalysis/internal/config"
	apperrors "sroanalysis/internal/errors"
	"sroanalysis/internal/infrastructure"
	"sroanalysis/internal/shared/testutil"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestID(t *testing.T) {
	var seen, chiSeen, traceSeen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		chiSeen = chimw.GetReqID(r.Context())
		traceSeen = infrastructure.GetTraceID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		assert.Equal(t, seen, chiSeen)
		assert.Equal(t, seen, traceSeen)
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	assert.Empty(t, GetRequestID(context.Background()))
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.True(t, logs.ContainsMessage("request completed"))
	assert.True(t, logs.ContainsAttr("status", int64(http.StatusNotFound)))
	assert.True(t, logs.ContainsAttr("path", "/missing"))
}

func TestRecoverer(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := Recoverer(apperrors.NewErrorHandler(logger, false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.5, 1, apperrors.NewErrorHandler(logger, false), logger)
	handler := rl.Handler(ok)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, apperrors.TypeRateLimit, decodeBody(t, rec)["type"])
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	handler := Timeout(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, hasDeadline = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestMaxBodySize(t *testing.T) {
	var readErr error
	handler := MaxBodySize(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	var tooLarge *http.MaxBytesError
	assert.ErrorAs(t, readErr, &tooLarge)
}

func TestCORS(t *testing.T) {
	handler := CORS(DefaultCORSConfig())(ok)

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin any port", http.MethodGet, "http://localhost:3000", false, "http://localhost:3000", http.StatusOK},
		{"disallowed origin", http.MethodGet, "https://evil.example", false, "", http.StatusOK},
		{"preflight", http.MethodOptions, "http://127.0.0.1:8080", true, "http://127.0.0.1:8080", http.StatusNoContent},
		{"no origin", http.MethodGet, "", false, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/measures", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.preflight {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
				assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	DefaultSecureHeaders().Handler(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	h := rec.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'none'")
	assert.NotEmpty(t, h.Get("Permissions-Policy"))
	assert.Empty(t, h.Get("Strict-Transport-Security"), "HSTS only over TLS")

	dev := DefaultSecureHeaders()
	dev.DevMode = true
	rec = httptest.NewRecorder()
	dev.Handler(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "max-age=63072000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestAuditLog(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := RequestID(AuditLog(logger)(ok))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/run", nil)
	req.Header.Set(RequestIDHeader, "audit-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, logs.ContainsMessage("audit log"))
	assert.True(t, logs.ContainsMessage("audit log complete"))
	assert.True(t, logs.ContainsAttr("request_id", "audit-1"))
	assert.True(t, logs.ContainsAttr("component", "audit"))
}

func TestOTelMiddleware(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	providers, err := infrastructure.InitializeOTel(config.TelemetryConfig{
		Enabled:        true,
		TraceExporter:  "none",
		MetricsEnabled: true,
	}, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := infrastructure.CreateMetrics(providers.Meter)
	require.NoError(t, err)

	var spanRecording bool
	router := chi.NewRouter()
	router.Use(NewOTelMiddleware(providers, metrics, logger).Handler)
	router.Get("/api/v1/measures/{id}", func(w http.ResponseWriter, r *http.Request) {
		spanRecording = infrastructure.TraceIDFromContext(r.Context()) != ""
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/measures/sex_rate", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, spanRecording)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), `route="/api/v1/measures/{id}"`)
	assert.Contains(t, string(body), `status_code="202"`)
}

func TestOTelMiddlewareWithoutProviders(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()
	NewOTelMiddleware(nil, nil, logger).Handler(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := ContentTypeValidator(apperrors.NewErrorHandler(logger, false), "application/json")(ok)

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		wantStatus  int
	}{
		{"json", http.MethodPost, "{}", "application/json; charset=utf-8", http.StatusOK},
		{"get", http.MethodGet, "", "", http.StatusOK},
		{"post without body", http.MethodPost, "", "", http.StatusOK},
		{"missing content type", http.MethodPost, "{}", "", http.StatusBadRequest},
		{"unsupported", http.MethodPost, "a,b", "text/csv", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/transforms/rate", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestValidatorDecode(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewValidator(logger)

	type request struct {
		Name    string   `json:"name" validate:"required"`
		Measure []string `json:"measures" validate:"omitempty,dive,measureid"`
	}

	t.Run("valid", func(t *testing.T) {
		var req request
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "x", "measures": ["sex_rate"]}`))
		require.NoError(t, v.Decode(r, &req))
		assert.Equal(t, "x", req.Name)
	})

	t.Run("constraint failures", func(t *testing.T) {
		var req request
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"measures": ["Bad-ID"]}`))
		err := v.Decode(r, &req)

		var apiErr *apperrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		details := apiErr.Details.(apperrors.ValidationErrors)
		require.Len(t, details.Errors, 2)
		assert.Equal(t, "name", details.Errors[0].Field)
		assert.Contains(t, details.Errors[1].Message, "lowercase letters")
	})

	t.Run("too large", func(t *testing.T) {
		var req request
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "a long enough body"}`))
		r.Body = http.MaxBytesReader(httptest.NewRecorder(), r.Body, 8)

		var apiErr *apperrors.APIError
		require.ErrorAs(t, v.Decode(r, &req), &apiErr)
		assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
	})
}
