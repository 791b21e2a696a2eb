package middleware_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/transport/transporttest"
	"github.com/dmitrymomot/relay/middleware"
)

func TestCORSConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     middleware.CORSConfig
		wantErr bool
	}{
		{"defaults", middleware.CORSConfig{}, false},
		{"string values", middleware.CORSConfig{Origin: "https://a.test", Methods: "GET", MaxAge: "60"}, false},
		{"list values", middleware.CORSConfig{Origin: []string{"https://a.test"}, ExposedHeaders: []string{"X-A", "X-B"}, MaxAge: 60}, false},
		{"origin int", middleware.CORSConfig{Origin: 42}, true},
		{"methods map", middleware.CORSConfig{Methods: map[string]bool{"GET": true}}, true},
		{"allowed headers bool", middleware.CORSConfig{AllowedHeaders: true}, true},
		{"exposed headers int slice", middleware.CORSConfig{ExposedHeaders: []int{1}}, true},
		{"max age float", middleware.CORSConfig{MaxAge: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			step, err := middleware.CORS(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, middleware.ErrInvalidCORSConfig)
				assert.Nil(t, step)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, step)
		})
	}
}

func TestCORSSimpleRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         middleware.CORSConfig
		origin      string
		wantOrigin  string
		wantCreds   string
		wantExposed string
	}{
		{
			name:       "wildcard echoes origin",
			origin:     "https://app.test",
			wantOrigin: "https://app.test",
		},
		{
			name:       "single origin case-insensitive",
			cfg:        middleware.CORSConfig{Origin: "https://app.test"},
			origin:     "https://APP.test",
			wantOrigin: "https://app.test",
		},
		{
			name:        "list with credentials and exposed headers",
			cfg:         middleware.CORSConfig{Origin: []string{"https://a.test", "https://b.test"}, Credentials: true, ExposedHeaders: []string{"X-Total", "X-Page"}},
			origin:      "https://b.test",
			wantOrigin:  "https://b.test",
			wantCreds:   "true",
			wantExposed: "X-Total, X-Page",
		},
		{
			name:   "origin not in list",
			cfg:    middleware.CORSConfig{Origin: []string{"https://a.test"}},
			origin: "https://evil.test",
		},
		{
			name:   "list is case-sensitive",
			cfg:    middleware.CORSConfig{Origin: []string{"https://a.test"}},
			origin: "https://A.test",
		},
		{
			name: "no origin header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cors, err := middleware.CORS(tt.cfg)
			require.NoError(t, err)
			tr := newRouter(t, "/api", ok, cors)

			req := transporttest.NewRequest(http.MethodGet, "/api")
			if tt.origin != "" {
				req.WithHeader("Origin", tt.origin)
			}
			rec := tr.Serve(transporttest.NewResponse(), req)

			assert.Equal(t, http.StatusOK, rec.Status())
			assert.Equal(t, "ok", string(rec.Body()))
			assert.Equal(t, tt.wantOrigin, rec.Header("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rec.Header("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantExposed, rec.Header("Access-Control-Expose-Headers"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "Origin", rec.Header("Vary"))
			} else {
				assert.Empty(t, rec.Header("Vary"))
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	t.Run("defaults echo requested headers", func(t *testing.T) {
		t.Parallel()

		cors, err := middleware.CORS(middleware.CORSConfig{})
		require.NoError(t, err)

		handled := false
		tr := newRouter(t, "/api", func(res *response.Handle, req *request.Context) error {
			handled = true
			return ok(res, req)
		}, cors)

		rec := tr.Serve(transporttest.NewResponse(), transporttest.NewRequest(http.MethodOptions, "/api").
			WithHeader("Origin", "https://app.test").
			WithHeader("Access-Control-Request-Method", "POST").
			WithHeader("Access-Control-Request-Headers", "X-Token"))

		assert.False(t, handled)
		assert.Equal(t, http.StatusNoContent, rec.Status())
		assert.Empty(t, rec.Body())
		assert.Equal(t, "https://app.test", rec.Header("Access-Control-Allow-Origin"))
		assert.Equal(t, middleware.DefaultCORSMethods, rec.Header("Access-Control-Allow-Methods"))
		assert.Equal(t, "X-Token", rec.Header("Access-Control-Allow-Headers"))
		assert.Empty(t, rec.Header("Access-Control-Max-Age"))
		assert.Empty(t, rec.Header("Access-Control-Allow-Credentials"))
	})

	t.Run("configured values", func(t *testing.T) {
		t.Parallel()

		cors, err := middleware.CORS(middleware.CORSConfig{
			Origin:         "https://app.test",
			Methods:        []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         600,
			Credentials:    true,
		})
		require.NoError(t, err)
		tr := newRouter(t, "/api", ok, cors)

		rec := tr.Serve(transporttest.NewResponse(), transporttest.NewRequest(http.MethodOptions, "/api").
			WithHeader("Origin", "https://app.test").
			WithHeader("Access-Control-Request-Method", "POST").
			WithHeader("Access-Control-Request-Headers", "X-Token"))

		assert.Equal(t, http.StatusNoContent, rec.Status())
		assert.Equal(t, "GET, POST", rec.Header("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", rec.Header("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", rec.Header("Access-Control-Max-Age"))
		assert.Equal(t, "true", rec.Header("Access-Control-Allow-Credentials"))
	})

	t.Run("bare options is untouched", func(t *testing.T) {
		t.Parallel()

		cors, err := middleware.CORS(middleware.CORSConfig{})
		require.NoError(t, err)
		tr := newRouter(t, "/api", ok, cors)

		rec := tr.Serve(transporttest.NewResponse(), transporttest.NewRequest(http.MethodOptions, "/api").
			WithHeader("Origin", "https://app.test"))

		assert.Equal(t, http.StatusNotFound, rec.Status())
		assert.Empty(t, rec.Header("Access-Control-Allow-Origin"))
	})
}
