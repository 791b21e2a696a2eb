package middleware_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/router"
	"github.com/dmitrymomot/relay/core/transport/transporttest"
)

// newRouter mounts handler for every verb at pattern behind steps.
func newRouter(t *testing.T, pattern string, handler router.HandlerFunc, steps ...pipeline.Step) *transporttest.Transport {
	t.Helper()

	tr := transporttest.New()
	r := router.New(tr, router.WithFinalizer(response.NewFinalizer(response.WithoutBranding())))
	require.NoError(t, r.Use(steps...))
	require.NoError(t, r.AddResource(pattern, router.ResourceFunc(func(v *router.Verbs) {
		v.Get(handler).Post(handler).Put(handler).Delete(handler)
	})))
	r.Freeze()
	return tr
}

func ok(res *response.Handle, _ *request.Context) error {
	return res.Send(http.StatusOK, "ok")
}
