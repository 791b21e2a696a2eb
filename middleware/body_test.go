package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/transport/transporttest"
	"github.com/dmitrymomot/relay/middleware"
)

func echoBody(res *response.Handle, req *request.Context) error {
	body, ok := middleware.GetBody(req)
	if !ok {
		return res.Send(http.StatusInternalServerError, "body missing")
	}
	return res.Send(http.StatusOK, body)
}

func TestBodyParser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"split json", []string{`{"a":1`, `}`}, `{"a":1}`},
		{"single chunk", []string{`{"name":"relay","tags":["x"]}`}, `{"name":"relay","tags":["x"]}`},
		{"array", []string{`[1,`, `2]`}, `[1,2]`},
		{"invalid json", []string{"not json"}, `{}`},
		{"json null", []string{"null"}, `{}`},
		{"empty body", nil, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := newRouter(t, "/echo", echoBody, middleware.BodyParser(middleware.BodyParserConfig{}))
			rec := tr.Serve(transporttest.NewResponse().WithBody(tt.chunks...), transporttest.NewRequest(http.MethodPost, "/echo"))

			assert.Equal(t, http.StatusOK, rec.Status())
			assert.JSONEq(t, tt.want, string(rec.Body()))
		})
	}
}

func TestBodyParserRunsOnce(t *testing.T) {
	t.Parallel()

	type secondKey struct{}

	var (
		first, second any
		firstOK       bool
		secondOK      bool
		raw           []byte
	)
	tr := newRouter(t, "/echo", func(res *response.Handle, req *request.Context) error {
		first, firstOK = middleware.GetBody(req)
		second, secondOK = middleware.GetBodyFrom(req, secondKey{})
		raw, _ = middleware.GetRawBody(req)
		return res.Send(http.StatusOK, nil)
	},
		middleware.BodyParser(middleware.BodyParserConfig{}),
		middleware.BodyParser(middleware.BodyParserConfig{Key: secondKey{}}),
	)

	rec := tr.Serve(transporttest.NewResponse().WithBody(`{"a":`, `1}`), transporttest.NewRequest(http.MethodPost, "/echo"))
	require.Equal(t, http.StatusOK, rec.Status())

	assert.True(t, firstOK)
	assert.Equal(t, map[string]any{"a": float64(1)}, first)
	assert.False(t, secondOK)
	assert.Nil(t, second)
	assert.Equal(t, `{"a":1}`, string(raw))
}

func TestBodyParserAbort(t *testing.T) {
	t.Parallel()

	handled := false
	tr := newRouter(t, "/echo", func(res *response.Handle, req *request.Context) error {
		handled = true
		return ok(res, req)
	}, middleware.BodyParser(middleware.BodyParserConfig{}))

	rec := tr.Serve(transporttest.NewResponse().WithBody(`{"a":`, `1}`).AbortAfterChunks(1), transporttest.NewRequest(http.MethodPost, "/echo"))

	assert.False(t, handled)
	assert.False(t, rec.Ended())
	assert.Zero(t, rec.EndCalls())
}

func TestBodyParserMaxSize(t *testing.T) {
	t.Parallel()

	handled := false
	tr := newRouter(t, "/echo", func(res *response.Handle, req *request.Context) error {
		handled = true
		return ok(res, req)
	}, middleware.BodyParser(middleware.BodyParserConfig{MaxSize: 8}))

	rec := tr.Serve(transporttest.NewResponse().WithBody(`{"a":"`, `0123456789"}`), transporttest.NewRequest(http.MethodPost, "/echo"))

	assert.False(t, handled)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Status())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body(), &body))
	assert.Equal(t, "request_entity_too_large", body["code"])

	rec = tr.Serve(transporttest.NewResponse().WithBody(`{"a":1}`), transporttest.NewRequest(http.MethodPost, "/echo"))
	assert.True(t, handled)
	assert.Equal(t, http.StatusOK, rec.Status())
}

// stalledResponse never delivers the final body chunk until released.
type stalledResponse struct {
	*transporttest.Response
	release chan struct{}
}

func (s *stalledResponse) OnData(fn func(chunk []byte, last bool)) {
	fn([]byte(`{"a":`), false)
	<-s.release
}

func TestBodyParserTimeout(t *testing.T) {
	t.Parallel()

	tres := &stalledResponse{Response: transporttest.NewResponse(), release: make(chan struct{})}
	t.Cleanup(func() { close(tres.release) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := response.NewFinalizer().Wrap(ctx, http.MethodPost, tres)
	defer res.Release()
	treq := transporttest.NewRequest(http.MethodPost, "/echo")
	req := request.NewContext(res.Context(), request.Build(treq, "/echo"))

	err := middleware.BodyParser(middleware.BodyParserConfig{})(res, req)
	assert.ErrorIs(t, err, middleware.ErrBodyTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, middleware.ErrBodyTimeout.StatusCode())
}

func TestBodyParserAbortWhileWaiting(t *testing.T) {
	t.Parallel()

	tres := &stalledResponse{Response: transporttest.NewResponse(), release: make(chan struct{})}
	t.Cleanup(func() { close(tres.release) })

	res := response.NewFinalizer().Wrap(context.Background(), http.MethodPost, tres)
	defer res.Release()
	treq := transporttest.NewRequest(http.MethodPost, "/echo")
	req := request.NewContext(res.Context(), request.Build(treq, "/echo"))

	go func() {
		time.Sleep(10 * time.Millisecond)
		tres.Abort()
	}()

	err := middleware.BodyParser(middleware.BodyParserConfig{})(res, req)
	assert.ErrorIs(t, err, middleware.ErrBodyAborted)
	assert.True(t, res.Aborted())
}
