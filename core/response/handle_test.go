package response_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/transport/transporttest"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []response.Outcome
	statuses []int
}

func (o *recordingObserver) ObserveResponse(_ string, status int, outcome response.Outcome, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.statuses = append(o.statuses, status)
}

func newHandle(t *testing.T, opts ...response.Option) (*response.Handle, *transporttest.Response) {
	t.Helper()
	opts = append([]response.Option{response.WithClock(func() time.Time { return fixedNow })}, opts...)
	rec := transporttest.NewResponse()
	h := response.NewFinalizer(opts...).Wrap(context.Background(), http.MethodGet, rec)
	t.Cleanup(h.Release)
	return h, rec
}

func TestSendText(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)
	require.NoError(t, h.Send(http.StatusOK, "Number: 21 | Double: 42"))

	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, "Number: 21 | Double: 42", string(rec.Body()))
	assert.Equal(t, []transporttest.Header{
		{Name: "Date", Value: "Fri, 01 Mar 2024 12:30:00 GMT"},
		{Name: "Cache-Control", Value: "max-age=0"},
		{Name: "Content-Type", Value: response.ContentTypeText},
		{Name: "Server", Value: response.DefaultServerName},
		{Name: "X-Powered-By", Value: response.DefaultPoweredBy},
	}, rec.Headers())
	assert.True(t, h.Finished())
}

func TestSendContentTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content any
		ct      string
		body    string
	}{
		{"string", "hello", response.ContentTypeText, "hello"},
		{"nil", nil, response.ContentTypeText, ""},
		{"bytes", []byte{0x00, 0xff}, response.ContentTypeBinary, "\x00\xff"},
		{"map", map[string]int{"a": 1}, response.ContentTypeJSON, `{"a":1}`},
		{"slice", []string{"x"}, response.ContentTypeJSON, `["x"]`},
		{"number", 42, response.ContentTypeJSON, `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, rec := newHandle(t)
			require.NoError(t, h.Send(http.StatusOK, tt.content))
			assert.Equal(t, tt.ct, rec.Header("Content-Type"))
			assert.Equal(t, tt.body, string(rec.Body()))
		})
	}
}

func TestSendJSONEncodingFailure(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)
	err := h.Send(http.StatusOK, map[string]any{"ch": make(chan int)})
	require.Error(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Status())
	assert.Equal(t, response.ContentTypeText, rec.Header("Content-Type"))
	assert.Equal(t, 1, rec.EndCalls())
}

func TestRender(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)
	require.NoError(t, h.Render(http.StatusOK, "<h1>hi</h1>"))

	assert.Equal(t, "max-age=3600", rec.Header("Cache-Control"))
	assert.Equal(t, response.ContentTypeHTML, rec.Header("Content-Type"))
	assert.Equal(t, "<h1>hi</h1>", string(rec.Body()))
}

func TestSendCallerHeaders(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)
	h.AddHeader("Vary", "Origin")
	require.NoError(t, h.Send(http.StatusCreated, "ok",
		response.WithHeaders(map[string]any{"X-Count": 3, "cache-control": "no-store"}),
		response.WithHeader("Location", "/items/1"),
	))

	assert.Equal(t, http.StatusCreated, rec.Status())
	assert.Equal(t, "3", rec.Header("X-Count"))
	assert.Equal(t, "/items/1", rec.Header("Location"))
	assert.Equal(t, "Origin", rec.Header("Vary"))
	assert.Equal(t, []string{"no-store"}, rec.HeaderValues("Cache-Control"))
}

func TestSendOverrides(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)
	require.NoError(t, h.Send(0, []byte("x"),
		response.WithContentType("image/png"),
		response.WithCache(time.Hour),
		response.NoBranding(),
	))

	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, "image/png", rec.Header("Content-Type"))
	assert.Equal(t, "max-age=3600", rec.Header("Cache-Control"))
	assert.Empty(t, rec.Header("Server"))
	assert.Empty(t, rec.Header("X-Powered-By"))
}

func TestSendPendingStatus(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)
	h.SetStatus(http.StatusNoContent)
	require.NoError(t, h.Send(0, nil))
	assert.Equal(t, http.StatusNoContent, rec.Status())
}

func TestFinalizerBranding(t *testing.T) {
	t.Parallel()

	t.Run("custom", func(t *testing.T) {
		t.Parallel()
		h, rec := newHandle(t, response.WithBranding("fasthttp", "relay"))
		require.NoError(t, h.Send(http.StatusOK, ""))
		assert.Equal(t, "fasthttp", rec.Header("Server"))
		assert.Equal(t, "relay", rec.Header("X-Powered-By"))
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		h, rec := newHandle(t, response.WithoutBranding())
		require.NoError(t, h.Render(http.StatusOK, ""))
		assert.Empty(t, rec.HeaderValues("Server"))
		assert.Empty(t, rec.HeaderValues("X-Powered-By"))
	})
}

func TestSendIsIdempotent(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	h, rec := newHandle(t, response.WithObserver(obs))

	require.NoError(t, h.Send(http.StatusOK, "first"))
	require.NoError(t, h.Send(http.StatusTeapot, "second"))
	require.NoError(t, h.Render(http.StatusOK, "third"))

	assert.Equal(t, 1, rec.EndCalls())
	assert.Equal(t, "first", string(rec.Body()))
	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, []response.Outcome{
		response.OutcomeWritten, response.OutcomeDuplicate, response.OutcomeDuplicate,
	}, obs.outcomes)
}

func TestSendAfterAbortWritesNothing(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	h, rec := newHandle(t, response.WithObserver(obs))

	rec.Abort()

	assert.True(t, h.Aborted())
	assert.ErrorIs(t, context.Cause(h.Context()), response.ErrAborted)
	assert.NoError(t, h.Send(http.StatusOK, "late"))
	assert.NoError(t, h.Render(http.StatusOK, "late"))
	assert.Equal(t, 0, rec.EndCalls())
	assert.Empty(t, rec.Headers())
	assert.Zero(t, rec.Status())
	assert.Equal(t, []response.Outcome{response.OutcomeAborted, response.OutcomeAborted}, obs.outcomes)
}

func TestAbortAfterFinishIsIgnored(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)
	require.NoError(t, h.Send(http.StatusOK, "done"))
	rec.Abort()

	assert.True(t, h.Finished())
	assert.False(t, h.Aborted())
}

func TestConcurrentSendWritesOnce(t *testing.T) {
	t.Parallel()

	h, rec := newHandle(t)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Send(http.StatusOK, "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rec.EndCalls())
}

func TestError(t *testing.T) {
	t.Parallel()

	err := response.ErrTooManyRequests.WithMessage("slow down").WithError(errors.New("bucket empty"))
	assert.Equal(t, http.StatusTooManyRequests, err.StatusCode())
	assert.Equal(t, "slow down", err.Error())
	assert.Equal(t, map[string]any{"cause": "bucket empty"}, err.Details)
	assert.Nil(t, response.ErrTooManyRequests.Details)

	h, rec := newHandle(t)
	require.NoError(t, h.Send(err.StatusCode(), err))
	assert.JSONEq(t, `{"code":"too_many_requests","message":"slow down","details":{"cause":"bucket empty"}}`, string(rec.Body()))
}
