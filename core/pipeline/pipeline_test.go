package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/transport/transporttest"
)

func setup(t *testing.T, ctx context.Context) (*response.Handle, *request.Context, *transporttest.Response) {
	t.Helper()
	rec := transporttest.NewResponse()
	res := response.NewFinalizer().Wrap(ctx, http.MethodGet, rec)
	t.Cleanup(res.Release)
	return res, request.NewContext(res.Context(), request.Snapshot{Method: http.MethodGet}), rec
}

func recordStep(calls *[]int, id int, err error) pipeline.Step {
	return func(*response.Handle, *request.Context) error {
		*calls = append(*calls, id)
		return err
	}
}

func TestRunOrder(t *testing.T) {
	t.Parallel()

	var calls []int
	p := pipeline.New(recordStep(&calls, 1, nil), recordStep(&calls, 2, nil))
	require.NoError(t, p.Use(recordStep(&calls, 3, nil)))

	res, req, _ := setup(t, context.Background())
	require.NoError(t, p.Run(res, req))
	assert.Equal(t, []int{1, 2, 3}, calls)
	assert.Equal(t, 3, p.Len())
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	for failAt := 0; failAt < 4; failAt++ {
		var calls []int
		boom := errors.New("boom")
		p := pipeline.New()
		for i := 0; i < 4; i++ {
			var err error
			if i == failAt {
				err = boom
			}
			require.NoError(t, p.Use(recordStep(&calls, i, err)))
		}

		res, req, _ := setup(t, context.Background())
		err := p.Run(res, req)

		require.ErrorIs(t, err, boom)
		var stepErr *pipeline.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, failAt, stepErr.Index)
		assert.Equal(t, http.StatusInternalServerError, stepErr.StatusCode())
		assert.Len(t, calls, failAt+1)
	}
}

func TestStepErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", errors.New("x"), http.StatusInternalServerError},
		{"server error kept", response.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"client error becomes 500", response.ErrBadRequest, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &pipeline.StepError{Err: tt.err}
			assert.Equal(t, tt.want, e.StatusCode())
		})
	}
}

func TestRunStopsWhenResponseFinished(t *testing.T) {
	t.Parallel()

	var calls []int
	p := pipeline.New(
		func(res *response.Handle, _ *request.Context) error {
			calls = append(calls, 1)
			return res.Send(http.StatusNoContent, nil)
		},
		recordStep(&calls, 2, nil),
	)

	res, req, rec := setup(t, context.Background())
	require.NoError(t, p.Run(res, req))
	assert.Equal(t, []int{1}, calls)
	assert.Equal(t, http.StatusNoContent, rec.Status())
}

func TestRunStopsWhenAborted(t *testing.T) {
	t.Parallel()

	var calls []int
	res, req, rec := setup(t, context.Background())
	p := pipeline.New(
		func(*response.Handle, *request.Context) error {
			calls = append(calls, 1)
			rec.Abort()
			return nil
		},
		recordStep(&calls, 2, nil),
	)

	require.NoError(t, p.Run(res, req))
	assert.Equal(t, []int{1}, calls)
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	var calls []int
	p := pipeline.New(
		func(_ *response.Handle, req *request.Context) error {
			<-req.Done()
			return nil
		},
		recordStep(&calls, 2, nil),
	)

	res, req, _ := setup(t, ctx)
	err := p.Run(res, req)
	assert.ErrorIs(t, err, pipeline.ErrTimeout)
	assert.Empty(t, calls)
}

func TestFreeze(t *testing.T) {
	t.Parallel()

	p := pipeline.New()
	require.NoError(t, p.Use(func(*response.Handle, *request.Context) error { return nil }))
	p.Freeze()

	assert.True(t, p.Frozen())
	assert.ErrorIs(t, p.Use(func(*response.Handle, *request.Context) error { return nil }), pipeline.ErrFrozen)
	assert.Equal(t, 1, p.Len())
}

func TestUseRejectsNil(t *testing.T) {
	t.Parallel()
	assert.Error(t, pipeline.New().Use(nil))
}
