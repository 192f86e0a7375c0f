package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matt-hendrie/explain-that-code/config"
	"github.com/matt-hendrie/explain-that-code/server/circuitbreaker"
	"github.com/matt-hendrie/explain-that-code/server/metrics"
	"github.com/matt-hendrie/explain-that-code/server/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap/zaptest"
)

func TestComplete(t *testing.T) {
	mock := mocks.Respond("<think>ok</think>done")
	m := metrics.NewMetrics()
	g := NewWithGenerator(mock, zaptest.NewLogger(t), WithMetrics(m))

	out, err := g.Complete(context.Background(), "generate", "write some Go")
	require.NoError(t, err)

	// the gateway returns raw text; splitting happens elsewhere
	assert.Equal(t, "<think>ok</think>done", out)
	assert.Equal(t, 1, mock.Calls())
	assert.Equal(t, "write some Go", mock.LastPrompt())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("generate", "success")))
}

func TestCompleteError(t *testing.T) {
	cause := errors.New("401 unauthorized")
	m := metrics.NewMetrics()
	g := NewWithGenerator(mocks.Fail(cause), zaptest.NewLogger(t), WithMetrics(m))

	out, err := g.Complete(context.Background(), "grade", "grade this")
	assert.Empty(t, out)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("grade", "error")))
}

func TestCompleteNoRetries(t *testing.T) {
	mock := mocks.Fail(errors.New("boom"))
	g := NewWithGenerator(mock, nil)

	_, err := g.Complete(context.Background(), "generate", "x")
	require.Error(t, err)
	assert.Equal(t, 1, mock.Calls())
}

func TestCompletePassesContext(t *testing.T) {
	mock := mocks.NewMockLLM(func(ctx context.Context, _ *gollm.Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	m := metrics.NewMetrics()
	g := NewWithGenerator(mock, nil, WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Complete(ctx, "generate", "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("generate", "canceled")))
}

func TestCompleteCircuitBreaker(t *testing.T) {
	cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             "llm",
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 2,
		TestMode:         true,
	}, nil, nil)
	require.NoError(t, err)

	mock := mocks.Fail(errors.New("provider down"))
	g := NewWithGenerator(mock, zaptest.NewLogger(t), WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_, err := g.Complete(context.Background(), "generate", "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	}

	_, err = g.Complete(context.Background(), "generate", "x")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, mock.Calls())
}

func TestLazyClient(t *testing.T) {
	g := New(config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, zaptest.NewLogger(t))

	attempts := 0
	mock := mocks.Respond("hello")
	g.newGenerator = func() (Generator, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("api key required")
		}
		return mock, nil
	}

	_, err := g.Complete(context.Background(), "generate", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key required")

	out, err := g.Complete(context.Background(), "generate", "x")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = g.Complete(context.Background(), "generate", "x")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
