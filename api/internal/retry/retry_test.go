package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pestai/api/internal/analysis"
)

func fast(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 4 * time.Millisecond}
}

func failing(kinds ...analysis.Kind) (func(context.Context) error, *int) {
	calls := 0
	return func(context.Context) error {
		i := calls
		calls++
		if i < len(kinds) {
			return analysis.Errorf(kinds[i], "test", "attempt %d", i+1)
		}
		return nil
	}, &calls
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	fn, calls := failing(analysis.KindResourceExhausted, analysis.KindUnavailable)

	err := fast(3).Do(context.Background(), fn)

	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	fn, calls := failing(analysis.KindUnavailable, analysis.KindUnavailable, analysis.KindResourceExhausted, analysis.KindUnavailable)

	err := fast(3).Do(context.Background(), fn)

	require.Error(t, err)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, analysis.KindResourceExhausted, analysis.KindOf(err))
	assert.Equal(t, "attempt 3", analysis.Detail(err))
}

func TestDoDoesNotRetryPermanentFailures(t *testing.T) {
	for _, kind := range []analysis.Kind{
		analysis.KindPermissionDenied,
		analysis.KindInvalidArgument,
		analysis.KindMalformedResponse,
		analysis.KindOther,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			fn, calls := failing(kind, kind, kind)

			err := fast(3).Do(context.Background(), fn)

			require.Error(t, err)
			assert.Equal(t, 1, *calls)
			assert.Equal(t, kind, analysis.KindOf(err))

			var ae *analysis.Error
			assert.True(t, errors.As(err, &ae))
		})
	}
}

func TestDoWaitsBetweenAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialInterval: 20 * time.Millisecond, MaxInterval: time.Second}
	fn, calls := failing(analysis.KindTimeout, analysis.KindTimeout)

	start := time.Now()
	err := p.Do(context.Background(), fn)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
	// 20ms then 40ms
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, InitialInterval: time.Hour, MaxInterval: time.Hour}
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return analysis.Errorf(analysis.KindUnavailable, "test", "down")
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestSinglePolicyMakesOneAttempt(t *testing.T) {
	fn, calls := failing(analysis.KindResourceExhausted)

	err := Single(time.Second).Do(context.Background(), fn)

	require.Error(t, err)
	assert.Equal(t, 1, *calls)
}

func TestAttemptTimeoutIsClassified(t *testing.T) {
	p := Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, AttemptTimeout: 10 * time.Millisecond}
	calls := 0

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return errors.New("rpc aborted")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, analysis.KindTimeout, analysis.KindOf(err))
}

func TestWrap(t *testing.T) {
	calls := 0
	m := analysis.ModelFunc(func(_ context.Context, in analysis.Input) (string, error) {
		calls++
		if calls == 1 {
			return "", analysis.Errorf(analysis.KindUnavailable, "test", "busy")
		}
		return string(in.Image), nil
	})

	out, err := fast(3).Wrap(m).Analyze(context.Background(), analysis.Input{Image: []byte("{}")})

	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "func", fast(3).Wrap(m).Name())
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.InitialInterval)
	assert.Equal(t, 10*time.Second, p.MaxInterval)
}
