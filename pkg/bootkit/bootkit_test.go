package bootkit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	b := New(StartTimeout(time.Second*2), StopTimeout(time.Second*5))
	assert.Equal(t, time.Second*2, b.options.startTimeout)
	assert.Equal(t, time.Second*5, b.options.stopTimeout)

	b = New(StartTimeout(0), StopTimeout(-1))
	assert.Equal(t, DefaultStartTimeout, b.options.startTimeout)
	assert.Equal(t, DefaultStopTimeout, b.options.stopTimeout)
}

func TestBootKitAdd(t *testing.T) {
	t.Parallel()

	b := New()

	var wg sync.WaitGroup

	for range 50 {
		wg.Go(func() {
			b.Add(func(context.Context, LifeCycle) error { return nil })
		})
	}

	wg.Wait()
	assert.Len(t, b.parallelRun, 50)
}

func TestCallRunnable(t *testing.T) {
	t.Parallel()

	t.Run("AllRegistered", func(t *testing.T) {
		t.Parallel()

		lf := newLifeCycle()
		register := func(_ context.Context, lifeCycle LifeCycle) error {
			lifeCycle.Append(LifeCycleHook{})
			return nil
		}

		require.NoError(t, callRunnable(context.Background(), []Runnable{register, register}, lf))
		assert.Len(t, lf.GetHooks(), 2)
	})

	t.Run("FirstErrorWins", func(t *testing.T) {
		t.Parallel()

		err := callRunnable(context.Background(), []Runnable{
			func(context.Context, LifeCycle) error { return errors.New("listen tcp: address already in use") },
			func(context.Context, LifeCycle) error { return nil },
		}, newLifeCycle())
		require.EqualError(t, err, "listen tcp: address already in use")
	})

	t.Run("Timeout", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := callRunnable(ctx, []Runnable{
			func(context.Context, LifeCycle) error {
				time.Sleep(time.Second)
				return nil
			},
		}, newLifeCycle())
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCallStopHooks(t *testing.T) {
	t.Parallel()

	t.Run("AllCalled", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		hook := LifeCycleHook{OnStop: func(context.Context) error {
			calls.Add(1)
			return nil
		}}

		require.NoError(t, callStopHooks(context.Background(), []lifeCycler{hook, hook, LifeCycleHook{}}))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("Concurrent", func(t *testing.T) {
		t.Parallel()

		first, second := make(chan struct{}), make(chan struct{})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := callStopHooks(ctx, []lifeCycler{
			LifeCycleHook{OnStop: func(context.Context) error {
				close(first)
				<-second

				return nil
			}},
			LifeCycleHook{OnStop: func(context.Context) error {
				close(second)
				<-first

				return nil
			}},
		})
		require.NoError(t, err)
	})

	t.Run("Error", func(t *testing.T) {
		t.Parallel()

		err := callStopHooks(context.Background(), []lifeCycler{
			LifeCycleHook{OnStop: func(context.Context) error { return errors.New("drain failed") }},
		})
		require.EqualError(t, err, "drain failed")
	})

	t.Run("Timeout", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := callStopHooks(ctx, []lifeCycler{
			LifeCycleHook{OnStop: func(context.Context) error {
				time.Sleep(time.Second)
				return nil
			}},
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestBootKitStart(t *testing.T) {
	t.Parallel()

	t.Run("HooksRunInOrder", func(t *testing.T) {
		t.Parallel()

		var started, stopped atomic.Bool

		b := New()
		b.Add(func(_ context.Context, lifeCycle LifeCycle) error {
			lifeCycle.Append(LifeCycleHook{
				OnStart: func(context.Context) error {
					started.Store(true)
					return nil
				},
				OnStop: func(context.Context) error {
					stopped.Store(started.Load())
					return nil
				},
			})

			return nil
		})

		b.Start()

		assert.True(t, started.Load())
		assert.True(t, stopped.Load())
	})

	t.Run("RunnableErrorSkipsStartButStops", func(t *testing.T) {
		t.Parallel()

		var started, stopped atomic.Bool

		b := New()
		b.Add(func(_ context.Context, lifeCycle LifeCycle) error {
			lifeCycle.Append(LifeCycleHook{
				OnStart: func(context.Context) error {
					started.Store(true)
					return nil
				},
				OnStop: func(context.Context) error {
					stopped.Store(true)
					return nil
				},
			})

			return errors.New("invalid config")
		})

		b.Start()

		assert.False(t, started.Load())
		assert.True(t, stopped.Load())
	})

	t.Run("StartHookErrorStops", func(t *testing.T) {
		t.Parallel()

		var stopped atomic.Bool

		b := New()
		b.Add(func(_ context.Context, lifeCycle LifeCycle) error {
			lifeCycle.Append(LifeCycleHook{
				OnStart: func(context.Context) error { return errors.New("bind failed") },
				OnStop: func(context.Context) error {
					stopped.Store(true)
					return nil
				},
			})

			return nil
		})

		b.Start()

		assert.True(t, stopped.Load())
	})
}

func TestBootKitStop(t *testing.T) {
	t.Parallel()

	var stops atomic.Int32

	b := New()
	b.Add(func(_ context.Context, lifeCycle LifeCycle) error {
		lifeCycle.Append(LifeCycleHook{
			OnStart: func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			},
			OnStop: func(context.Context) error {
				stops.Add(1)
				return nil
			},
		})

		return nil
	})

	time.AfterFunc(100*time.Millisecond, func() {
		assert.NoError(t, b.Stop(context.Background()))
	})

	b.Start()

	assert.Equal(t, int32(1), stops.Load())
}
