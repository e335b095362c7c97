package bootkit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultStartTimeout = time.Second * 15
	DefaultStopTimeout  = time.Second * 60
)

// Runnable wires one part of the process (a server, a filter, a client) and
// registers its hooks on lifeCycle. Runnables are invoked in parallel.
type Runnable func(ctx context.Context, lifeCycle LifeCycle) error

type BootKit struct {
	options     *bootkitOptions
	parallelRun []Runnable
	lifeCycle   *lifeCycle

	selfCtx    context.Context
	selfCancel context.CancelFunc

	mutex    sync.Mutex
	stopOnce sync.Once
	stopErr  error
}

func New(options ...Option) *BootKit {
	applyOptions := &bootkitApplyOptions{
		bootkit: &bootkitOptions{
			startTimeout: DefaultStartTimeout,
			stopTimeout:  DefaultStopTimeout,
		},
	}

	for _, opt := range options {
		opt.apply(applyOptions)
	}

	selfCtx, selfCancel := context.WithCancel(context.Background())

	return &BootKit{
		options:     applyOptions.bootkit,
		parallelRun: make([]Runnable, 0),
		lifeCycle:   newLifeCycle(),
		selfCtx:     selfCtx,
		selfCancel:  selfCancel,
	}
}

func (b *BootKit) Add(invokeFn Runnable) *BootKit {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.parallelRun = append(b.parallelRun, invokeFn)

	return b
}

func waitDoneOrContextDone(ctx context.Context, wg *sync.WaitGroup, errChan chan error) error {
	select {
	case <-waitGroupToChan(wg):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

func callRunnable(ctx context.Context, runnable []Runnable, lifecycle LifeCycle) error {
	wg := sync.WaitGroup{}
	errChan := make(chan error, len(runnable))

	for _, r := range runnable {
		wg.Go(func() {
			err := r(ctx, lifecycle)
			if err != nil {
				errChan <- err
			}
		})
	}

	return waitDoneOrContextDone(ctx, &wg, errChan)
}

func callStartHooks(ctx context.Context, startWg *sync.WaitGroup, errChan chan error, hooks []lifeCycler) {
	for _, hook := range hooks {
		startWg.Go(func() {
			err := hook.Start(ctx)
			if err != nil {
				errChan <- err
			}
		})
	}
}

// callStopHooks runs every stop hook concurrently and waits for all of them.
// Hooks must not depend on each other having stopped.
func callStopHooks(ctx context.Context, hooks []lifeCycler) error {
	wg := sync.WaitGroup{}
	errChan := make(chan error, len(hooks))

	for _, hook := range hooks {
		wg.Go(func() {
			err := hook.Stop(ctx)
			if err != nil {
				errChan <- err
			}
		})
	}

	return waitDoneOrContextDone(ctx, &wg, errChan)
}

func waitGroupToChan(wg *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	return done
}

// Start invokes every Runnable, then every registered start hook, and blocks
// until the hooks return, one of them fails, Stop is called or the process
// receives SIGINT/SIGTERM. Stop hooks always run before Start returns.
func (b *BootKit) Start() {
	b.mutex.Lock()
	runnable := slices.Clone(b.parallelRun)
	b.mutex.Unlock()

	defer b.mayStop()

	startCtx, cancel := context.WithTimeout(b.selfCtx, b.options.startTimeout)
	defer cancel()

	err := callRunnable(startCtx, runnable, b.lifeCycle)
	if err != nil {
		slog.Error("failed to run", "error", err)
		return
	}

	hooks := b.lifeCycle.GetHooks()
	startWg := &sync.WaitGroup{}
	errChan := make(chan error, len(hooks))

	callStartHooks(b.selfCtx, startWg, errChan, hooks)

	go b.watchSignals()

	select {
	case err := <-errChan:
		slog.Error("failed to start", "error", err)
	case <-waitGroupToChan(startWg):
	case <-b.selfCtx.Done():
	}
}

func (b *BootKit) watchSignals() {
	sigs := make(chan os.Signal, 2) //nolint:mnd
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigs)

	cancelled := false
	done := b.selfCtx.Done()

	for {
		select {
		case <-sigs:
			if cancelled {
				fmt.Fprintln(os.Stderr, "received signal twice, force terminated")
				os.Exit(1)
			}

			slog.Info("received signal, shutting down")
			b.selfCancel()

			cancelled = true
			done = nil
		case <-done:
			return
		}
	}
}

func (b *BootKit) stop() error {
	b.stopOnce.Do(func() {
		hooks := b.lifeCycle.GetHooks()
		if len(hooks) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.options.stopTimeout)
		defer cancel()

		b.stopErr = callStopHooks(ctx, hooks)
	})

	return b.stopErr
}

func (b *BootKit) mayStop() {
	err := b.stop()
	if err != nil {
		slog.Error("failed to stop", "error", err)
	}
}

// Stop cancels a running Start and runs the stop hooks once.
func (b *BootKit) Stop(_ context.Context) error {
	b.selfCancel()

	return b.stop()
}
