package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

type Runner struct {
	Logger *zap.Logger
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log}
}

// WithSignals runs a long-lived start function. A signal cancels start's
// context; WithSignals then waits for start to finish shutting down.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
	case err := <-errCh:
		return r.code(err)
	}

	err := <-errCh
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return r.code(err)
}

// Once runs a batch job to completion. A signal cancels the job's context
// and Once waits for fn to observe it.
func (r *Runner) Once(fn func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := fn(ctx)
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		r.Logger.Info("interrupted")
		return 130
	}
	return r.code(err)
}

func (r *Runner) code(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, http.ErrServerClosed) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
