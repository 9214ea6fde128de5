package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestOnce_ExitCodes(t *testing.T) {
	r := New(zap.NewNop())
	if code := r.Once(func(context.Context) error { return nil }); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if code := r.Once(func(context.Context) error { return errors.New("boom") }); code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
}

func TestWithSignals_ServerClosedIsClean(t *testing.T) {
	r := New(zap.NewNop())
	if code := r.WithSignals(func(context.Context) error { return http.ErrServerClosed }); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
}

func TestWithSignals_ErrorCode(t *testing.T) {
	r := New(zap.NewNop())
	if code := r.WithSignals(func(context.Context) error { return errors.New("listen failed") }); code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
}

func TestWithSignals_WaitsForShutdown(t *testing.T) {
	r := New(zap.NewNop())
	drained := false
	code := r.WithSignals(func(ctx context.Context) error {
		go func() { _ = syscall.Kill(os.Getpid(), syscall.SIGINT) }()
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		drained = true
		return ctx.Err()
	})
	if code != 0 {
		t.Fatalf("expected 0 after signal, got %d", code)
	}
	if !drained {
		t.Fatal("WithSignals returned before start finished")
	}
}
