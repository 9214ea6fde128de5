package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/comment-threads/internal/platform/db"
	"github.com/example/comment-threads/internal/platform/httpserver"
	"github.com/example/comment-threads/services/threads/internal/handlers"
	"github.com/example/comment-threads/services/threads/internal/source"
)

const shutdownGrace = 10 * time.Second

type serveCommand struct {
	LoadFlags
	Source      string `long:"source" choice:"files" choice:"postgres" default:"files" description:"where to load the corpus from"`
	DatabaseURL string `long:"database-url" env:"DATABASE_URL" description:"Postgres DSN for --source=postgres"`
	GRPCAddr    string `long:"grpc-addr" env:"GRPC_ADDR" default:":9090" description:"gRPC health listen address"`

	env *env
}

func (c *serveCommand) Execute(_ []string) error {
	ctx, log := c.env.ctx, c.env.log

	ds, err := c.open(ctx, log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log})
	handlers.Register(r, ds, log)
	srv := httpserver.New(httpserver.Options{Addr: c.env.cfg.HTTP.Addr, ServiceName: c.env.cfg.ServiceName, Logger: log, Router: r})

	lis, err := net.Listen("tcp", c.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", c.GRPCAddr, err)
	}
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(c.env.cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, hs)
	reflection.Register(grpcSrv)

	grpcErr := make(chan error, 1)
	go func() {
		log.Info("grpc server starting", zap.String("addr", c.GRPCAddr))
		grpcErr <- grpcSrv.Serve(lis)
	}()

	// Either server failing stops the other.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case err := <-grpcErr:
			if err != nil {
				log.Error("grpc server stopped", zap.Error(err))
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	httpErr := srv.Run(ctx, log, shutdownGrace)
	log.Info("shutting down")
	hs.Shutdown()
	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownGrace):
		grpcSrv.Stop()
	}
	return httpErr
}

// open loads the corpus once. A Postgres snapshot is held in memory, so the
// pool is closed before serving.
func (c *serveCommand) open(ctx context.Context, log *zap.Logger) (source.DataSource, error) {
	if c.Source != "postgres" {
		ds, err := c.load(log)
		if err != nil {
			return nil, err
		}
		return ds, nil
	}

	pool, err := db.Open(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	ds, err := source.LoadPostgres(ctx, pool, c.options(log)...)
	if err != nil {
		return nil, err
	}
	for _, skipped := range ds.Report().Errors {
		log.Warn("skipped malformed row", zap.Error(skipped))
	}
	return ds, nil
}
