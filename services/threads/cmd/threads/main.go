package main

import (
	"context"
	"errors"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/example/comment-threads/internal/platform/config"
	"github.com/example/comment-threads/internal/platform/logging"
	"github.com/example/comment-threads/internal/platform/run"
)

// env is shared by every subcommand. It is filled in by the command
// handler once flags are parsed.
type env struct {
	cfg config.AppConfig
	log *zap.Logger
	ctx context.Context
}

type options struct {
	LogLevel string `long:"log-level" env:"LOG_LEVEL" description:"log level (debug, info, warn, error)"`

	Trees  treesCommand  `command:"trees" description:"rebuild every thread and write one JSON tree per line"`
	Serve  serveCommand  `command:"serve" description:"serve the loaded corpus over HTTP"`
	Export exportCommand `command:"export" description:"publish rebuilt trees to NATS JetStream"`
	Import importCommand `command:"import" description:"copy a loaded corpus into Postgres"`
	Filter filterCommand `command:"filter" description:"keep only the given subreddits from raw dumps"`
}

func main() {
	e := &env{}
	opts := options{}
	opts.Trees.env = e
	opts.Serve.env = e
	opts.Export.env = e
	opts.Import.env = e
	opts.Filter.env = e

	code := 0
	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		cfg, err := config.Load("threads")
		if err != nil {
			return err
		}
		if opts.LogLevel != "" {
			cfg.LogLevel = opts.LogLevel
		}
		log, err := logging.New(cfg.LogLevel, zap.String("service", cfg.ServiceName))
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		e.cfg, e.log = cfg, log
		job := func(ctx context.Context) error {
			e.ctx = ctx
			return cmd.Execute(args)
		}
		runner := run.New(log)
		if _, daemon := cmd.(*serveCommand); daemon {
			code = runner.WithSignals(job)
		} else {
			code = runner.Once(job)
		}
		return nil
	}

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			run.Exit(0)
		}
		run.Exit(2)
	}
	run.Exit(code)
}
