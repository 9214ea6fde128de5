package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/comment-threads/internal/platform/natsconn"
	"github.com/example/comment-threads/services/threads/internal/publisher"
	"github.com/example/comment-threads/services/threads/internal/tree"
)

type exportCommand struct {
	LoadFlags
	NATSURL string `long:"nats-url" env:"NATS_URL" description:"NATS server URL"`
	DryRun  bool   `long:"dry-run" description:"build trees but do not publish"`

	env *env
}

func (c *exportCommand) Execute(_ []string) error {
	ctx, log := c.env.ctx, c.env.log
	ds, err := c.load(log)
	if err != nil {
		return err
	}

	pub := publisher.New(nil, log)
	if !c.DryRun {
		nc, err := natsconn.Connect(natsconn.Options{URL: c.NATSURL, Name: c.env.cfg.ServiceName, Logger: log})
		if err != nil {
			return err
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("jetstream: %w", err)
		}
		pub = publisher.New(js, log)
	}

	published, cycles := 0, 0
	for t, err := range tree.NewBuilder(ds).Forest() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			var ce *tree.CycleError
			if errors.As(err, &ce) {
				cycles++
				log.Warn("skipping tree with cycle", zap.String("comment_id", ce.ID))
				continue
			}
			return err
		}
		if err := pub.PublishTree(ctx, t); err != nil {
			return fmt.Errorf("publish tree %s: %w", t.Comment.ID, err)
		}
		published++
	}
	log.Info("export complete", zap.Int("trees", published), zap.Int("cycles", cycles), zap.Bool("dry_run", c.DryRun))
	return nil
}
