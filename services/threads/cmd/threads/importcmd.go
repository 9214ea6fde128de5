package main

import (
	"go.uber.org/zap"

	"github.com/example/comment-threads/internal/platform/db"
	"github.com/example/comment-threads/services/threads/internal/source"
)

type importCommand struct {
	LoadFlags
	DatabaseURL string `long:"database-url" env:"DATABASE_URL" description:"Postgres DSN"`

	env *env
}

func (c *importCommand) Execute(_ []string) error {
	ctx, log := c.env.ctx, c.env.log
	ds, err := c.load(log)
	if err != nil {
		return err
	}

	pool, err := db.Open(ctx, c.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := source.CopyToPostgres(ctx, pool, ds.All())
	if err != nil {
		return err
	}
	log.Info("import complete", zap.Int64("rows", n), zap.String("table", source.Table))
	return nil
}
