package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/tree"
)

type treesCommand struct {
	LoadFlags
	Output string `short:"o" long:"output" description:"write trees to this file instead of stdout"`

	env    *env
	stdout io.Writer
}

func (c *treesCommand) Execute(_ []string) error {
	log := c.env.log
	ds, err := c.load(log)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if c.stdout != nil {
		out = c.stdout
	}
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)
	enc := json.NewEncoder(bw)

	written, cycles := 0, 0
	for t, err := range tree.NewBuilder(ds).Forest() {
		if ctxErr := c.env.ctx.Err(); ctxErr != nil {
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
		if err := enc.Encode(t); err != nil {
			return err
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	log.Info("trees written", zap.Int("trees", written), zap.Int("cycles", cycles), zap.String("output", c.Output))
	return nil
}
