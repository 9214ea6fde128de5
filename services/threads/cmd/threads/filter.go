package main

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/filter"
)

type filterCommand struct {
	Subreddits []string `short:"s" long:"subreddit" required:"true" description:"subreddit to keep; repeatable"`
	Output     string   `short:"o" long:"output" description:"write kept lines to this file instead of stdout"`
	Args       struct {
		Dumps []string `positional-arg-name:"dump" required:"1"`
	} `positional-args:"yes"`

	env    *env
	stdout io.Writer
}

func (c *filterCommand) Execute(_ []string) error {
	ctx, log := c.env.ctx, c.env.log
	f, err := filter.New(c.Subreddits, log)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if c.stdout != nil {
		out = c.stdout
	}
	if c.Output != "" {
		file, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	st, err := f.Files(ctx, out, c.Args.Dumps...)
	if err != nil {
		return err
	}
	log.Debug("filter stats", zap.Int("read", st.Read), zap.Int("kept", st.Kept))
	return nil
}
