package main

import (
	"errors"

	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/source"
)

// LoadFlags are shared by every command that reads a corpus from dumps.
type LoadFlags struct {
	Inputs           []string `short:"i" long:"input" env:"THREADS_INPUT" env-delim:"," description:"comment dump to load (.jsonl, .gz or .zst); repeatable"`
	SkipMalformed    bool     `long:"skip-malformed" env:"THREADS_SKIP_MALFORMED" description:"skip undecodable lines instead of failing the load"`
	RejectDuplicates bool     `long:"reject-duplicates" description:"fail the load when a comment id appears twice"`
}

func (f LoadFlags) options(log *zap.Logger) []source.Option {
	policy := source.DuplicateReplace
	if f.RejectDuplicates {
		policy = source.DuplicateReject
	}
	return []source.Option{
		source.WithDuplicatePolicy(policy),
		source.WithSkipMalformed(f.SkipMalformed),
		source.WithLogger(log),
	}
}

func (f LoadFlags) load(log *zap.Logger) (*source.JSONFileSource, error) {
	if len(f.Inputs) == 0 {
		return nil, errors.New("at least one --input is required")
	}
	ds, err := source.LoadJSONFiles(f.Inputs, f.options(log)...)
	if err != nil {
		return nil, err
	}
	rep := ds.Report()
	for _, skipped := range rep.Errors {
		log.Warn("skipped malformed record", zap.Error(skipped))
	}
	return ds, nil
}
