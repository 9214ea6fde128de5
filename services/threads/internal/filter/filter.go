// Package filter shrinks raw comment dumps to the subreddits of interest.
// Output lines are the input bytes unchanged, in input order, so the result
// loads like any other dump.
package filter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/dump"
)

// Stats counts what a filter run did.
type Stats struct {
	Read    int `json:"read"`
	Kept    int `json:"kept"`
	Invalid int `json:"invalid"`
}

// Filter keeps only the community names it was built with.
type Filter struct {
	keep    map[string]struct{}
	maxLine int
	log     *zap.Logger
}

// New returns a Filter for the given subreddit names, matched
// case-insensitively.
func New(subreddits []string, log *zap.Logger) (*Filter, error) {
	keep := make(map[string]struct{}, len(subreddits))
	for _, s := range subreddits {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		keep[s] = struct{}{}
	}
	if len(keep) == 0 {
		return nil, errors.New("at least one subreddit is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Filter{keep: keep, maxLine: dump.DefaultMaxLine, log: log}, nil
}

type subredditOnly struct {
	Subreddit string `json:"subreddit"`
}

// Match reports whether a single dump line belongs to a kept subreddit.
func (f *Filter) Match(line []byte) (bool, error) {
	var rec subredditOnly
	if err := json.Unmarshal(line, &rec); err != nil {
		return false, err
	}
	_, ok := f.keep[strings.ToLower(rec.Subreddit)]
	return ok, nil
}

// Files filters every path in order into w. Undecodable lines are counted
// and dropped; raw dumps contain them and the loader would reject them.
func (f *Filter) Files(ctx context.Context, w io.Writer, paths ...string) (Stats, error) {
	var st Stats
	bw := bufio.NewWriter(w)
	for _, path := range paths {
		if err := f.file(ctx, bw, path, &st); err != nil {
			return st, err
		}
	}
	if err := bw.Flush(); err != nil {
		return st, err
	}
	f.log.Info("filter complete",
		zap.Int("read", st.Read),
		zap.Int("kept", st.Kept),
		zap.Int("invalid", st.Invalid),
	)
	return st, nil
}

// Reader filters a single stream into w.
func (f *Filter) Reader(ctx context.Context, w io.Writer, name string, r io.Reader) (Stats, error) {
	var st Stats
	bw := bufio.NewWriter(w)
	if err := f.stream(ctx, bw, name, r, &st); err != nil {
		return st, err
	}
	return st, bw.Flush()
}

func (f *Filter) file(ctx context.Context, w *bufio.Writer, path string, st *Stats) error {
	rc, err := dump.Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return f.stream(ctx, w, path, rc, st)
}

func (f *Filter) stream(ctx context.Context, w *bufio.Writer, name string, r io.Reader, st *Stats) error {
	err := dump.Lines(r, f.maxLine, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		st.Read++
		ok, err := f.Match(line)
		if err != nil {
			st.Invalid++
			f.log.Debug("skipping undecodable line", zap.String("input", name), zap.Int("line", lineNo), zap.Error(err))
			return nil
		}
		if !ok {
			return nil
		}
		st.Kept++
		if _, err := w.Write(line); err != nil {
			return err
		}
		return w.WriteByte('\n')
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("filter %s: %w", name, err)
	}
	return err
}
