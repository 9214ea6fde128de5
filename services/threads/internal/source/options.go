package source

import (
	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/dump"
)

// maxReportedErrors caps LoadReport.Errors; Skipped keeps the full count.
const maxReportedErrors = 100

type options struct {
	policy        DuplicatePolicy
	skipMalformed bool
	maxLine       int
	log           *zap.Logger
}

// Option configures a loader.
type Option func(*options)

// WithDuplicatePolicy selects how repeated ids are handled.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithSkipMalformed makes loaders skip undecodable records and list them in
// the LoadReport instead of failing the whole load.
func WithSkipMalformed(skip bool) Option {
	return func(o *options) { o.skipMalformed = skip }
}

// WithMaxLineSize bounds the size of a single record in bytes.
func WithMaxLineSize(n int) Option {
	return func(o *options) { o.maxLine = n }
}

// WithLogger enables diagnostic logging of load progress.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		policy:  DuplicateReplace,
		maxLine: dump.DefaultMaxLine,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LoadReport summarizes a completed load.
type LoadReport struct {
	Inputs   int     `json:"inputs"`
	Records  int     `json:"records"`
	Replaced int     `json:"replaced"`
	Skipped  int     `json:"skipped"`
	Dangling int     `json:"dangling"`
	Errors   []error `json:"-"`
}

func (r *LoadReport) skip(err error) {
	r.Skipped++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, err)
	}
}
