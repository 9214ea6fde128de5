package source

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/comment"
	"github.com/example/comment-threads/services/threads/internal/dump"
)

// JSONFileSource holds a corpus read from newline-delimited JSON files.
type JSONFileSource struct {
	*Index
	report LoadReport
}

// Input is a named byte stream in the dump format.
type Input struct {
	Name   string
	Reader io.Reader
}

// LoadJSONFiles reads every path in order and indexes its records. Any
// malformed line or I/O error aborts the load and no source is returned,
// unless WithSkipMalformed is set.
func LoadJSONFiles(paths []string, opts ...Option) (*JSONFileSource, error) {
	o := buildOptions(opts)
	s := &JSONFileSource{Index: NewIndex(o.policy)}
	for _, path := range paths {
		if err := s.loadFile(path, o); err != nil {
			return nil, err
		}
	}
	s.finish(o)
	return s, nil
}

// NewJSONSource is LoadJSONFiles over already opened streams.
func NewJSONSource(inputs []Input, opts ...Option) (*JSONFileSource, error) {
	o := buildOptions(opts)
	s := &JSONFileSource{Index: NewIndex(o.policy)}
	for _, in := range inputs {
		if err := s.load(in.Name, in.Reader, o); err != nil {
			return nil, err
		}
	}
	s.finish(o)
	return s, nil
}

// Report describes the completed load.
func (s *JSONFileSource) Report() LoadReport {
	return s.report
}

func (s *JSONFileSource) loadFile(path string, o options) error {
	rc, err := dump.Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.load(path, rc, o)
}

func (s *JSONFileSource) load(name string, r io.Reader, o options) error {
	before := s.report.Records
	err := dump.Lines(r, o.maxLine, func(lineNo int, line []byte) error {
		c, err := comment.Parse(line)
		if err != nil {
			var mre *comment.MalformedRecordError
			if errors.As(err, &mre) {
				mre.Path, mre.Line = name, lineNo
			}
			if o.skipMalformed {
				s.report.skip(err)
				return nil
			}
			return err
		}
		if err := s.Add(c); err != nil {
			var dup *DuplicateIDError
			if errors.As(err, &dup) {
				dup.Path, dup.Line = name, lineNo
			}
			return err
		}
		s.report.Records++
		return nil
	})
	if err != nil {
		if errors.Is(err, comment.ErrMalformedRecord) || errors.Is(err, ErrDuplicateID) {
			return err
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	s.report.Inputs++
	o.log.Debug("input loaded",
		zap.String("input", name),
		zap.Int("records", s.report.Records-before),
	)
	return nil
}

func (s *JSONFileSource) finish(o options) {
	s.report.Replaced = s.replaced
	s.report.Dangling = s.Dangling()
	o.log.Info("corpus loaded",
		zap.Int("inputs", s.report.Inputs),
		zap.Int("records", s.report.Records),
		zap.Int("comments", s.Len()),
		zap.Int("replaced", s.report.Replaced),
		zap.Int("skipped", s.report.Skipped),
		zap.Int("dangling_parents", s.report.Dangling),
	)
}
