package source

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/comment"
)

// Table holds comments imported with CopyToPostgres. seq preserves load
// order so a snapshot iterates like the files it came from.
const Table = "thread_comments"

const createTableSQL = `CREATE TABLE IF NOT EXISTS thread_comments (
	seq         BIGSERIAL,
	id          TEXT PRIMARY KEY,
	parent_id   TEXT NOT NULL,
	link_id     TEXT NOT NULL DEFAULT '',
	subreddit   TEXT NOT NULL DEFAULT '',
	author      TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	score       INTEGER NOT NULL DEFAULT 0,
	created_utc TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS thread_comments_parent_id_idx ON thread_comments (parent_id);`

const selectSQL = `SELECT id, parent_id, link_id, subreddit, author, body, score, created_utc
	FROM thread_comments
	ORDER BY seq`

var copyColumns = []string{"id", "parent_id", "link_id", "subreddit", "author", "body", "score", "created_utc"}

// PostgresSource is an in-memory snapshot of the thread_comments table.
type PostgresSource struct {
	*Index
	report LoadReport
}

// LoadPostgres reads every row of thread_comments into a fresh index.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*PostgresSource, error) {
	o := buildOptions(opts)
	rows, err := pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &PostgresSource{Index: NewIndex(o.policy)}
	for rows.Next() {
		var r commentRow
		if err := rows.Scan(&r.ID, &r.ParentID, &r.LinkID, &r.Subreddit,
			&r.Author, &r.Body, &r.Score, &r.CreatedUTC); err != nil {
			return nil, err
		}
		if err := s.addRow(r, o); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.report.Inputs = 1
	s.report.Replaced = s.replaced
	s.report.Dangling = s.Dangling()
	o.log.Info("corpus loaded from postgres",
		zap.Int("rows", s.report.Records),
		zap.Int("comments", s.Len()),
		zap.Int("skipped", s.report.Skipped),
		zap.Int("dangling_parents", s.report.Dangling),
	)
	return s, nil
}

// Report describes the completed load.
func (s *PostgresSource) Report() LoadReport {
	return s.report
}

// addRow indexes one scanned row. Malformed rows are recorded in the
// report under WithSkipMalformed and fail the load otherwise.
func (s *PostgresSource) addRow(r commentRow, o options) error {
	c, err := r.toComment()
	if err != nil {
		if o.skipMalformed {
			s.report.skip(err)
			return nil
		}
		return err
	}
	if err := s.Add(c); err != nil {
		return err
	}
	s.report.Records++
	return nil
}

// CopyToPostgres creates thread_comments if needed and bulk-loads comments
// into it. Ids already present in the table make the copy fail.
func CopyToPostgres(ctx context.Context, pool *pgxpool.Pool, comments iter.Seq[comment.Comment]) (int64, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return 0, err
	}
	var batch []comment.Comment
	for c := range comments {
		batch = append(batch, c)
	}
	return pool.CopyFrom(ctx, pgx.Identifier{Table}, copyColumns, &copySource{rows: batch, idx: -1})
}

type commentRow struct {
	ID         string
	ParentID   string
	LinkID     string
	Subreddit  string
	Author     string
	Body       string
	Score      int
	CreatedUTC *time.Time
}

func (r commentRow) toComment() (comment.Comment, error) {
	if r.ID == "" {
		return comment.Comment{}, &comment.MalformedRecordError{Path: Table, Field: "id", Err: errors.New("empty")}
	}
	if r.ParentID == "" {
		return comment.Comment{}, &comment.MalformedRecordError{Path: Table, ID: r.ID, Field: "parent_id", Err: errors.New("empty")}
	}
	c := comment.Comment{
		ID:        r.ID,
		ParentID:  r.ParentID,
		LinkID:    r.LinkID,
		Subreddit: r.Subreddit,
		Author:    r.Author,
		Body:      r.Body,
		Score:     r.Score,
	}
	if r.CreatedUTC != nil {
		c.CreatedUTC = r.CreatedUTC.UTC()
	}
	return c, nil
}

func rowValues(c comment.Comment) []any {
	var created any
	if !c.CreatedUTC.IsZero() {
		created = c.CreatedUTC
	}
	return []any{c.ID, c.ParentID, c.LinkID, c.Subreddit, c.Author, c.Body, c.Score, created}
}

// copySource adapts a slice of comments to pgx.CopyFromSource.
type copySource struct {
	rows []comment.Comment
	idx  int
}

func (s *copySource) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}

func (s *copySource) Values() ([]any, error) {
	return rowValues(s.rows[s.idx]), nil
}

func (s *copySource) Err() error { return nil }
