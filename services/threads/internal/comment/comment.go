// Package comment models a single discussion comment as found in
// pushshift-style Reddit dumps and decodes it from one JSON line.
package comment

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
)

// Fullname prefixes used by the dump format. A parent_id carries one of
// these in front of an opaque id.
const (
	PrefixComment = "t1_"
	PrefixThread  = "t3_"
)

// Comment is one loaded comment. It is a value type: the indexes hand out
// copies and nothing mutates a Comment after Parse returns it.
type Comment struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id"`
	LinkID     string    `json:"link_id,omitempty"`
	Subreddit  string    `json:"subreddit,omitempty"`
	Author     string    `json:"author,omitempty"`
	Body       string    `json:"body,omitempty"`
	Score      int       `json:"score"`
	CreatedUTC time.Time `json:"-"`
}

// IsRoot reports whether c replies to the thread itself rather than to
// another comment.
func (c Comment) IsRoot() bool {
	return strings.HasPrefix(c.ParentID, PrefixThread)
}

// Fullname is the key replies use to reference c.
func (c Comment) Fullname() string {
	if strings.HasPrefix(c.ID, PrefixComment) {
		return c.ID
	}
	return PrefixComment + c.ID
}

// ParentCommentID returns the bare comment id a parent reference points at.
// It reports false for thread references.
func ParentCommentID(parentID string) (string, bool) {
	if parentID == "" || strings.HasPrefix(parentID, PrefixThread) {
		return "", false
	}
	return strings.TrimPrefix(parentID, PrefixComment), true
}

type wireComment struct {
	ID         string `json:"id"`
	ParentID   string `json:"parent_id"`
	LinkID     string `json:"link_id,omitempty"`
	Subreddit  string `json:"subreddit,omitempty"`
	Author     string `json:"author,omitempty"`
	Body       string `json:"body,omitempty"`
	Score      int    `json:"score"`
	CreatedUTC int64  `json:"created_utc,omitempty"`
}

// MarshalJSON writes c in the same flat format Parse accepts.
func (c Comment) MarshalJSON() ([]byte, error) {
	w := wireComment{
		ID:        c.ID,
		ParentID:  c.ParentID,
		LinkID:    c.LinkID,
		Subreddit: c.Subreddit,
		Author:    c.Author,
		Body:      c.Body,
		Score:     c.Score,
	}
	if !c.CreatedUTC.IsZero() {
		w.CreatedUTC = c.CreatedUTC.Unix()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes with the same rules as Parse.
func (c *Comment) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse decodes one serialized record.
func Parse(line []byte) (Comment, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Comment{}, &MalformedRecordError{Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return Comment{}, &MalformedRecordError{Err: errTrailingData}
	}
	if fields == nil {
		return Comment{}, &MalformedRecordError{Field: "id", Err: errNotObject}
	}
	return FromFields(fields)
}

// FromFields builds a Comment from an already decoded record. Only id and
// parent_id are required; everything else is extracted best-effort.
func FromFields(fields map[string]any) (Comment, error) {
	id := stringField(fields, "id")
	if id == "" {
		if name := stringField(fields, "name"); strings.HasPrefix(name, PrefixComment) {
			id = strings.TrimPrefix(name, PrefixComment)
		}
	}
	if id == "" {
		return Comment{}, &MalformedRecordError{Field: "id", Err: errMissing}
	}
	parentID := stringField(fields, "parent_id")
	if parentID == "" {
		return Comment{}, &MalformedRecordError{ID: id, Field: "parent_id", Err: errMissing}
	}

	c := Comment{
		ID:        id,
		ParentID:  parentID,
		LinkID:    stringField(fields, "link_id"),
		Subreddit: stringField(fields, "subreddit"),
		Author:    stringField(fields, "author"),
		Body:      stringField(fields, "body"),
	}
	if n, ok := intField(fields, "score"); ok {
		c.Score = int(n)
	}
	if n, ok := intField(fields, "created_utc"); ok && n > 0 {
		c.CreatedUTC = time.Unix(n, 0).UTC()
	}
	return c, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

// intField accepts JSON numbers and numeric strings; older dumps store
// created_utc as a string.
func intField(fields map[string]any, key string) (int64, bool) {
	switch v := fields[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(v), true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}
