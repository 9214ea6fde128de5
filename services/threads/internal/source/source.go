// Package source loads comment corpora and indexes them by id and by
// parent id.
package source

import (
	"errors"
	"fmt"
	"iter"

	"github.com/example/comment-threads/services/threads/internal/comment"
)

// DataSource is the read contract the tree builder and the HTTP API depend
// on. Implementations are fully built before they are returned and are
// never mutated afterwards, so concurrent readers need no locking.
type DataSource interface {
	// Comment returns the comment with the given id, or false.
	Comment(id string) (comment.Comment, bool)
	// Children returns every comment whose parent_id equals parentID.
	// The result is never nil.
	Children(parentID string) []comment.Comment
	// Parents yields, once each, every loaded comment some other loaded
	// comment replies to.
	Parents() iter.Seq[comment.Comment]
	// Roots yields every loaded comment that replies to the thread.
	Roots() iter.Seq[comment.Comment]
	// Len is the number of distinct loaded ids.
	Len() int
}

// DuplicatePolicy selects what happens when an id is loaded twice.
type DuplicatePolicy int

const (
	// DuplicateReplace overwrites the earlier record in both indexes.
	DuplicateReplace DuplicatePolicy = iota
	// DuplicateReject fails the load with a *DuplicateIDError.
	DuplicateReject
)

// ErrDuplicateID matches every *DuplicateIDError.
var ErrDuplicateID = errors.New("duplicate comment id")

// DuplicateIDError reports an id loaded twice under DuplicateReject.
type DuplicateIDError struct {
	ID   string
	Path string
	Line int
}

func (e *DuplicateIDError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("duplicate comment id %s at %s:%d", e.ID, e.Path, e.Line)
	}
	return fmt.Sprintf("duplicate comment id %s", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// Index is the in-memory multi-map shared by every loader. Children keep
// load order, and ids and parent keys remember first-insertion order so
// iteration is deterministic.
type Index struct {
	policy     DuplicatePolicy
	byID       map[string]comment.Comment
	byParentID map[string][]comment.Comment
	ids        []string
	parentKeys []string
	replaced   int
}

// NewIndex returns an empty index using the given duplicate policy.
func NewIndex(policy DuplicatePolicy) *Index {
	return &Index{
		policy:     policy,
		byID:       make(map[string]comment.Comment),
		byParentID: make(map[string][]comment.Comment),
	}
}

// Add inserts c into both indexes. It is only called while a loader is
// building the index.
func (x *Index) Add(c comment.Comment) error {
	if prev, ok := x.byID[c.ID]; ok {
		if x.policy == DuplicateReject {
			return &DuplicateIDError{ID: c.ID}
		}
		x.removeChild(prev)
		x.replaced++
	} else {
		x.ids = append(x.ids, c.ID)
	}
	x.byID[c.ID] = c

	if _, ok := x.byParentID[c.ParentID]; !ok {
		x.parentKeys = append(x.parentKeys, c.ParentID)
	}
	x.byParentID[c.ParentID] = append(x.byParentID[c.ParentID], c)
	return nil
}

func (x *Index) removeChild(prev comment.Comment) {
	siblings := x.byParentID[prev.ParentID]
	for i, s := range siblings {
		if s.ID == prev.ID {
			x.byParentID[prev.ParentID] = append(siblings[:i:i], siblings[i+1:]...)
			return
		}
	}
}

func (x *Index) Comment(id string) (comment.Comment, bool) {
	c, ok := x.byID[id]
	return c, ok
}

func (x *Index) Children(parentID string) []comment.Comment {
	children := x.byParentID[parentID]
	if len(children) == 0 {
		return []comment.Comment{}
	}
	out := make([]comment.Comment, len(children))
	copy(out, children)
	return out
}

func (x *Index) Parents() iter.Seq[comment.Comment] {
	return func(yield func(comment.Comment) bool) {
		seen := make(map[string]struct{})
		for _, key := range x.parentKeys {
			if len(x.byParentID[key]) == 0 {
				continue
			}
			c, ok := x.resolveParent(key)
			if !ok {
				continue
			}
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			if !yield(c) {
				return
			}
		}
	}
}

func (x *Index) Roots() iter.Seq[comment.Comment] {
	return func(yield func(comment.Comment) bool) {
		for _, id := range x.ids {
			c := x.byID[id]
			if !c.IsRoot() {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// All yields every loaded comment in first-insertion order.
func (x *Index) All() iter.Seq[comment.Comment] {
	return func(yield func(comment.Comment) bool) {
		for _, id := range x.ids {
			if !yield(x.byID[id]) {
				return
			}
		}
	}
}

func (x *Index) Len() int { return len(x.byID) }

// Dangling counts parent references that resolve to no loaded comment.
// Thread references are not counted.
func (x *Index) Dangling() int {
	n := 0
	for _, key := range x.parentKeys {
		if _, isComment := comment.ParentCommentID(key); !isComment {
			continue
		}
		if len(x.byParentID[key]) == 0 {
			continue
		}
		if _, ok := x.resolveParent(key); !ok {
			n++
		}
	}
	return n
}

// resolveParent maps a parent_id to its loaded comment, accepting either
// the raw key or the key with its t1_ prefix stripped.
func (x *Index) resolveParent(parentID string) (comment.Comment, bool) {
	if c, ok := x.byID[parentID]; ok {
		return c, true
	}
	id, ok := comment.ParentCommentID(parentID)
	if !ok || id == parentID {
		return comment.Comment{}, false
	}
	c, ok := x.byID[id]
	return c, ok
}
