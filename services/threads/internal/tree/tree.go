// Package tree rebuilds reply trees from a loaded comment source.
package tree

import (
	"errors"
	"fmt"
	"iter"

	"github.com/example/comment-threads/services/threads/internal/comment"
	"github.com/example/comment-threads/services/threads/internal/source"
)

// ErrCycleDetected matches every *CycleError.
var ErrCycleDetected = errors.New("cycle detected in parent references")

// CycleError reports a comment reached twice while expanding one tree.
type CycleError struct {
	ID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected at comment %s", e.ID)
}

func (e *CycleError) Is(target error) bool { return target == ErrCycleDetected }

// Tree is a comment with its replies expanded recursively. Children is
// empty, not nil, for a leaf.
type Tree struct {
	Comment  comment.Comment `json:"comment"`
	Children []Tree          `json:"children"`
}

// Size is the number of comments in t.
func (t Tree) Size() int {
	n := 1
	for _, c := range t.Children {
		n += c.Size()
	}
	return n
}

// Depth is the number of levels in t; a leaf has depth 1.
func (t Tree) Depth() int {
	d := 0
	for _, c := range t.Children {
		d = max(d, c.Depth())
	}
	return d + 1
}

// Walk visits t depth-first, parents before children. level is 0 at the
// root. Returning false from fn skips the node's children.
func (t Tree) Walk(fn func(level int, c comment.Comment) bool) {
	t.walk(0, fn)
}

func (t Tree) walk(level int, fn func(int, comment.Comment) bool) {
	if !fn(level, t.Comment) {
		return
	}
	for _, c := range t.Children {
		c.walk(level+1, fn)
	}
}

// Builder expands trees on demand. It keeps no cache: every call walks the
// source again.
type Builder struct {
	ds source.DataSource
}

func NewBuilder(ds source.DataSource) *Builder {
	return &Builder{ds: ds}
}

// TreeRootedAt expands the subtree below c. c need not be a root.
func (b *Builder) TreeRootedAt(c comment.Comment) (Tree, error) {
	visited := make(map[string]struct{})
	return b.expand(c, visited)
}

func (b *Builder) expand(c comment.Comment, visited map[string]struct{}) (Tree, error) {
	if _, seen := visited[c.ID]; seen {
		return Tree{}, &CycleError{ID: c.ID}
	}
	visited[c.ID] = struct{}{}

	replies := b.Replies(c)
	t := Tree{Comment: c, Children: make([]Tree, 0, len(replies))}
	for _, r := range replies {
		child, err := b.expand(r, visited)
		if err != nil {
			return Tree{}, err
		}
		t.Children = append(t.Children, child)
	}
	return t, nil
}

// Replies returns the direct replies to c, whether they reference it by
// bare id or by t1_ fullname. Dumps use the latter, hand-built corpora
// often the former.
func (b *Builder) Replies(c comment.Comment) []comment.Comment {
	out := b.ds.Children(c.ID)
	full := c.Fullname()
	if full == c.ID {
		return out
	}
	more := b.ds.Children(full)
	if len(more) == 0 {
		return out
	}
	if len(out) == 0 {
		return more
	}
	seen := make(map[string]struct{}, len(out))
	for _, r := range out {
		seen[r.ID] = struct{}{}
	}
	for _, r := range more {
		if _, dup := seen[r.ID]; !dup {
			out = append(out, r)
		}
	}
	return out
}

// Forest yields the tree of every root comment in source order. A cycle
// error is yielded alongside a zero Tree and iteration continues.
func (b *Builder) Forest() iter.Seq2[Tree, error] {
	return func(yield func(Tree, error) bool) {
		for root := range b.ds.Roots() {
			if !yield(b.TreeRootedAt(root)) {
				return
			}
		}
	}
}
