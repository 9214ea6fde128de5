package handlers

import (
	"errors"
	"iter"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/comment-threads/internal/platform/api"
	"github.com/example/comment-threads/internal/platform/httpserver"
	"github.com/example/comment-threads/services/threads/internal/comment"
	"github.com/example/comment-threads/services/threads/internal/source"
	"github.com/example/comment-threads/services/threads/internal/tree"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type listResponse struct {
	Comments   []comment.Comment `json:"comments"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type statsResponse struct {
	Comments int `json:"comments"`
	Roots    int `json:"roots"`
	Parents  int `json:"parents"`
}

// Register mounts the read API on r.
func Register(r chi.Router, ds source.DataSource, log *zap.Logger) {
	b := tree.NewBuilder(ds)
	r.Get("/v1/comments/{comment_id}", GetComment(ds))
	r.Get("/v1/comments/{comment_id}/children", GetChildren(ds, b))
	r.Get("/v1/comments/{comment_id}/tree", GetTree(ds, b, log))
	r.Get("/v1/roots", ListRoots(ds))
	r.Get("/v1/parents", ListParents(ds))
	r.Get("/v1/stats", GetStats(ds))
}

// GetComment handles GET /v1/comments/{comment_id}
func GetComment(ds source.DataSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookup(w, r, ds)
		if !ok {
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// GetChildren handles GET /v1/comments/{comment_id}/children
func GetChildren(ds source.DataSource, b *tree.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookup(w, r, ds)
		if !ok {
			return
		}
		api.WriteJSON(w, http.StatusOK, listResponse{Comments: b.Replies(c)})
	}
}

// GetTree handles GET /v1/comments/{comment_id}/tree
func GetTree(ds source.DataSource, b *tree.Builder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookup(w, r, ds)
		if !ok {
			return
		}
		t, err := b.TreeRootedAt(c)
		if err != nil {
			rid := httpserver.RequestIDFromContext(r.Context())
			var ce *tree.CycleError
			if errors.As(err, &ce) {
				log.Warn("cycle in parent references", zap.String("root_id", c.ID), zap.String("comment_id", ce.ID))
				api.Conflict(w, "CYCLE_DETECTED", "parent references form a cycle", rid,
					map[string]any{"comment_id": ce.ID})
				return
			}
			log.Error("build tree", zap.String("root_id", c.ID), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, t)
	}
}

// ListRoots handles GET /v1/roots
func ListRoots(ds source.DataSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list(w, r, ds.Roots())
	}
}

// ListParents handles GET /v1/parents
func ListParents(ds source.DataSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list(w, r, ds.Parents())
	}
}

// GetStats handles GET /v1/stats
func GetStats(ds source.DataSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := statsResponse{Comments: ds.Len()}
		for range ds.Roots() {
			resp.Roots++
		}
		for range ds.Parents() {
			resp.Parents++
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

func lookup(w http.ResponseWriter, r *http.Request, ds source.DataSource) (comment.Comment, bool) {
	rid := httpserver.RequestIDFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "comment_id"))
	if id == "" {
		api.BadRequest(w, "MISSING_ID", "comment_id is required", rid, nil)
		return comment.Comment{}, false
	}
	c, ok := ds.Comment(id)
	if !ok {
		if bare, isComment := comment.ParentCommentID(id); isComment && bare != id {
			c, ok = ds.Comment(bare)
		}
	}
	if !ok {
		api.NotFound(w, "NOT_FOUND", "comment not found", rid)
		return comment.Comment{}, false
	}
	return c, true
}

// list pages through seq. The cursor is the id of the last comment on the
// previous page; a cursor absent from seq is rejected.
func list(w http.ResponseWriter, r *http.Request, seq iter.Seq[comment.Comment]) {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > maxLimit {
			api.BadRequest(w, "INVALID_LIMIT", "limit must be between 1 and 500",
				httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}
		limit = parsed
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

	page := make([]comment.Comment, 0, limit)
	skipping := cursor != ""
	more := false
	for c := range seq {
		if skipping {
			if c.ID == cursor {
				skipping = false
			}
			continue
		}
		if len(page) == limit {
			more = true
			break
		}
		page = append(page, c)
	}

	if skipping {
		api.BadRequest(w, "INVALID_CURSOR", "cursor does not match any comment in this listing",
			httpserver.RequestIDFromContext(r.Context()), map[string]any{"cursor": cursor})
		return
	}

	resp := listResponse{Comments: page}
	if more {
		resp.NextCursor = page[len(page)-1].ID
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
