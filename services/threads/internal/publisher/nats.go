// Package publisher provides NATS JetStream publishing of rebuilt trees.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/comment-threads/services/threads/internal/tree"
)

const (
	SubjectTreeBuilt = "threads.trees.built"
	streamName       = "THREADS"
)

// Publisher publishes tree events to NATS JetStream.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// New wraps a JetStream context and ensures the THREADS stream exists.
// Pass js=nil to get a stub that only logs.
func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if js == nil {
		log.Warn("JetStream not configured, trees will not be published (stub mode)")
		return &Publisher{log: log}
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"threads.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		log.Warn("failed to create NATS stream (may already exist)", zap.Error(err))
	}
	log.Info("NATS publisher initialised", zap.String("stream", streamName))
	return &Publisher{js: js, log: log}
}

// TreeEvent is the payload published for every rebuilt tree.
type TreeEvent struct {
	EventID   string    `json:"event_id"`
	RootID    string    `json:"root_id"`
	Digest    string    `json:"digest"`
	Subreddit string    `json:"subreddit,omitempty"`
	Size      int       `json:"size"`
	Depth     int       `json:"depth"`
	BuiltAt   time.Time `json:"built_at"`
	Tree      tree.Tree `json:"tree"`
}

// NewTreeEvent wraps t with a fresh event id and a digest of its content.
func NewTreeEvent(t tree.Tree) (TreeEvent, error) {
	digest, err := Digest(t)
	if err != nil {
		return TreeEvent{}, err
	}
	return TreeEvent{
		EventID:   uuid.NewString(),
		RootID:    t.Comment.ID,
		Digest:    digest,
		Subreddit: t.Comment.Subreddit,
		Size:      t.Size(),
		Depth:     t.Depth(),
		BuiltAt:   time.Now().UTC(),
		Tree:      t,
	}, nil
}

// Digest is the hex sha256 of t's JSON encoding. Equal trees have equal
// digests across runs.
func Digest(t tree.Tree) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// MsgID keys JetStream deduplication on tree content, so re-running an
// export inside the stream's duplicate window does not store the same
// tree twice.
func (e TreeEvent) MsgID() string {
	return e.RootID + ":" + e.Digest
}

// PublishTree sends t to SubjectTreeBuilt.
func (p *Publisher) PublishTree(ctx context.Context, t tree.Tree) error {
	evt, err := NewTreeEvent(t)
	if err != nil {
		return err
	}
	if p.js == nil {
		p.log.Debug("NATS stub: skipping publish", zap.String("root_id", evt.RootID), zap.Int("size", evt.Size))
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(SubjectTreeBuilt, data, nats.Context(ctx), nats.MsgId(evt.MsgID()))
	if err != nil {
		return err
	}
	if ack.Duplicate {
		p.log.Debug("NATS event deduplicated", zap.String("root_id", evt.RootID))
		return nil
	}

	p.log.Debug("NATS event published",
		zap.String("subject", SubjectTreeBuilt),
		zap.String("root_id", evt.RootID),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}
