package publisher

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/example/comment-threads/services/threads/internal/comment"
	"github.com/example/comment-threads/services/threads/internal/tree"
)

func sampleTree() tree.Tree {
	return tree.Tree{
		Comment: comment.Comment{ID: "a", ParentID: "t3_x", Subreddit: "golang"},
		Children: []tree.Tree{
			{Comment: comment.Comment{ID: "b", ParentID: "t1_a"}, Children: []tree.Tree{}},
		},
	}
}

func TestNewTreeEvent(t *testing.T) {
	evt, err := NewTreeEvent(sampleTree())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if evt.EventID == "" {
		t.Fatal("expected event id")
	}
	if evt.RootID != "a" || evt.Subreddit != "golang" || evt.Size != 2 || evt.Depth != 2 {
		t.Fatalf("unexpected event: %+v", evt)
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back TreeEvent
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.Tree.Children) != 1 || back.Tree.Children[0].Comment.ID != "b" {
		t.Fatalf("tree did not survive encoding: %+v", back.Tree)
	}
}

func TestMsgID_StableAcrossEvents(t *testing.T) {
	first, err := NewTreeEvent(sampleTree())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	second, err := NewTreeEvent(sampleTree())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if first.EventID == second.EventID {
		t.Fatal("expected distinct event ids")
	}
	if first.MsgID() != second.MsgID() {
		t.Fatalf("expected equal msg ids for equal trees, got %q and %q", first.MsgID(), second.MsgID())
	}
	if !strings.HasPrefix(first.MsgID(), "a:") {
		t.Fatalf("msg id should start with the root id, got %q", first.MsgID())
	}
}

func TestMsgID_ChangesWithContent(t *testing.T) {
	edited := sampleTree()
	edited.Children[0].Comment.Body = "edited"

	orig, err := NewTreeEvent(sampleTree())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	changed, err := NewTreeEvent(edited)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if orig.MsgID() == changed.MsgID() {
		t.Fatal("expected a different msg id after an edit")
	}
}

func TestPublishTree_Stub(t *testing.T) {
	p := New(nil, nil)
	if err := p.PublishTree(context.Background(), sampleTree()); err != nil {
		t.Fatalf("stub publish should not fail: %v", err)
	}
}
