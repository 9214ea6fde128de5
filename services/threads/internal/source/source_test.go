package source

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/example/comment-threads/services/threads/internal/comment"
)

const threeLevels = `{"id":"a","parent_id":"t3_x","author":"u1","body":"root"}
{"id":"b","parent_id":"a","author":"u2","body":"child"}
{"id":"c","parent_id":"b","author":"u3","body":"grandchild"}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func ids(cs []comment.Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestLoadJSONFiles_Indexes(t *testing.T) {
	s, err := LoadJSONFiles([]string{writeFile(t, "corpus.jsonl", threeLevels)})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 comments, got %d", s.Len())
	}
	for _, id := range []string{"a", "b", "c"} {
		c, ok := s.Comment(id)
		if !ok || c.ID != id {
			t.Fatalf("expected comment %s, got %+v %v", id, c, ok)
		}
	}
	if got := ids(s.Children("a")); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("expected children of a = [b], got %v", got)
	}
	if got := ids(s.Children("t3_x")); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("expected thread children = [a], got %v", got)
	}
	if got := ids(slices.Collect(s.Roots())); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("expected roots [a], got %v", got)
	}
	if s.Report().Records != 3 || s.Report().Inputs != 1 {
		t.Fatalf("unexpected report: %+v", s.Report())
	}
}

func TestComment_Missing(t *testing.T) {
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(threeLevels)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := s.Comment("zzz"); ok {
		t.Fatal("expected missing id to report false")
	}
}

func TestChildren_EmptyNotNil(t *testing.T) {
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(threeLevels)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	children := s.Children("c")
	if children == nil {
		t.Fatal("expected empty, non-nil slice")
	}
	if len(children) != 0 {
		t.Fatalf("expected no children, got %v", ids(children))
	}
}

func TestChildren_OnlyMatchingParent(t *testing.T) {
	data := `{"id":"a","parent_id":"t3_x"}
{"id":"b","parent_id":"t1_a"}
{"id":"c","parent_id":"t1_a"}
{"id":"d","parent_id":"t1_b"}
`
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(data)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := ids(s.Children("t1_a"))
	if !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("expected [b c], got %v", got)
	}
	for _, c := range s.Children("t1_a") {
		if c.ParentID != "t1_a" {
			t.Fatalf("unexpected child %+v", c)
		}
	}
}

func TestChildren_ReturnsCopy(t *testing.T) {
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(threeLevels)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	children := s.Children("a")
	children[0].Body = "mutated"
	if got := s.Children("a")[0].Body; got != "child" {
		t.Fatalf("index was mutated through returned slice: %q", got)
	}
}

func TestParents_ResolvesAndSkipsDangling(t *testing.T) {
	data := `{"id":"a","parent_id":"t3_x"}
{"id":"b","parent_id":"t1_a"}
{"id":"c","parent_id":"a"}
{"id":"d","parent_id":"t1_gone"}
{"id":"e","parent_id":"b"}
`
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(data)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := ids(slices.Collect(s.Parents()))
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("expected parents [a b] once each, got %v", got)
	}
	if s.Report().Dangling != 1 {
		t.Fatalf("expected 1 dangling parent, got %d", s.Report().Dangling)
	}
}

func TestRoots_InsertionOrder(t *testing.T) {
	data := `{"id":"r2","parent_id":"t3_x"}
{"id":"k","parent_id":"t1_r2"}
{"id":"r1","parent_id":"t3_y"}
{"id":"r3","parent_id":"t3_x"}
`
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(data)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := ids(slices.Collect(s.Roots()))
	if !slices.Equal(got, []string{"r2", "r1", "r3"}) {
		t.Fatalf("expected insertion order, got %v", got)
	}
}

func TestRoots_EarlyStop(t *testing.T) {
	data := `{"id":"r1","parent_id":"t3_x"}
{"id":"r2","parent_id":"t3_x"}
`
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(data)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	n := 0
	for range s.Roots() {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected iteration to stop after 1, got %d", n)
	}
}

func TestDuplicateID_ReplaceAcrossFiles(t *testing.T) {
	first := writeFile(t, "first.jsonl", `{"id":"a","parent_id":"t3_x"}
{"id":"dup","parent_id":"t1_a","body":"first"}
`)
	second := writeFile(t, "second.jsonl", `{"id":"b","parent_id":"t3_x"}
{"id":"dup","parent_id":"t1_b","body":"second"}
`)
	s, err := LoadJSONFiles([]string{first, second})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c, ok := s.Comment("dup")
	if !ok || c.Body != "second" {
		t.Fatalf("expected second record to win, got %+v", c)
	}
	if got := s.Children("t1_a"); len(got) != 0 {
		t.Fatalf("expected first record removed from its parent bucket, got %v", ids(got))
	}
	if got := ids(s.Children("t1_b")); !slices.Equal(got, []string{"dup"}) {
		t.Fatalf("expected dup under b, got %v", got)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 distinct ids, got %d", s.Len())
	}
	if s.Report().Replaced != 1 || s.Report().Records != 4 {
		t.Fatalf("unexpected report: %+v", s.Report())
	}
	if got := ids(slices.Collect(s.Parents())); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("expected emptied bucket of a to be skipped, got %v", got)
	}
}

func TestDuplicateID_Reject(t *testing.T) {
	data := `{"id":"a","parent_id":"t3_x"}
{"id":"a","parent_id":"t3_y"}
`
	_, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(data)}},
		WithDuplicatePolicy(DuplicateReject))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	var dup *DuplicateIDError
	if !errors.As(err, &dup) || dup.Line != 2 || dup.Path != "mem" {
		t.Fatalf("expected position in error, got %v", err)
	}
}

func TestLoad_MalformedFailsWholeLoad(t *testing.T) {
	good := writeFile(t, "good.jsonl", threeLevels)
	bad := writeFile(t, "bad.jsonl", "{\"id\":\"z\",\"parent_id\":\"t3_x\"}\n{\"id\":\"y\"}\n")
	s, err := LoadJSONFiles([]string{good, bad})
	if s != nil {
		t.Fatal("expected no source on failure")
	}
	if !errors.Is(err, comment.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
	var mre *comment.MalformedRecordError
	if !errors.As(err, &mre) {
		t.Fatalf("expected *MalformedRecordError, got %T", err)
	}
	if mre.Path != bad || mre.Line != 2 || mre.Field != "parent_id" {
		t.Fatalf("unexpected error position: %+v", mre)
	}
}

func TestLoad_TrailingDataFailsWholeLoad(t *testing.T) {
	data := "{\"id\":\"a\",\"parent_id\":\"t3_x\"}\n{\"id\":\"b\",\"parent_id\":\"t1_a\"}{\"id\":\"c\",\"parent_id\":\"t1_a\"}\n"
	s, err := NewJSONSource([]Input{{Name: "concat", Reader: strings.NewReader(data)}})
	if s != nil {
		t.Fatal("expected no source on failure")
	}
	var mre *comment.MalformedRecordError
	if !errors.As(err, &mre) {
		t.Fatalf("expected *MalformedRecordError, got %v", err)
	}
	if mre.Path != "concat" || mre.Line != 2 {
		t.Fatalf("unexpected error position: %+v", mre)
	}
}

func TestLoad_SkipMalformed(t *testing.T) {
	data := "{\"id\":\"a\",\"parent_id\":\"t3_x\"}\nnot json\n\n{\"id\":\"b\",\"parent_id\":\"t1_a\"}\n{\"parent_id\":\"t1_a\"}\n"
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(data)}}, WithSkipMalformed(true))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 comments, got %d", s.Len())
	}
	rep := s.Report()
	if rep.Skipped != 2 || len(rep.Errors) != 2 {
		t.Fatalf("expected 2 skipped, got %+v", rep)
	}
	var mre *comment.MalformedRecordError
	if !errors.As(rep.Errors[0], &mre) || mre.Line != 2 {
		t.Fatalf("expected line 2 first, got %v", rep.Errors[0])
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadJSONFiles([]string{filepath.Join(t.TempDir(), "missing.jsonl")})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestLoad_FilesInOrder(t *testing.T) {
	child := writeFile(t, "child.jsonl", `{"id":"b","parent_id":"t1_a"}`+"\n")
	root := writeFile(t, "root.jsonl", `{"id":"a","parent_id":"t3_x"}`+"\n")
	s, err := LoadJSONFiles([]string{child, root})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ids(slices.Collect(s.All())); !slices.Equal(got, []string{"b", "a"}) {
		t.Fatalf("expected file order, got %v", got)
	}
	if got := ids(s.Children("t1_a")); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("child before parent must still index, got %v", got)
	}
}

func TestGetComment_AllLoaded(t *testing.T) {
	s, err := NewJSONSource([]Input{{Name: "mem", Reader: strings.NewReader(threeLevels)}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for c := range s.All() {
		got, ok := s.Comment(c.ID)
		if !ok || got != c {
			t.Fatalf("Comment(%s) = %+v, want %+v", c.ID, got, c)
		}
	}
}

func TestDataSourceInterface(t *testing.T) {
	var _ DataSource = (*JSONFileSource)(nil)
	var _ DataSource = (*PostgresSource)(nil)
	var _ DataSource = (*Index)(nil)
}
