package state

import (
	"log/slog"
	"testing"

	"algchat/internal/chat"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCurrentConversationSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s := openTestStore(t, dir)
	if got := s.CurrentConversation(); got != "" {
		t.Fatalf("fresh store current = %q, want empty", got)
	}
	s.SetCurrentConversation("conv-a")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := openTestStore(t, dir)
	if got := s2.CurrentConversation(); got != "conv-a" {
		t.Fatalf("reopened current = %q, want conv-a", got)
	}
}

func TestScrollOffsetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := openTestStore(t, dir)
	if _, ok := s.ScrollOffset("conv-a"); ok {
		t.Fatal("unset offset reported present")
	}
	s.SetScrollOffset("conv-a", 42)
	s.SetScrollOffset("conv-b", 0)
	if off, ok := s.ScrollOffset("conv-a"); !ok || off != 42 {
		t.Fatalf("ScrollOffset(conv-a) = %d, %v", off, ok)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := openTestStore(t, dir)
	if off, ok := s2.ScrollOffset("conv-a"); !ok || off != 42 {
		t.Fatalf("reopened ScrollOffset(conv-a) = %d, %v", off, ok)
	}
	if off, ok := s2.ScrollOffset("conv-b"); !ok || off != 0 {
		t.Fatalf("reopened ScrollOffset(conv-b) = %d, %v", off, ok)
	}
}

func TestSetScrollOffsetRejectsInvalid(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	s.SetScrollOffset("", 10)
	s.SetScrollOffset("conv-a", -1)
	if _, ok := s.ScrollOffset("conv-a"); ok {
		t.Fatal("negative offset was stored")
	}
}

func TestMetaPersistsAndDeletes(t *testing.T) {
	dir := t.TempDir()

	s := openTestStore(t, dir)
	s.SetMeta("conv-a", chat.Meta{Pinned: true})
	s.SetMeta("conv-b", chat.Meta{Archived: true})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := openTestStore(t, dir)
	meta := s2.AllMeta()
	if !meta["conv-a"].Pinned || meta["conv-a"].Archived {
		t.Fatalf("conv-a meta = %+v", meta["conv-a"])
	}
	if !meta["conv-b"].Archived {
		t.Fatalf("conv-b meta = %+v", meta["conv-b"])
	}

	s2.DeleteMeta("conv-a")
	if err := s2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s3 := openTestStore(t, dir)
	if _, ok := s3.AllMeta()["conv-a"]; ok {
		t.Fatal("deleted meta came back after reopen")
	}
}

func TestExpandedFlagsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := openTestStore(t, dir)
	s.SetExpanded("conv-a", 3, true)
	s.SetExpanded("conv-a", 7, true)
	s.SetExpanded("conv-a", 7, false)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := openTestStore(t, dir)
	flags := s2.Expanded("conv-a")
	if !flags[3] {
		t.Fatal("expanded flag for index 3 lost")
	}
	if flags[7] {
		t.Fatal("cleared flag for index 7 survived")
	}
}

func TestCorruptRowsAreSkipped(t *testing.T) {
	dir := t.TempDir()

	s := openTestStore(t, dir)
	s.SetScrollOffset("good", 5)
	// Sabotage rows directly; load must drop them without failing.
	if _, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES ('scroll:bad', 'not-a-number')`); err != nil {
		t.Fatalf("inserting corrupt scroll row: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES ('expanded:bad', '{broken')`); err != nil {
		t.Fatalf("inserting corrupt expanded row: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := openTestStore(t, dir)
	if _, ok := s2.ScrollOffset("bad"); ok {
		t.Fatal("corrupt scroll row surfaced as a value")
	}
	if len(s2.Expanded("bad")) != 0 {
		t.Fatal("corrupt expanded row surfaced as flags")
	}
	if off, ok := s2.ScrollOffset("good"); !ok || off != 5 {
		t.Fatalf("good row lost: %d, %v", off, ok)
	}
}
