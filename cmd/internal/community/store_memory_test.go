package community

import (
	"context"
	"errors"
	"testing"
)

func seedCommunity(t *testing.T, s *InMemoryStore, id string) Community {
	t.Helper()
	c, err := s.EnsureCommunity(context.Background(), Community{
		ID:          id,
		DisplayName: "General",
		Description: "campus-wide chatter",
	})
	if err != nil {
		t.Fatalf("EnsureCommunity: %v", err)
	}
	return c
}

func TestEnsureCommunityIsIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	first := seedCommunity(t, s, "general")

	if _, err := s.Join(context.Background(), "general"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	again, err := s.EnsureCommunity(context.Background(), Community{ID: "general", DisplayName: "Renamed"})
	if err != nil {
		t.Fatalf("EnsureCommunity again: %v", err)
	}
	if again.DisplayName != first.DisplayName {
		t.Fatalf("re-ensure rewrote display name: %q", again.DisplayName)
	}
	if again.MemberCount != 1 {
		t.Fatalf("re-ensure reset member count: %d", again.MemberCount)
	}
}

func TestJoinLeaveAdjustsMemberCount(t *testing.T) {
	s := NewInMemoryStore()
	seedCommunity(t, s, "general")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Join(ctx, "general"); err != nil {
			t.Fatalf("Join: %v", err)
		}
	}
	c, err := s.Leave(ctx, "general")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if c.MemberCount != 2 {
		t.Fatalf("member count = %d, want 2", c.MemberCount)
	}
}

func TestLeaveNeverGoesBelowZero(t *testing.T) {
	s := NewInMemoryStore()
	seedCommunity(t, s, "general")

	c, err := s.Leave(context.Background(), "general")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if c.MemberCount != 0 {
		t.Fatalf("member count = %d, want 0", c.MemberCount)
	}
}

func TestJoinUnknownCommunity(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Join(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleLikeIsSelfInverse(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	on, err := s.ToggleLike(ctx, "msg-1", "user-a")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !on.Liked || on.LikeCount != 1 {
		t.Fatalf("first toggle = %+v", on)
	}

	off, err := s.ToggleLike(ctx, "msg-1", "user-a")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if off.Liked || off.LikeCount != 0 {
		t.Fatalf("second toggle = %+v", off)
	}
}

func TestToggleLikeCountsDistinctLikers(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	s.ToggleLike(ctx, "msg-1", "user-a")
	state, err := s.ToggleLike(ctx, "msg-1", "user-b")
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if state.LikeCount != 2 {
		t.Fatalf("like count = %d, want 2", state.LikeCount)
	}

	state, _ = s.ToggleLike(ctx, "msg-1", "user-a")
	if state.Liked || state.LikeCount != 1 {
		t.Fatalf("after un-like: %+v", state)
	}
}

func TestAppendCommentRejectsBlankText(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.AppendComment(context.Background(), AppendCommentInput{
		MessageID: "msg-1",
		AuthorID:  "user-a",
		Text:      "   \n\t ",
	})
	if !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("err = %v, want ErrEmptyComment", err)
	}
}

func TestAppendCommentPreservesOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if _, err := s.AppendComment(ctx, AppendCommentInput{
			MessageID:   "msg-1",
			AuthorID:    "user-a",
			AuthorAlias: "calm-finch-03",
			Text:        text,
		}); err != nil {
			t.Fatalf("AppendComment(%q): %v", text, err)
		}
	}

	out, err := s.ListComments(ctx, "msg-1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("comment count = %d, want 3", len(out))
	}
	for i, want := range []string{"first", "second", "third"} {
		if out[i].Text != want {
			t.Fatalf("comment[%d] = %q, want %q", i, out[i].Text, want)
		}
	}
}
