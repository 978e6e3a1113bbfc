package directory

import (
	"context"
	"testing"
	"time"
)

func TestEnsureVerified_CreatesOnce(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := s.EnsureVerified(ctx, "A@CUCHD.IN", now)
	if err != nil {
		t.Fatalf("EnsureVerified: %v", err)
	}
	if first.IdentityKey != "a@cuchd.in" {
		t.Fatalf("identity key not normalized: %q", first.IdentityKey)
	}
	if first.StableID == "" || first.DisplayAlias == "" {
		t.Fatalf("missing stable id or alias: %+v", first)
	}
	if !first.Verified {
		t.Fatalf("expected verified identity")
	}

	second, err := s.EnsureVerified(ctx, "a@cuchd.in", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("EnsureVerified again: %v", err)
	}
	if second.StableID != first.StableID {
		t.Fatalf("stable id changed on re-verification: %q != %q", second.StableID, first.StableID)
	}
	if second.DisplayAlias != first.DisplayAlias {
		t.Fatalf("alias overwritten on re-verification: %q != %q", second.DisplayAlias, first.DisplayAlias)
	}
}

func TestUpdateProfile_AliasAndYear(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	id, err := s.EnsureVerified(ctx, "b@cuchd.in", time.Now().UTC())
	if err != nil {
		t.Fatalf("EnsureVerified: %v", err)
	}

	alias := "campus-legend"
	year := 2027
	updated, err := s.UpdateProfile(ctx, id.StableID, ProfileUpdate{
		DisplayAlias:   &alias,
		GraduationYear: &year,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.DisplayAlias != alias {
		t.Fatalf("alias not updated: %q", updated.DisplayAlias)
	}
	if updated.GraduationYear == nil || *updated.GraduationYear != year {
		t.Fatalf("graduation year not updated: %v", updated.GraduationYear)
	}

	// Blank alias is rejected; the record stays intact.
	blank := "   "
	if _, err := s.UpdateProfile(ctx, id.StableID, ProfileUpdate{DisplayAlias: &blank}); err == nil {
		t.Fatalf("expected error for blank alias")
	}
	got, err := s.GetByStableID(ctx, id.StableID)
	if err != nil {
		t.Fatalf("GetByStableID: %v", err)
	}
	if got.DisplayAlias != alias {
		t.Fatalf("alias mutated by rejected update: %q", got.DisplayAlias)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Get(context.Background(), "nobody@cuchd.in"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewAlias_Shape(t *testing.T) {
	for i := 0; i < 20; i++ {
		alias, err := NewAlias()
		if err != nil {
			t.Fatalf("NewAlias: %v", err)
		}
		if alias == "" {
			t.Fatalf("empty alias")
		}
	}
}
