package pubstatic

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(DatabaseConfig{
		Driver: driverSQLite,
		DSN:    filepath.Join(t.TempDir(), "blog.db"),
		Table:  "company_blog_posts",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustSave(t *testing.T, s *Store, p Post) string {
	t.Helper()
	id, err := s.SavePost(context.Background(), p)
	if err != nil {
		t.Fatalf("SavePost(%q) failed: %v", p.Title, err)
	}
	return id
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 9, 0, 0, 0, time.UTC)
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := NewStore(DatabaseConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSaveAndGetPublished(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := mustSave(t, s, Post{
		Title:       "Test Post",
		Slug:        "test-post",
		Summary:     "A test post summary",
		Content:     "<p>Body</p>",
		Keyword:     "go",
		ImageURL:    "https://cdn.example.com/a.jpg",
		Status:      StatusPublished,
		PublishedAt: day(15),
	})
	if id == "" {
		t.Fatal("SavePost should generate an id")
	}

	got, err := s.GetPublished(ctx, "test-post")
	if err != nil {
		t.Fatalf("GetPublished failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if got.Title != "Test Post" || got.Summary != "A test post summary" || got.Keyword != "go" {
		t.Errorf("unexpected post fields: %+v", got)
	}
	if !got.PublishedAt.Equal(day(15)) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, day(15))
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("created_at and updated_at should be set")
	}
}

func TestGetPublishedNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustSave(t, s, Post{Title: "Draft", Slug: "draft", Status: StatusDraft})

	tests := []string{"missing", "draft"}
	for _, slug := range tests {
		if _, err := s.GetPublished(ctx, slug); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPublished(%q) error = %v, want ErrNotFound", slug, err)
		}
	}
}

func TestListPublishedExcludesDraftsAndMissingSlugs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustSave(t, s, Post{Title: "Old", Slug: "old", Status: StatusPublished, PublishedAt: day(1)})
	mustSave(t, s, Post{Title: "New", Slug: "new", Status: StatusPublished, PublishedAt: day(3)})
	mustSave(t, s, Post{Title: "Mid", Slug: "mid", Status: StatusPublished, PublishedAt: day(2)})
	mustSave(t, s, Post{Title: "Draft", Slug: "draft", Status: StatusDraft})
	mustSave(t, s, Post{Title: "No slug", Status: StatusPublished, PublishedAt: day(4)})

	posts, err := s.ListPublished(ctx, 0)
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(posts) != len(want) {
		t.Fatalf("got %d posts, want %d", len(posts), len(want))
	}
	for i, slug := range want {
		if posts[i].Slug != slug {
			t.Errorf("posts[%d].Slug = %q, want %q", i, posts[i].Slug, slug)
		}
	}

	limited, err := s.ListPublished(ctx, 2)
	if err != nil {
		t.Fatalf("ListPublished(2) failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d posts", len(limited))
	}
}

func TestListRecentExcludesPost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	self := mustSave(t, s, Post{Title: "Self", Slug: "self", Status: StatusPublished, PublishedAt: day(9)})
	for i := 1; i <= 4; i++ {
		mustSave(t, s, Post{Title: "Other", Slug: "other-" + string(rune('a'+i)), Status: StatusPublished, PublishedAt: day(i)})
	}

	related, err := s.ListRecent(ctx, 3, self)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(related) != 3 {
		t.Fatalf("got %d related posts, want 3", len(related))
	}
	for _, p := range related {
		if p.ID == self {
			t.Error("related posts should not include the post itself")
		}
	}
	if related[0].Slug != "other-e" {
		t.Errorf("most recent related = %q, want other-e", related[0].Slug)
	}
}

func TestSavePostKeepsFirstPublishTime(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := mustSave(t, s, Post{Title: "Post", Slug: "post", Status: StatusPublished, PublishedAt: day(5)})
	mustSave(t, s, Post{ID: id, Title: "Post, edited", Slug: "post", Status: StatusPublished, PublishedAt: day(20)})

	got, err := s.GetPublished(ctx, "post")
	if err != nil {
		t.Fatalf("GetPublished failed: %v", err)
	}
	if got.Title != "Post, edited" {
		t.Errorf("Title = %q, want edited title", got.Title)
	}
	if !got.PublishedAt.Equal(day(5)) {
		t.Errorf("PublishedAt = %v, want first publish time %v", got.PublishedAt, day(5))
	}
}

func TestUnpublishAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := mustSave(t, s, Post{Title: "Post", Slug: "post", Status: StatusPublished, PublishedAt: day(5)})
	mustSave(t, s, Post{ID: id, Title: "Post", Slug: "post", Status: StatusDraft})
	if _, err := s.GetPublished(ctx, "post"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unpublished post error = %v, want ErrNotFound", err)
	}

	if err := s.DeletePost(ctx, id); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	posts, err := s.ListPublished(ctx, 0)
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected no posts after delete, got %d", len(posts))
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := setupTestStore(t)
	s.Close()

	_, err := s.ListPublished(context.Background(), 0)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := s.GetPublished(context.Background(), "x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("GetPublished error = %v, want ErrStoreUnavailable", err)
	}
}
