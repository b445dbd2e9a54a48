package forum

import (
	"context"
	"errors"
	"testing"
)

func TestListCategoriesByName(t *testing.T) {
	db := newTestDB(t)
	categories, err := db.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	for i := 1; i < len(categories); i++ {
		if categories[i-1].Name > categories[i].Name {
			t.Errorf("categories out of order: %q before %q", categories[i-1].Name, categories[i].Name)
		}
	}
	if categories[0].Description == nil || *categories[0].Description == "" {
		t.Error("expected seeded description")
	}
}

func TestCreateThreadValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")

	if _, err := db.CreateThread(ctx, 1, "  ", alice.UserID); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for empty title, got %v", err)
	}
	if _, err := db.CreateThread(ctx, 0, "Hi", alice.UserID); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing category, got %v", err)
	}
	if _, err := db.CreateThread(ctx, 404, "Hi", alice.UserID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown category, got %v", err)
	}
}

func TestPostsAreChronological(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")
	bob := mustRegister(t, db, "bob")

	threadID, err := db.CreateThread(ctx, 1, "Hello", alice.UserID)
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	for i, author := range []Identity{alice, bob, alice} {
		if _, err := db.CreatePost(ctx, threadID, author.UserID, "post", nil); err != nil {
			t.Fatalf("CreatePost %d failed: %v", i, err)
		}
	}

	posts, err := db.ListPosts(ctx, threadID)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	for i := 1; i < len(posts); i++ {
		if posts[i].CreatedAt.Before(posts[i-1].CreatedAt) {
			t.Errorf("post %d created before post %d", posts[i].ID, posts[i-1].ID)
		}
	}
	if posts[1].AuthorName != "bob" {
		t.Errorf("expected author bob, got %s", posts[1].AuthorName)
	}
}

func TestCreatePostBumpsThread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")

	older, _ := db.CreateThread(ctx, 1, "Older", alice.UserID)
	newer, _ := db.CreateThread(ctx, 1, "Newer", alice.UserID)

	threads, err := db.ListThreads(ctx, 1)
	if err != nil {
		t.Fatalf("ListThreads failed: %v", err)
	}
	if threads[0].ID != newer {
		t.Fatalf("expected newest thread first, got %+v", threads)
	}
	before := threads[1].UpdatedAt
	if !threads[1].LastActivity.Equal(threads[1].CreatedAt) {
		t.Errorf("empty thread last_activity should equal created_at")
	}

	image := "/uploads/x.png"
	if _, err := db.CreatePost(ctx, older, alice.UserID, "bump", &image); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	posts, _ := db.ListPosts(ctx, older)

	threads, err = db.ListThreads(ctx, 1)
	if err != nil {
		t.Fatalf("ListThreads failed: %v", err)
	}
	if threads[0].ID != older {
		t.Fatalf("expected bumped thread first, got %+v", threads)
	}
	for i := 1; i < len(threads); i++ {
		if threads[i].UpdatedAt.After(threads[i-1].UpdatedAt) {
			t.Errorf("threads out of activity order")
		}
	}
	bumped := threads[0]
	if bumped.UpdatedAt.Before(before) {
		t.Errorf("updated_at went backwards: %v < %v", bumped.UpdatedAt, before)
	}
	if bumped.PostCount != 1 {
		t.Errorf("expected post_count 1, got %d", bumped.PostCount)
	}
	if !bumped.LastActivity.Equal(posts[0].CreatedAt) {
		t.Errorf("last_activity %v, want %v", bumped.LastActivity, posts[0].CreatedAt)
	}
	if posts[0].ImageURL == nil || *posts[0].ImageURL != image {
		t.Errorf("expected image url %s, got %v", image, posts[0].ImageURL)
	}
}

func TestCreatePostValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")
	threadID, _ := db.CreateThread(ctx, 1, "Hello", alice.UserID)

	if _, err := db.CreatePost(ctx, threadID, alice.UserID, "", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := db.CreatePost(ctx, 777, alice.UserID, "hello", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteThreadLeavesPosts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")
	threadID, _ := db.CreateThread(ctx, 1, "Doomed", alice.UserID)
	db.CreatePost(ctx, threadID, alice.UserID, "orphan", nil)

	if err := db.DeleteThread(ctx, threadID); err != nil {
		t.Fatalf("DeleteThread failed: %v", err)
	}
	threads, _ := db.ListThreads(ctx, 1)
	if len(threads) != 0 {
		t.Errorf("expected no threads, got %d", len(threads))
	}
	posts, _ := db.ListPosts(ctx, threadID)
	if len(posts) != 1 {
		t.Errorf("expected orphaned post to remain, got %d", len(posts))
	}
	if err := db.DeleteThread(ctx, threadID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeletePost(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")
	threadID, _ := db.CreateThread(ctx, 1, "Hello", alice.UserID)
	postID, _ := db.CreatePost(ctx, threadID, alice.UserID, "bye", nil)

	if err := db.DeletePost(ctx, postID); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	posts, _ := db.ListPosts(ctx, threadID)
	if len(posts) != 0 {
		t.Errorf("expected post to be gone")
	}
	if err := db.DeletePost(ctx, postID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
