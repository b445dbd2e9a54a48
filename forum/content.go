// forum/content.go
package forum

import (
	"context"
	"fmt"
	"strings"
)

// --- Category Functions ---

func (d *Database) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (d *Database) CategoryExists(ctx context.Context, id int64) (bool, error) {
	return d.exists(ctx, "categories", id)
}

// --- Thread Functions ---

// ListThreads returns a category's threads, most recently active first.
func (d *Database) ListThreads(ctx context.Context, categoryID int64) ([]Thread, error) {
	query := `SELECT t.id, t.category_id, t.title, t.author_id, u.username, t.created_at, t.updated_at,
              (SELECT COUNT(*) FROM posts p WHERE p.thread_id = t.id) AS post_count,
              COALESCE((SELECT MAX(p.created_at) FROM posts p WHERE p.thread_id = t.id), t.created_at) AS last_activity
              FROM threads t
              JOIN users u ON t.author_id = u.id
              WHERE t.category_id = ?
              ORDER BY t.updated_at DESC, t.id DESC`
	rows, err := d.db.QueryContext(ctx, d.rebind(query), categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	threads := []Thread{}
	for rows.Next() {
		var (
			t    Thread
			last dbTime
		)
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.Title, &t.AuthorID, &t.AuthorName,
			&t.CreatedAt, &t.UpdatedAt, &t.PostCount, &last); err != nil {
			return nil, err
		}
		t.LastActivity = last.Time
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// CreateThread opens a thread in an existing category.
func (d *Database) CreateThread(ctx context.Context, categoryID int64, title string, authorID int64) (int64, error) {
	title = strings.TrimSpace(title)
	if categoryID <= 0 || title == "" {
		return 0, newError(ErrValidation, "Category and title required")
	}
	ok, err := d.CategoryExists(ctx, categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up category: %w", err)
	}
	if !ok {
		return 0, newError(ErrNotFound, "Category not found")
	}
	ts := now()
	id, err := d.insert(ctx,
		`INSERT INTO threads (category_id, title, author_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		categoryID, title, authorID, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to insert thread: %w", err)
	}
	return id, nil
}

func (d *Database) ThreadExists(ctx context.Context, id int64) (bool, error) {
	return d.exists(ctx, "threads", id)
}

// DeleteThread removes only the thread row; its posts stay behind.
func (d *Database) DeleteThread(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`DELETE FROM threads WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return affected(res, "Thread")
}

// --- Post Functions ---

// ListPosts returns a thread's posts in chronological order.
func (d *Database) ListPosts(ctx context.Context, threadID int64) ([]Post, error) {
	query := `SELECT p.id, p.thread_id, p.author_id, u.username, p.content, p.image_url, p.created_at
              FROM posts p
              JOIN users u ON p.author_id = u.id
              WHERE p.thread_id = ?
              ORDER BY p.created_at ASC, p.id ASC`
	rows, err := d.db.QueryContext(ctx, d.rebind(query), threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.ThreadID, &p.AuthorID, &p.AuthorName, &p.Content, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreatePost adds a reply and bumps the thread's updated_at. The two
// statements are not wrapped in a transaction; a failed bump only leaves
// the thread's position in the listing stale.
func (d *Database) CreatePost(ctx context.Context, threadID, authorID int64, content string, imageURL *string) (int64, error) {
	if threadID <= 0 || strings.TrimSpace(content) == "" {
		return 0, newError(ErrValidation, "Thread ID and content required")
	}
	ok, err := d.ThreadExists(ctx, threadID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up thread: %w", err)
	}
	if !ok {
		return 0, newError(ErrNotFound, "Thread not found")
	}
	ts := now()
	id, err := d.insert(ctx,
		`INSERT INTO posts (thread_id, author_id, content, image_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		threadID, authorID, content, imageURL, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, d.rebind(`UPDATE threads SET updated_at = ? WHERE id = ?`), ts, threadID); err != nil {
		return id, fmt.Errorf("post %d created but thread activity not updated: %w", id, err)
	}
	return id, nil
}

func (d *Database) DeletePost(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return affected(res, "Post")
}
