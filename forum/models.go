// forum/models.go
package forum

import (
	"time"
)

// Identity is what a session carries about the logged-in user.
type Identity struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// User is the public listing shape; the password hash never leaves the store.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminUser is the listing shape of the admin panel.
type AdminUser struct {
	User
	IsAdmin bool `json:"is_admin"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Thread is returned joined with its author and derived activity fields.
type Thread struct {
	ID           int64     `json:"id"`
	CategoryID   int64     `json:"category_id"`
	Title        string    `json:"title"`
	AuthorID     int64     `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PostCount    int       `json:"post_count"`
	LastActivity time.Time `json:"last_activity"`
}

type Post struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"thread_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	ImageURL   *string   `json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message carries both participant names; RecipientName is empty in
// conversation views.
type Message struct {
	ID            int64     `json:"id"`
	SenderID      int64     `json:"sender_id"`
	RecipientID   int64     `json:"recipient_id"`
	SenderName    string    `json:"sender_name"`
	RecipientName string    `json:"recipient_name,omitempty"`
	Content       string    `json:"content"`
	ImageURL      *string   `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
	Read          bool      `json:"read"`
}

// Conversation is one entry of a user's inbox: the other participant and
// the most recent message exchanged with them.
type Conversation struct {
	UserID      int64   `json:"userId"`
	Username    string  `json:"username"`
	LastMessage Message `json:"lastMessage"`
	Unread      bool    `json:"unread"`
}
