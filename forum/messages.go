// forum/messages.go
package forum

import (
	"context"
	"fmt"
	"strings"
)

// ListMessagesForUser returns everything the user sent or received, newest first.
func (d *Database) ListMessagesForUser(ctx context.Context, userID int64) ([]Message, error) {
	query := `SELECT m.id, m.sender_id, m.recipient_id, u1.username, u2.username,
              m.content, m.image_url, m.created_at, m.read
              FROM messages m
              JOIN users u1 ON m.sender_id = u1.id
              JOIN users u2 ON m.recipient_id = u2.id
              WHERE m.sender_id = ? OR m.recipient_id = ?
              ORDER BY m.created_at DESC, m.id DESC`
	rows, err := d.db.QueryContext(ctx, d.rebind(query), userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.SenderName, &m.RecipientName,
			&m.Content, &m.ImageURL, &m.CreatedAt, &m.Read); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListConversation returns the messages between viewer and other in
// chronological order, then marks the ones addressed to viewer as read.
// The returned rows carry the read state from before the update.
func (d *Database) ListConversation(ctx context.Context, viewerID, otherID int64) ([]Message, error) {
	query := `SELECT m.id, m.sender_id, m.recipient_id, u.username,
              m.content, m.image_url, m.created_at, m.read
              FROM messages m
              JOIN users u ON m.sender_id = u.id
              WHERE (m.sender_id = ? AND m.recipient_id = ?) OR (m.sender_id = ? AND m.recipient_id = ?)
              ORDER BY m.created_at ASC, m.id ASC`
	rows, err := d.db.QueryContext(ctx, d.rebind(query), viewerID, otherID, otherID, viewerID)
	if err != nil {
		return nil, err
	}
	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.SenderName,
			&m.Content, &m.ImageURL, &m.CreatedAt, &m.Read); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := d.MarkRead(ctx, viewerID, otherID); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flags every message from sender to recipient as read.
func (d *Database) MarkRead(ctx context.Context, recipientID, senderID int64) error {
	_, err := d.db.ExecContext(ctx,
		d.rebind(`UPDATE messages SET read = ? WHERE recipient_id = ? AND sender_id = ? AND read = ?`),
		true, recipientID, senderID, false)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

func (d *Database) UserExists(ctx context.Context, id int64) (bool, error) {
	return d.exists(ctx, "users", id)
}

// SendMessage stores a direct message to an existing user other than the sender.
func (d *Database) SendMessage(ctx context.Context, senderID, recipientID int64, content string, imageURL *string) (int64, error) {
	if recipientID <= 0 || strings.TrimSpace(content) == "" {
		return 0, newError(ErrValidation, "Recipient and content required")
	}
	if recipientID == senderID {
		return 0, newError(ErrValidation, "Cannot send a message to yourself")
	}
	ok, err := d.UserExists(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up recipient: %w", err)
	}
	if !ok {
		return 0, newError(ErrNotFound, "Recipient not found")
	}
	id, err := d.insert(ctx,
		`INSERT INTO messages (sender_id, recipient_id, content, image_url, created_at, read) VALUES (?, ?, ?, ?, ?, ?)`,
		senderID, recipientID, content, imageURL, now(), false)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	return id, nil
}

// GroupConversations folds a newest-first message list into one entry per
// conversation partner. The first message seen for a partner is the
// preview; a partner is unread if any message from them to viewer is unread.
func GroupConversations(viewerID int64, messages []Message) []Conversation {
	index := make(map[int64]int)
	conversations := []Conversation{}
	for _, m := range messages {
		partnerID, partnerName := m.RecipientID, m.RecipientName
		if m.SenderID != viewerID {
			partnerID, partnerName = m.SenderID, m.SenderName
		}
		i, seen := index[partnerID]
		if !seen {
			i = len(conversations)
			index[partnerID] = i
			conversations = append(conversations, Conversation{
				UserID:      partnerID,
				Username:    partnerName,
				LastMessage: m,
			})
		}
		if m.RecipientID == viewerID && !m.Read {
			conversations[i].Unread = true
		}
	}
	return conversations
}
