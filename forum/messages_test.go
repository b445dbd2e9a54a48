package forum

import (
	"context"
	"errors"
	"testing"
)

func TestSendMessageValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")
	bob := mustRegister(t, db, "bob")

	if _, err := db.SendMessage(ctx, alice.UserID, bob.UserID, " ", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for empty content, got %v", err)
	}
	if _, err := db.SendMessage(ctx, alice.UserID, alice.UserID, "me", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for self message, got %v", err)
	}
	if _, err := db.SendMessage(ctx, alice.UserID, 4242, "hi", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown recipient, got %v", err)
	}
}

func TestListConversationMarksInboundRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")
	bob := mustRegister(t, db, "bob")
	carol := mustRegister(t, db, "carol")

	send := func(from, to Identity, content string) int64 {
		t.Helper()
		id, err := db.SendMessage(ctx, from.UserID, to.UserID, content, nil)
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		return id
	}
	send(alice, bob, "hi bob")
	send(bob, alice, "hi alice")
	send(bob, alice, "you there?")
	send(carol, alice, "unrelated")

	conv, err := db.ListConversation(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("ListConversation failed: %v", err)
	}
	if len(conv) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv))
	}
	for i := 1; i < len(conv); i++ {
		if conv[i].CreatedAt.Before(conv[i-1].CreatedAt) {
			t.Errorf("conversation out of order")
		}
	}
	if conv[0].SenderName != "alice" || conv[1].SenderName != "bob" {
		t.Errorf("unexpected senders %s, %s", conv[0].SenderName, conv[1].SenderName)
	}

	all, err := db.ListMessagesForUser(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("ListMessagesForUser failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(all))
	}
	for _, m := range all {
		switch {
		case m.SenderID == bob.UserID && m.RecipientID == alice.UserID:
			if !m.Read {
				t.Errorf("message %d from bob should be read", m.ID)
			}
		case m.RecipientID == bob.UserID:
			if m.Read {
				t.Errorf("message %d to bob should stay unread", m.ID)
			}
		case m.SenderID == carol.UserID:
			if m.Read {
				t.Errorf("message %d from carol should stay unread", m.ID)
			}
		}
	}
}

func TestListMessagesForUserNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := mustRegister(t, db, "alice")
	bob := mustRegister(t, db, "bob")

	first, _ := db.SendMessage(ctx, alice.UserID, bob.UserID, "one", nil)
	last, _ := db.SendMessage(ctx, bob.UserID, alice.UserID, "two", nil)

	msgs, err := db.ListMessagesForUser(ctx, bob.UserID)
	if err != nil {
		t.Fatalf("ListMessagesForUser failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != last || msgs[1].ID != first {
		t.Fatalf("expected newest first, got %+v", msgs)
	}
	if msgs[1].SenderName != "alice" || msgs[1].RecipientName != "bob" {
		t.Errorf("unexpected names %s -> %s", msgs[1].SenderName, msgs[1].RecipientName)
	}
}

func TestGroupConversations(t *testing.T) {
	const viewer = 1
	msgs := []Message{
		{ID: 5, SenderID: viewer, RecipientID: 2, SenderName: "me", RecipientName: "bob", Read: false},
		{ID: 4, SenderID: 3, RecipientID: viewer, SenderName: "carol", RecipientName: "me", Read: true},
		{ID: 3, SenderID: 2, RecipientID: viewer, SenderName: "bob", RecipientName: "me", Read: false},
		{ID: 2, SenderID: viewer, RecipientID: 3, SenderName: "me", RecipientName: "carol", Read: false},
		{ID: 1, SenderID: 2, RecipientID: viewer, SenderName: "bob", RecipientName: "me", Read: true},
	}

	got := GroupConversations(viewer, msgs)
	if len(got) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(got))
	}
	if got[0].UserID != 2 || got[0].Username != "bob" || got[0].LastMessage.ID != 5 {
		t.Errorf("unexpected first conversation %+v", got[0])
	}
	if !got[0].Unread {
		t.Error("bob's conversation has an unread inbound message")
	}
	if got[1].UserID != 3 || got[1].LastMessage.ID != 4 {
		t.Errorf("unexpected second conversation %+v", got[1])
	}
	if got[1].Unread {
		t.Error("outbound unread messages must not flag the conversation")
	}

	if empty := GroupConversations(viewer, nil); len(empty) != 0 {
		t.Errorf("expected no conversations, got %d", len(empty))
	}
}
