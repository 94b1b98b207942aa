package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uniadvisor/advisory-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func seedUser(t *testing.T, s *SQLiteStore, username string, role store.Role) *store.User {
	t.Helper()

	user, err := s.CreateUser(context.Background(), username, "hash", "", "", role)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func TestCreateChatBoxDeduplicatesPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	student := seedUser(t, s, "student1", store.RoleStudent)
	advisor := seedUser(t, s, "advisor1", store.RoleAdvisor)

	key := "box:1:2"
	first, err := s.CreateChatBox(ctx, student.ID, advisor.ID, key)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	second, err := s.CreateChatBox(ctx, student.ID, advisor.ID, key)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected the same box, got %d and %d", first.ID, second.ID)
	}

	all, err := s.ListAllChatBoxes(ctx)
	if err != nil {
		t.Fatalf("list boxes: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 box, got %d", len(all))
	}
}

func TestCreateChatBoxConcurrentCallersConverge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	student := seedUser(t, s, "student1", store.RoleStudent)
	advisor := seedUser(t, s, "advisor1", store.RoleAdvisor)

	const callers = 8
	ids := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			box, err := s.CreateChatBox(ctx, student.ID, advisor.ID, "box:1:2")
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			ids[i] = box.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got box %d, caller 0 got %d", i, ids[i], ids[0])
		}
	}

	all, err := s.ListAllChatBoxes(ctx)
	if err != nil {
		t.Fatalf("list boxes: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 box after concurrent creates, got %d", len(all))
	}
}

func TestGetChatBoxByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetChatBoxByID(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for missing box")
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessagesByChatBoxChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	student := seedUser(t, s, "student1", store.RoleStudent)
	advisor := seedUser(t, s, "advisor1", store.RoleAdvisor)
	box, err := s.CreateChatBox(ctx, student.ID, advisor.ID, "box:1:2")
	if err != nil {
		t.Fatalf("create box: %v", err)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	texts := []string{"first", "second", "third"}
	for i, text := range texts {
		msg := &store.Message{
			Kind:       store.MessageBoxed,
			ChatBoxID:  box.ID,
			Content:    text,
			SenderID:   student.ID,
			ReceiverID: advisor.ID,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save %q: %v", text, err)
		}
	}

	messages, err := s.ListMessagesByChatBox(ctx, box.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(messages))
	}
	for i, msg := range messages {
		if msg.Content != texts[i] {
			t.Fatalf("expected %q at index %d, got %q", texts[i], i, msg.Content)
		}
		if msg.Kind != store.MessageBoxed || msg.ChatBoxID != box.ID {
			t.Fatalf("unexpected kind/box for %q: %+v", msg.Content, msg)
		}
	}
}

func TestListMessagesByChatBoxTieBreaksOnID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	student := seedUser(t, s, "student1", store.RoleStudent)
	advisor := seedUser(t, s, "advisor1", store.RoleAdvisor)
	box, err := s.CreateChatBox(ctx, student.ID, advisor.ID, "box:1:2")
	if err != nil {
		t.Fatalf("create box: %v", err)
	}

	// Same timestamp: insertion order must win.
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, text := range []string{"a", "b", "c"} {
		msg := &store.Message{
			Kind:       store.MessageBoxed,
			ChatBoxID:  box.ID,
			Content:    text,
			SenderID:   student.ID,
			ReceiverID: advisor.ID,
			CreatedAt:  at,
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save %q: %v", text, err)
		}
	}

	messages, err := s.ListMessagesByChatBox(ctx, box.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	got := ""
	for _, msg := range messages {
		got += msg.Content
	}
	if got != "abc" {
		t.Fatalf("expected insertion order abc, got %q", got)
	}
}

func TestListUnreadMessagesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	student := seedUser(t, s, "student1", store.RoleStudent)
	advisor := seedUser(t, s, "advisor1", store.RoleAdvisor)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"old", "mid", "new"} {
		msg := &store.Message{
			Kind:       store.MessageDirect,
			Content:    text,
			SenderID:   student.ID,
			ReceiverID: advisor.ID,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save %q: %v", text, err)
		}
	}

	unread, err := s.ListUnreadMessages(ctx, advisor.ID)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 3 {
		t.Fatalf("expected 3 unread, got %d", len(unread))
	}
	if unread[0].Content != "new" || unread[2].Content != "old" {
		t.Fatalf("expected newest first, got %q..%q", unread[0].Content, unread[2].Content)
	}
	for _, msg := range unread {
		if msg.Kind != store.MessageDirect {
			t.Fatalf("expected direct message, got %+v", msg)
		}
	}
}

func TestMarkMessageReadScopedToReceiver(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	student := seedUser(t, s, "student1", store.RoleStudent)
	advisor := seedUser(t, s, "advisor1", store.RoleAdvisor)
	outsider := seedUser(t, s, "student2", store.RoleStudent)

	msg := &store.Message{
		Kind:       store.MessageDirect,
		Content:    "hello",
		SenderID:   student.ID,
		ReceiverID: advisor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save message: %v", err)
	}

	// Wrong receiver looks like a missing message.
	if _, err := s.MarkMessageRead(ctx, msg.ID, outsider.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-receiver, got %v", err)
	}

	read, err := s.MarkMessageRead(ctx, msg.ID, advisor.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.IsRead {
		t.Fatal("expected is_read=true")
	}

	// Second mark is a no-op, not an error.
	again, err := s.MarkMessageRead(ctx, msg.ID, advisor.ID)
	if err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if !again.IsRead {
		t.Fatal("expected is_read to stay true")
	}

	stored, err := s.GetMessageByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if !stored.IsRead {
		t.Fatal("expected the read flag to be persisted")
	}

	unread, err := s.ListUnreadMessages(ctx, advisor.ID)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread after marking, got %d", len(unread))
	}
}

func TestSearchUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice", "hash", "Alice Aroyo", "", store.RoleStudent); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := s.CreateUser(ctx, "alex", "hash", "", "", store.RoleStudent); err != nil {
		t.Fatalf("create alex: %v", err)
	}
	if _, err := s.CreateUser(ctx, "bob", "hash", "Bob Alonzo", "", store.RoleAdvisor); err != nil {
		t.Fatalf("create bob: %v", err)
	}
	// Admins never appear in the directory.
	if _, err := s.CreateUser(ctx, "alfred", "hash", "", "", store.RoleAdmin); err != nil {
		t.Fatalf("create alfred: %v", err)
	}

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "username or name contains", query: "al", expected: []string{"alex", "alice", "bob"}},
		{name: "full name match", query: "alonzo", expected: []string{"bob"}},
		{name: "no match", query: "zz", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.SearchUsers(ctx, tt.query)
			if err != nil {
				t.Fatalf("search %q: %v", tt.query, err)
			}

			var names []string
			for _, u := range results {
				names = append(names, u.Username)
			}
			if len(names) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, names)
			}
			for i := range names {
				if names[i] != tt.expected[i] {
					t.Fatalf("expected %v, got %v", tt.expected, names)
				}
			}
		})
	}
}

func TestGetUserByUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "alice", store.RoleAdvisor)

	user, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Role != store.RoleAdvisor {
		t.Fatalf("expected advisor role, got %s", user.Role)
	}

	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
