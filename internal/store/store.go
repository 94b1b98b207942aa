package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Role classifies a user account.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdvisor Role = "advisor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdvisor, RoleAdmin:
		return true
	}
	return false
}

// User represents an account in the advising system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	Email        string
	Role         Role
	CreatedAt    time.Time
}

// ChatBox is a persistent one-to-one conversation between a student
// and an advisor. PairKey is "box:{minUserID}:{maxUserID}" and is
// unique, so a box requested in either id order resolves to one row.
type ChatBox struct {
	ID        int64
	StudentID int64
	AdvisorID int64
	PairKey   string
	IsActive  bool
	CreatedAt time.Time
}

// HasParticipant reports whether userID is a member of the box.
func (b *ChatBox) HasParticipant(userID int64) bool {
	return userID == b.StudentID || userID == b.AdvisorID
}

// OtherParticipant returns the member of the box that is not userID.
func (b *ChatBox) OtherParticipant(userID int64) int64 {
	if userID == b.StudentID {
		return b.AdvisorID
	}
	return b.StudentID
}

// MessageKind distinguishes the two delivery paths a message can take.
type MessageKind string

const (
	// MessageBoxed is a message sent inside a chat box.
	MessageBoxed MessageKind = "boxed"
	// MessageDirect is a box-less message between two users.
	MessageDirect MessageKind = "direct"
)

// Message is a persisted chat message. ChatBoxID is meaningful only
// when Kind is MessageBoxed; direct messages store NULL in the column.
type Message struct {
	ID         int64
	Kind       MessageKind
	ChatBoxID  int64
	Content    string
	SenderID   int64
	ReceiverID int64
	IsRead     bool
	CreatedAt  time.Time
}

// UserStore handles account persistence. It doubles as the user
// directory the messaging core consults for existence and role checks.
type UserStore interface {
	// CreateUser creates a new user with a hashed password.
	CreateUser(ctx context.Context, username, passwordHash, fullName, email string, role Role) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers returns non-admin users whose username or full name
	// matches the query, ordered by username.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// ChatBoxStore handles chat box persistence.
type ChatBoxStore interface {
	// CreateChatBox inserts a box for the canonical pair, or returns the
	// existing one when the pair key is already taken. Safe for
	// concurrent callers: the UNIQUE pair_key constraint is the
	// serialization point.
	CreateChatBox(ctx context.Context, studentID, advisorID int64, pairKey string) (*ChatBox, error)

	// GetChatBoxByID retrieves a box by ID.
	GetChatBoxByID(ctx context.Context, id int64) (*ChatBox, error)

	// GetChatBoxByPairKey retrieves a box by its canonical pair key.
	GetChatBoxByPairKey(ctx context.Context, pairKey string) (*ChatBox, error)

	// ListChatBoxesByStudent lists boxes where the user is the student side.
	ListChatBoxesByStudent(ctx context.Context, studentID int64) ([]*ChatBox, error)

	// ListChatBoxesByAdvisor lists boxes where the user is the advisor side.
	ListChatBoxesByAdvisor(ctx context.Context, advisorID int64) ([]*ChatBox, error)

	// ListAllChatBoxes lists every box (admin view).
	ListAllChatBoxes(ctx context.Context) ([]*ChatBox, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// ListMessagesByChatBox returns a box's messages ascending by
	// created_at, id as the tie break.
	ListMessagesByChatBox(ctx context.Context, chatBoxID int64) ([]*Message, error)

	// ListMessagesBetween returns all messages exchanged between two
	// users in either direction, ascending by created_at then id.
	ListMessagesBetween(ctx context.Context, userID, otherUserID int64) ([]*Message, error)

	// ListUnreadMessages returns unread messages addressed to the user,
	// newest first.
	ListUnreadMessages(ctx context.Context, receiverID int64) ([]*Message, error)

	// MarkMessageRead flips is_read for the message addressed to
	// receiverID. Returns ErrNotFound when no such message exists for
	// that receiver; marking an already-read message is a no-op.
	MarkMessageRead(ctx context.Context, id, receiverID int64) (*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChatBoxStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
