package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/uniadvisor/advisory-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the embedded schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function
// instead of the embedded schema. Useful for tests.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with a hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, fullName, email string, role store.Role) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, full_name, email, role)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, fullName, email, string(role))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, full_name, email, role, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, full_name, email, role, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// SearchUsers returns non-admin users matching the query in username or
// full name. SQLite LIKE is case-insensitive for ASCII.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	stmt := `
		SELECT id, username, password_hash, full_name, email, role, created_at
		FROM users
		WHERE role != 'admin' AND (username LIKE ? OR full_name LIKE ?)
		ORDER BY username ASC
	`
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, stmt, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		var role string
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Email, &role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.Role = store.Role(role)
		users = append(users, &user)
	}

	return users, rows.Err()
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FullName,
		&user.Email,
		&role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.Role = store.Role(role)

	return &user, nil
}

// ==== ChatBoxStore implementation ====

// CreateChatBox inserts a box for the canonical pair, or returns the
// existing row when another caller created it first. The UNIQUE
// constraint on pair_key is the serialization point for concurrent
// creators.
func (s *SQLiteStore) CreateChatBox(ctx context.Context, studentID, advisorID int64, pairKey string) (*store.ChatBox, error) {
	existing, err := s.GetChatBoxByPairKey(ctx, pairKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing chat box: %w", err)
	}

	query := `
		INSERT INTO chat_boxes (student_id, advisor_id, pair_key, is_active)
		VALUES (?, ?, ?, 1)
	`
	result, err := s.db.ExecContext(ctx, query, studentID, advisorID, pairKey)
	if err != nil {
		// Lost the race: another caller inserted the same pair first.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return s.GetChatBoxByPairKey(ctx, pairKey)
		}
		return nil, fmt.Errorf("insert chat box: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetChatBoxByID(ctx, id)
}

// GetChatBoxByID retrieves a box by ID.
func (s *SQLiteStore) GetChatBoxByID(ctx context.Context, id int64) (*store.ChatBox, error) {
	query := `
		SELECT id, student_id, advisor_id, pair_key, is_active, created_at
		FROM chat_boxes
		WHERE id = ?
	`
	return s.scanChatBoxRow(s.db.QueryRowContext(ctx, query, id))
}

// GetChatBoxByPairKey retrieves a box by its canonical pair key.
func (s *SQLiteStore) GetChatBoxByPairKey(ctx context.Context, pairKey string) (*store.ChatBox, error) {
	query := `
		SELECT id, student_id, advisor_id, pair_key, is_active, created_at
		FROM chat_boxes
		WHERE pair_key = ?
	`
	return s.scanChatBoxRow(s.db.QueryRowContext(ctx, query, pairKey))
}

func (s *SQLiteStore) scanChatBoxRow(row *sql.Row) (*store.ChatBox, error) {
	var box store.ChatBox
	err := row.Scan(
		&box.ID,
		&box.StudentID,
		&box.AdvisorID,
		&box.PairKey,
		&box.IsActive,
		&box.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat box: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query chat box: %w", err)
	}

	return &box, nil
}

// ListChatBoxesByStudent lists boxes where the user is the student side.
func (s *SQLiteStore) ListChatBoxesByStudent(ctx context.Context, studentID int64) ([]*store.ChatBox, error) {
	query := `
		SELECT id, student_id, advisor_id, pair_key, is_active, created_at
		FROM chat_boxes
		WHERE student_id = ?
		ORDER BY id ASC
	`
	return s.listChatBoxes(ctx, query, studentID)
}

// ListChatBoxesByAdvisor lists boxes where the user is the advisor side.
func (s *SQLiteStore) ListChatBoxesByAdvisor(ctx context.Context, advisorID int64) ([]*store.ChatBox, error) {
	query := `
		SELECT id, student_id, advisor_id, pair_key, is_active, created_at
		FROM chat_boxes
		WHERE advisor_id = ?
		ORDER BY id ASC
	`
	return s.listChatBoxes(ctx, query, advisorID)
}

// ListAllChatBoxes lists every box.
func (s *SQLiteStore) ListAllChatBoxes(ctx context.Context) ([]*store.ChatBox, error) {
	query := `
		SELECT id, student_id, advisor_id, pair_key, is_active, created_at
		FROM chat_boxes
		ORDER BY id ASC
	`
	return s.listChatBoxes(ctx, query)
}

func (s *SQLiteStore) listChatBoxes(ctx context.Context, query string, args ...interface{}) ([]*store.ChatBox, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat boxes: %w", err)
	}
	defer rows.Close()

	var boxes []*store.ChatBox
	for rows.Next() {
		var box store.ChatBox
		if err := rows.Scan(&box.ID, &box.StudentID, &box.AdvisorID, &box.PairKey, &box.IsActive, &box.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat box: %w", err)
		}
		boxes = append(boxes, &box)
	}

	return boxes, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (content, sender_id, receiver_id, chat_box_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	var chatBoxID sql.NullInt64
	if msg.Kind == store.MessageBoxed {
		chatBoxID = sql.NullInt64{Int64: msg.ChatBoxID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query, msg.Content, msg.SenderID, msg.ReceiverID, chatBoxID, msg.IsRead, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, content, sender_id, receiver_id, chat_box_id, is_read, created_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	var chatBoxID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.Content,
		&msg.SenderID,
		&msg.ReceiverID,
		&chatBoxID,
		&msg.IsRead,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	setMessageKind(&msg, chatBoxID)

	return &msg, nil
}

// ListMessagesByChatBox returns a box's messages in chronological order.
func (s *SQLiteStore) ListMessagesByChatBox(ctx context.Context, chatBoxID int64) ([]*store.Message, error) {
	query := `
		SELECT id, content, sender_id, receiver_id, chat_box_id, is_read, created_at
		FROM messages
		WHERE chat_box_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return s.listMessages(ctx, query, chatBoxID)
}

// ListMessagesBetween returns all messages exchanged between two users
// in either direction, in chronological order.
func (s *SQLiteStore) ListMessagesBetween(ctx context.Context, userID, otherUserID int64) ([]*store.Message, error) {
	query := `
		SELECT id, content, sender_id, receiver_id, chat_box_id, is_read, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
	`
	return s.listMessages(ctx, query, userID, otherUserID, otherUserID, userID)
}

// ListUnreadMessages returns unread messages for the receiver, newest first.
func (s *SQLiteStore) ListUnreadMessages(ctx context.Context, receiverID int64) ([]*store.Message, error) {
	query := `
		SELECT id, content, sender_id, receiver_id, chat_box_id, is_read, created_at
		FROM messages
		WHERE receiver_id = ? AND is_read = 0
		ORDER BY created_at DESC, id DESC
	`
	return s.listMessages(ctx, query, receiverID)
}

func (s *SQLiteStore) listMessages(ctx context.Context, query string, args ...interface{}) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var chatBoxID sql.NullInt64
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.SenderID, &msg.ReceiverID, &chatBoxID, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		setMessageKind(&msg, chatBoxID)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// MarkMessageRead flips is_read for the message addressed to receiverID.
// The lookup is scoped to the receiver, so a message that exists but
// belongs to someone else reports ErrNotFound.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id, receiverID int64) (*store.Message, error) {
	query := `
		SELECT id, content, sender_id, receiver_id, chat_box_id, is_read, created_at
		FROM messages
		WHERE id = ? AND receiver_id = ?
	`
	var msg store.Message
	var chatBoxID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id, receiverID).Scan(
		&msg.ID,
		&msg.Content,
		&msg.SenderID,
		&msg.ReceiverID,
		&chatBoxID,
		&msg.IsRead,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	setMessageKind(&msg, chatBoxID)

	if !msg.IsRead {
		update := `UPDATE messages SET is_read = 1 WHERE id = ?`
		if _, err := s.db.ExecContext(ctx, update, id); err != nil {
			return nil, fmt.Errorf("update message: %w", err)
		}
		msg.IsRead = true
	}

	return &msg, nil
}

func setMessageKind(msg *store.Message, chatBoxID sql.NullInt64) {
	if chatBoxID.Valid {
		msg.Kind = store.MessageBoxed
		msg.ChatBoxID = chatBoxID.Int64
	} else {
		msg.Kind = store.MessageDirect
	}
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
