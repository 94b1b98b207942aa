package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/uniadvisor/advisory-server/internal/store"
)

// maxContentLen bounds message content, matching the column length.
const maxContentLen = 1000

// Service implements the conversation business logic: box creation and
// dedup, authorization checks, message send/read, history queries. It is
// the single writer of conversation state; both the request API and the
// real-time gateway funnel into it.
type Service struct {
	store store.Store
}

// NewService creates a conversation service over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// PairKey normalizes an unordered user id pair to its canonical key, so
// a box requested as (7,3) and one requested as (3,7) resolve to the
// same record.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("box:%d:%d", a, b)
}

// CreateChatBox creates the box between the requester and the other
// user, or returns the existing one. Idempotent in either id order.
func (s *Service) CreateChatBox(ctx context.Context, requesterID, otherUserID int64) (*store.ChatBox, error) {
	if requesterID <= 0 || otherUserID <= 0 {
		return nil, fmt.Errorf("%w: invalid user id", ErrInvalidOperation)
	}
	if requesterID == otherUserID {
		return nil, fmt.Errorf("%w: cannot open a chat box with yourself", ErrInvalidOperation)
	}

	requester, err := s.lookupUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	other, err := s.lookupUser(ctx, otherUserID)
	if err != nil {
		return nil, err
	}

	student, advisor := requester, other
	if student.Role != store.RoleStudent {
		student, advisor = other, requester
	}
	if student.Role != store.RoleStudent || advisor.Role != store.RoleAdvisor {
		return nil, fmt.Errorf("%w: a chat box pairs one student with one advisor", ErrInvalidOperation)
	}

	box, err := s.store.CreateChatBox(ctx, student.ID, advisor.ID, PairKey(requesterID, otherUserID))
	if err != nil {
		return nil, fmt.Errorf("create chat box: %w", err)
	}

	return box, nil
}

// GetChatBox returns the box if the requester is a participant. Admins
// bypass the participant check.
func (s *Service) GetChatBox(ctx context.Context, id, requesterID int64, role store.Role) (*store.ChatBox, error) {
	box, err := s.store.GetChatBoxByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chat box %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get chat box: %w", err)
	}

	if role != store.RoleAdmin && !box.HasParticipant(requesterID) {
		return nil, fmt.Errorf("%w: not a participant of chat box %d", ErrForbidden, id)
	}

	return box, nil
}

// ListChatBoxes returns the boxes visible to the user: students see
// their student-side boxes, advisors their advisor-side boxes, admins
// everything.
func (s *Service) ListChatBoxes(ctx context.Context, userID int64, role store.Role) ([]*store.ChatBox, error) {
	var boxes []*store.ChatBox
	var err error
	switch role {
	case store.RoleStudent:
		boxes, err = s.store.ListChatBoxesByStudent(ctx, userID)
	case store.RoleAdvisor:
		boxes, err = s.store.ListChatBoxesByAdvisor(ctx, userID)
	case store.RoleAdmin:
		boxes, err = s.store.ListAllChatBoxes(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidOperation, role)
	}
	if err != nil {
		return nil, fmt.Errorf("list chat boxes: %w", err)
	}
	return boxes, nil
}

// SendMessage persists a message inside a box. The receiver is the
// other participant; the sender must be a member.
func (s *Service) SendMessage(ctx context.Context, chatBoxID, senderID int64, content string) (*store.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	box, err := s.store.GetChatBoxByID(ctx, chatBoxID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chat box %d: %w", chatBoxID, ErrNotFound)
		}
		return nil, fmt.Errorf("get chat box: %w", err)
	}
	if !box.HasParticipant(senderID) {
		return nil, fmt.Errorf("%w: not a participant of chat box %d", ErrForbidden, chatBoxID)
	}

	msg := &store.Message{
		Kind:       store.MessageBoxed,
		ChatBoxID:  box.ID,
		Content:    content,
		SenderID:   senderID,
		ReceiverID: box.OtherParticipant(senderID),
		IsRead:     false,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	return msg, nil
}

// SendDirectMessage persists a box-less message. Same validation as
// SendMessage minus the box-membership check.
func (s *Service) SendDirectMessage(ctx context.Context, senderID, receiverID int64, content string) (*store.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrInvalidOperation)
	}
	if _, err := s.lookupUser(ctx, receiverID); err != nil {
		return nil, err
	}

	msg := &store.Message{
		Kind:       store.MessageDirect,
		Content:    content,
		SenderID:   senderID,
		ReceiverID: receiverID,
		IsRead:     false,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	return msg, nil
}

// GetHistory returns a box's messages in chronological order.
// Authorization is identical to GetChatBox.
func (s *Service) GetHistory(ctx context.Context, chatBoxID, requesterID int64, role store.Role) ([]*store.Message, error) {
	if _, err := s.GetChatBox(ctx, chatBoxID, requesterID, role); err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessagesByChatBox(ctx, chatBoxID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// GetConversation returns every message exchanged between the requester
// and another user, boxed or direct, in chronological order.
func (s *Service) GetConversation(ctx context.Context, requesterID, otherUserID int64) ([]*store.Message, error) {
	if _, err := s.lookupUser(ctx, otherUserID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessagesBetween(ctx, requesterID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// GetUnread returns the user's unread inbound messages, newest first.
func (s *Service) GetUnread(ctx context.Context, userID int64) ([]*store.Message, error) {
	messages, err := s.store.ListUnreadMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	return messages, nil
}

// MarkRead marks the message read on behalf of its receiver. A caller
// who is not the receiver gets ErrNotFound whether or not the message
// exists; marking an already-read message again is a no-op.
func (s *Service) MarkRead(ctx context.Context, messageID, requesterID int64) (*store.Message, error) {
	msg, err := s.store.MarkMessageRead(ctx, messageID, requesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
		}
		return nil, fmt.Errorf("mark message read: %w", err)
	}
	return msg, nil
}

func (s *Service) lookupUser(ctx context.Context, id int64) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func validateContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidOperation)
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidOperation, maxContentLen)
	}
	return nil
}
