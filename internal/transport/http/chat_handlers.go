package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/uniadvisor/advisory-server/internal/chat"
	"github.com/uniadvisor/advisory-server/internal/store"
)

// ChatHandlers provides HTTP handlers for the messaging endpoints: the
// synchronous request/response surface over the conversation service.
type ChatHandlers struct {
	svc *chat.Service
	log *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(svc *chat.Service, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		svc: svc,
		log: logger,
	}
}

// CreateChatBoxRequest represents the create chat box request body.
type CreateChatBoxRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// SendMessageRequest represents the box-scoped send request body.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=1000"`
}

// SendDirectMessageRequest represents the direct send request body.
type SendDirectMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required,max=1000"`
}

// ChatBoxResponse represents a chat box in API responses.
type ChatBoxResponse struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"student_id"`
	AdvisorID int64  `json:"advisor_id"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	ChatBoxID  int64  `json:"chat_box_id,omitempty"`
	Content    string `json:"content"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	IsRead     bool   `json:"is_read"`
	CreatedAt  string `json:"created_at"`
}

// CreateChatBox opens (or returns) the box with another user.
// POST /api/chat/boxes
func (h *ChatHandlers) CreateChatBox(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateChatBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create chat box request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	box, err := h.svc.CreateChatBox(c.Request.Context(), userID, req.UserID)
	if err != nil {
		h.writeDomainError(c, err, "create chat box")
		return
	}

	c.JSON(http.StatusCreated, chatBoxResponse(box))
}

// CreateChatBoxWith opens (or returns) the box with the user in the path.
// POST /api/chat/boxes/:id
func (h *ChatHandlers) CreateChatBoxWith(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	box, err := h.svc.CreateChatBox(c.Request.Context(), userID, otherID)
	if err != nil {
		h.writeDomainError(c, err, "create chat box")
		return
	}

	c.JSON(http.StatusCreated, chatBoxResponse(box))
}

// ListChatBoxes lists the caller's visible boxes.
// GET /api/chat/boxes
func (h *ChatHandlers) ListChatBoxes(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	boxes, err := h.svc.ListChatBoxes(c.Request.Context(), userID, role)
	if err != nil {
		h.writeDomainError(c, err, "list chat boxes")
		return
	}

	response := make([]ChatBoxResponse, 0, len(boxes))
	for _, box := range boxes {
		response = append(response, chatBoxResponse(box))
	}
	c.JSON(http.StatusOK, response)
}

// GetChatBox returns one box.
// GET /api/chat/boxes/:id
func (h *ChatHandlers) GetChatBox(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	boxID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat box id"})
		return
	}

	box, err := h.svc.GetChatBox(c.Request.Context(), boxID, userID, role)
	if err != nil {
		h.writeDomainError(c, err, "get chat box")
		return
	}

	c.JSON(http.StatusOK, chatBoxResponse(box))
}

// GetHistory returns a box's messages in chronological order.
// GET /api/chat/boxes/:id/messages
func (h *ChatHandlers) GetHistory(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	boxID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat box id"})
		return
	}

	messages, err := h.svc.GetHistory(c.Request.Context(), boxID, userID, role)
	if err != nil {
		h.writeDomainError(c, err, "get history")
		return
	}

	c.JSON(http.StatusOK, messageResponses(messages))
}

// SendMessage sends into a box.
// POST /api/chat/boxes/:id/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	boxID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat box id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), boxID, userID, req.Content)
	if err != nil {
		h.writeDomainError(c, err, "send message")
		return
	}

	c.JSON(http.StatusCreated, messageResponse(msg))
}

// SendDirectMessage sends a box-less message.
// POST /api/chat/messages
func (h *ChatHandlers) SendDirectMessage(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendDirectMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid direct message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.svc.SendDirectMessage(c.Request.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		h.writeDomainError(c, err, "send direct message")
		return
	}

	c.JSON(http.StatusCreated, messageResponse(msg))
}

// GetConversation returns the caller's full exchange with another user.
// GET /api/chat/messages/:id (the id is the other user's)
func (h *ChatHandlers) GetConversation(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	messages, err := h.svc.GetConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		h.writeDomainError(c, err, "get conversation")
		return
	}

	c.JSON(http.StatusOK, messageResponses(messages))
}

// GetUnread lists the caller's unread messages, newest first.
// GET /api/chat/unread
func (h *ChatHandlers) GetUnread(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messages, err := h.svc.GetUnread(c.Request.Context(), userID)
	if err != nil {
		h.writeDomainError(c, err, "get unread")
		return
	}

	c.JSON(http.StatusOK, messageResponses(messages))
}

// MarkRead marks one of the caller's inbound messages as read.
// POST /api/chat/messages/:id/read
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	msg, err := h.svc.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		h.writeDomainError(c, err, "mark read")
		return
	}

	c.JSON(http.StatusOK, messageResponse(msg))
}

// writeDomainError maps conversation service errors onto HTTP statuses.
func (h *ChatHandlers) writeDomainError(c *gin.Context, err error, op string) {
	body := ErrorResponse{Error: err.Error(), Code: chat.ErrorCode(err)}
	switch {
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, body)
	case errors.Is(err, chat.ErrInvalidOperation):
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, chat.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, body)
	default:
		h.log.Error().Err(err).Str("op", op).Msg("chat request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func pathID(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func chatBoxResponse(box *store.ChatBox) ChatBoxResponse {
	return ChatBoxResponse{
		ID:        box.ID,
		StudentID: box.StudentID,
		AdvisorID: box.AdvisorID,
		IsActive:  box.IsActive,
		CreatedAt: box.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func messageResponse(msg *store.Message) MessageResponse {
	resp := MessageResponse{
		ID:         msg.ID,
		Content:    msg.Content,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if msg.Kind == store.MessageBoxed {
		resp.ChatBoxID = msg.ChatBoxID
	}
	return resp
}

func messageResponses(messages []*store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageResponse(msg))
	}
	return out
}
