package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/uniadvisor/advisory-server/internal/mail"
)

// MailHandlers exposes the outbound-mail collaborator to admins.
type MailHandlers struct {
	sender mail.Sender
	log    *zerolog.Logger
}

// NewMailHandlers creates a new mail handlers instance.
func NewMailHandlers(sender mail.Sender, logger *zerolog.Logger) *MailHandlers {
	return &MailHandlers{
		sender: sender,
		log:    logger,
	}
}

// SendMailRequest represents the send mail request body.
type SendMailRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// SendMail delivers a notification email.
// POST /api/mail/send (admin only)
func (h *MailHandlers) SendMail(c *gin.Context) {
	var req SendMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send mail request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.sender.Send(c.Request.Context(), req.To, req.Subject, req.Body); err != nil {
		h.log.Error().Err(err).Str("to", req.To).Msg("failed to send mail")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to send mail"})
		return
	}

	h.log.Info().Str("to", req.To).Str("subject", req.Subject).Msg("mail sent")
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}
