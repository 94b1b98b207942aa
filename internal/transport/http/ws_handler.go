package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uniadvisor/advisory-server/internal/auth"
	"github.com/uniadvisor/advisory-server/internal/chat"
	"github.com/uniadvisor/advisory-server/internal/proto"
)

// WSHandler is the real-time gateway: it authenticates the handshake,
// registers the connection in the presence registry, relays inbound
// events to the conversation service, and drains pushed events back to
// the socket. A connection moves connecting -> authenticated -> open ->
// closed; a credential that does not resolve drops the connection
// before it is ever registered.
type WSHandler struct {
	svc             *chat.Service
	presence        chat.Presence
	auth            *auth.Service
	rateLimitPerMin int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket gateway handler.
func NewWSHandler(svc *chat.Service, presence chat.Presence, authService *auth.Service, rateLimitPerMin int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		svc:             svc,
		presence:        presence,
		auth:            authService,
		rateLimitPerMin: rateLimitPerMin,
		log:             logger,
	}
}

// Handle upgrades the connection and runs it until it closes.
// GET /ws?token=<jwt>
func (h *WSHandler) Handle(c *gin.Context) {
	// The credential rides in the query string: browser WebSocket
	// clients cannot set an Authorization header on the handshake.
	claims, err := h.auth.ValidateToken(c.Query("token"))
	if err != nil {
		// Dropped without a payload; the client sees only the refusal.
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		c.Status(401)
		c.Abort()
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := chat.NewConn(uuid.NewString(), claims.UserID)
	h.presence.Attach(client)
	defer h.presence.Detach(client)

	h.log.Info().Str("conn_id", client.ID).Int64("user_id", client.UserID).Msg("ws connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Info().Str("conn_id", client.ID).Int64("user_id", client.UserID).Msg("ws disconnected")
	conn.Close(status, reason)
}

// readLoop dispatches inbound events. A failed event is terminal for
// that event only: the push or response is dropped and the connection
// stays open.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *chat.Conn) error {
	limiter := newRateLimiter(h.rateLimitPerMin)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		var protoErr *proto.Error
		if limiter.allow(time.Now()) {
			protoErr = h.dispatch(ctx, client, inbound)
		} else {
			h.log.Debug().Str("conn_id", client.ID).Msg("ws event rate limited")
			protoErr = &proto.Error{Code: "rate_limited", Msg: "too many events, slow down"}
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
		}
	}
}

// dispatch handles one inbound event. It returns a protocol error only
// for malformed envelopes; domain failures are logged and swallowed.
func (h *WSHandler) dispatch(ctx context.Context, client *chat.Conn, inbound proto.Inbound) *proto.Error {
	switch inbound.Type {
	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return &proto.Error{Code: "bad_payload", Msg: "malformed send payload"}
		}

		msg, err := h.svc.SendDirectMessage(ctx, client.UserID, data.ReceiverID, data.Content)
		if err != nil {
			h.log.Debug().Err(err).Int64("sender_id", client.UserID).Msg("ws send rejected")
			return nil
		}

		// No echo to the sender; their client displays optimistically.
		if !h.presence.Push(msg.ReceiverID, &chat.Event{Kind: chat.EventNewMessage, Message: msg}) {
			h.log.Debug().Int64("receiver_id", msg.ReceiverID).Msg("receiver offline, push dropped")
		}
		return nil

	case proto.InboundTypeMarkRead:
		var data proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return &proto.Error{Code: "bad_payload", Msg: "malformed mark_read payload"}
		}

		msg, err := h.svc.MarkRead(ctx, data.MessageID, client.UserID)
		if err != nil {
			h.log.Debug().Err(err).Int64("message_id", data.MessageID).Msg("ws mark_read rejected")
			return nil
		}

		h.presence.Push(msg.SenderID, &chat.Event{
			Kind:      chat.EventMessageRead,
			MessageID: msg.ID,
			ReadBy:    client.UserID,
		})
		return nil

	default:
		return &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *chat.Conn) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
