package http

import (
	"github.com/uniadvisor/advisory-server/internal/chat"
	"github.com/uniadvisor/advisory-server/internal/proto"
	"github.com/uniadvisor/advisory-server/internal/store"
)

func messagePayload(msg *store.Message) proto.MessagePayload {
	payload := proto.MessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		TS:         msg.CreatedAt.Unix(),
	}
	if msg.Kind == store.MessageBoxed {
		payload.ChatBoxID = msg.ChatBoxID
	}
	return payload
}

func outboundFromEvent(event *chat.Event) proto.Outbound {
	switch event.Kind {
	case chat.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  messagePayload(event.Message),
		}
	case chat.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageRead,
			Data: proto.MessageReadPayload{
				MessageID: event.MessageID,
				ReadBy:    event.ReadBy,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
