package models

import "strings"

// Conversation scoping: every stored message belongs to a conversation,
// either a peer-scoped direct exchange or a group id.

const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

func NormalizeConversationType(raw string) string {
	switch strings.TrimSpace(raw) {
	case ConversationTypeGroup:
		return ConversationTypeGroup
	default:
		return ConversationTypeDirect
	}
}

func NormalizeMessageConversation(msg Message) Message {
	msg.ContactID = strings.TrimSpace(msg.ContactID)
	msg.ConversationID = strings.TrimSpace(msg.ConversationID)
	msg.ConversationType = NormalizeConversationType(msg.ConversationType)
	msg.ThreadID = strings.TrimSpace(msg.ThreadID)

	// Backward compatibility: direct messages default to contact-scoped conversation.
	if msg.ConversationType == ConversationTypeDirect && msg.ConversationID == "" {
		msg.ConversationID = msg.ContactID
	}
	return msg
}
