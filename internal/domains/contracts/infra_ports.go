package contracts

import (
	"context"
	"log/slog"
	"time"

	contractports "aim-chat/go-backend/internal/domains/contracts/ports"
	"aim-chat/go-backend/internal/storage"
	"aim-chat/go-backend/internal/waku"
	"aim-chat/go-backend/pkg/models"
)

// MessageRepository is the persisted message-history collaborator: the
// group core reads and writes decrypted application messages through it
// and retries pending publishes from its queue.
type MessageRepository interface {
	SaveMessage(msg models.Message) error
	GetMessage(messageID string) (models.Message, bool)
	UpdateMessageStatus(messageID, status string) (bool, error)
	DeleteMessage(contactID, messageID string) (bool, error)
	ListMessagesByConversation(conversationID, conversationType string, limit, offset int) []models.Message
	ListMessagesByConversationThread(conversationID, conversationType, threadID string, limit, offset int) []models.Message
	AddOrUpdatePending(message models.Message, retryCount int, nextRetry time.Time, lastErr string) error
	RemovePending(messageID string) error
	PendingCount() int
	DuePending(now time.Time) []storage.PendingMessage
}

// TransportNode is the wire-transport collaborator the group core's sync
// pipeline publishes to and fetches from.
type TransportNode interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() waku.Status
	SetIdentity(identityID string)
	SubscribePrivate(handler func(waku.PrivateMessage)) error
	PublishPrivate(ctx context.Context, msg waku.PrivateMessage) error
	FetchPrivateSince(ctx context.Context, recipient string, since time.Time, limit int) ([]waku.PrivateMessage, error)
	ListenAddresses() []string
	NetworkMetrics() map[string]int
}

type ServiceOptions struct {
	MessageStore MessageRepository
	Logger       *slog.Logger
}

type NotificationEvent = contractports.NotificationEvent
