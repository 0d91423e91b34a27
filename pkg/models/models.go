package models

import "time"

type Identity struct {
	ID               string `json:"id"`
	SigningPublicKey []byte `json:"signing_public_key"`
}

type ContactCard struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
	PublicKey   []byte `json:"public_key"`
	Signature   []byte `json:"signature"`
}

type Contact struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	PublicKey   []byte    `json:"public_key"`
	AddedAt     time.Time `json:"added_at"`
	LastSeen    time.Time `json:"last_seen"`
}

type Message struct {
	ID               string    `json:"id"`
	ContactID        string    `json:"contact_id"`
	ConversationID   string    `json:"conversation_id,omitempty"`
	ConversationType string    `json:"conversation_type,omitempty"`
	ThreadID         string    `json:"thread_id,omitempty"`
	Content          []byte    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
	Direction        string    `json:"direction"`
	Status           string    `json:"status"`
	ContentType      string    `json:"content_type"`
}

type NetworkStatus struct {
	Status    string    `json:"status"`
	PeerCount int       `json:"peer_count"`
	LastSync  time.Time `json:"last_sync"`
}

type MetricsSnapshot struct {
	PeerCount           int            `json:"peer_count"`
	PendingQueueSize    int            `json:"pending_queue_size"`
	ErrorCounters       map[string]int `json:"error_counters"`
	GroupAggregates     map[string]int `json:"group_aggregates"`
	NetworkMetrics      map[string]int `json:"network_metrics"`
	RetryAttemptsTotal  int            `json:"retry_attempts_total"`
	LastUpdatedAt       time.Time      `json:"last_updated_at"`
	NotificationBacklog int            `json:"notification_backlog"`
}

type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PublicKey []byte    `json:"public_key"`
	CertSig   []byte    `json:"cert_sig"`
	CreatedAt time.Time `json:"created_at"`
	IsRevoked bool      `json:"is_revoked"`
	RevokedAt time.Time `json:"revoked_at,omitempty"`
}

type DeviceRevocation struct {
	IdentityID string    `json:"identity_id"`
	DeviceID   string    `json:"device_id"`
	Timestamp  time.Time `json:"timestamp"`
	Signature  []byte    `json:"signature"`
}

type MessageStatus struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}
