package group

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"aim-chat/go-backend/internal/crypto"
	"aim-chat/go-backend/internal/waku"
)

// GroupWirePayload is the on-wire envelope for group traffic: commits
// (GroupEventTypeX changes), application messages, and welcomes all travel
// as the same shape, distinguished by Kind, so a single content-topic
// subscription can demultiplex all three. CreatedNS stands in for the
// server-assigned sequence cursor described by the sync design: this
// transport has no central sequencer, so the publish-time timestamp is the
// monotonic ordering key a receiver advances its per-group cursor against.
type GroupWirePayload struct {
	Kind              string `json:"kind"` // "commit", "message", or "welcome"
	GroupID           string `json:"group_id"`
	EventID           string `json:"event_id,omitempty"`
	EventType         string `json:"event_type,omitempty"`
	ActorID           string `json:"actor_id,omitempty"`
	MembershipVersion uint64 `json:"membership_version,omitempty"`
	GroupKeyVersion   uint32 `json:"group_key_version,omitempty"`
	SenderDeviceID    string `json:"sender_device_id,omitempty"`
	CreatedNS         int64  `json:"created_ns,omitempty"`
	Plain             []byte `json:"plain"`
}

// groupTransportNode is the minimal subset of the node-level transport a
// group-traffic adapter needs. It is satisfied by *waku.Node without
// importing the contracts package, which would cycle back into this one.
type groupTransportNode interface {
	PublishPrivate(ctx context.Context, msg waku.PrivateMessage) error
	SubscribePrivate(handler func(waku.PrivateMessage)) error
	FetchPrivateSince(ctx context.Context, recipient string, since time.Time, limit int) ([]waku.PrivateMessage, error)
}

// groupContentTopic addresses a group's traffic as a single logical
// recipient, independent of any one member's identity, since a group
// commit or application message fans out to every current member rather
// than to one peer.
func groupContentTopic(groupID string) string {
	return "group:" + strings.TrimSpace(groupID)
}

// WakuGroupTransport adapts the node-level private-message transport to
// the group domain's envelope shape, analogous to how the daemon service
// consumes contracts.TransportNode: the domain layer never talks to
// libp2p/Waku directly, only to this thin translation.
type WakuGroupTransport struct {
	Node       groupTransportNode
	SelfSender func() string
	Now        func() time.Time
}

// NewWakuGroupTransport wires a *waku.Node (or test double satisfying the
// same three methods) as the group domain's transport.
func NewWakuGroupTransport(node groupTransportNode, selfSender func() string) *WakuGroupTransport {
	return &WakuGroupTransport{Node: node, SelfSender: selfSender}
}

func (t *WakuGroupTransport) senderID() string {
	if t.SelfSender == nil {
		return ""
	}
	return t.SelfSender()
}

func (t *WakuGroupTransport) nowNS() int64 {
	if t.Now != nil {
		return t.Now().UTC().UnixNano()
	}
	return time.Now().UTC().UnixNano()
}

// PublishCommit broadcasts a merged (or about-to-be-merged) GroupEvent to
// every subscriber of the group's content topic. The event's mutable
// details travel in Plain using the same shape DecodeInboundGroupEvent
// expects on the receiving end; the envelope fields (EventID, EventType,
// MembershipVersion, ActorID) are carried redundantly so a receiver can
// route without first decoding Plain.
func (t *WakuGroupTransport) PublishCommit(ctx context.Context, event GroupEvent) error {
	details := inboundGroupEventPayload{
		MemberID:    event.MemberID,
		Role:        string(event.Role),
		Title:       event.Title,
		Description: event.Description,
		Avatar:      event.Avatar,
		KeyVersion:  event.KeyVersion,
		OccurredAt:  event.OccurredAt.UTC().Format(time.RFC3339Nano),

		AppData:                     event.AppData,
		MessageDisappearFromNs:      event.MessageDisappearFromNs,
		MessageDisappearInNs:        event.MessageDisappearInNs,
		MinSupportedProtocolVersion: event.MinSupportedProtocolVersion,
		AdminAction:                 string(event.AdminAction),
		AdminInboxID:                event.AdminInboxID,
		PolicySetJSON:               event.PolicySetJSON,
	}
	plain, err := json.Marshal(details)
	if err != nil {
		return err
	}
	payload := GroupWirePayload{
		Kind:              "commit",
		GroupID:           event.GroupID,
		EventID:           event.ID,
		EventType:         string(event.Type),
		ActorID:           event.ActorID,
		MembershipVersion: event.Version,
		CreatedNS:         t.nowNS(),
		Plain:             plain,
	}
	return t.publish(ctx, event.GroupID, payload)
}

// PublishApplicationMessage broadcasts an encrypted application message to
// the group's content topic.
func (t *WakuGroupTransport) PublishApplicationMessage(ctx context.Context, groupID, eventID, senderInboxID string, membershipVersion uint64, groupKeyVersion uint32, senderDeviceID string, ciphertext []byte) error {
	payload := GroupWirePayload{
		Kind:              "message",
		GroupID:           groupID,
		EventID:           eventID,
		ActorID:           senderInboxID,
		MembershipVersion: membershipVersion,
		GroupKeyVersion:   groupKeyVersion,
		SenderDeviceID:    senderDeviceID,
		CreatedNS:         t.nowNS(),
		Plain:             ciphertext,
	}
	return t.publish(ctx, groupID, payload)
}

// PublishWelcome addresses a welcome to a single invited installation
// rather than the group's shared topic, since only that installation
// should be able to decrypt it.
func (t *WakuGroupTransport) PublishWelcome(ctx context.Context, recipientInstallationID string, welcome WelcomeMessage) error {
	plain, err := json.Marshal(welcome)
	if err != nil {
		return err
	}
	payload := GroupWirePayload{
		Kind:      "welcome",
		GroupID:   welcome.GroupID,
		ActorID:   welcome.AddedByInboxID,
		CreatedNS: t.nowNS(),
		Plain:     plain,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return t.Node.PublishPrivate(ctx, waku.PrivateMessage{
		SenderID:  t.senderID(),
		Recipient: recipientInstallationID,
		Payload:   raw,
	})
}

func (t *WakuGroupTransport) publish(ctx context.Context, groupID string, payload GroupWirePayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return t.Node.PublishPrivate(ctx, waku.PrivateMessage{
		SenderID:  t.senderID(),
		Recipient: groupContentTopic(groupID),
		Payload:   raw,
	})
}

// FetchSince retrieves every envelope published to a group's content topic
// since the given time, decoding each back into a GroupWirePayload.
func (t *WakuGroupTransport) FetchSince(ctx context.Context, groupID string, since time.Time, limit int) ([]GroupWirePayload, error) {
	raw, err := t.Node.FetchPrivateSince(ctx, groupContentTopic(groupID), since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]GroupWirePayload, 0, len(raw))
	for _, msg := range raw {
		var payload GroupWirePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			continue
		}
		out = append(out, payload)
	}
	return out, nil
}

// FetchWelcomesSince retrieves every welcome addressed directly to the
// given installation id since the given time, mirroring FetchSince for the
// per-installation welcome topic instead of a group's shared topic.
func (t *WakuGroupTransport) FetchWelcomesSince(ctx context.Context, installationID string, since time.Time, limit int) ([]GroupWirePayload, error) {
	raw, err := t.Node.FetchPrivateSince(ctx, installationID, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]GroupWirePayload, 0, len(raw))
	for _, msg := range raw {
		var payload GroupWirePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			continue
		}
		if payload.Kind != "welcome" {
			continue
		}
		out = append(out, payload)
	}
	return out, nil
}

// sealedApplicationPayload is the wire form of an encrypted application
// message: the sealing epoch plus the AEAD nonce and ciphertext.
type sealedApplicationPayload struct {
	Epoch      uint64 `json:"epoch"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func applicationPayloadAAD(groupID string, epoch uint64) []byte {
	return append([]byte(groupID+"|app|"), byte(epoch>>56), byte(epoch>>48), byte(epoch>>40), byte(epoch>>32), byte(epoch>>24), byte(epoch>>16), byte(epoch>>8), byte(epoch))
}

// SealGroupApplicationPayload encrypts an application message's content
// under the group's committed epoch message key, binding group id and
// epoch into the associated data so a ciphertext can never be replayed
// into another group or epoch.
func SealGroupApplicationPayload(epoch crypto.GroupEpochSecret, plaintext []byte) ([]byte, error) {
	schedule := crypto.RestoreGroupKeySchedule(epoch)
	ciphertext, nonce, err := schedule.SealApplicationMessage(plaintext, applicationPayloadAAD(epoch.GroupID, epoch.Epoch))
	if err != nil {
		return nil, err
	}
	return json.Marshal(sealedApplicationPayload{Epoch: epoch.Epoch, Nonce: nonce, Ciphertext: ciphertext})
}

// OpenGroupApplicationPayload decrypts a sealed application payload with
// the group's committed epoch secret.
func OpenGroupApplicationPayload(epoch crypto.GroupEpochSecret, payload []byte) ([]byte, error) {
	var sealed sealedApplicationPayload
	if err := json.Unmarshal(payload, &sealed); err != nil {
		return nil, err
	}
	schedule := crypto.RestoreGroupKeySchedule(epoch)
	return schedule.OpenApplicationMessage(sealed.Ciphertext, sealed.Nonce, applicationPayloadAAD(epoch.GroupID, sealed.Epoch))
}

// DecodeWelcome unwraps a "welcome"-kind payload's Plain field back into
// the structured WelcomeMessage PublishWelcome serialized.
func DecodeWelcome(payload GroupWirePayload) (WelcomeMessage, error) {
	var welcome WelcomeMessage
	if err := json.Unmarshal(payload.Plain, &welcome); err != nil {
		return WelcomeMessage{}, err
	}
	return welcome, nil
}

// Subscribe registers handler for every private message the node delivers
// that decodes as a GroupWirePayload; messages that do not decode are
// dropped. It does not filter by group topic or recipient.
func (t *WakuGroupTransport) Subscribe(handler func(GroupWirePayload)) error {
	return t.Node.SubscribePrivate(func(msg waku.PrivateMessage) {
		var payload GroupWirePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		handler(payload)
	})
}
