package usecase

import (
	"strings"
	"time"

	"aim-chat/go-backend/pkg/models"
)

type GroupMessageWireMeta struct {
	GroupID           string
	EventID           string
	MembershipVersion uint64
	GroupKeyVersion   uint32
	SenderDeviceID    string
}

// GroupMessageFanoutService sends an application message to a group: one
// stored message, one sealed publish to the group's content topic. Every
// member reads it from the shared topic, so unlike a 1:1 conversation there
// is no per-recipient envelope; the Recipients list in the result reports
// the roster the publish was addressed to and mirrors the single publish
// outcome.
type GroupMessageFanoutService struct {
	States map[string]GroupState
	Abuse  *AbuseProtection

	// ProtocolVersion overrides the build's LocalProtocolVersion when set,
	// for the min-version pause gate on sends.
	ProtocolVersion string

	IdentityID      func() string
	GenerateID      func(prefix string) (string, error)
	ActiveDeviceID  func() (string, error)
	Now             func() time.Time
	IsBlockedSender func(string) bool
	GetMessage      func(string) (models.Message, bool)
	SaveMessage     func(models.Message) error

	// PublishSealed seals the stored message against the group's current
	// epoch secret and broadcasts it to the group's content topic.
	PublishSealed func(msg models.Message, meta GroupMessageWireMeta) error
	// QueueRetry hands a message whose publish failed to the background
	// retry worker; the message stays persisted with delivery status
	// pending so a restart replays it.
	QueueRetry   func(msg models.Message, publishErr error) error
	UpdateStatus func(messageID, status string) error

	RecordError        func(category string, err error)
	NotifyGroupMessage func(groupID string, msg models.Message)
}

func (s *GroupMessageFanoutService) SendGroupMessageFanout(groupID, eventID, content, threadID string) (GroupMessageFanoutResult, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return GroupMessageFanoutResult{}, err
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		if s.GenerateID == nil {
			return GroupMessageFanoutResult{}, ErrInvalidGroupMessageContent
		}
		generated, genErr := s.GenerateID("gevtmsg")
		if genErr != nil {
			return GroupMessageFanoutResult{}, genErr
		}
		eventID = generated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return GroupMessageFanoutResult{}, ErrInvalidGroupMessageContent
	}
	threadID = strings.TrimSpace(threadID)
	if s.IdentityID == nil {
		return GroupMessageFanoutResult{}, ErrInvalidGroupMemberID
	}
	actorID := strings.TrimSpace(s.IdentityID())
	if actorID == "" {
		return GroupMessageFanoutResult{}, ErrInvalidGroupMemberID
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	if s.Abuse != nil && !s.Abuse.AllowSend(actorID, now) {
		return GroupMessageFanoutResult{}, ErrGroupRateLimitExceeded
	}
	if s.ActiveDeviceID == nil {
		return GroupMessageFanoutResult{}, ErrInvalidGroupEventPayload
	}
	deviceID, err := s.ActiveDeviceID()
	if err != nil {
		return GroupMessageFanoutResult{}, err
	}

	state, ok := s.States[groupID]
	if !ok {
		return GroupMessageFanoutResult{}, ErrGroupNotFound
	}
	localVersion := s.ProtocolVersion
	if localVersion == "" {
		localVersion = LocalProtocolVersion
	}
	if err := EnforceMinVersionGate(state, localVersion); err != nil {
		return GroupMessageFanoutResult{}, err
	}
	actor, ok := state.Members[actorID]
	if !ok || actor.Status != GroupMemberStatusActive {
		return GroupMessageFanoutResult{}, ErrGroupPermissionDenied
	}
	groupKeyVersion := state.LastKeyVersion
	if groupKeyVersion == 0 {
		groupKeyVersion = 1
	}

	recipients := make([]string, 0, len(state.Members))
	for memberID, member := range state.Members {
		if memberID == actorID || member.Status != GroupMemberStatusActive {
			continue
		}
		if s.IsBlockedSender != nil && s.IsBlockedSender(memberID) {
			continue
		}
		recipients = append(recipients, memberID)
	}

	messageID := DeriveRecipientMessageID(eventID, actorID)
	if existing, exists := s.lookupMessage(messageID); exists {
		// Duplicate send for the same event id: report the stored outcome
		// without publishing a second envelope.
		return s.resultForStatus(groupID, eventID, recipients, existing.Status, true), nil
	}

	msg := models.Message{
		ID:               messageID,
		ContactID:        actorID,
		ConversationID:   groupID,
		ConversationType: models.ConversationTypeGroup,
		ThreadID:         threadID,
		Content:          []byte(content),
		Timestamp:        now,
		Direction:        "out",
		Status:           "pending",
		ContentType:      "text",
	}
	if s.SaveMessage == nil {
		return GroupMessageFanoutResult{}, ErrGroupNotFound
	}
	if err := s.SaveMessage(msg); err != nil {
		if s.RecordError != nil {
			s.RecordError("storage", err)
		}
		return GroupMessageFanoutResult{}, err
	}

	status := "sent"
	if s.PublishSealed != nil {
		if publishErr := s.PublishSealed(msg, GroupMessageWireMeta{
			GroupID:           groupID,
			EventID:           eventID,
			MembershipVersion: state.Version,
			GroupKeyVersion:   groupKeyVersion,
			SenderDeviceID:    deviceID,
		}); publishErr != nil {
			if s.RecordError != nil {
				s.RecordError("network", publishErr)
			}
			status = "pending"
			if s.QueueRetry != nil {
				if qErr := s.QueueRetry(msg, publishErr); qErr != nil && s.RecordError != nil {
					s.RecordError("storage", qErr)
				}
			}
		}
	}
	if status == "sent" && s.UpdateStatus != nil {
		if err := s.UpdateStatus(messageID, status); err != nil && s.RecordError != nil {
			s.RecordError("storage", err)
		}
	}
	msg.Status = status
	if s.NotifyGroupMessage != nil {
		s.NotifyGroupMessage(groupID, msg)
	}
	return s.resultForStatus(groupID, eventID, recipients, status, false), nil
}

func (s *GroupMessageFanoutService) lookupMessage(messageID string) (models.Message, bool) {
	if s.GetMessage == nil {
		return models.Message{}, false
	}
	return s.GetMessage(messageID)
}

func (s *GroupMessageFanoutService) resultForStatus(groupID, eventID string, recipients []string, status string, duplicate bool) GroupMessageFanoutResult {
	result := GroupMessageFanoutResult{
		GroupID:    groupID,
		EventID:    eventID,
		Attempted:  len(recipients),
		Recipients: make([]GroupMessageRecipientStatus, 0, len(recipients)),
	}
	for _, recipientID := range recipients {
		result.Recipients = append(result.Recipients, GroupMessageRecipientStatus{
			RecipientID: recipientID,
			MessageID:   DeriveRecipientMessageID(eventID, recipientID),
			Status:      status,
			Duplicate:   duplicate,
		})
	}
	switch status {
	case "pending":
		result.Pending = len(recipients)
	case "failed":
		result.Failed = len(recipients)
	default:
		result.Delivered = len(recipients)
	}
	return result
}
