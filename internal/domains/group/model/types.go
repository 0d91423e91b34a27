package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGroupNotFound                    = errors.New("group not found")
	ErrInvalidGroupTitle                = errors.New("group title is required")
	ErrGroupMembershipNotFound          = errors.New("group membership not found")
	ErrGroupPermissionDenied            = errors.New("group permission denied")
	ErrGroupCannotInviteSelf            = errors.New("cannot invite self to group")
	ErrGroupMemberBlocked               = errors.New("group member is blocked")
	ErrGroupSenderBlocked               = errors.New("group sender is blocked")
	ErrInvalidGroupMemberState          = errors.New("invalid group member state")
	ErrGroupRateLimitExceeded           = errors.New("group operation rate limit exceeded")
	ErrGroupMemberLimitExceeded         = errors.New("group member limit exceeded")
	ErrGroupPendingInvitesLimitExceeded = errors.New("group pending invites limit exceeded")

	ErrGroupOperationDisallowed  = errors.New("operation disallowed by group policy")
	ErrDMLeaveForbidden          = errors.New("cannot leave a direct message conversation")
	ErrGroupLeaveForbidden       = errors.New("the sole super-admin cannot leave the group")
	ErrSingleMemberLeaveRejected = errors.New("cannot leave a group with fewer than two members")
	ErrDMMembershipInvariant     = errors.New("direct message group membership invariant violated")
	ErrDMPolicyLocked            = errors.New("direct message group policy is immutable")
	ErrGroupMaybeForked          = errors.New("group state may have forked from remote epoch")
	ErrGroupEpochTooStale        = errors.New("message epoch is older than the accepted decryption window")
	ErrGroupPausedOnVersionGate  = errors.New("group is paused pending a minimum protocol version")
)

func NormalizeGroupID(groupID string) (string, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return "", ErrInvalidGroupID
	}
	return groupID, nil
}

func NormalizeGroupTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrInvalidGroupTitle
	}
	return title, nil
}

var ErrInvalidGroupMessageContent = errors.New("group message content is required")

// TooManyCharactersError reports a mutable metadata attribute that exceeded
// its length cap (see ValidateGroupMetadataAttributes). Length and Limit are
// both measured in the same unit the field is capped in: runes for the text
// attributes, bytes for app_data.
type TooManyCharactersError struct {
	Field  string
	Length int
	Limit  int
}

func (e *TooManyCharactersError) Error() string {
	return fmt.Sprintf("%s: %d characters exceeds limit of %d", e.Field, e.Length, e.Limit)
}

// GroupPausedError reports a group gated behind a minimum protocol version
// the local client has not reached, carrying the version the caller must
// update to. errors.Is(err, ErrGroupPausedOnVersionGate) matches it.
type GroupPausedError struct {
	RequiredVersion string
}

func (e *GroupPausedError) Error() string {
	return fmt.Sprintf("group is paused until client version %s", e.RequiredVersion)
}

func (e *GroupPausedError) Is(target error) bool {
	return target == ErrGroupPausedOnVersionGate
}

type GroupMessageRecipientStatus struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Duplicate   bool   `json:"duplicate"`
}

type GroupMessageFanoutResult struct {
	GroupID    string                        `json:"group_id"`
	EventID    string                        `json:"event_id"`
	Attempted  int                           `json:"attempted"`
	Delivered  int                           `json:"delivered"`
	Pending    int                           `json:"pending"`
	Failed     int                           `json:"failed"`
	Recipients []GroupMessageRecipientStatus `json:"recipients"`
}
