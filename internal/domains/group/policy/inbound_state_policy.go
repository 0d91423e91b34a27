package policy

import (
	"strings"
)

type InboundGroupMessageRejectReason string

const (
	InboundGroupMessageReasonUnauthorizedSender        InboundGroupMessageRejectReason = "unauthorized_sender"
	InboundGroupMessageReasonMembershipVersionMismatch InboundGroupMessageRejectReason = "membership_version_mismatch"
	InboundGroupMessageReasonGroupKeyVersionMismatch   InboundGroupMessageRejectReason = "group_key_version_mismatch"
	InboundGroupMessageReasonFutureEpoch               InboundGroupMessageRejectReason = "future_epoch"
	InboundGroupMessageReasonEpochTooStale             InboundGroupMessageRejectReason = "epoch_too_stale"
)

// ValidateInboundGroupMessageState admits or rejects an inbound application
// message against the group's current membership and key-schedule versions.
//
// maxPastEpochs is the decryption skew window: a sender may lag the local
// membership version by up to that many merged commits and still be
// accepted (its epoch's message key is still derivable). Zero means strict
// equality. A message from a FUTURE version is never accepted regardless of
// the window — the local replica cannot hold that key material yet, and a
// future version arriving through the ordered bulk path is the signature
// of a fork, so the caller gets ErrGroupMaybeForked to act on.
func ValidateInboundGroupMessageState(
	state GroupState,
	senderID string,
	membershipVersion uint64,
	groupKeyVersion uint32,
	maxPastEpochs uint32,
) (InboundGroupMessageRejectReason, error) {
	member, memberExists := state.Members[senderID]
	if !memberExists || member.Status != GroupMemberStatusActive {
		return InboundGroupMessageReasonUnauthorizedSender, ErrGroupPermissionDenied
	}
	if membershipVersion > state.Version {
		return InboundGroupMessageReasonFutureEpoch, ErrGroupMaybeForked
	}
	if state.Version-membershipVersion > uint64(maxPastEpochs) {
		if maxPastEpochs == 0 {
			return InboundGroupMessageReasonMembershipVersionMismatch, ErrOutOfOrderGroupEvent
		}
		return InboundGroupMessageReasonEpochTooStale, ErrGroupEpochTooStale
	}
	expectedGroupKeyVersion := state.LastKeyVersion
	if expectedGroupKeyVersion == 0 {
		expectedGroupKeyVersion = 1
	}
	if groupKeyVersion > expectedGroupKeyVersion {
		return InboundGroupMessageReasonFutureEpoch, ErrGroupMaybeForked
	}
	if expectedGroupKeyVersion-groupKeyVersion > maxPastEpochs {
		if maxPastEpochs == 0 {
			return InboundGroupMessageReasonGroupKeyVersionMismatch, ErrOutOfOrderGroupEvent
		}
		return InboundGroupMessageReasonEpochTooStale, ErrGroupEpochTooStale
	}
	return "", nil
}

func EnsureInboundEventState(
	states map[string]GroupState,
	event GroupEvent,
	localIdentityID string,
) (GroupState, error) {
	if state, ok := states[event.GroupID]; ok {
		return state, nil
	}
	localIdentityID = strings.TrimSpace(localIdentityID)
	if event.Type != GroupEventTypeMemberAdd || event.Version != 1 || event.MemberID != localIdentityID {
		return GroupState{}, ErrGroupNotFound
	}
	bootstrapGroup := Group{
		ID:        event.GroupID,
		Title:     event.GroupID,
		CreatedBy: event.ActorID,
		CreatedAt: event.OccurredAt,
		UpdatedAt: event.OccurredAt,
	}
	return NewGroupState(bootstrapGroup), nil
}
