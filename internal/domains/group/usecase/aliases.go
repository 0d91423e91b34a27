package usecase

import (
	groupmodel "aim-chat/go-backend/internal/domains/group/model"
	grouppolicy "aim-chat/go-backend/internal/domains/group/policy"
)

type Group = groupmodel.Group
type GroupMember = groupmodel.GroupMember
type GroupState = groupmodel.GroupState
type GroupEvent = groupmodel.GroupEvent
type GroupEventType = groupmodel.GroupEventType
type GroupMemberRole = groupmodel.GroupMemberRole
type GroupMemberStatus = groupmodel.GroupMemberStatus
type GroupMessageRecipientStatus = groupmodel.GroupMessageRecipientStatus
type GroupMessageFanoutResult = groupmodel.GroupMessageFanoutResult
type TooManyCharactersError = groupmodel.TooManyCharactersError

const (
	MaxGroupNameLength        = groupmodel.MaxGroupNameLength
	MaxGroupDescriptionLength = groupmodel.MaxGroupDescriptionLength
	MaxImageURLLength         = groupmodel.MaxImageURLLength
	MaxAppDataBytes           = groupmodel.MaxAppDataBytes
)

const (
	GroupEventTypeMemberAdd        = groupmodel.GroupEventTypeMemberAdd
	GroupEventTypeMemberRemove     = groupmodel.GroupEventTypeMemberRemove
	GroupEventTypeMemberLeave      = groupmodel.GroupEventTypeMemberLeave
	GroupEventTypeTitleChange      = groupmodel.GroupEventTypeTitleChange
	GroupEventTypeKeyRotate        = groupmodel.GroupEventTypeKeyRotate
	GroupEventTypeMetadataUpdate   = groupmodel.GroupEventTypeMetadataUpdate
	GroupEventTypeAdminListChange  = groupmodel.GroupEventTypeAdminListChange
	GroupEventTypePermissionUpdate = groupmodel.GroupEventTypePermissionUpdate
	GroupEventTypeLeaveRequest     = groupmodel.GroupEventTypeLeaveRequest
	GroupEventTypeProfileChange    = groupmodel.GroupEventTypeProfileChange
)

type AdminListAction = groupmodel.AdminListAction

const (
	AdminListActionPromoteAdmin      = groupmodel.AdminListActionPromoteAdmin
	AdminListActionDemoteAdmin       = groupmodel.AdminListActionDemoteAdmin
	AdminListActionPromoteSuperAdmin = groupmodel.AdminListActionPromoteSuperAdmin
	AdminListActionDemoteSuperAdmin  = groupmodel.AdminListActionDemoteSuperAdmin
)

type ForkDetail = groupmodel.ForkDetail

const DefaultMaxPastEpochs = groupmodel.DefaultMaxPastEpochs

type ConversationType = groupmodel.ConversationType

const (
	ConversationTypeGroup         = groupmodel.ConversationTypeGroup
	ConversationTypeDirectMessage = groupmodel.ConversationTypeDirectMessage
	ConversationTypeSync          = groupmodel.ConversationTypeSync
)

type GroupMembershipState = groupmodel.GroupMembershipState

const (
	GroupMembershipStateAllowed       = groupmodel.GroupMembershipStateAllowed
	GroupMembershipStatePending       = groupmodel.GroupMembershipStatePending
	GroupMembershipStatePendingRemove = groupmodel.GroupMembershipStatePendingRemove
	GroupMembershipStateRejected      = groupmodel.GroupMembershipStateRejected
)

type ConsentState = groupmodel.ConsentState

const (
	ConsentStateUnknown = groupmodel.ConsentStateUnknown
	ConsentStateAllowed = groupmodel.ConsentStateAllowed
	ConsentStateDenied  = groupmodel.ConsentStateDenied
)

type ConsentEntityType = groupmodel.ConsentEntityType
type ConsentRecord = groupmodel.ConsentRecord

const (
	ConsentEntityInboxID        = groupmodel.ConsentEntityInboxID
	ConsentEntityConversationID = groupmodel.ConsentEntityConversationID
	ConsentEntityAddress        = groupmodel.ConsentEntityAddress
)

func ConsentKey(entityType ConsentEntityType, entityID string) string {
	return groupmodel.ConsentKey(entityType, entityID)
}

func ValidateConsentRecord(r ConsentRecord) error {
	return groupmodel.ValidateConsentRecord(r)
}

type Installation = groupmodel.Installation
type KeyPackage = groupmodel.KeyPackage
type Intent = groupmodel.Intent
type IntentKind = groupmodel.IntentKind
type IntentState = groupmodel.IntentState

const (
	IntentKindSendMessage      = groupmodel.IntentKindSendMessage
	IntentKindMetadataUpdate   = groupmodel.IntentKindMetadataUpdate
	IntentKindAddMembers       = groupmodel.IntentKindAddMembers
	IntentKindRemoveMembers    = groupmodel.IntentKindRemoveMembers
	IntentKindKeyUpdate        = groupmodel.IntentKindKeyUpdate
	IntentKindAdminListUpdate  = groupmodel.IntentKindAdminListUpdate
	IntentKindUpdatePermission = groupmodel.IntentKindUpdatePermission
	IntentKindSelfLeave        = groupmodel.IntentKindSelfLeave
	IntentKindAdminRemove      = groupmodel.IntentKindAdminRemove

	IntentStateToPublish = groupmodel.IntentStateToPublish
	IntentStatePublished = groupmodel.IntentStatePublished
	IntentStateCommitted = groupmodel.IntentStateCommitted
	IntentStateError     = groupmodel.IntentStateError

	MaxIntentPublishAttempts = groupmodel.MaxIntentPublishAttempts

	DefaultKeyPackageLifetime = groupmodel.DefaultKeyPackageLifetime
)

type PolicySet = grouppolicy.PolicySet
type PermissionOperation = grouppolicy.PermissionOperation
type PermissionOption = grouppolicy.PermissionOption

const (
	PermissionOperationAddMember         = grouppolicy.PermissionOperationAddMember
	PermissionOperationRemoveMember      = grouppolicy.PermissionOperationRemoveMember
	PermissionOperationAddAdmin          = grouppolicy.PermissionOperationAddAdmin
	PermissionOperationRemoveAdmin       = grouppolicy.PermissionOperationRemoveAdmin
	PermissionOperationUpdateMetadata    = grouppolicy.PermissionOperationUpdateMetadata
	PermissionOperationUpdatePermissions = grouppolicy.PermissionOperationUpdatePermissions
)

const (
	GroupMemberRoleOwner = groupmodel.GroupMemberRoleOwner
	GroupMemberRoleAdmin = groupmodel.GroupMemberRoleAdmin
	GroupMemberRoleUser  = groupmodel.GroupMemberRoleUser
)

const (
	GroupMemberStatusInvited = groupmodel.GroupMemberStatusInvited
	GroupMemberStatusActive  = groupmodel.GroupMemberStatusActive
	GroupMemberStatusLeft    = groupmodel.GroupMemberStatusLeft
	GroupMemberStatusRemoved = groupmodel.GroupMemberStatusRemoved
)

var (
	ErrInvalidGroupMemberID       = groupmodel.ErrInvalidGroupMemberID
	ErrInvalidGroupEventPayload   = groupmodel.ErrInvalidGroupEventPayload
	ErrGroupNotFound              = groupmodel.ErrGroupNotFound
	ErrGroupMembershipNotFound    = groupmodel.ErrGroupMembershipNotFound
	ErrGroupPermissionDenied      = groupmodel.ErrGroupPermissionDenied
	ErrGroupCannotInviteSelf      = groupmodel.ErrGroupCannotInviteSelf
	ErrGroupMemberBlocked         = groupmodel.ErrGroupMemberBlocked
	ErrGroupSenderBlocked         = groupmodel.ErrGroupSenderBlocked
	ErrInvalidGroupMemberState    = groupmodel.ErrInvalidGroupMemberState
	ErrGroupRateLimitExceeded     = groupmodel.ErrGroupRateLimitExceeded
	ErrInvalidGroupMessageContent = groupmodel.ErrInvalidGroupMessageContent
	ErrGroupOperationDisallowed   = groupmodel.ErrGroupOperationDisallowed
	ErrDMLeaveForbidden           = groupmodel.ErrDMLeaveForbidden
	ErrGroupLeaveForbidden        = groupmodel.ErrGroupLeaveForbidden
	ErrSingleMemberLeaveRejected  = groupmodel.ErrSingleMemberLeaveRejected
	ErrDMMembershipInvariant      = groupmodel.ErrDMMembershipInvariant
	ErrDMPolicyLocked             = groupmodel.ErrDMPolicyLocked
	ErrGroupMaybeForked           = groupmodel.ErrGroupMaybeForked
	ErrGroupEpochTooStale         = groupmodel.ErrGroupEpochTooStale
	ErrGroupPausedOnVersionGate   = groupmodel.ErrGroupPausedOnVersionGate
	ErrIntentStuck                = groupmodel.ErrIntentStuck
	ErrInvalidIntentKind          = groupmodel.ErrInvalidIntentKind
)

func NormalizeGroupID(groupID string) (string, error) {
	return groupmodel.NormalizeGroupID(groupID)
}

func NormalizeGroupTitle(title string) (string, error) {
	return groupmodel.NormalizeGroupTitle(title)
}

func NormalizeGroupMemberID(memberID string) (string, error) {
	return groupmodel.NormalizeGroupMemberID(memberID)
}

func ParseGroupEventType(raw string) (GroupEventType, error) {
	return groupmodel.ParseGroupEventType(raw)
}

func ParseGroupMemberRole(raw string) (GroupMemberRole, error) {
	return groupmodel.ParseGroupMemberRole(raw)
}

func ValidateGroupEvent(event GroupEvent) error {
	return groupmodel.ValidateGroupEvent(event)
}

func NewGroupState(group Group) GroupState {
	return groupmodel.NewGroupState(group)
}

func ApplyGroupEvent(state *GroupState, event GroupEvent) (bool, error) {
	return groupmodel.ApplyGroupEvent(state, event)
}

type AbuseProtection = grouppolicy.AbuseProtection

type InboundGroupMessageRejectReason = grouppolicy.InboundGroupMessageRejectReason

const (
	InboundGroupMessageReasonMembershipVersionMismatch = grouppolicy.InboundGroupMessageReasonMembershipVersionMismatch
	InboundGroupMessageReasonGroupKeyVersionMismatch   = grouppolicy.InboundGroupMessageReasonGroupKeyVersionMismatch
	InboundGroupMessageReasonFutureEpoch               = grouppolicy.InboundGroupMessageReasonFutureEpoch
	InboundGroupMessageReasonEpochTooStale             = grouppolicy.InboundGroupMessageReasonEpochTooStale
)

func ValidateInboundGroupMessageState(
	state GroupState,
	senderID string,
	membershipVersion uint64,
	groupKeyVersion uint32,
	maxPastEpochs uint32,
) (InboundGroupMessageRejectReason, error) {
	return grouppolicy.ValidateInboundGroupMessageState(state, senderID, membershipVersion, groupKeyVersion, maxPastEpochs)
}

func EnsureInboundEventState(
	states map[string]GroupState,
	event GroupEvent,
	localIdentityID string,
) (GroupState, error) {
	return grouppolicy.EnsureInboundEventState(states, event, localIdentityID)
}

func DeriveRecipientMessageID(eventID, recipientID string) string {
	return grouppolicy.DeriveRecipientMessageID(eventID, recipientID)
}

func CorrelationID(groupID, eventID string) string {
	return grouppolicy.CorrelationID(groupID, eventID)
}

func ValidateKeyPackage(kp KeyPackage) error {
	return groupmodel.ValidateKeyPackage(kp)
}

func ValidateIntent(intent Intent) error {
	return groupmodel.ValidateIntent(intent)
}

func ValidateIntentStateTransition(from, to IntentState) error {
	return groupmodel.ValidateIntentStateTransition(from, to)
}

func ValidateGroupMetadataAttributes(g Group) error {
	return groupmodel.ValidateGroupMetadataAttributes(g)
}

func CanonicalDMID(inboxA, inboxB string) string {
	return grouppolicy.CanonicalDMID(inboxA, inboxB)
}

func ValidateDMInvariants(state GroupState) error {
	return grouppolicy.ValidateDMInvariants(state)
}

func EvaluateDMPermission(op PermissionOperation) error {
	return grouppolicy.EvaluateDMPermission(op)
}

func DefaultPolicySet() PolicySet {
	return grouppolicy.DefaultPolicySet()
}

func AdminsOnlyPolicySet() PolicySet {
	return grouppolicy.AdminsOnlyPolicySet()
}

func EvaluatePermission(state GroupState, policySet PolicySet, actorID string, op PermissionOperation) error {
	return grouppolicy.EvaluatePermission(state, policySet, actorID, op)
}

func ValidatePolicySet(p PolicySet) error {
	return grouppolicy.ValidatePolicySet(p)
}

func RoleForActor(state GroupState, actorID string) grouppolicy.ActorRole {
	return grouppolicy.RoleForActor(state, actorID)
}

func EnforceMinVersionGate(state GroupState, localProtocolVersion string) error {
	return grouppolicy.EnforceMinVersionGate(state, localProtocolVersion)
}

func CompareSemVer(a, b string) int {
	return grouppolicy.CompareSemVer(a, b)
}

func PauseStateForVersion(state GroupState, localProtocolVersion string) string {
	return grouppolicy.PauseStateForVersion(state, localProtocolVersion)
}

type GroupPausedError = groupmodel.GroupPausedError

const LocalProtocolVersion = grouppolicy.LocalProtocolVersion
