//goland:noinspection GoNameStartsWithPackageName
package group

import groupmodel "aim-chat/go-backend/internal/domains/group/model"

//goland:noinspection GoNameStartsWithPackageName
type GroupMemberRole = groupmodel.GroupMemberRole

//goland:noinspection GoNameStartsWithPackageName
const (
	GroupMemberRoleOwner = groupmodel.GroupMemberRoleOwner
	GroupMemberRoleAdmin = groupmodel.GroupMemberRoleAdmin
	GroupMemberRoleUser  = groupmodel.GroupMemberRoleUser
)

//goland:noinspection GoNameStartsWithPackageName
type GroupMemberStatus = groupmodel.GroupMemberStatus

//goland:noinspection GoNameStartsWithPackageName
const (
	GroupMemberStatusInvited = groupmodel.GroupMemberStatusInvited
	GroupMemberStatusActive  = groupmodel.GroupMemberStatusActive
	GroupMemberStatusLeft    = groupmodel.GroupMemberStatusLeft
	GroupMemberStatusRemoved = groupmodel.GroupMemberStatusRemoved
)

var (
	ErrInvalidGroupID                     = groupmodel.ErrInvalidGroupID
	ErrInvalidGroupMemberID               = groupmodel.ErrInvalidGroupMemberID
	ErrInvalidGroupMemberRole             = groupmodel.ErrInvalidGroupMemberRole
	ErrInvalidGroupMemberStatus           = groupmodel.ErrInvalidGroupMemberStatus
	ErrInvalidGroupMemberStatusTransition = groupmodel.ErrInvalidGroupMemberStatusTransition
	ErrInvalidGroupEventID                = groupmodel.ErrInvalidGroupEventID
	ErrInvalidGroupEventType              = groupmodel.ErrInvalidGroupEventType
	ErrInvalidGroupEventVersion           = groupmodel.ErrInvalidGroupEventVersion
	ErrInvalidGroupEventActorID           = groupmodel.ErrInvalidGroupEventActorID
	ErrInvalidGroupEventPayload           = groupmodel.ErrInvalidGroupEventPayload
	ErrGroupOperationDisallowed           = groupmodel.ErrGroupOperationDisallowed
	ErrDMLeaveForbidden                   = groupmodel.ErrDMLeaveForbidden
	ErrGroupLeaveForbidden                = groupmodel.ErrGroupLeaveForbidden
	ErrSingleMemberLeaveRejected          = groupmodel.ErrSingleMemberLeaveRejected
	ErrInvalidConsentEntity               = groupmodel.ErrInvalidConsentEntity
	ErrInvalidConsentState                = groupmodel.ErrInvalidConsentState
	ErrDMPolicyLocked                     = groupmodel.ErrDMPolicyLocked
	ErrGroupEpochTooStale                 = groupmodel.ErrGroupEpochTooStale
	ErrGroupMaybeForked                   = groupmodel.ErrGroupMaybeForked
	ErrGroupPausedOnVersionGate           = groupmodel.ErrGroupPausedOnVersionGate
	ErrOutOfOrderGroupEvent               = groupmodel.ErrOutOfOrderGroupEvent
)

//goland:noinspection GoNameStartsWithPackageName
type Group = groupmodel.Group

//goland:noinspection GoNameStartsWithPackageName
type GroupMember = groupmodel.GroupMember

func ParseGroupMemberRole(raw string) (GroupMemberRole, error) {
	return groupmodel.ParseGroupMemberRole(raw)
}

func NormalizeGroupMemberID(memberID string) (string, error) {
	return groupmodel.NormalizeGroupMemberID(memberID)
}

func ParseGroupMemberStatus(raw string) (GroupMemberStatus, error) {
	return groupmodel.ParseGroupMemberStatus(raw)
}

func ValidateGroupMember(member GroupMember) error {
	return groupmodel.ValidateGroupMember(member)
}

func ValidateGroupMemberStatusTransition(from, to GroupMemberStatus) error {
	return groupmodel.ValidateGroupMemberStatusTransition(from, to)
}

//goland:noinspection GoNameStartsWithPackageName
type GroupEventType = groupmodel.GroupEventType

//goland:noinspection GoNameStartsWithPackageName
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
)

//goland:noinspection GoNameStartsWithPackageName
type ConversationType = groupmodel.ConversationType

//goland:noinspection GoNameStartsWithPackageName
const (
	ConversationTypeGroup         = groupmodel.ConversationTypeGroup
	ConversationTypeDirectMessage = groupmodel.ConversationTypeDirectMessage
	ConversationTypeSync          = groupmodel.ConversationTypeSync
)

//goland:noinspection GoNameStartsWithPackageName
type GroupMembershipState = groupmodel.GroupMembershipState

//goland:noinspection GoNameStartsWithPackageName
type ConsentState = groupmodel.ConsentState

//goland:noinspection GoNameStartsWithPackageName
type ForkDetail = groupmodel.ForkDetail

//goland:noinspection GoNameStartsWithPackageName
type ConsentEntityType = groupmodel.ConsentEntityType

//goland:noinspection GoNameStartsWithPackageName
type ConsentRecord = groupmodel.ConsentRecord

const (
	ConsentEntityInboxID        = groupmodel.ConsentEntityInboxID
	ConsentEntityConversationID = groupmodel.ConsentEntityConversationID
	ConsentEntityAddress        = groupmodel.ConsentEntityAddress

	ConsentStateUnknown = groupmodel.ConsentStateUnknown
	ConsentStateAllowed = groupmodel.ConsentStateAllowed
	ConsentStateDenied  = groupmodel.ConsentStateDenied
)

func ConsentKey(entityType ConsentEntityType, entityID string) string {
	return groupmodel.ConsentKey(entityType, entityID)
}

func ParseConsentEntityType(raw string) (ConsentEntityType, error) {
	return groupmodel.ParseConsentEntityType(raw)
}

func ParseConsentState(raw string) (ConsentState, error) {
	return groupmodel.ParseConsentState(raw)
}

//goland:noinspection GoNameStartsWithPackageName
type Installation = groupmodel.Installation

//goland:noinspection GoNameStartsWithPackageName
type KeyPackage = groupmodel.KeyPackage

var (
	ErrInvalidInstallationID  = groupmodel.ErrInvalidInstallationID
	ErrInvalidKeyPackageID    = groupmodel.ErrInvalidKeyPackageID
	ErrKeyPackageExpired      = groupmodel.ErrKeyPackageExpired
	ErrKeyPackageAlreadyUsed  = groupmodel.ErrKeyPackageAlreadyUsed
	ErrKeyPackageCredentialID = groupmodel.ErrKeyPackageCredentialID
)

const DefaultKeyPackageLifetime = groupmodel.DefaultKeyPackageLifetime

func ValidateKeyPackage(kp KeyPackage) error {
	return groupmodel.ValidateKeyPackage(kp)
}

//goland:noinspection GoNameStartsWithPackageName
type Intent = groupmodel.Intent

//goland:noinspection GoNameStartsWithPackageName
type IntentKind = groupmodel.IntentKind

//goland:noinspection GoNameStartsWithPackageName
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
)

//goland:noinspection GoNameStartsWithPackageName
type IntentState = groupmodel.IntentState

//goland:noinspection GoNameStartsWithPackageName
const (
	IntentStateToPublish = groupmodel.IntentStateToPublish
	IntentStatePublished = groupmodel.IntentStatePublished
	IntentStateCommitted = groupmodel.IntentStateCommitted
	IntentStateError     = groupmodel.IntentStateError
)

var (
	ErrInvalidIntentID    = groupmodel.ErrInvalidIntentID
	ErrInvalidIntentKind  = groupmodel.ErrInvalidIntentKind
	ErrInvalidIntentState = groupmodel.ErrInvalidIntentState
	ErrIntentStuck        = groupmodel.ErrIntentStuck
)

func ValidateIntent(intent Intent) error {
	return groupmodel.ValidateIntent(intent)
}

func ValidateIntentStateTransition(from, to IntentState) error {
	return groupmodel.ValidateIntentStateTransition(from, to)
}

//goland:noinspection GoNameStartsWithPackageName
type GroupEvent = groupmodel.GroupEvent

type AdminListAction = groupmodel.AdminListAction

//goland:noinspection GoNameStartsWithPackageName
type GroupState = groupmodel.GroupState

func NewGroupState(group Group) GroupState {
	return groupmodel.NewGroupState(group)
}

func ParseGroupEventType(raw string) (GroupEventType, error) {
	return groupmodel.ParseGroupEventType(raw)
}

func ValidateGroupEvent(event GroupEvent) error {
	return groupmodel.ValidateGroupEvent(event)
}

func ApplyGroupEvent(state *GroupState, event GroupEvent) (bool, error) {
	return groupmodel.ApplyGroupEvent(state, event)
}

//goland:noinspection GoNameStartsWithPackageName
type GroupMessageRecipientStatus = groupmodel.GroupMessageRecipientStatus

//goland:noinspection GoNameStartsWithPackageName
type GroupMessageFanoutResult = groupmodel.GroupMessageFanoutResult

//goland:noinspection GoNameStartsWithPackageName
type TooManyCharactersError = groupmodel.TooManyCharactersError

//goland:noinspection GoNameStartsWithPackageName
type GroupPausedError = groupmodel.GroupPausedError

const (
	MaxGroupNameLength        = groupmodel.MaxGroupNameLength
	MaxGroupDescriptionLength = groupmodel.MaxGroupDescriptionLength
	MaxImageURLLength         = groupmodel.MaxImageURLLength
	MaxAppDataBytes           = groupmodel.MaxAppDataBytes
)

func ValidateGroupMetadataAttributes(g Group) error {
	return groupmodel.ValidateGroupMetadataAttributes(g)
}
