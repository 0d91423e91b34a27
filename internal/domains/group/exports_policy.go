package group

import (
	grouppolicy "aim-chat/go-backend/internal/domains/group/policy"
	"time"
)

type AbuseProtection = grouppolicy.AbuseProtection

func NewAbuseProtectionFromEnv() *AbuseProtection {
	return grouppolicy.NewAbuseProtectionFromEnv()
}

type InboundGroupMessageRejectReason = grouppolicy.InboundGroupMessageRejectReason

const (
	ReplayWindow = grouppolicy.ReplayWindow
)

func BuildReplayGuardKey(kind, groupID, senderDeviceID, uniqueID string) (string, error) {
	return grouppolicy.BuildReplayGuardKey(kind, groupID, senderDeviceID, uniqueID)
}

func ValidateReplayOccurredAt(occurredAt, now time.Time) error {
	return grouppolicy.ValidateReplayOccurredAt(occurredAt, now)
}

//goland:noinspection GoNameStartsWithPackageName
type PermissionOption = grouppolicy.PermissionOption

//goland:noinspection GoNameStartsWithPackageName
const (
	PermissionOptionAllow          = grouppolicy.PermissionOptionAllow
	PermissionOptionAdminOnly      = grouppolicy.PermissionOptionAdminOnly
	PermissionOptionSuperAdminOnly = grouppolicy.PermissionOptionSuperAdminOnly
	PermissionOptionDeny           = grouppolicy.PermissionOptionDeny
)

//goland:noinspection GoNameStartsWithPackageName
type PermissionOperation = grouppolicy.PermissionOperation

//goland:noinspection GoNameStartsWithPackageName
const (
	PermissionOperationAddMember         = grouppolicy.PermissionOperationAddMember
	PermissionOperationRemoveMember      = grouppolicy.PermissionOperationRemoveMember
	PermissionOperationAddAdmin          = grouppolicy.PermissionOperationAddAdmin
	PermissionOperationRemoveAdmin       = grouppolicy.PermissionOperationRemoveAdmin
	PermissionOperationUpdateMetadata    = grouppolicy.PermissionOperationUpdateMetadata
	PermissionOperationUpdatePermissions = grouppolicy.PermissionOperationUpdatePermissions
)

//goland:noinspection GoNameStartsWithPackageName
type PolicySet = grouppolicy.PolicySet

//goland:noinspection GoNameStartsWithPackageName
type ActorRole = grouppolicy.ActorRole

func DefaultPolicySet() PolicySet {
	return grouppolicy.DefaultPolicySet()
}

func AdminsOnlyPolicySet() PolicySet {
	return grouppolicy.AdminsOnlyPolicySet()
}

func RoleForActor(state GroupState, actorID string) ActorRole {
	return grouppolicy.RoleForActor(state, actorID)
}

func EvaluatePermission(state GroupState, policySet PolicySet, actorID string, op PermissionOperation) error {
	return grouppolicy.EvaluatePermission(state, policySet, actorID, op)
}

func ValidatePolicySet(p PolicySet) error {
	return grouppolicy.ValidatePolicySet(p)
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

func CompareSemVer(a, b string) int {
	return grouppolicy.CompareSemVer(a, b)
}

func PauseStateForVersion(state GroupState, localProtocolVersion string) string {
	return grouppolicy.PauseStateForVersion(state, localProtocolVersion)
}

const LocalProtocolVersion = grouppolicy.LocalProtocolVersion

func EnforceMinVersionGate(state GroupState, localProtocolVersion string) error {
	return grouppolicy.EnforceMinVersionGate(state, localProtocolVersion)
}
