package daemonservice

import (
	"encoding/json"
	"strings"

	groupdomain "aim-chat/go-backend/internal/domains/group"
)

// RotateKeyPackage refreshes an installation's rotation key package pool if
// it has drained to the low-water mark, the live entry point for the
// key-package half of the MLS pipeline wired up in group_runtime_support.go.
func (s *Service) RotateKeyPackage(installationID, inboxID string) (groupdomain.KeyPackage, bool, error) {
	kp, rotated, err := s.keyPackageManagerFor(installationID, inboxID).Rotate()
	if rotated {
		mlsKeyPackageRotations.Inc()
	}
	return kp, rotated, err
}

// PublishLastResortKeyPackage installs a fresh non-expiring key package for
// an installation, served only once its rotation pool is exhausted.
func (s *Service) PublishLastResortKeyPackage(installationID, inboxID string) (groupdomain.KeyPackage, error) {
	return s.keyPackageManagerFor(installationID, inboxID).PublishLastResort()
}

// FindOrCreateDM returns the existing direct-message group for the
// counterparty or creates it with the DM invariants locked in, issuing the
// counterparty's welcome on creation. The bool reports whether a new group
// was created.
func (s *Service) FindOrCreateDM(counterpartyInboxID, counterpartyInstallationID string) (groupdomain.Group, bool, error) {
	selfID := s.identityManager.GetIdentity().ID
	state, created, err := s.mutationService().FindOrCreateDM(selfID, counterpartyInboxID, counterpartyInstallationID, generateUUIDPrefixedID)
	if err != nil {
		return groupdomain.Group{}, created, err
	}
	return state.Group, created, nil
}

// AddGroupMemberMLS stages, publishes, and merges a member-add commit
// through the full mutation pipeline (permission check, intent queue,
// epoch-skew retry), then issues the invitee's welcome. role may be empty
// for a plain user add.
func (s *Service) AddGroupMemberMLS(groupID, memberID, installationID, role string) (groupdomain.GroupEvent, error) {
	memberRole := groupdomain.GroupMemberRoleUser
	if strings.TrimSpace(role) != "" {
		parsed, err := groupdomain.ParseGroupMemberRole(role)
		if err != nil {
			return groupdomain.GroupEvent{}, err
		}
		memberRole = parsed
	}
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().AddMember(groupID, actorID, memberID, installationID, memberRole)
}

// RemoveGroupMemberMLS stages and publishes a member-remove commit.
func (s *Service) RemoveGroupMemberMLS(groupID, memberID string) (groupdomain.GroupEvent, error) {
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().RemoveMember(groupID, actorID, memberID)
}

// UpdateGroupMetadataMLS stages and publishes a mutable-metadata commit,
// enforcing the length caps before anything reaches the wire.
func (s *Service) UpdateGroupMetadataMLS(groupID, title, description, avatar string) (groupdomain.GroupEvent, error) {
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().UpdateMetadata(groupID, actorID, groupdomain.UpdateMetadataParams{
		Title:       title,
		Description: description,
		Avatar:      avatar,
	})
}

// UpdateGroupMinVersionToMatchSelf raises the group's minimum supported
// protocol version to this client's own, pausing members on older builds
// until they update.
func (s *Service) UpdateGroupMinVersionToMatchSelf(groupID string) (groupdomain.GroupEvent, error) {
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().UpdateMinVersionToMatchSelf(groupID, actorID)
}

// UpdateGroupAdminListMLS stages and publishes an admin-list commit
// (promote/demote at either tier), with the admin-list invariants enforced
// before anything reaches the transport.
func (s *Service) UpdateGroupAdminListMLS(groupID, targetInboxID, action string) (groupdomain.GroupEvent, error) {
	parsed := groupdomain.AdminListAction(strings.TrimSpace(action))
	if !parsed.Valid() {
		return groupdomain.GroupEvent{}, groupdomain.ErrInvalidGroupEventPayload
	}
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().UpdateAdminList(groupID, actorID, targetInboxID, parsed)
}

// UpdateGroupPermissionMLS replaces the group's governing policy set with
// the supplied JSON-encoded PolicySet.
func (s *Service) UpdateGroupPermissionMLS(groupID, policySetJSON string) (groupdomain.GroupEvent, error) {
	var policySet groupdomain.PolicySet
	if err := json.Unmarshal([]byte(policySetJSON), &policySet); err != nil {
		return groupdomain.GroupEvent{}, groupdomain.ErrInvalidGroupEventPayload
	}
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().UpdatePermission(groupID, actorID, policySet)
}

// LeaveGroupMLS stages the departing member's leave-request commit; a
// super-admin's later ScheduleGroupAdminRemovals pass completes the
// departure.
func (s *Service) LeaveGroupMLS(groupID string) (groupdomain.GroupEvent, error) {
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().SelfLeave(groupID, actorID)
}

// ScheduleGroupAdminRemovals drains a group's pending_remove set, staging
// an admin-removal commit per departed member on the calling super-admin's
// behalf.
func (s *Service) ScheduleGroupAdminRemovals(groupID string) ([]groupdomain.GroupEvent, error) {
	actorID := s.identityManager.GetIdentity().ID
	return s.mutationService().DetectAndScheduleAdminRemovals(groupID, actorID)
}

// SetConsent installs a consent preference row and broadcasts the change.
func (s *Service) SetConsent(entityType, entityID, state string) (groupdomain.ConsentRecord, error) {
	parsedType, err := groupdomain.ParseConsentEntityType(entityType)
	if err != nil {
		return groupdomain.ConsentRecord{}, err
	}
	parsedState, err := groupdomain.ParseConsentState(state)
	if err != nil {
		return groupdomain.ConsentRecord{}, err
	}
	return s.consentLedger().Set(parsedType, entityID, parsedState)
}

// GetConsent reads a consent preference row, Unknown when absent.
func (s *Service) GetConsent(entityType, entityID string) (groupdomain.ConsentState, error) {
	parsedType, err := groupdomain.ParseConsentEntityType(entityType)
	if err != nil {
		return "", err
	}
	return s.consentLedger().Get(parsedType, entityID), nil
}
