package usecase

import (
	"encoding/json"
	"sort"
	"time"

	aimcrypto "aim-chat/go-backend/internal/crypto"
)

type addMemberPayload struct {
	ActorID  string          `json:"actor_id"`
	MemberID string          `json:"member_id"`
	Role     GroupMemberRole `json:"role"`
}

type removeMemberPayload struct {
	ActorID  string `json:"actor_id"`
	MemberID string `json:"member_id"`
}

type metadataUpdatePayload struct {
	ActorID                     string `json:"actor_id"`
	Title                       string `json:"title,omitempty"`
	Description                 string `json:"description,omitempty"`
	Avatar                      string `json:"avatar,omitempty"`
	AppData                     []byte `json:"app_data,omitempty"`
	MessageDisappearFromNs      int64  `json:"message_disappear_from_ns,omitempty"`
	MessageDisappearInNs        int64  `json:"message_disappear_in_ns,omitempty"`
	MinSupportedProtocolVersion string `json:"min_supported_protocol_version,omitempty"`
}

type adminListPayload struct {
	ActorID      string          `json:"actor_id"`
	AdminInboxID string          `json:"admin_inbox_id"`
	AdminAction  AdminListAction `json:"admin_action"`
}

type permissionUpdatePayload struct {
	ActorID       string `json:"actor_id"`
	PolicySetJSON []byte `json:"policy_set"`
}

type leaveRequestPayload struct {
	ActorID  string `json:"actor_id"`
	MemberID string `json:"member_id"`
}

type adminRemovePayload struct {
	ActorID  string `json:"actor_id"`
	MemberID string `json:"member_id"`
}

// UpdateMetadataParams carries the mutable attribute values a caller wants
// changed; a zero value for a field leaves the corresponding attribute
// untouched, matching ApplyGroupEvent's metadata_update case which only
// overwrites non-zero fields.
type UpdateMetadataParams struct {
	Title                  string
	Description            string
	Avatar                 string
	AppData                []byte
	MessageDisappearFromNs int64
	MessageDisappearInNs   int64
	// MinSupportedProtocolVersion raises the group's version gate; only a
	// super-admin may set it, and it can only move upward.
	MinSupportedProtocolVersion string
}

// GroupMutationService is the live entry point for the user-facing group
// mutations that must flow through the full MLS pipeline — permission
// evaluation, intent staging, epoch-skew-aware commit publication, and,
// for membership adds, sender-side welcome issuance — rather than only
// touching local state the way the legacy MembershipService does. It
// composes IntentQueue and SyncOrchestrator the same way Service composes
// MembershipService and GroupMessageFanoutService: a thin coordinator over
// narrower services, not a reimplementation of their logic.
type GroupMutationService struct {
	Runtime *RuntimeState
	Intents *IntentQueue
	Sync    *SyncOrchestrator
	Persist SnapshotPersist

	Now             func() time.Time
	GenerateEventID func() string

	// LocalProtocolVersion gates every mutation behind
	// EnforceMinVersionGate, so a client running behind a group's
	// min_supported_protocol_version can't stage commits other members
	// wouldn't be able to process.
	LocalProtocolVersion string

	// RandomRoot seeds a fresh epoch-secret schedule the first time a
	// group stages a commit with no EpochSecrets entry yet (e.g. a group
	// created before this pipeline existed, or created by the legacy
	// membership service). Defaults to crypto/rand-backed randomness at
	// the composition layer.
	RandomRoot func() ([]byte, error)

	SelectKeyPackageForWelcome func(candidateInstallationID string) (KeyPackage, error)
	ConsumeKeyPackage          func(kp KeyPackage, groupID string) error
	PublishWelcome             func(recipientInstallationID string, msg WelcomeMessage) error

	RecordError func(category string, err error)
}

func (s *GroupMutationService) nowUTC() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *GroupMutationService) generateEventID() string {
	if s.GenerateEventID == nil {
		return "gevt_fallback"
	}
	return s.GenerateEventID()
}

func (s *GroupMutationService) loadState(groupID string) (GroupState, error) {
	state, ok := s.Runtime.States[groupID]
	if !ok {
		return GroupState{}, ErrGroupNotFound
	}
	return state, nil
}

// groupPolicySet decodes the group's installed PolicySet, falling back to
// the protocol's "all members" default for a group that has never staged
// a permission_update commit.
func (s *GroupMutationService) groupPolicySet(state GroupState) PolicySet {
	if len(state.Group.PolicySetJSON) == 0 {
		return DefaultPolicySet()
	}
	var set PolicySet
	if err := json.Unmarshal(state.Group.PolicySetJSON, &set); err != nil {
		return DefaultPolicySet()
	}
	return set
}

func (s *GroupMutationService) checkPermission(state GroupState, actorID string, op PermissionOperation) error {
	if err := EnforceMinVersionGate(state, s.LocalProtocolVersion); err != nil {
		return err
	}
	if state.Group.IsDM() {
		return EvaluateDMPermission(op)
	}
	return EvaluatePermission(state, s.groupPolicySet(state), actorID, op)
}

// BuildEventFromIntent decodes a staged intent's payload into the
// GroupEvent its kind commits, at the version SyncOrchestrator's retry
// loop asks for. It is the single hook that translates every mutation
// kind this service stages into a wire commit, and is also safe to wire
// into the periodic sync drain's buildEvent argument so a crash between
// staging and publishing is recovered from on the next pass rather than
// only on retry from the original caller.
func (s *GroupMutationService) BuildEventFromIntent(intent Intent, expectedVersion uint64) (GroupEvent, error) {
	base := GroupEvent{
		ID:         s.generateEventID(),
		GroupID:    intent.GroupID,
		Version:    expectedVersion,
		OccurredAt: s.nowUTC(),
	}
	switch intent.Kind {
	case IntentKindAddMembers:
		var p addMemberPayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			return GroupEvent{}, err
		}
		base.Type = GroupEventTypeMemberAdd
		base.ActorID = p.ActorID
		base.MemberID = p.MemberID
		base.Role = p.Role
	case IntentKindRemoveMembers:
		var p removeMemberPayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			return GroupEvent{}, err
		}
		base.Type = GroupEventTypeMemberRemove
		base.ActorID = p.ActorID
		base.MemberID = p.MemberID
	case IntentKindMetadataUpdate:
		var p metadataUpdatePayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			return GroupEvent{}, err
		}
		base.Type = GroupEventTypeMetadataUpdate
		base.ActorID = p.ActorID
		base.Title = p.Title
		base.Description = p.Description
		base.Avatar = p.Avatar
		base.AppData = p.AppData
		base.MessageDisappearFromNs = p.MessageDisappearFromNs
		base.MessageDisappearInNs = p.MessageDisappearInNs
		base.MinSupportedProtocolVersion = p.MinSupportedProtocolVersion
	case IntentKindAdminListUpdate:
		var p adminListPayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			return GroupEvent{}, err
		}
		base.Type = GroupEventTypeAdminListChange
		base.ActorID = p.ActorID
		base.AdminInboxID = p.AdminInboxID
		base.AdminAction = p.AdminAction
	case IntentKindUpdatePermission:
		var p permissionUpdatePayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			return GroupEvent{}, err
		}
		base.Type = GroupEventTypePermissionUpdate
		base.ActorID = p.ActorID
		base.PolicySetJSON = p.PolicySetJSON
	case IntentKindSelfLeave:
		var p leaveRequestPayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			return GroupEvent{}, err
		}
		base.Type = GroupEventTypeLeaveRequest
		base.ActorID = p.ActorID
		base.MemberID = p.MemberID
	case IntentKindAdminRemove:
		var p adminRemovePayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			return GroupEvent{}, err
		}
		base.Type = GroupEventTypeMemberRemove
		base.ActorID = p.ActorID
		base.MemberID = p.MemberID
	default:
		return GroupEvent{}, ErrInvalidIntentKind
	}
	return base, nil
}

func (s *GroupMutationService) stageAndCommit(groupID string, kind IntentKind, payload []byte) (GroupEvent, error) {
	intent, err := s.Intents.Enqueue(groupID, kind, payload)
	if err != nil {
		return GroupEvent{}, err
	}
	return s.Sync.PublishAndConfirmIntent(groupID, intent, s.BuildEventFromIntent, s.Persist)
}

// AddMember stages and publishes a member-add commit, then — once the
// commit has landed — issues the invitee's welcome by sealing the group's
// current epoch secret to their selected key package, following the same
// select/consume discipline KeyPackageManager.SelectForWelcome and Consume
// already define. A welcome-issuance failure is reported to the caller but
// does not roll back the already-committed membership change: the invitee
// simply remains unreachable until a retry or the next key-package sync.
func (s *GroupMutationService) AddMember(groupID, actorID, memberID, memberInstallationID string, role GroupMemberRole) (GroupEvent, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	actorID, err = NormalizeGroupMemberID(actorID)
	if err != nil {
		return GroupEvent{}, err
	}
	memberID, err = NormalizeGroupMemberID(memberID)
	if err != nil {
		return GroupEvent{}, err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	if err := s.checkPermission(state, actorID, PermissionOperationAddMember); err != nil {
		return GroupEvent{}, err
	}
	payload, err := json.Marshal(addMemberPayload{ActorID: actorID, MemberID: memberID, Role: role})
	if err != nil {
		return GroupEvent{}, err
	}
	event, err := s.stageAndCommit(groupID, IntentKindAddMembers, payload)
	if err != nil {
		return GroupEvent{}, err
	}
	if err := s.issueWelcome(groupID, actorID, memberID, memberInstallationID); err != nil {
		if s.RecordError != nil {
			s.RecordError("mls_welcome_issue", err)
		}
		return event, err
	}
	return event, nil
}

// issueWelcome seals the group's current committed epoch secret to the
// invitee's selected key package and hands the resulting bundle to
// PublishWelcome for delivery, consuming the key package on success so it
// can never be offered to a second group. A group with no tracked epoch
// secret yet (e.g. one created before this pipeline existed) gets one
// seeded here from RandomRoot, mirroring NewGroupKeySchedule's normal
// group-creation seeding.
func (s *GroupMutationService) issueWelcome(groupID, actorID, memberID, installationID string) error {
	if s.SelectKeyPackageForWelcome == nil || s.PublishWelcome == nil {
		return nil
	}
	epoch, err := s.epochSecretFor(groupID)
	if err != nil {
		return err
	}
	kp, err := s.SelectKeyPackageForWelcome(installationID)
	if err != nil {
		return err
	}
	bundle, err := aimcrypto.SealWelcome(groupID, epoch, kp.PublicKey)
	if err != nil {
		return err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return err
	}
	msg := WelcomeMessage{
		GroupID:               groupID,
		ConversationType:      state.Group.ConversationType,
		Title:                 state.Group.Title,
		CreatedBy:             state.Group.CreatedBy,
		AddedByInboxID:        actorID,
		RecipientInboxID:      memberID,
		RecipientKeyPackageID: kp.ID,
		Bundle:                bundle,
		PolicySetJSON:         state.Group.PolicySetJSON,
	}
	memberIDs := make([]string, 0, len(state.Members))
	for id := range state.Members {
		memberIDs = append(memberIDs, id)
	}
	sort.Strings(memberIDs)
	for _, id := range memberIDs {
		msg.InitialMembers = append(msg.InitialMembers, state.Members[id])
	}
	if state.Group.IsDM() {
		msg.DMCounterpartyID = actorID
	}
	if err := s.PublishWelcome(installationID, msg); err != nil {
		return err
	}
	if s.ConsumeKeyPackage != nil {
		return s.ConsumeKeyPackage(kp, groupID)
	}
	return nil
}

func (s *GroupMutationService) epochSecretFor(groupID string) (aimcrypto.GroupEpochSecret, error) {
	s.Runtime.MLSMu.Lock()
	defer s.Runtime.MLSMu.Unlock()
	if epoch, ok := s.Runtime.EpochSecrets[groupID]; ok {
		return epoch, nil
	}
	var root []byte
	if s.RandomRoot != nil {
		generated, err := s.RandomRoot()
		if err != nil {
			return aimcrypto.GroupEpochSecret{}, err
		}
		root = generated
	}
	schedule, err := aimcrypto.NewGroupKeySchedule(groupID, root)
	if err != nil {
		return aimcrypto.GroupEpochSecret{}, err
	}
	epoch := schedule.Committed()
	if s.Runtime.EpochSecrets == nil {
		s.Runtime.EpochSecrets = make(map[string]aimcrypto.GroupEpochSecret)
	}
	s.Runtime.EpochSecrets[groupID] = epoch
	return epoch, nil
}

// FindOrCreateDM returns the existing direct-message group for the
// counterparty, or creates one with the DM invariants fixed at birth: two
// members, empty admin lists, a locked policy set, the canonical sorted
// dm_id, and app_data disallowed. The counterparty's welcome is issued
// immediately — a DM never goes through a separate add-member commit,
// since its membership can never change.
func (s *GroupMutationService) FindOrCreateDM(selfInboxID, counterpartyID, counterpartyInstallationID string, generateID func(prefix string) (string, error)) (GroupState, bool, error) {
	selfInboxID, err := NormalizeGroupMemberID(selfInboxID)
	if err != nil {
		return GroupState{}, false, err
	}
	counterpartyID, err = NormalizeGroupMemberID(counterpartyID)
	if err != nil {
		return GroupState{}, false, err
	}
	if selfInboxID == counterpartyID {
		return GroupState{}, false, ErrGroupCannotInviteSelf
	}
	dmID := CanonicalDMID(selfInboxID, counterpartyID)
	for groupID, state := range s.Runtime.States {
		if state.Group.IsDM() && state.Group.DMID == dmID {
			canonical := ResolveStitchedGroupID(s.Runtime.States, groupID)
			return s.Runtime.States[canonical], false, nil
		}
	}
	if generateID == nil {
		return GroupState{}, false, ErrInvalidGroupEventPayload
	}
	groupID, err := generateID("dm")
	if err != nil {
		return GroupState{}, false, err
	}

	now := s.nowUTC()
	group := Group{
		ID:                groupID,
		Title:             dmID,
		CreatedBy:         selfInboxID,
		CreatedAt:         now,
		UpdatedAt:         now,
		ConversationType:  ConversationTypeDirectMessage,
		DMID:              dmID,
		DMMembers:         [2]string{selfInboxID, counterpartyID},
		MembershipState:   GroupMembershipStateAllowed,
		ConsentState:      ConsentStateAllowed,
		AppDataDisallowed: true,
	}
	state := NewGroupState(group)
	for _, memberID := range group.DMMembers {
		state.Members[memberID] = GroupMember{
			GroupID:     groupID,
			MemberID:    memberID,
			Role:        GroupMemberRoleUser,
			Status:      GroupMemberStatusActive,
			ActivatedAt: now,
			UpdatedAt:   now,
		}
	}
	state.LastKeyVersion = 1
	if err := ValidateDMInvariants(state); err != nil {
		return GroupState{}, false, err
	}

	lock := s.Runtime.GroupLock(groupID)
	lock.Lock()
	s.Runtime.States[groupID] = state
	if s.Persist != nil {
		if err := s.Persist(s.Runtime.States, s.Runtime.EventLog); err != nil {
			delete(s.Runtime.States, groupID)
			lock.Unlock()
			return GroupState{}, false, err
		}
	}
	lock.Unlock()

	if err := s.issueWelcome(groupID, selfInboxID, counterpartyID, counterpartyInstallationID); err != nil {
		if s.RecordError != nil {
			s.RecordError("mls_welcome_issue", err)
		}
		return state, true, err
	}
	return state, true, nil
}

// RemoveMember stages and publishes a member-remove commit.
func (s *GroupMutationService) RemoveMember(groupID, actorID, memberID string) (GroupEvent, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	actorID, err = NormalizeGroupMemberID(actorID)
	if err != nil {
		return GroupEvent{}, err
	}
	memberID, err = NormalizeGroupMemberID(memberID)
	if err != nil {
		return GroupEvent{}, err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	if err := s.checkPermission(state, actorID, PermissionOperationRemoveMember); err != nil {
		return GroupEvent{}, err
	}
	payload, err := json.Marshal(removeMemberPayload{ActorID: actorID, MemberID: memberID})
	if err != nil {
		return GroupEvent{}, err
	}
	return s.stageAndCommit(groupID, IntentKindRemoveMembers, payload)
}

// UpdateMetadata validates the requested attribute changes against the
// mutable-metadata length caps before staging them, so a TooManyCharactersError
// is returned synchronously instead of surfacing only once the commit is
// replayed.
func (s *GroupMutationService) UpdateMetadata(groupID, actorID string, params UpdateMetadataParams) (GroupEvent, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	actorID, err = NormalizeGroupMemberID(actorID)
	if err != nil {
		return GroupEvent{}, err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	if err := s.checkPermission(state, actorID, PermissionOperationUpdateMetadata); err != nil {
		return GroupEvent{}, err
	}
	if params.MinSupportedProtocolVersion != "" {
		if !RoleForActor(state, actorID).IsSuperAdmin {
			return GroupEvent{}, ErrGroupPermissionDenied
		}
		if CompareSemVer(params.MinSupportedProtocolVersion, state.Group.MinSupportedProtocolVersion) < 0 {
			return GroupEvent{}, ErrGroupOperationDisallowed
		}
	}
	candidate := state.Group
	if params.Title != "" {
		candidate.Title = params.Title
	}
	if params.Description != "" {
		candidate.Description = params.Description
	}
	if params.Avatar != "" {
		candidate.Avatar = params.Avatar
	}
	if params.AppData != nil {
		candidate.AppData = params.AppData
	}
	if err := ValidateGroupMetadataAttributes(candidate); err != nil {
		return GroupEvent{}, err
	}
	payload, err := json.Marshal(metadataUpdatePayload{
		ActorID:                     actorID,
		Title:                       params.Title,
		Description:                 params.Description,
		Avatar:                      params.Avatar,
		AppData:                     params.AppData,
		MessageDisappearFromNs:      params.MessageDisappearFromNs,
		MessageDisappearInNs:        params.MessageDisappearInNs,
		MinSupportedProtocolVersion: params.MinSupportedProtocolVersion,
	})
	if err != nil {
		return GroupEvent{}, err
	}
	return s.stageAndCommit(groupID, IntentKindMetadataUpdate, payload)
}

// UpdateMinVersionToMatchSelf raises the group's minimum supported
// protocol version to the local client's own, so members on older builds
// pause until they update. Going through UpdateMetadata keeps the
// super-admin and monotonicity checks in one place.
func (s *GroupMutationService) UpdateMinVersionToMatchSelf(groupID, actorID string) (GroupEvent, error) {
	return s.UpdateMetadata(groupID, actorID, UpdateMetadataParams{
		MinSupportedProtocolVersion: s.LocalProtocolVersion,
	})
}

// UpdateAdminList stages and publishes an admin-list commit. Invariants
// enforced before staging: admin-tier changes follow the policy set's
// add_admin/remove_admin rules, super-admin-tier changes always require a
// super-admin actor, self-demotion is allowed, and demoting the last
// effective super-admin (the creator with no other super-admins standing)
// is rejected outright so the group can never become unadministered.
func (s *GroupMutationService) UpdateAdminList(groupID, actorID, targetInboxID string, action AdminListAction) (GroupEvent, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	actorID, err = NormalizeGroupMemberID(actorID)
	if err != nil {
		return GroupEvent{}, err
	}
	targetInboxID, err = NormalizeGroupMemberID(targetInboxID)
	if err != nil {
		return GroupEvent{}, err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	var op PermissionOperation
	switch action {
	case AdminListActionPromoteAdmin:
		op = PermissionOperationAddAdmin
	case AdminListActionDemoteAdmin:
		op = PermissionOperationRemoveAdmin
	case AdminListActionPromoteSuperAdmin, AdminListActionDemoteSuperAdmin:
		// Super-admin tier changes are never delegable below super-admin,
		// regardless of what the installed policy set says.
		if !RoleForActor(state, actorID).IsSuperAdmin {
			return GroupEvent{}, ErrGroupPermissionDenied
		}
		op = PermissionOperationAddAdmin
	default:
		return GroupEvent{}, ErrInvalidGroupEventPayload
	}
	if err := s.checkPermission(state, actorID, op); err != nil {
		return GroupEvent{}, err
	}
	if action == AdminListActionDemoteSuperAdmin {
		remaining := 0
		for id := range state.Group.SuperAdmins {
			if id != targetInboxID {
				remaining++
			}
		}
		if targetInboxID == state.Group.CreatedBy && remaining == 0 {
			return GroupEvent{}, ErrGroupOperationDisallowed
		}
	}
	payload, err := json.Marshal(adminListPayload{ActorID: actorID, AdminInboxID: targetInboxID, AdminAction: action})
	if err != nil {
		return GroupEvent{}, err
	}
	return s.stageAndCommit(groupID, IntentKindAdminListUpdate, payload)
}

// UpdatePermission replaces the group's governing PolicySet. ValidatePolicySet
// rejects any set that would leave update_permissions reachable by
// anything less than super-admin before the permission check even runs,
// since that would be a self-inflicted lockout.
func (s *GroupMutationService) UpdatePermission(groupID, actorID string, policySet PolicySet) (GroupEvent, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	actorID, err = NormalizeGroupMemberID(actorID)
	if err != nil {
		return GroupEvent{}, err
	}
	if err := ValidatePolicySet(policySet); err != nil {
		return GroupEvent{}, err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	if state.Group.IsDM() {
		return GroupEvent{}, ErrDMPolicyLocked
	}
	if err := s.checkPermission(state, actorID, PermissionOperationUpdatePermissions); err != nil {
		return GroupEvent{}, err
	}
	policyJSON, err := json.Marshal(policySet)
	if err != nil {
		return GroupEvent{}, err
	}
	payload, err := json.Marshal(permissionUpdatePayload{ActorID: actorID, PolicySetJSON: policyJSON})
	if err != nil {
		return GroupEvent{}, err
	}
	return s.stageAndCommit(groupID, IntentKindUpdatePermission, payload)
}

// SelfLeave stages the leave-request commit a departing member broadcasts
// ahead of the admin-remove commit that actually drops them from the
// roster: a member can always leave regardless of the group's policy set,
// so no permission check gates this beyond being an active member.
func (s *GroupMutationService) SelfLeave(groupID, actorID string) (GroupEvent, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	actorID, err = NormalizeGroupMemberID(actorID)
	if err != nil {
		return GroupEvent{}, err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return GroupEvent{}, err
	}
	if state.Group.IsDM() {
		return GroupEvent{}, ErrDMLeaveForbidden
	}
	member, ok := state.Members[actorID]
	if !ok {
		return GroupEvent{}, ErrGroupMembershipNotFound
	}
	if member.Status == GroupMemberStatusLeft || member.Status == GroupMemberStatusRemoved {
		return GroupEvent{}, nil
	}
	activeMembers := 0
	for _, m := range state.Members {
		if m.Status == GroupMemberStatusActive {
			activeMembers++
		}
	}
	if activeMembers < 2 {
		return GroupEvent{}, ErrSingleMemberLeaveRejected
	}
	if RoleForActor(state, actorID).IsSuperAdmin {
		othersStanding := false
		for id := range state.Group.SuperAdmins {
			if id != actorID {
				othersStanding = true
				break
			}
		}
		if state.Group.CreatedBy != actorID && state.Group.CreatedBy != "" {
			othersStanding = true
		}
		if !othersStanding {
			return GroupEvent{}, ErrGroupLeaveForbidden
		}
	}
	payload, err := json.Marshal(leaveRequestPayload{ActorID: actorID, MemberID: actorID})
	if err != nil {
		return GroupEvent{}, err
	}
	return s.stageAndCommit(groupID, IntentKindSelfLeave, payload)
}

// DetectAndScheduleAdminRemovals scans a group's pending_remove set —
// populated by SelfLeave's leave_request commits — and stages an
// AdminRemove commit for each entry on the calling super-admin's behalf,
// completing the departure flow once a super-admin's sync notices the
// marker. Entries are processed in sorted order so repeated calls across
// retries stage commits in a stable sequence.
func (s *GroupMutationService) DetectAndScheduleAdminRemovals(groupID, superAdminActorID string) ([]GroupEvent, error) {
	groupID, err := NormalizeGroupID(groupID)
	if err != nil {
		return nil, err
	}
	superAdminActorID, err = NormalizeGroupMemberID(superAdminActorID)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(groupID)
	if err != nil {
		return nil, err
	}
	if !RoleForActor(state, superAdminActorID).IsSuperAdmin {
		return nil, ErrGroupPermissionDenied
	}
	pending := make([]string, 0, len(state.Group.PendingRemove))
	for memberID := range state.Group.PendingRemove {
		pending = append(pending, memberID)
	}
	sort.Strings(pending)

	events := make([]GroupEvent, 0, len(pending))
	for _, memberID := range pending {
		payload, err := json.Marshal(adminRemovePayload{ActorID: superAdminActorID, MemberID: memberID})
		if err != nil {
			if s.RecordError != nil {
				s.RecordError("admin_remove_stage", err)
			}
			continue
		}
		event, err := s.stageAndCommit(groupID, IntentKindAdminRemove, payload)
		if err != nil {
			if s.RecordError != nil {
				s.RecordError("admin_remove_publish", err)
			}
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
