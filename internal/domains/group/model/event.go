package model

import (
	"errors"
	"strings"
	"time"
)

type GroupEventType string

const (
	GroupEventTypeMemberAdd     GroupEventType = "member_add"
	GroupEventTypeMemberRemove  GroupEventType = "member_remove"
	GroupEventTypeMemberLeave   GroupEventType = "member_leave"
	GroupEventTypeTitleChange   GroupEventType = "title_change"
	GroupEventTypeProfileChange GroupEventType = "profile_change"
	GroupEventTypeKeyRotate     GroupEventType = "key_rotate"

	// GroupEventTypeMetadataUpdate covers mutable group-level metadata that
	// the legacy title/profile events don't: consent state, app data, the
	// disappearing-message window and the minimum protocol version.
	GroupEventTypeMetadataUpdate GroupEventType = "metadata_update"
	// GroupEventTypeAdminListChange promotes or demotes an admin or
	// super-admin; it is merged as a distinct commit from a role change on
	// a GroupMember so permission evaluation can replay admin history
	// independently of membership history.
	GroupEventTypeAdminListChange GroupEventType = "admin_list_change"
	// GroupEventTypePermissionUpdate replaces the group's policy set.
	GroupEventTypePermissionUpdate GroupEventType = "permission_update"
	// GroupEventTypeLeaveRequest records a member's intent to leave ahead
	// of the commit that actually removes them, so UIs can show a pending
	// departure without waiting on a network round trip.
	GroupEventTypeLeaveRequest GroupEventType = "leave_request"
)

var (
	ErrInvalidGroupEventID      = errors.New("invalid group event id")
	ErrInvalidGroupEventType    = errors.New("invalid group event type")
	ErrInvalidGroupEventVersion = errors.New("invalid group event version")
	ErrInvalidGroupEventActorID = errors.New("invalid group event actor id")
	ErrInvalidGroupEventPayload = errors.New("invalid group event payload")
	ErrOutOfOrderGroupEvent     = errors.New("out-of-order group event")
)

// AdminListAction distinguishes a promotion from a demotion within a
// GroupEventTypeAdminListChange event.
type AdminListAction string

const (
	AdminListActionPromoteAdmin      AdminListAction = "promote_admin"
	AdminListActionDemoteAdmin       AdminListAction = "demote_admin"
	AdminListActionPromoteSuperAdmin AdminListAction = "promote_super_admin"
	AdminListActionDemoteSuperAdmin  AdminListAction = "demote_super_admin"
)

func (a AdminListAction) Valid() bool {
	switch a {
	case AdminListActionPromoteAdmin, AdminListActionDemoteAdmin, AdminListActionPromoteSuperAdmin, AdminListActionDemoteSuperAdmin:
		return true
	default:
		return false
	}
}

// GroupEvent is a versioned event for group lifecycle changes. Version is
// the group's MLS epoch: every merged commit, whether it changes
// membership, metadata, admin list, or permissions, advances Version by
// exactly one, so epoch-skew detection reduces to a version-sequence check
// (see ApplyGroupEvent).
type GroupEvent struct {
	ID         string         `json:"id"`
	GroupID    string         `json:"group_id"`
	Version    uint64         `json:"version"`
	Type       GroupEventType `json:"type"`
	ActorID    string         `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`

	MemberID    string          `json:"member_id,omitempty"`
	Role        GroupMemberRole `json:"role,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Avatar      string          `json:"avatar,omitempty"`

	// AppData, the disappearing-message window, and the minimum protocol
	// version gate are carried by GroupEventTypeMetadataUpdate alongside
	// Title/Description/Avatar, so a single commit can update the full
	// mutable-attribute map at once.
	AppData                     []byte `json:"app_data,omitempty"`
	MessageDisappearFromNs      int64  `json:"message_disappear_from_ns,omitempty"`
	MessageDisappearInNs        int64  `json:"message_disappear_in_ns,omitempty"`
	MinSupportedProtocolVersion string `json:"min_supported_protocol_version,omitempty"`

	KeyVersion uint32 `json:"key_version,omitempty"`

	ConsentState ConsentState `json:"consent_state,omitempty"`

	AdminAction   AdminListAction `json:"admin_action,omitempty"`
	AdminInboxID  string          `json:"admin_inbox_id,omitempty"`
	PolicySetJSON []byte          `json:"policy_set,omitempty"`
}

// GroupState is an in-memory event-application state used by domain flows.
// Epoch is an alias view of Version kept for callers that speak in MLS
// terms; the two always agree.
type GroupState struct {
	Group           Group                  `json:"group"`
	Version         uint64                 `json:"version"`
	AppliedEventIDs map[string]struct{}    `json:"applied_event_ids"`
	Members         map[string]GroupMember `json:"members"`
	LastKeyVersion  uint32                 `json:"last_key_version"`
}

// Epoch returns the group's current MLS epoch, defined as the number of
// commits merged into its event log.
func (s GroupState) Epoch() uint64 {
	return s.Version
}

func NewGroupState(group Group) GroupState {
	return GroupState{
		Group:           group,
		Version:         0,
		AppliedEventIDs: make(map[string]struct{}),
		Members:         make(map[string]GroupMember),
	}
}

func (t GroupEventType) Valid() bool {
	switch t {
	case GroupEventTypeMemberAdd, GroupEventTypeMemberRemove, GroupEventTypeMemberLeave,
		GroupEventTypeTitleChange, GroupEventTypeProfileChange, GroupEventTypeKeyRotate,
		GroupEventTypeMetadataUpdate, GroupEventTypeAdminListChange, GroupEventTypePermissionUpdate,
		GroupEventTypeLeaveRequest:
		return true
	default:
		return false
	}
}

func ParseGroupEventType(raw string) (GroupEventType, error) {
	typ := GroupEventType(strings.TrimSpace(raw))
	if !typ.Valid() {
		return "", ErrInvalidGroupEventType
	}
	return typ, nil
}

func ValidateGroupEvent(event GroupEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return ErrInvalidGroupEventID
	}
	if strings.TrimSpace(event.GroupID) == "" {
		return ErrInvalidGroupID
	}
	if event.Version == 0 {
		return ErrInvalidGroupEventVersion
	}
	if !event.Type.Valid() {
		return ErrInvalidGroupEventType
	}
	if strings.TrimSpace(event.ActorID) == "" {
		return ErrInvalidGroupEventActorID
	}
	if event.OccurredAt.IsZero() {
		return ErrInvalidGroupEventPayload
	}

	switch event.Type {
	case GroupEventTypeMemberAdd:
		if strings.TrimSpace(event.MemberID) == "" {
			return ErrInvalidGroupEventPayload
		}
		if !event.Role.Valid() {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypeMemberRemove:
		if strings.TrimSpace(event.MemberID) == "" {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypeMemberLeave, GroupEventTypeLeaveRequest:
		if strings.TrimSpace(event.MemberID) == "" {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypeTitleChange:
		if strings.TrimSpace(event.Title) == "" {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypeProfileChange:
		if strings.TrimSpace(event.Title) == "" {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypeKeyRotate:
		if event.KeyVersion == 0 {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypeMetadataUpdate:
		if event.ConsentState != "" && !event.ConsentState.Valid() {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypeAdminListChange:
		if strings.TrimSpace(event.AdminInboxID) == "" {
			return ErrInvalidGroupEventPayload
		}
		if !event.AdminAction.Valid() {
			return ErrInvalidGroupEventPayload
		}
	case GroupEventTypePermissionUpdate:
		if len(event.PolicySetJSON) == 0 {
			return ErrInvalidGroupEventPayload
		}
	}
	return nil
}

// ApplyGroupEvent applies a validated event to state.
// Returns applied=false when same event ID is re-applied (idempotent no-op).
func ApplyGroupEvent(state *GroupState, event GroupEvent) (bool, error) {
	if state == nil {
		return false, ErrInvalidGroupEventPayload
	}
	if err := ValidateGroupEvent(event); err != nil {
		return false, err
	}
	if strings.TrimSpace(state.Group.ID) == "" {
		return false, ErrInvalidGroupID
	}
	if event.GroupID != state.Group.ID {
		return false, ErrInvalidGroupID
	}
	if state.AppliedEventIDs == nil {
		state.AppliedEventIDs = make(map[string]struct{})
	}
	if state.Members == nil {
		state.Members = make(map[string]GroupMember)
	}

	if _, exists := state.AppliedEventIDs[event.ID]; exists {
		return false, nil
	}

	expected := state.Version + 1
	if event.Version != expected {
		return false, ErrOutOfOrderGroupEvent
	}

	switch event.Type {
	case GroupEventTypeMemberAdd:
		memberID := strings.TrimSpace(event.MemberID)
		member, exists := state.Members[memberID]
		if !exists {
			member = GroupMember{
				GroupID:   state.Group.ID,
				MemberID:  memberID,
				Role:      event.Role,
				Status:    GroupMemberStatusInvited,
				InvitedAt: event.OccurredAt.UTC(),
				UpdatedAt: event.OccurredAt.UTC(),
			}
			state.Members[member.MemberID] = member
			break
		}
		member.Role = event.Role
		switch member.Status {
		case GroupMemberStatusInvited:
			if strings.TrimSpace(event.ActorID) == memberID {
				member.Status = GroupMemberStatusActive
				member.ActivatedAt = event.OccurredAt.UTC()
			}
		case GroupMemberStatusLeft, GroupMemberStatusRemoved:
			member.Status = GroupMemberStatusInvited
			member.InvitedAt = event.OccurredAt.UTC()
			member.ActivatedAt = time.Time{}
		}
		member.UpdatedAt = event.OccurredAt.UTC()
		state.Members[member.MemberID] = member
	case GroupEventTypeMemberRemove:
		memberID := strings.TrimSpace(event.MemberID)
		member, ok := state.Members[memberID]
		if !ok {
			member = GroupMember{
				GroupID:  state.Group.ID,
				MemberID: memberID,
				Role:     GroupMemberRoleUser,
			}
		}
		member.Status = GroupMemberStatusRemoved
		member.UpdatedAt = event.OccurredAt.UTC()
		state.Members[memberID] = member
		if state.Group.PendingRemove != nil {
			delete(state.Group.PendingRemove, memberID)
		}
	case GroupEventTypeMemberLeave:
		memberID := strings.TrimSpace(event.MemberID)
		member, ok := state.Members[memberID]
		if !ok {
			member = GroupMember{
				GroupID:  state.Group.ID,
				MemberID: memberID,
				Role:     GroupMemberRoleUser,
			}
		}
		member.Status = GroupMemberStatusLeft
		member.UpdatedAt = event.OccurredAt.UTC()
		state.Members[memberID] = member
		if state.Group.PendingRemove != nil {
			delete(state.Group.PendingRemove, memberID)
		}
	case GroupEventTypeLeaveRequest:
		memberID := strings.TrimSpace(event.MemberID)
		if state.Group.PendingRemove == nil {
			state.Group.PendingRemove = make(map[string]struct{})
		}
		state.Group.PendingRemove[memberID] = struct{}{}
		state.Group.HasPendingLeaveRequest = true
	case GroupEventTypeTitleChange:
		state.Group.Title = strings.TrimSpace(event.Title)
		state.Group.UpdatedAt = event.OccurredAt.UTC()
	case GroupEventTypeProfileChange:
		state.Group.Title = strings.TrimSpace(event.Title)
		state.Group.Description = strings.TrimSpace(event.Description)
		state.Group.Avatar = strings.TrimSpace(event.Avatar)
		state.Group.UpdatedAt = event.OccurredAt.UTC()
	case GroupEventTypeKeyRotate:
		state.LastKeyVersion = event.KeyVersion
		state.Group.UpdatedAt = event.OccurredAt.UTC()
	case GroupEventTypeMetadataUpdate:
		if event.ConsentState != "" {
			state.Group.ConsentState = event.ConsentState
		}
		if event.Title != "" {
			state.Group.Title = strings.TrimSpace(event.Title)
		}
		if event.Description != "" {
			state.Group.Description = strings.TrimSpace(event.Description)
		}
		if event.Avatar != "" {
			state.Group.Avatar = strings.TrimSpace(event.Avatar)
		}
		if event.AppData != nil {
			state.Group.AppData = event.AppData
		}
		if event.MessageDisappearFromNs != 0 {
			state.Group.MessageDisappearFromNs = event.MessageDisappearFromNs
		}
		if event.MessageDisappearInNs != 0 {
			state.Group.MessageDisappearInNs = event.MessageDisappearInNs
		}
		if event.MinSupportedProtocolVersion != "" {
			state.Group.MinSupportedProtocolVersion = strings.TrimSpace(event.MinSupportedProtocolVersion)
		}
		state.Group.UpdatedAt = event.OccurredAt.UTC()
	case GroupEventTypeAdminListChange:
		applyAdminListChange(&state.Group, event)
		state.Group.UpdatedAt = event.OccurredAt.UTC()
	case GroupEventTypePermissionUpdate:
		state.Group.PolicySetJSON = event.PolicySetJSON
		state.Group.UpdatedAt = event.OccurredAt.UTC()
	}

	state.Version = event.Version
	state.AppliedEventIDs[event.ID] = struct{}{}
	return true, nil
}

func applyAdminListChange(group *Group, event GroupEvent) {
	inboxID := strings.TrimSpace(event.AdminInboxID)
	switch event.AdminAction {
	case AdminListActionPromoteAdmin:
		if group.Admins == nil {
			group.Admins = make(map[string]struct{})
		}
		group.Admins[inboxID] = struct{}{}
	case AdminListActionDemoteAdmin:
		if group.Admins != nil {
			delete(group.Admins, inboxID)
		}
	case AdminListActionPromoteSuperAdmin:
		if group.SuperAdmins == nil {
			group.SuperAdmins = make(map[string]struct{})
		}
		group.SuperAdmins[inboxID] = struct{}{}
	case AdminListActionDemoteSuperAdmin:
		if group.SuperAdmins != nil {
			delete(group.SuperAdmins, inboxID)
		}
	}
}
