package model

import (
	"errors"
	"strings"
	"time"
)

type GroupMemberRole string

const (
	GroupMemberRoleOwner GroupMemberRole = "owner"
	GroupMemberRoleAdmin GroupMemberRole = "admin"
	GroupMemberRoleUser  GroupMemberRole = "user"
)

type GroupMemberStatus string

const (
	GroupMemberStatusInvited GroupMemberStatus = "invited"
	GroupMemberStatusActive  GroupMemberStatus = "active"
	GroupMemberStatusLeft    GroupMemberStatus = "left"
	GroupMemberStatusRemoved GroupMemberStatus = "removed"
)

var (
	ErrInvalidGroupID                     = errors.New("invalid group id")
	ErrInvalidGroupMemberID               = errors.New("invalid group member id")
	ErrInvalidGroupMemberRole             = errors.New("invalid group member role")
	ErrInvalidGroupMemberStatus           = errors.New("invalid group member status")
	ErrInvalidGroupMemberStatusTransition = errors.New("invalid group member status transition")
)

// ConversationType classifies the shape of a group's membership and metadata
// invariants. DirectMessage groups are pinned to two members with a locked
// policy set (see policy.ValidateDMInvariants); Sync groups replicate an
// installation's own preferences across its devices and never fan a message
// out to any other inbox.
type ConversationType string

const (
	ConversationTypeGroup         ConversationType = "group"
	ConversationTypeDirectMessage ConversationType = "direct_message"
	ConversationTypeSync          ConversationType = "sync"
)

func (c ConversationType) Valid() bool {
	switch c {
	case ConversationTypeGroup, ConversationTypeDirectMessage, ConversationTypeSync:
		return true
	default:
		return false
	}
}

// GroupMembershipState is the local installation's relationship to a group,
// distinct from GroupMemberStatus which tracks a single member's status
// inside the member roster. A group can be Pending (welcome received, not
// yet consent-confirmed) before any GroupMember rows beyond self exist.
type GroupMembershipState string

const (
	GroupMembershipStateAllowed       GroupMembershipState = "allowed"
	GroupMembershipStatePending       GroupMembershipState = "pending"
	GroupMembershipStatePendingRemove GroupMembershipState = "pending_remove"
	GroupMembershipStateRejected      GroupMembershipState = "rejected"
)

func (s GroupMembershipState) Valid() bool {
	switch s {
	case GroupMembershipStateAllowed, GroupMembershipStatePending, GroupMembershipStatePendingRemove, GroupMembershipStateRejected:
		return true
	default:
		return false
	}
}

// ConsentState mirrors the inbox-level consent record governing whether a
// group's messages should be surfaced without an explicit accept.
type ConsentState string

const (
	ConsentStateUnknown ConsentState = "unknown"
	ConsentStateAllowed ConsentState = "allowed"
	ConsentStateDenied  ConsentState = "denied"
)

func (s ConsentState) Valid() bool {
	switch s {
	case ConsentStateUnknown, ConsentStateAllowed, ConsentStateDenied:
		return true
	default:
		return false
	}
}

// ForkDetail records a single observation of divergence between local and
// remote MLS state, inferred from an unexpected wrong-epoch error arriving
// at a cursor the group has already advanced past.
type ForkDetail struct {
	DetectedAt   time.Time `json:"detected_at"`
	Cursor       uint64    `json:"cursor"`
	RemoteEpoch  uint64    `json:"remote_epoch"`
	LocalEpoch   uint64    `json:"local_epoch"`
	OriginatorID string    `json:"originator_id"`
}

// DefaultMaxPastEpochs bounds how many merged commits behind the local
// membership version a sender may lag before its application messages are
// rejected as stale. Commits themselves never get this tolerance.
const DefaultMaxPastEpochs uint32 = 3

// Group is a domain-level aggregate for group chat metadata, generalized
// from a plain chat room into the MLS core's primary aggregate: in addition
// to display metadata it tracks conversation shape, per-originator cursors,
// DM stitching, and fork/pause state.
type Group struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConversationType ConversationType     `json:"conversation_type"`
	DMID             string               `json:"dm_id,omitempty"`
	DMMembers        [2]string            `json:"dm_members,omitempty"`
	MembershipState  GroupMembershipState `json:"membership_state"`
	ConsentState     ConsentState         `json:"consent_state"`
	AddedByInboxID   string               `json:"added_by_inbox_id,omitempty"`

	// Description and Avatar are the mutable metadata attributes the
	// originating protocol calls description and image_url_square,
	// length-capped by ValidateGroupMetadataAttributes before they are
	// ever staged into a GroupEventTypeProfileChange commit.
	Description string `json:"description,omitempty"`
	Avatar      string `json:"avatar,omitempty"`

	// AppData is an opaque, client-defined metadata blob (the protocol's
	// app_data attribute), length-capped the same way. AppDataDisallowed
	// locks it out entirely for conversation shapes (DMs, sync groups)
	// that have no meaningful use for it.
	AppData           []byte `json:"app_data,omitempty"`
	AppDataDisallowed bool   `json:"app_data_disallowed,omitempty"`

	// MessageDisappearFromNs/MessageDisappearInNs mirror the protocol's
	// disappearing-message window: messages older than
	// (occurred_at - MessageDisappearFromNs) are eligible for local
	// expiry after MessageDisappearInNs has elapsed since receipt. Zero
	// means disappearing messages are off.
	MessageDisappearFromNs int64 `json:"message_disappear_from_ns,omitempty"`
	MessageDisappearInNs   int64 `json:"message_disappear_in_ns,omitempty"`

	// PolicySetJSON carries the group's current governing PolicySet,
	// serialized at this layer to avoid an import cycle back into the
	// policy package (mirrors GroupEvent.PolicySetJSON, which installs
	// it via GroupEventTypePermissionUpdate).
	PolicySetJSON []byte `json:"policy_set,omitempty"`

	Admins      map[string]struct{} `json:"admins,omitempty"`
	SuperAdmins map[string]struct{} `json:"super_admins,omitempty"`

	// Cursor is the highest processed network sequence id, keyed by
	// originator installation id; it advances monotonically and, for the
	// non-retryable error path, advances even past rejected envelopes.
	Cursor map[string]uint64 `json:"cursor,omitempty"`

	MaybeForked bool         `json:"maybe_forked"`
	ForkDetails []ForkDetail `json:"fork_details,omitempty"`

	HasPendingLeaveRequest bool                `json:"has_pending_leave_request"`
	PendingRemove          map[string]struct{} `json:"pending_remove,omitempty"`

	LastActivityAtNs   int64  `json:"last_activity_ns,omitempty"`
	PausedUntilVersion string `json:"paused_until_version,omitempty"`

	MinSupportedProtocolVersion string `json:"min_supported_protocol_version,omitempty"`

	StitchedIntoGroupID string `json:"stitched_into_group_id,omitempty"`
	Hidden              bool   `json:"hidden,omitempty"`
}

// IsDM reports whether g is a direct-message group.
func (g Group) IsDM() bool {
	return g.ConversationType == ConversationTypeDirectMessage
}

// IsSuperAdmin reports whether inboxID is in the group's super-admin set.
func (g Group) IsSuperAdmin(inboxID string) bool {
	if g.SuperAdmins == nil {
		return false
	}
	_, ok := g.SuperAdmins[inboxID]
	return ok
}

// IsAdmin reports whether inboxID is an admin or super-admin.
func (g Group) IsAdmin(inboxID string) bool {
	if g.IsSuperAdmin(inboxID) {
		return true
	}
	if g.Admins == nil {
		return false
	}
	_, ok := g.Admins[inboxID]
	return ok
}

// IsPaused reports whether the group is gated behind a minimum protocol
// version the local client has not yet reached.
func (g Group) IsPaused() bool {
	return strings.TrimSpace(g.PausedUntilVersion) != ""
}

// Mutable metadata attribute length limits, matching the originating
// protocol's group_name/description/image_url_square/app_data bounds.
const (
	MaxGroupNameLength        = 256
	MaxGroupDescriptionLength = 1000
	MaxImageURLLength         = 2048
	MaxAppDataBytes           = 8192
)

// ValidateGroupMetadataAttributes enforces the mutable-metadata length caps
// against the attributes a metadata-update intent is about to stage,
// returning a *TooManyCharactersError naming the offending field so a
// caller can surface exactly which attribute and budget were violated.
func ValidateGroupMetadataAttributes(g Group) error {
	if n := len([]rune(g.Title)); n > MaxGroupNameLength {
		return &TooManyCharactersError{Field: "group_name", Length: n, Limit: MaxGroupNameLength}
	}
	if n := len([]rune(g.Description)); n > MaxGroupDescriptionLength {
		return &TooManyCharactersError{Field: "description", Length: n, Limit: MaxGroupDescriptionLength}
	}
	if n := len([]rune(g.Avatar)); n > MaxImageURLLength {
		return &TooManyCharactersError{Field: "image_url_square", Length: n, Limit: MaxImageURLLength}
	}
	if n := len(g.AppData); n > 0 {
		if g.AppDataDisallowed {
			return ErrGroupOperationDisallowed
		}
		if n > MaxAppDataBytes {
			return &TooManyCharactersError{Field: "app_data", Length: n, Limit: MaxAppDataBytes}
		}
	}
	return nil
}

// GroupMember describes member role and lifecycle state inside a group.
type GroupMember struct {
	GroupID     string            `json:"group_id"`
	MemberID    string            `json:"member_id"`
	Role        GroupMemberRole   `json:"role"`
	Status      GroupMemberStatus `json:"status"`
	InvitedAt   time.Time         `json:"invited_at"`
	ActivatedAt time.Time         `json:"activated_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (r GroupMemberRole) Valid() bool {
	switch r {
	case GroupMemberRoleOwner, GroupMemberRoleAdmin, GroupMemberRoleUser:
		return true
	default:
		return false
	}
}

// NormalizeGroupMemberID trims a caller-supplied member id and rejects it
// once empty, the same shape NormalizeGroupID and NormalizeGroupTitle
// apply to their own fields.
func NormalizeGroupMemberID(memberID string) (string, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return "", ErrInvalidGroupMemberID
	}
	return memberID, nil
}

func ParseGroupMemberRole(raw string) (GroupMemberRole, error) {
	role := GroupMemberRole(strings.TrimSpace(raw))
	if !role.Valid() {
		return "", ErrInvalidGroupMemberRole
	}
	return role, nil
}

func (s GroupMemberStatus) Valid() bool {
	switch s {
	case GroupMemberStatusInvited, GroupMemberStatusActive, GroupMemberStatusLeft, GroupMemberStatusRemoved:
		return true
	default:
		return false
	}
}

func ParseGroupMemberStatus(raw string) (GroupMemberStatus, error) {
	status := GroupMemberStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		return "", ErrInvalidGroupMemberStatus
	}
	return status, nil
}

// ValidateGroupMember centralizes group member validation rules.
func ValidateGroupMember(member GroupMember) error {
	if strings.TrimSpace(member.GroupID) == "" {
		return ErrInvalidGroupID
	}
	if strings.TrimSpace(member.MemberID) == "" {
		return ErrInvalidGroupMemberID
	}
	if !member.Role.Valid() {
		return ErrInvalidGroupMemberRole
	}
	if !member.Status.Valid() {
		return ErrInvalidGroupMemberStatus
	}
	return nil
}

// ValidateGroupMemberStatusTransition checks lifecycle transitions:
// invited -> active|removed
// active  -> left|removed
// left    -> active|removed
// removed -> (terminal)
func ValidateGroupMemberStatusTransition(from, to GroupMemberStatus) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidGroupMemberStatus
	}
	if from == to {
		return nil
	}
	switch from {
	case GroupMemberStatusInvited:
		if to == GroupMemberStatusActive || to == GroupMemberStatusRemoved {
			return nil
		}
	case GroupMemberStatusActive:
		if to == GroupMemberStatusLeft || to == GroupMemberStatusRemoved {
			return nil
		}
	case GroupMemberStatusLeft:
		if to == GroupMemberStatusActive || to == GroupMemberStatusRemoved {
			return nil
		}
	case GroupMemberStatusRemoved:
		// terminal status
	}
	return ErrInvalidGroupMemberStatusTransition
}
