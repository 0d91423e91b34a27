package model

import (
	"errors"
	"strings"
	"time"
)

// IntentKind enumerates the shapes of local mutation the group state
// machine can stage before publishing them to the network as a commit or
// application message.
type IntentKind string

const (
	IntentKindSendMessage     IntentKind = "send_message"
	IntentKindMetadataUpdate  IntentKind = "metadata_update"
	IntentKindAddMembers      IntentKind = "add_members"
	IntentKindRemoveMembers   IntentKind = "remove_members"
	IntentKindKeyUpdate       IntentKind = "key_update"
	IntentKindAdminListUpdate IntentKind = "admin_list_update"
	// IntentKindUpdatePermission stages a new PolicySet for the group.
	IntentKindUpdatePermission IntentKind = "update_permission"
	// IntentKindSelfLeave stages the leave-request commit a departing
	// member broadcasts ahead of the admin-remove commit that actually
	// drops them from the roster.
	IntentKindSelfLeave IntentKind = "self_leave"
	// IntentKindAdminRemove stages the commit a super-admin's sync
	// schedules once it observes a non-empty pending_remove set left
	// behind by IntentKindSelfLeave.
	IntentKindAdminRemove IntentKind = "admin_remove"
)

func (k IntentKind) Valid() bool {
	switch k {
	case IntentKindSendMessage, IntentKindMetadataUpdate, IntentKindAddMembers,
		IntentKindRemoveMembers, IntentKindKeyUpdate, IntentKindAdminListUpdate,
		IntentKindUpdatePermission, IntentKindSelfLeave, IntentKindAdminRemove:
		return true
	default:
		return false
	}
}

// IntentState tracks an intent through the publish pipeline. ToPublish is
// the only state a caller may create directly; every other state is
// reached through the intent queue's publish path (IntentQueue, driven by
// SyncOrchestrator).
type IntentState string

const (
	IntentStateToPublish IntentState = "to_publish"
	IntentStatePublished IntentState = "published"
	IntentStateCommitted IntentState = "committed"
	IntentStateError     IntentState = "error"
)

func (s IntentState) Valid() bool {
	switch s {
	case IntentStateToPublish, IntentStatePublished, IntentStateCommitted, IntentStateError:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidIntentID    = errors.New("invalid intent id")
	ErrInvalidIntentKind  = errors.New("invalid intent kind")
	ErrInvalidIntentState = errors.New("invalid intent state")
	ErrIntentStuck        = errors.New("intent remained unpublished past its retry budget")
)

// Intent is the queue entry used to stage a locally-generated change ahead
// of publishing it over the network. The queue gives the group state
// machine a place to record "I committed this locally" independent of
// whether the network round trip that should carry the same change has
// completed, so a retry after a crash can tell a not-yet-sent intent apart
// from one whose publish is merely unacknowledged.
type Intent struct {
	ID          string      `json:"id"`
	GroupID     string      `json:"group_id"`
	Kind        IntentKind  `json:"kind"`
	State       IntentState `json:"state"`
	Payload     []byte      `json:"payload"`
	CreatedAt   time.Time   `json:"created_at"`
	PublishedAt time.Time   `json:"published_at,omitempty"`
	Attempts    int         `json:"attempts"`
	LastError   string      `json:"last_error,omitempty"`
	// WasNoop marks an intent that reached Committed without producing a
	// new commit because an identical mutation had already been merged
	// (e.g. a duplicate add-member retried after a crash before its ack
	// was recorded). The caller still sees Committed; WasNoop lets it
	// distinguish "applied" from "already applied" for logging/telemetry.
	WasNoop bool `json:"was_noop,omitempty"`
}

// MaxIntentPublishAttempts bounds the epoch-skew retry loop (see the group
// state machine's publish path): after this many collisions against a
// concurrently-advanced epoch, the intent is surfaced to the caller as
// stuck rather than retried indefinitely.
const MaxIntentPublishAttempts = 5

// ValidateIntent applies structural checks on a caller-submitted intent
// before it enters the queue.
func ValidateIntent(intent Intent) error {
	if strings.TrimSpace(intent.ID) == "" {
		return ErrInvalidIntentID
	}
	if strings.TrimSpace(intent.GroupID) == "" {
		return ErrInvalidGroupID
	}
	if !intent.Kind.Valid() {
		return ErrInvalidIntentKind
	}
	if !intent.State.Valid() {
		return ErrInvalidIntentState
	}
	return nil
}

// ValidateIntentStateTransition enforces the one-directional publish
// pipeline: to_publish -> published -> committed, with error reachable
// from either pre-commit state and no transition out of committed or
// error. to_publish may also jump straight to committed: the synchronous
// publish-and-merge path commits under one lock hold without a separate
// published step, and a still-unpublished intent can be satisfied by a
// remote commit carrying the same mutation.
func ValidateIntentStateTransition(from, to IntentState) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidIntentState
	}
	if from == to {
		return nil
	}
	switch from {
	case IntentStateToPublish:
		if to == IntentStatePublished || to == IntentStateCommitted || to == IntentStateError {
			return nil
		}
	case IntentStatePublished:
		if to == IntentStateCommitted || to == IntentStateError {
			return nil
		}
	}
	return ErrInvalidIntentState
}
