package usecase

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrEpochSkew is returned by a Publish callback when the network rejected
// a commit because another device advanced the group's epoch first.
var ErrEpochSkew = errors.New("commit rejected: remote epoch has advanced")

// RemoteEnvelope is a single fetched item from the transport layer, either
// a group commit/application message or a welcome, queued for processing
// by the sync loop.
type RemoteEnvelope struct {
	GroupID  string
	Sequence uint64
	Kind     string // "message", "event", or "welcome"
	Message  InboundGroupMessageParams
	Event    InboundGroupEventParams
	Welcome  WelcomeMessage
}

// PublishIntentFunc broadcasts a single commit/message event over the
// transport layer. It should return ErrEpochSkew specifically when the
// rejection is due to a concurrent epoch advance, so the orchestrator's
// retry loop knows to regenerate the commit against the new epoch rather
// than give up.
type PublishIntentFunc func(event GroupEvent) error

// SyncOrchestrator drives the network round trip for both directions of
// group traffic: publishing locally staged intents (with the
// epoch-skew retry loop described by the group state machine's design)
// and draining inbound welcomes and group envelopes. It composes the
// narrower services (IntentQueue, WelcomeProcessor, InboundOrchestrationService)
// the same way Service composes MembershipService and
// GroupMessageFanoutService, rather than reimplementing their logic.
type SyncOrchestrator struct {
	Runtime *RuntimeState

	Intents  *IntentQueue
	Welcomes *WelcomeProcessor
	Inbound  *InboundOrchestrationService

	Now func() time.Time

	FetchRemoteEnvelopes func(groupID string, sinceSequence uint64) ([]RemoteEnvelope, error)
	FetchAllWelcomes     func() ([]WelcomeMessage, error)
	Publish              PublishIntentFunc

	ListKnownGroupIDs func() []string

	// AdvanceCursor persists a group's new high-water remote cursor after a
	// batch of envelopes has been processed. Called under the group lock.
	AdvanceCursor func(groupID string, cursor uint64) error

	// MaxPublishAttempts overrides MaxIntentPublishAttempts when positive,
	// letting the composition layer wire the configured retry budget in.
	MaxPublishAttempts int

	RecordError func(category string, err error)
	LogInfo     func(message string, args ...any)
}

func (o *SyncOrchestrator) maxPublishAttempts() int {
	if o.MaxPublishAttempts > 0 {
		return o.MaxPublishAttempts
	}
	return MaxIntentPublishAttempts
}

func (o *SyncOrchestrator) nowUTC() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

func (o *SyncOrchestrator) recordErr(category string, err error) {
	if o.RecordError != nil && err != nil {
		o.RecordError(category, err)
	}
}

func (o *SyncOrchestrator) logInfo(message string, args ...any) {
	if o.LogInfo != nil {
		o.LogInfo(message, args...)
	}
}

// PublishPendingIntents drains a single group's intent queue, generating a
// commit at the group's current epoch for each pending intent and
// retrying against the new epoch whenever the publish collides with a
// concurrently-merged commit from another device (matching the
// originating protocol's optimistic-concurrency commit loop, bounded by
// MaxIntentPublishAttempts).
func (o *SyncOrchestrator) PublishPendingIntents(groupID string, buildEvent func(intent Intent, expectedVersion uint64) (GroupEvent, error)) error {
	if o.Intents == nil || o.Publish == nil {
		return nil
	}
	lock := o.Runtime.GroupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	for _, intent := range o.Intents.Pending(groupID) {
		if err := o.publishOneIntent(groupID, intent, buildEvent); err != nil {
			o.recordErr("mls_processing", err)
			return err
		}
	}
	return nil
}

func (o *SyncOrchestrator) publishOneIntent(groupID string, intent Intent, buildEvent func(Intent, uint64) (GroupEvent, error)) error {
	for attempt := 0; attempt < o.maxPublishAttempts(); attempt++ {
		state, ok := o.Runtime.States[groupID]
		if !ok {
			return ErrGroupNotFound
		}
		event, err := buildEvent(intent, state.Version+1)
		if err != nil {
			return err
		}
		err = o.Publish(event)
		if err == nil {
			if markErr := o.Intents.MarkPublished(groupID, intent.ID); markErr != nil {
				return markErr
			}
			o.logInfo("intent published", "group_id", groupID, "intent_id", intent.ID, "epoch", event.Version)
			return nil
		}
		if !errors.Is(err, ErrEpochSkew) {
			return err
		}
		o.logInfo("intent publish collided with epoch advance, retrying", "group_id", groupID, "intent_id", intent.ID, "attempt", attempt+1)
		if retryErr := o.Intents.RetryOrFail(groupID, intent.ID, err); retryErr != nil {
			return retryErr
		}
	}
	return ErrIntentStuck
}

// ConfirmCommit applies a successfully published commit to local state
// (the same event that was just broadcast) and marks its originating
// intent committed. This models the second half of generate-commit:
// having a network ack doesn't mean the local merge happened yet, and the
// two must be kept consistent under the group's lock.
func (o *SyncOrchestrator) ConfirmCommit(groupID string, intentID string, event GroupEvent, persist SnapshotPersist) error {
	lock := o.Runtime.GroupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	state, ok := o.Runtime.States[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	if _, _, err := ApplyEventsWithRollback(state, o.Runtime.States, o.Runtime.EventLog, persist, event); err != nil {
		return err
	}
	if o.Intents != nil {
		return o.Intents.MarkCommitted(groupID, intentID)
	}
	return nil
}

// PublishAndConfirmIntent stages a single intent through the full
// publish-then-merge cycle under one hold of the group's lock: generate a
// commit at the current epoch, publish it, retry on epoch-skew, and on
// success immediately apply the same event to local state and mark the
// intent committed, instead of waiting for the echo a periodic sync pass
// would otherwise pick up. This gives a synchronous RPC caller an answer
// without needing to wait on the next SyncGroup pass's echo path, at the
// cost of merging twice (once here, once again, as a no-op, if the same
// commit is later re-observed over the wire) — ApplyGroupEvent's
// already-applied check absorbs that.
func (o *SyncOrchestrator) PublishAndConfirmIntent(groupID string, intent Intent, buildEvent func(Intent, uint64) (GroupEvent, error), persist SnapshotPersist) (GroupEvent, error) {
	if o.Intents == nil || o.Publish == nil {
		return GroupEvent{}, ErrGroupNotFound
	}
	lock := o.Runtime.GroupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < o.maxPublishAttempts(); attempt++ {
		state, ok := o.Runtime.States[groupID]
		if !ok {
			return GroupEvent{}, ErrGroupNotFound
		}
		event, err := buildEvent(intent, state.Version+1)
		if err != nil {
			return GroupEvent{}, err
		}
		err = o.Publish(event)
		if err == nil {
			if _, _, applyErr := ApplyEventsWithRollback(state, o.Runtime.States, o.Runtime.EventLog, persist, event); applyErr != nil {
				return GroupEvent{}, applyErr
			}
			if markErr := o.Intents.MarkCommitted(groupID, intent.ID); markErr != nil {
				return event, markErr
			}
			o.logInfo("intent published and committed", "group_id", groupID, "intent_id", intent.ID, "epoch", event.Version)
			return event, nil
		}
		if !errors.Is(err, ErrEpochSkew) {
			return GroupEvent{}, err
		}
		o.logInfo("intent publish collided with epoch advance, retrying", "group_id", groupID, "intent_id", intent.ID, "attempt", attempt+1)
		if retryErr := o.Intents.RetryOrFail(groupID, intent.ID, err); retryErr != nil {
			return GroupEvent{}, retryErr
		}
	}
	return GroupEvent{}, ErrIntentStuck
}

// SyncWelcomes drains every pending welcome from the transport layer,
// bootstrapping (or stitching onto) local group state for each. This
// mirrors the originating protocol's sync_welcomes.
func (o *SyncOrchestrator) SyncWelcomes() (int, error) {
	if o.FetchAllWelcomes == nil || o.Welcomes == nil {
		return 0, nil
	}
	pending, err := o.FetchAllWelcomes()
	if err != nil {
		o.recordErr("network", err)
		return 0, err
	}
	processed := 0
	for _, welcome := range pending {
		lock := o.Runtime.GroupLock(strings.TrimSpace(welcome.GroupID))
		lock.Lock()
		_, _, err := o.Welcomes.Process(welcome)
		lock.Unlock()
		if err != nil {
			o.recordErr("mls_processing", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// SyncGroup fetches one group's inbound envelopes (messages, events) ahead
// of the group lock, then applies each under the lock and advances the
// cursor, then flushes any still-pending local intents. Per the sync
// design, network I/O (the fetch) never happens while the lock is held;
// processing (which mutates local state) always does.
func (o *SyncOrchestrator) SyncGroup(groupID string, buildEvent func(Intent, uint64) (GroupEvent, error)) error {
	if o.FetchRemoteEnvelopes == nil {
		return nil
	}
	lock := o.Runtime.GroupLock(groupID)

	lock.Lock()
	var cursor uint64
	if state, ok := o.Runtime.States[groupID]; ok {
		cursor = state.Group.Cursor["remote"]
	}
	lock.Unlock()

	envelopes, err := o.FetchRemoteEnvelopes(groupID, cursor)
	if err != nil {
		o.recordErr("network", err)
		return err
	}

	lock.Lock()
	maxCursor := cursor
	for _, env := range envelopes {
		if env.Sequence != 0 && env.Sequence <= cursor {
			// Already processed: at-most-once delivery, no-op.
			continue
		}
		switch env.Kind {
		case "message":
			if o.Inbound != nil {
				o.Inbound.HandleInboundGroupMessage(env.Message)
			}
		case "event":
			if o.Inbound != nil {
				o.Inbound.HandleInboundGroupEvent(env.Event)
			}
			o.reconcileIntentsWithRemoteEvent(groupID, env.Event)
		case "welcome":
			if o.Welcomes != nil {
				if _, _, err := o.Welcomes.Process(env.Welcome); err != nil {
					o.recordErr("mls_processing", err)
				}
			}
		}
		if env.Sequence > maxCursor {
			maxCursor = env.Sequence
		}
	}
	if maxCursor > cursor && o.AdvanceCursor != nil {
		if err := o.AdvanceCursor(groupID, maxCursor); err != nil {
			o.recordErr("storage", err)
		}
	}
	lock.Unlock()

	if buildEvent != nil {
		return o.PublishPendingIntents(groupID, buildEvent)
	}
	return nil
}

// reconcileIntentsWithRemoteEvent resolves pending local membership intents
// against a commit just merged from the wire. Two cases collapse here: the
// echo of our own earlier publish (same actor) completes its intent
// normally, while a commit from another device that already performed the
// same mutation — the concurrent-add race — marks the duplicate intent
// committed with was_noop set, so it is never re-published and never emits
// a second welcome.
func (o *SyncOrchestrator) reconcileIntentsWithRemoteEvent(groupID string, event InboundGroupEventParams) {
	if o.Intents == nil {
		return
	}
	for _, intent := range o.Intents.Pending(groupID) {
		actorID, satisfied := intentSatisfiedByRemoteEvent(intent, event)
		if !satisfied {
			continue
		}
		var err error
		if strings.TrimSpace(event.SenderID) == actorID {
			err = o.Intents.MarkCommitted(groupID, intent.ID)
			o.logInfo("pending intent completed by own echo", "group_id", groupID, "intent_id", intent.ID)
		} else {
			err = o.Intents.MarkCommittedNoop(groupID, intent.ID)
			o.logInfo("pending intent satisfied by remote commit", "group_id", groupID, "intent_id", intent.ID, "was_noop", true)
		}
		if err != nil {
			o.recordErr("mls_processing", err)
		}
	}
}

// intentSatisfiedByRemoteEvent reports whether a merged remote commit makes
// the given pending intent redundant, returning the intent's acting inbox
// id so the caller can tell an echo apart from a competing device's
// duplicate. Only membership mutations reconcile this way: a metadata or
// permission intent is re-staged on the next publish pass instead, since a
// remote commit of the same type does not imply the same values.
func intentSatisfiedByRemoteEvent(intent Intent, event InboundGroupEventParams) (string, bool) {
	var remote struct {
		MemberID string `json:"member_id"`
	}
	if len(event.Plain) > 0 {
		if err := json.Unmarshal(event.Plain, &remote); err != nil {
			return "", false
		}
	}
	var local struct {
		ActorID  string `json:"actor_id"`
		MemberID string `json:"member_id"`
	}
	if err := json.Unmarshal(intent.Payload, &local); err != nil {
		return "", false
	}
	if remote.MemberID == "" || local.MemberID != remote.MemberID {
		return "", false
	}
	switch intent.Kind {
	case IntentKindAddMembers:
		return local.ActorID, event.EventType == string(GroupEventTypeMemberAdd)
	case IntentKindRemoveMembers, IntentKindAdminRemove:
		return local.ActorID, event.EventType == string(GroupEventTypeMemberRemove)
	case IntentKindSelfLeave:
		return local.ActorID, event.EventType == string(GroupEventTypeLeaveRequest)
	default:
		return "", false
	}
}

// SyncAllGroups runs SyncGroup over every group the local client currently
// knows about, equivalent to the originating protocol's sync_all_groups.
func (o *SyncOrchestrator) SyncAllGroups(buildEvent func(Intent, uint64) (GroupEvent, error)) []error {
	var groupIDs []string
	if o.ListKnownGroupIDs != nil {
		groupIDs = o.ListKnownGroupIDs()
	} else {
		for id := range o.Runtime.States {
			groupIDs = append(groupIDs, id)
		}
	}
	var errs []error
	for _, groupID := range groupIDs {
		if err := o.SyncGroup(groupID, buildEvent); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SyncGroupsWithConsent runs SyncGroup over the groups whose consent state
// is in the given set, mirroring sync_all_groups' optional consent filter:
// a caller refreshing only the inbox view passes {allowed}, a request-review
// surface passes {unknown}. An empty filter means every group. Hidden
// stitch tombstones are always skipped — their traffic belongs to the
// canonical group they point at.
func (o *SyncOrchestrator) SyncGroupsWithConsent(filter []ConsentState, buildEvent func(Intent, uint64) (GroupEvent, error)) []error {
	allowed := make(map[ConsentState]struct{}, len(filter))
	for _, state := range filter {
		allowed[state] = struct{}{}
	}
	var errs []error
	for groupID, state := range o.Runtime.States {
		if state.Group.Hidden {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[state.Group.ConsentState]; !ok {
				continue
			}
		}
		if err := o.SyncGroup(groupID, buildEvent); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SyncAllWelcomesAndGroups is the top-level periodic sync entry point:
// drain welcomes first so newly joined groups are visible to the
// subsequent all-groups pass, equivalent to the originating protocol's
// sync_all_welcomes_and_groups.
func (o *SyncOrchestrator) SyncAllWelcomesAndGroups(buildEvent func(Intent, uint64) (GroupEvent, error)) (int, []error) {
	joined, err := o.SyncWelcomes()
	if err != nil {
		return joined, []error{err}
	}
	return joined, o.SyncAllGroups(buildEvent)
}
