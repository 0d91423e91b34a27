package usecase

import (
	"errors"
	"testing"
	"time"
)

func newTestOrchestratorRuntime(groupID string) *RuntimeState {
	runtime := NewRuntimeState()
	runtime.States[groupID] = NewGroupState(Group{ID: groupID, Title: "room"})
	return runtime
}

func buildTitleChangeEvent(intent Intent, expectedVersion uint64) (GroupEvent, error) {
	return GroupEvent{
		ID:         "evt-" + intent.ID,
		GroupID:    intent.GroupID,
		Version:    expectedVersion,
		Type:       GroupEventTypeTitleChange,
		ActorID:    "actor-1",
		OccurredAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Title:      "new title",
	}, nil
}

func TestSyncOrchestratorPublishPendingIntentsSucceeds(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	queue := &IntentQueue{GenerateID: func(prefix string) (string, error) { return prefix + "-1", nil }, Enqueued: map[string][]Intent{}}
	intent, err := queue.Enqueue(groupID, IntentKindMetadataUpdate, nil)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	var published []GroupEvent
	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Intents: queue,
		Publish: func(event GroupEvent) error {
			published = append(published, event)
			return nil
		},
	}

	if err := orchestrator.PublishPendingIntents(groupID, buildTitleChangeEvent); err != nil {
		t.Fatalf("publish pending intents failed: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("expected one event published, got %d", len(published))
	}
	if queue.Enqueued[groupID][0].ID != intent.ID {
		t.Fatalf("unexpected intent mutated")
	}
	if queue.Enqueued[groupID][0].State != IntentStatePublished {
		t.Fatalf("expected intent marked published, got %q", queue.Enqueued[groupID][0].State)
	}
}

func TestSyncOrchestratorPublishPendingIntentsRetriesOnEpochSkew(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	queue := &IntentQueue{GenerateID: func(prefix string) (string, error) { return prefix + "-1", nil }, Enqueued: map[string][]Intent{}}
	if _, err := queue.Enqueue(groupID, IntentKindMetadataUpdate, nil); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	attempts := 0
	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Intents: queue,
		Publish: func(event GroupEvent) error {
			attempts++
			if attempts < 2 {
				return ErrEpochSkew
			}
			return nil
		},
	}

	if err := orchestrator.PublishPendingIntents(groupID, buildTitleChangeEvent); err != nil {
		t.Fatalf("publish pending intents failed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected a retry after epoch skew, got %d attempts", attempts)
	}
}

func TestSyncOrchestratorPublishPendingIntentsGivesUpOnOtherErrors(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	queue := &IntentQueue{GenerateID: func(prefix string) (string, error) { return prefix + "-1", nil }, Enqueued: map[string][]Intent{}}
	if _, err := queue.Enqueue(groupID, IntentKindMetadataUpdate, nil); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	boom := errors.New("network unreachable")
	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Intents: queue,
		Publish: func(event GroupEvent) error { return boom },
	}

	if err := orchestrator.PublishPendingIntents(groupID, buildTitleChangeEvent); err != boom {
		t.Fatalf("expected publish error to surface unchanged, got %v", err)
	}
}

func TestSyncOrchestratorConfirmCommitAppliesEventAndMarksIntent(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	queue := &IntentQueue{GenerateID: func(prefix string) (string, error) { return prefix + "-1", nil }, Enqueued: map[string][]Intent{}}
	intent, err := queue.Enqueue(groupID, IntentKindMetadataUpdate, nil)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := queue.MarkPublished(groupID, intent.ID); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}

	orchestrator := &SyncOrchestrator{Runtime: runtime, Intents: queue}
	event := GroupEvent{
		ID:         "evt-1",
		GroupID:    groupID,
		Version:    1,
		Type:       GroupEventTypeTitleChange,
		ActorID:    "actor-1",
		OccurredAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Title:      "new title",
	}

	if err := orchestrator.ConfirmCommit(groupID, intent.ID, event, nil); err != nil {
		t.Fatalf("confirm commit failed: %v", err)
	}
	if runtime.States[groupID].Group.Title != "new title" {
		t.Fatalf("expected title change to apply, got %q", runtime.States[groupID].Group.Title)
	}
	if queue.Enqueued[groupID][0].State != IntentStateCommitted {
		t.Fatalf("expected intent marked committed, got %q", queue.Enqueued[groupID][0].State)
	}
}

func TestSyncOrchestratorSyncWelcomesSkipsFailedDecrypts(t *testing.T) {
	runtime := NewRuntimeState()
	welcomes := &WelcomeProcessor{
		States: map[string]GroupState{},
		RecipientPrivateKey: func(string) ([]byte, error) {
			return nil, errors.New("no key available")
		},
	}
	orchestrator := &SyncOrchestrator{
		Runtime:  runtime,
		Welcomes: welcomes,
		FetchAllWelcomes: func() ([]WelcomeMessage, error) {
			return []WelcomeMessage{{GroupID: "group-a"}, {GroupID: "group-b"}}, nil
		},
	}

	count, err := orchestrator.SyncWelcomes()
	if err != nil {
		t.Fatalf("sync welcomes failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero successfully processed welcomes given failing decrypt, got %d", count)
	}
}

func TestSyncOrchestratorSyncGroupAdvancesCursorPastHighestSequence(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	var advancedTo uint64
	var advanceCalls int

	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Inbound: &InboundOrchestrationService{
			States:          runtime.States,
			IsBlockedSender: func(string) bool { return false },
		},
		FetchRemoteEnvelopes: func(id string, since uint64) ([]RemoteEnvelope, error) {
			if since != 0 {
				t.Fatalf("expected first fetch to start from zero cursor, got %d", since)
			}
			return []RemoteEnvelope{
				{GroupID: groupID, Sequence: 5, Kind: "message", Message: InboundGroupMessageParams{ConversationID: groupID, MessageID: "m1"}},
				{GroupID: groupID, Sequence: 9, Kind: "message", Message: InboundGroupMessageParams{ConversationID: groupID, MessageID: "m2"}},
			}, nil
		},
		AdvanceCursor: func(id string, cursor uint64) error {
			advanceCalls++
			advancedTo = cursor
			return nil
		},
	}

	if err := orchestrator.SyncGroup(groupID, nil); err != nil {
		t.Fatalf("sync group failed: %v", err)
	}
	if advanceCalls != 1 {
		t.Fatalf("expected cursor to be advanced exactly once, got %d calls", advanceCalls)
	}
	if advancedTo != 9 {
		t.Fatalf("expected cursor advanced to highest sequence 9, got %d", advancedTo)
	}
}

func TestSyncOrchestratorSyncGroupSkipsAlreadyProcessedEnvelopes(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	state := runtime.States[groupID]
	state.Group.Cursor = map[string]uint64{"remote": 9}
	runtime.States[groupID] = state

	var processed int
	var advanceCalls int

	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Inbound: &InboundOrchestrationService{
			States: runtime.States,
			IsBlockedSender: func(string) bool {
				processed++
				return false
			},
		},
		FetchRemoteEnvelopes: func(id string, since uint64) ([]RemoteEnvelope, error) {
			if since != 9 {
				t.Fatalf("expected fetch to start from the persisted cursor 9, got %d", since)
			}
			return []RemoteEnvelope{
				{GroupID: groupID, Sequence: 9, Kind: "message", Message: InboundGroupMessageParams{ConversationID: groupID, MessageID: "m1"}},
			}, nil
		},
		AdvanceCursor: func(id string, cursor uint64) error {
			advanceCalls++
			return nil
		},
	}

	if err := orchestrator.SyncGroup(groupID, nil); err != nil {
		t.Fatalf("sync group failed: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected envelope at or below the cursor to be skipped as a no-op, got %d handler invocations", processed)
	}
	if advanceCalls != 0 {
		t.Fatalf("expected no cursor advance when nothing new was processed, got %d calls", advanceCalls)
	}
}

func TestSyncGroupMarksDuplicateIntentCommittedNoop(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	queue := &IntentQueue{GenerateID: func(prefix string) (string, error) { return prefix + "-1", nil }, Enqueued: map[string][]Intent{}}
	intent, err := queue.Enqueue(groupID, IntentKindAddMembers, []byte(`{"actor_id":"inbox-a","member_id":"inbox-c","role":"user"}`))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Intents: queue,
		FetchRemoteEnvelopes: func(string, uint64) ([]RemoteEnvelope, error) {
			// Another device committed the same add before our intent ever published.
			return []RemoteEnvelope{{
				GroupID:  groupID,
				Sequence: 4,
				Kind:     "event",
				Event: InboundGroupEventParams{
					SenderID:       "inbox-b",
					ConversationID: groupID,
					EventID:        "evt-remote",
					EventType:      string(GroupEventTypeMemberAdd),
					Plain:          []byte(`{"member_id":"inbox-c","role":"user"}`),
				},
			}}, nil
		},
	}

	if err := orchestrator.SyncGroup(groupID, nil); err != nil {
		t.Fatalf("sync group failed: %v", err)
	}
	got := queue.Enqueued[groupID][0]
	if got.ID != intent.ID || got.State != IntentStateCommitted {
		t.Fatalf("expected duplicate intent committed, got %+v", got)
	}
	if !got.WasNoop {
		t.Fatal("expected duplicate intent flagged was_noop")
	}
}

func TestSyncGroupCompletesOwnEchoWithoutNoopFlag(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	queue := &IntentQueue{GenerateID: func(prefix string) (string, error) { return prefix + "-1", nil }, Enqueued: map[string][]Intent{}}
	intent, err := queue.Enqueue(groupID, IntentKindAddMembers, []byte(`{"actor_id":"inbox-a","member_id":"inbox-c","role":"user"}`))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := queue.MarkPublished(groupID, intent.ID); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}

	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Intents: queue,
		FetchRemoteEnvelopes: func(string, uint64) ([]RemoteEnvelope, error) {
			return []RemoteEnvelope{{
				GroupID:  groupID,
				Sequence: 4,
				Kind:     "event",
				Event: InboundGroupEventParams{
					SenderID:       "inbox-a", // our own echo
					ConversationID: groupID,
					EventID:        "evt-echo",
					EventType:      string(GroupEventTypeMemberAdd),
					Plain:          []byte(`{"member_id":"inbox-c","role":"user"}`),
				},
			}}, nil
		},
	}

	if err := orchestrator.SyncGroup(groupID, nil); err != nil {
		t.Fatalf("sync group failed: %v", err)
	}
	got := queue.Enqueued[groupID][0]
	if got.State != IntentStateCommitted {
		t.Fatalf("expected echoed intent committed, got %q", got.State)
	}
	if got.WasNoop {
		t.Fatal("own echo must not be flagged was_noop")
	}
}

func TestSyncGroupLeavesUnrelatedIntentPending(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	queue := &IntentQueue{GenerateID: func(prefix string) (string, error) { return prefix + "-1", nil }, Enqueued: map[string][]Intent{}}
	if _, err := queue.Enqueue(groupID, IntentKindAddMembers, []byte(`{"actor_id":"inbox-a","member_id":"inbox-d","role":"user"}`)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		Intents: queue,
		FetchRemoteEnvelopes: func(string, uint64) ([]RemoteEnvelope, error) {
			return []RemoteEnvelope{{
				GroupID:  groupID,
				Sequence: 4,
				Kind:     "event",
				Event: InboundGroupEventParams{
					SenderID:       "inbox-b",
					ConversationID: groupID,
					EventID:        "evt-remote",
					EventType:      string(GroupEventTypeMemberAdd),
					Plain:          []byte(`{"member_id":"inbox-c","role":"user"}`), // different member
				},
			}}, nil
		},
	}

	if err := orchestrator.SyncGroup(groupID, nil); err != nil {
		t.Fatalf("sync group failed: %v", err)
	}
	if got := queue.Enqueued[groupID][0].State; got != IntentStateToPublish {
		t.Fatalf("unrelated intent must stay pending, got %q", got)
	}
}

func TestSyncGroupsWithConsentFiltersAndSkipsHidden(t *testing.T) {
	runtime := NewRuntimeState()
	mk := func(id string, consent ConsentState, hidden bool) {
		state := NewGroupState(Group{ID: id, Title: id, ConsentState: consent, Hidden: hidden})
		runtime.States[id] = state
	}
	mk("g-allowed", ConsentStateAllowed, false)
	mk("g-unknown", ConsentStateUnknown, false)
	mk("g-hidden", ConsentStateAllowed, true)

	var fetched []string
	orchestrator := &SyncOrchestrator{
		Runtime: runtime,
		FetchRemoteEnvelopes: func(id string, since uint64) ([]RemoteEnvelope, error) {
			fetched = append(fetched, id)
			return nil, nil
		},
	}

	if errs := orchestrator.SyncGroupsWithConsent([]ConsentState{ConsentStateAllowed}, nil); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(fetched) != 1 || fetched[0] != "g-allowed" {
		t.Fatalf("expected only the allowed, visible group to sync, got %v", fetched)
	}

	fetched = nil
	if errs := orchestrator.SyncGroupsWithConsent(nil, nil); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(fetched) != 2 {
		t.Fatalf("empty filter should sync every visible group, got %v", fetched)
	}
}

func TestSyncOrchestratorSyncAllGroupsUsesListKnownGroupIDs(t *testing.T) {
	groupID := "group-1"
	runtime := newTestOrchestratorRuntime(groupID)
	called := []string{}
	orchestrator := &SyncOrchestrator{
		Runtime:           runtime,
		ListKnownGroupIDs: func() []string { return []string{groupID} },
		FetchRemoteEnvelopes: func(id string, since uint64) ([]RemoteEnvelope, error) {
			called = append(called, id)
			return nil, nil
		},
	}

	errs := orchestrator.SyncAllGroups(nil)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(called) != 1 || called[0] != groupID {
		t.Fatalf("expected SyncGroup to fetch envelopes for %q, got %v", groupID, called)
	}
}
