package usecase

import (
	"testing"
	"time"

	"aim-chat/go-backend/pkg/models"
)

func inboundTestState(version uint64, keyVersion uint32) GroupState {
	state := NewGroupState(Group{ID: "group-1", Title: "g", CreatedBy: "inbox-a"})
	state.Version = version
	state.LastKeyVersion = keyVersion
	state.Members["inbox-b"] = GroupMember{
		GroupID:  "group-1",
		MemberID: "inbox-b",
		Role:     GroupMemberRoleUser,
		Status:   GroupMemberStatusActive,
	}
	return state
}

func TestHandleInboundGroupMessageAcceptsWithinSkewWindow(t *testing.T) {
	states := map[string]GroupState{"group-1": inboundTestState(4, 2)}
	var saved []models.Message
	svc := &InboundOrchestrationService{
		States:        states,
		MaxPastEpochs: 1,
		BuildStoredMessage: func(in InboundGroupMessageParams, content []byte, contentType string, now time.Time) models.Message {
			return models.Message{ID: in.MessageID, ConversationID: in.ConversationID, Content: content, Timestamp: now}
		},
		SaveMessage: func(msg models.Message) error {
			saved = append(saved, msg)
			return nil
		},
	}
	svc.HandleInboundGroupMessage(InboundGroupMessageParams{
		MessageID:         "m-1",
		SenderID:          "inbox-b",
		ConversationID:    "group-1",
		EventID:           "e-1",
		Payload:           []byte("hello"),
		MembershipVersion: 3, // one commit behind, inside the window
		GroupKeyVersion:   2,
	})
	if len(saved) != 1 {
		t.Fatalf("expected the lagging message to be accepted, saved=%d", len(saved))
	}
	if string(saved[0].Content) != "hello" {
		t.Fatalf("unexpected content %q", saved[0].Content)
	}
}

func TestInboundGroupMessageFutureEpochMarksFork(t *testing.T) {
	states := map[string]GroupState{"group-1": inboundTestState(4, 2)}
	var marked []ForkDetail
	svc := &InboundOrchestrationService{
		States:        states,
		MaxPastEpochs: 3,
		MarkMaybeForked: func(groupID string, detail ForkDetail) {
			if groupID != "group-1" {
				t.Fatalf("unexpected group id %q", groupID)
			}
			marked = append(marked, detail)
		},
	}
	svc.HandleInboundGroupMessage(InboundGroupMessageParams{
		MessageID:         "m-1",
		SenderID:          "inbox-b",
		ConversationID:    "group-1",
		EventID:           "e-1",
		MembershipVersion: 9,
		GroupKeyVersion:   2,
		SenderDeviceID:    "dev-b",
	})
	if len(marked) != 1 {
		t.Fatalf("expected one fork detail, got %d", len(marked))
	}
	if marked[0].RemoteEpoch != 9 || marked[0].LocalEpoch != 4 {
		t.Fatalf("unexpected fork detail: %+v", marked[0])
	}
	if marked[0].OriginatorID != "dev-b" {
		t.Fatalf("unexpected originator: %q", marked[0].OriginatorID)
	}
}

func TestInboundGroupMessageStaleEpochRejectedWithoutFork(t *testing.T) {
	states := map[string]GroupState{"group-1": inboundTestState(9, 5)}
	forked := false
	var categories []string
	svc := &InboundOrchestrationService{
		States:          states,
		MaxPastEpochs:   2,
		MarkMaybeForked: func(string, ForkDetail) { forked = true },
		RecordError:     func(category string, err error) { categories = append(categories, category) },
	}
	svc.HandleInboundGroupMessage(InboundGroupMessageParams{
		MessageID:         "m-1",
		SenderID:          "inbox-b",
		ConversationID:    "group-1",
		EventID:           "e-1",
		MembershipVersion: 6,
		GroupKeyVersion:   5,
	})
	if forked {
		t.Fatal("stale epoch must not be treated as a fork")
	}
	if len(categories) == 0 {
		t.Fatal("expected the rejection to be recorded")
	}
}

func TestInboundGroupEventRefreshesPauseState(t *testing.T) {
	gated := inboundTestState(3, 1)
	gated.Group.CreatedBy = "inbox-b" // the gate raiser must be a super-admin
	states := map[string]GroupState{"group-1": gated}
	svc := &InboundOrchestrationService{
		States:               states,
		EventLog:             map[string][]GroupEvent{},
		IdentityID:           func() string { return "inbox-a" },
		LocalProtocolVersion: "1.0.0",
	}
	svc.HandleInboundGroupEvent(InboundGroupEventParams{
		SenderID:          "inbox-b",
		ConversationID:    "group-1",
		EventID:           "evt-gate",
		EventType:         string(GroupEventTypeMetadataUpdate),
		MembershipVersion: 4,
		Plain:             []byte(`{"min_supported_protocol_version":"2.0.0"}`),
	})
	got := states["group-1"].Group
	if got.MinSupportedProtocolVersion != "2.0.0" {
		t.Fatalf("expected gate merged, got %q", got.MinSupportedProtocolVersion)
	}
	if got.PausedUntilVersion != "2.0.0" {
		t.Fatalf("expected group paused until 2.0.0, got %q", got.PausedUntilVersion)
	}
}

func TestInboundGroupEventVersionGapMarksFork(t *testing.T) {
	states := map[string]GroupState{"group-1": inboundTestState(3, 1)}
	var marked []ForkDetail
	applied := false
	svc := &InboundOrchestrationService{
		States:     states,
		EventLog:   map[string][]GroupEvent{},
		IdentityID: func() string { return "inbox-a" },
		MarkMaybeForked: func(groupID string, detail ForkDetail) {
			marked = append(marked, detail)
		},
		NotifyGroupUpdated: func(GroupEvent) { applied = true },
	}
	svc.HandleInboundGroupEvent(InboundGroupEventParams{
		SenderID:          "inbox-b",
		ConversationID:    "group-1",
		EventID:           "evt-99",
		EventType:         string(GroupEventTypeMemberAdd),
		MembershipVersion: 7,
		Plain:             []byte(`{"member_id":"inbox-c","role":"user"}`),
	})
	if len(marked) != 1 {
		t.Fatalf("expected fork detail for version gap, got %d", len(marked))
	}
	if marked[0].RemoteEpoch != 7 || marked[0].LocalEpoch != 3 {
		t.Fatalf("unexpected fork detail: %+v", marked[0])
	}
	if applied {
		t.Fatal("gapped commit must not merge")
	}
}
