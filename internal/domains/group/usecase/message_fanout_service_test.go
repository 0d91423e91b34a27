package usecase

import (
	"errors"
	"testing"
	"time"

	"aim-chat/go-backend/pkg/models"
)

func fanoutFixtureState(minVersion string) GroupState {
	state := NewGroupState(Group{ID: "group-1", Title: "general", CreatedBy: "actor", MinSupportedProtocolVersion: minVersion})
	state.Version = 3
	state.LastKeyVersion = 1
	for _, id := range []string{"actor", "member-b", "member-c"} {
		state.Members[id] = GroupMember{GroupID: "group-1", MemberID: id, Role: GroupMemberRoleUser, Status: GroupMemberStatusActive}
	}
	return state
}

func TestGroupMessageFanout_SinglePublishReachesRoster(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	saved := map[string]models.Message{}
	var published []GroupMessageWireMeta
	var statuses []string
	service := &GroupMessageFanoutService{
		States:         map[string]GroupState{"group-1": fanoutFixtureState("")},
		IdentityID:     func() string { return "actor" },
		ActiveDeviceID: func() (string, error) { return "dev-1", nil },
		Now:            func() time.Time { return now },
		GetMessage: func(id string) (models.Message, bool) {
			msg, ok := saved[id]
			return msg, ok
		},
		SaveMessage: func(msg models.Message) error {
			saved[msg.ID] = msg
			return nil
		},
		PublishSealed: func(msg models.Message, meta GroupMessageWireMeta) error {
			published = append(published, meta)
			return nil
		},
		UpdateStatus: func(messageID, status string) error {
			statuses = append(statuses, messageID+"="+status)
			return nil
		},
	}

	result, err := service.SendGroupMessageFanout("group-1", "evt-1", "hello", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if result.Attempted != 2 || result.Delivered != 2 || result.Pending != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(published) != 1 {
		t.Fatalf("group send must publish exactly once, got %d", len(published))
	}
	if published[0].MembershipVersion != 3 || published[0].GroupKeyVersion != 1 || published[0].SenderDeviceID != "dev-1" {
		t.Fatalf("unexpected wire meta: %+v", published[0])
	}
	storedID := DeriveRecipientMessageID("evt-1", "actor")
	if _, ok := saved[storedID]; !ok {
		t.Fatalf("expected sender-side copy stored under %q", storedID)
	}
	if len(statuses) != 1 || statuses[0] != storedID+"=sent" {
		t.Fatalf("expected stored message marked sent, got %v", statuses)
	}

	// A duplicate send for the same event id reports the stored outcome
	// without a second publish.
	dup, err := service.SendGroupMessageFanout("group-1", "evt-1", "hello", "")
	if err != nil {
		t.Fatalf("duplicate send failed: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("duplicate send must not re-publish, got %d publishes", len(published))
	}
	if len(dup.Recipients) != 2 || !dup.Recipients[0].Duplicate {
		t.Fatalf("expected duplicate-flagged result, got %+v", dup)
	}
}

func TestGroupMessageFanout_PublishFailureQueuesRetry(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	saved := map[string]models.Message{}
	var queued []models.Message
	boom := errors.New("transport down")
	service := &GroupMessageFanoutService{
		States:         map[string]GroupState{"group-1": fanoutFixtureState("")},
		IdentityID:     func() string { return "actor" },
		ActiveDeviceID: func() (string, error) { return "dev-1", nil },
		Now:            func() time.Time { return now },
		SaveMessage: func(msg models.Message) error {
			saved[msg.ID] = msg
			return nil
		},
		PublishSealed: func(models.Message, GroupMessageWireMeta) error { return boom },
		QueueRetry: func(msg models.Message, publishErr error) error {
			if !errors.Is(publishErr, boom) {
				t.Fatalf("unexpected publish error: %v", publishErr)
			}
			queued = append(queued, msg)
			return nil
		},
	}

	result, err := service.SendGroupMessageFanout("group-1", "evt-1", "hello", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if result.Pending != 2 || result.Delivered != 0 {
		t.Fatalf("publish failure should leave the send pending, got %+v", result)
	}
	if len(queued) != 1 {
		t.Fatalf("expected one retry-queued message, got %d", len(queued))
	}
}

func TestGroupMessageFanout_NonMemberRejected(t *testing.T) {
	service := &GroupMessageFanoutService{
		States:         map[string]GroupState{"group-1": fanoutFixtureState("")},
		IdentityID:     func() string { return "stranger" },
		ActiveDeviceID: func() (string, error) { return "dev-1", nil },
	}
	if _, err := service.SendGroupMessageFanout("group-1", "evt-1", "hello", ""); !errors.Is(err, ErrGroupPermissionDenied) {
		t.Fatalf("expected permission denial for non-member, got %v", err)
	}
}

func TestGroupMessageFanout_PausedGroupRejectsSend(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	service := &GroupMessageFanoutService{
		States:          map[string]GroupState{"group-1": fanoutFixtureState("2.0.0")},
		IdentityID:      func() string { return "actor" },
		ActiveDeviceID:  func() (string, error) { return "dev-1", nil },
		Now:             func() time.Time { return now },
		SaveMessage:     func(models.Message) error { return nil },
		ProtocolVersion: "1.2.3",
	}

	_, err := service.SendGroupMessageFanout("group-1", "evt-1", "hello", "")
	if !errors.Is(err, ErrGroupPausedOnVersionGate) {
		t.Fatalf("expected paused-group rejection, got %v", err)
	}
	var paused *GroupPausedError
	if !errors.As(err, &paused) || paused.RequiredVersion != "2.0.0" {
		t.Fatalf("expected pause error carrying required version, got %v", err)
	}

	// Once the client catches up, the gate clears and the send proceeds.
	service.ProtocolVersion = "2.0.0"
	if _, err := service.SendGroupMessageFanout("group-1", "evt-1", "hello", ""); err != nil {
		t.Fatalf("expected gate to clear after upgrade, got %v", err)
	}
}
