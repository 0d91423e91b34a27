package usecase

import (
	"testing"
	"time"

	aimcrypto "aim-chat/go-backend/internal/crypto"
	"golang.org/x/crypto/curve25519"
)

func sealedWelcomeBundle(t *testing.T, groupID string) (aimcrypto.WelcomeSecretBundle, []byte) {
	t.Helper()
	recipientPriv := make([]byte, curve25519.ScalarSize)
	for i := range recipientPriv {
		recipientPriv[i] = byte(i + 1)
	}
	recipientPub, err := curve25519.X25519(recipientPriv, curve25519.Basepoint)
	if err != nil {
		t.Fatalf("derive recipient public key failed: %v", err)
	}
	epoch := aimcrypto.GroupEpochSecret{GroupID: groupID, Epoch: 0, Secret: make([]byte, 32)}
	for i := range epoch.Secret {
		epoch.Secret[i] = byte(i + 9)
	}
	bundle, err := aimcrypto.SealWelcome(groupID, epoch, recipientPub)
	if err != nil {
		t.Fatalf("seal welcome failed: %v", err)
	}
	return bundle, recipientPriv
}

func TestWelcomeProcessorBootstrapsNewGroup(t *testing.T) {
	bundle, recipientPriv := sealedWelcomeBundle(t, "group-1")
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	var notified *Group

	processor := &WelcomeProcessor{
		States:              map[string]GroupState{},
		EventLog:            map[string][]GroupEvent{},
		Now:                 func() time.Time { return now },
		RecipientPrivateKey: func(string) ([]byte, error) { return recipientPriv, nil },
		GenerateEventID:     func() string { return "evt-1" },
		NotifyGroupJoined:   func(g Group) { notified = &g },
	}

	msg := WelcomeMessage{
		GroupID:          "group-1",
		ConversationType: ConversationTypeGroup,
		Title:            "Project Room",
		CreatedBy:        "inbox-owner",
		AddedByInboxID:   "inbox-owner",
		RecipientInboxID: "inbox-recipient",
		Bundle:           bundle,
		InitialMembers: []GroupMember{
			{GroupID: "group-1", MemberID: "inbox-owner", Role: GroupMemberRoleOwner, Status: GroupMemberStatusActive},
		},
	}

	state, schedule, err := processor.Process(msg)
	if err != nil {
		t.Fatalf("process welcome failed: %v", err)
	}
	if schedule == nil {
		t.Fatalf("expected a recovered key schedule")
	}
	if state.Group.ID != "group-1" {
		t.Fatalf("unexpected group id: %q", state.Group.ID)
	}
	recipient, ok := state.Members["inbox-recipient"]
	if !ok || recipient.Status != GroupMemberStatusActive {
		t.Fatalf("expected recipient to be activated as a member, got %+v", recipient)
	}
	if _, ok := state.Members["inbox-owner"]; !ok {
		t.Fatalf("expected initial member to be carried over")
	}
	if notified == nil || notified.ID != "group-1" {
		t.Fatalf("expected NotifyGroupJoined to fire with the new group")
	}
	if _, ok := processor.States["group-1"]; !ok {
		t.Fatalf("expected processor to retain the bootstrapped state")
	}
}

func TestWelcomeProcessorStitchesOntoExistingDM(t *testing.T) {
	bundle, recipientPriv := sealedWelcomeBundle(t, "dm-1")
	existing := NewGroupState(Group{ID: "dm-existing", ConversationType: ConversationTypeDirectMessage})

	processor := &WelcomeProcessor{
		States:              map[string]GroupState{"dm-existing": existing},
		RecipientPrivateKey: func(string) ([]byte, error) { return recipientPriv, nil },
		FindExistingDMGroupID: func(counterpartyID string) (string, bool) {
			if counterpartyID == "inbox-counterparty" {
				return "dm-existing", true
			}
			return "", false
		},
	}

	msg := WelcomeMessage{
		GroupID:          "dm-1",
		ConversationType: ConversationTypeDirectMessage,
		RecipientInboxID: "inbox-recipient",
		DMCounterpartyID: "inbox-counterparty",
		Bundle:           bundle,
	}

	state, _, err := processor.Process(msg)
	if err != nil {
		t.Fatalf("process welcome failed: %v", err)
	}
	if state.Group.ID != "dm-existing" {
		t.Fatalf("expected welcome to stitch onto existing dm, got %q", state.Group.ID)
	}
	tombstone, ok := processor.States["dm-1"]
	if !ok {
		t.Fatal("expected the duplicate dm id to be recorded as a stitch tombstone")
	}
	if !tombstone.Group.Hidden || tombstone.Group.StitchedIntoGroupID != "dm-existing" {
		t.Fatalf("unexpected tombstone: %+v", tombstone.Group)
	}
	if got := ResolveStitchedGroupID(processor.States, "dm-1"); got != "dm-existing" {
		t.Fatalf("expected duplicate id to resolve through the stitch chain, got %q", got)
	}
}

func TestResolveStitchedGroupID(t *testing.T) {
	states := map[string]GroupState{
		"dm-a": NewGroupState(Group{ID: "dm-a", StitchedIntoGroupID: "dm-b", Hidden: true}),
		"dm-b": NewGroupState(Group{ID: "dm-b", StitchedIntoGroupID: "dm-c", Hidden: true}),
		"dm-c": NewGroupState(Group{ID: "dm-c"}),
	}
	if got := ResolveStitchedGroupID(states, "dm-a"); got != "dm-c" {
		t.Fatalf("expected chain to resolve to dm-c, got %q", got)
	}
	if got := ResolveStitchedGroupID(states, "dm-c"); got != "dm-c" {
		t.Fatalf("canonical id should resolve to itself, got %q", got)
	}
	if got := ResolveStitchedGroupID(states, "unknown"); got != "unknown" {
		t.Fatalf("unknown id should resolve to itself, got %q", got)
	}

	// A corrupted cycle terminates rather than spinning.
	states["dm-c"] = NewGroupState(Group{ID: "dm-c", StitchedIntoGroupID: "dm-a"})
	_ = ResolveStitchedGroupID(states, "dm-a")
}

func TestWelcomeProcessorConsentLookupDenied(t *testing.T) {
	bundle, recipientPriv := sealedWelcomeBundle(t, "group-1")
	processor := &WelcomeProcessor{
		States:              map[string]GroupState{},
		RecipientPrivateKey: func(string) ([]byte, error) { return recipientPriv, nil },
		ConsentLookup: func(actorID string) ConsentState {
			if actorID == "blocked-inbox" {
				return ConsentStateDenied
			}
			return ConsentStateUnknown
		},
	}

	msg := WelcomeMessage{
		GroupID:          "group-1",
		ConversationType: ConversationTypeGroup,
		AddedByInboxID:   "blocked-inbox",
		RecipientInboxID: "inbox-recipient",
		Bundle:           bundle,
	}

	state, _, err := processor.Process(msg)
	if err != nil {
		t.Fatalf("process welcome failed: %v", err)
	}
	if state.Group.ConsentState != ConsentStateDenied {
		t.Fatalf("expected denied consent, got %q", state.Group.ConsentState)
	}
	if state.Group.MembershipState != GroupMembershipStateRejected {
		t.Fatalf("expected rejected membership, got %q", state.Group.MembershipState)
	}
}

func TestWelcomeProcessorRejectsTamperedBundle(t *testing.T) {
	bundle, recipientPriv := sealedWelcomeBundle(t, "group-1")
	bundle.Ciphertext[0] ^= 0xFF

	processor := &WelcomeProcessor{
		States:              map[string]GroupState{},
		RecipientPrivateKey: func(string) ([]byte, error) { return recipientPriv, nil },
	}

	msg := WelcomeMessage{GroupID: "group-1", ConversationType: ConversationTypeGroup, Bundle: bundle}
	if _, _, err := processor.Process(msg); err != aimcrypto.ErrWelcomeDecryptFailure {
		t.Fatalf("expected ErrWelcomeDecryptFailure for a tampered bundle, got %v", err)
	}
}

func TestWelcomeProcessorAutoConsent(t *testing.T) {
	bundle, recipientPriv := sealedWelcomeBundle(t, "group-1")
	processor := &WelcomeProcessor{
		States:              map[string]GroupState{},
		RecipientPrivateKey: func(string) ([]byte, error) { return recipientPriv, nil },
		IsAutoConsented:     func(actorID string) bool { return actorID == "trusted-inbox" },
	}

	msg := WelcomeMessage{
		GroupID:          "group-1",
		ConversationType: ConversationTypeGroup,
		AddedByInboxID:   "trusted-inbox",
		RecipientInboxID: "inbox-recipient",
		Bundle:           bundle,
	}

	state, _, err := processor.Process(msg)
	if err != nil {
		t.Fatalf("process welcome failed: %v", err)
	}
	if state.Group.ConsentState != ConsentStateAllowed {
		t.Fatalf("expected auto-consented welcome to set consent state allowed, got %q", state.Group.ConsentState)
	}
	if state.Group.MembershipState != GroupMembershipStateAllowed {
		t.Fatalf("expected auto-consented welcome to set membership state allowed, got %q", state.Group.MembershipState)
	}
}
