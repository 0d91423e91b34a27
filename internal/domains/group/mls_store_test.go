package group

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"aim-chat/go-backend/internal/crypto"
	"aim-chat/go-backend/internal/testutil/fsperm"
)

func TestMLSStoreBootstrapDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mls.enc")
	store := NewMLSStore()
	store.Configure(path, "test-secret")

	snapshot, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if len(snapshot.KeyPackages) != 0 || len(snapshot.Intents) != 0 || len(snapshot.EpochSecrets) != 0 {
		t.Fatalf("expected empty maps, got %d/%d/%d", len(snapshot.KeyPackages), len(snapshot.Intents), len(snapshot.EpochSecrets))
	}
	if snapshot.Consents == nil || snapshot.WelcomeCursors == nil {
		t.Fatal("expected allocated consent and welcome-cursor maps")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected mls state file to be created, err=%v", err)
	}
}

func TestMLSStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mls.enc")
	store := NewMLSStore()
	store.Configure(path, "test-secret")

	now := time.Now().UTC().Truncate(time.Second)
	snapshot := MLSSnapshot{
		KeyPackages: map[string][]KeyPackage{
			"inst-1": {
				{ID: "kp-1", InstallationID: "inst-1", InboxID: "inbox-1", PublicKey: []byte{1, 2, 3}, CreatedAt: now, ExpiresAt: now.Add(DefaultKeyPackageLifetime)},
			},
		},
		Intents: map[string][]Intent{
			"group-1": {
				{ID: "intent-1", GroupID: "group-1", Kind: IntentKindSendMessage, State: IntentStateToPublish, CreatedAt: now},
			},
		},
		EpochSecrets: map[string]crypto.GroupEpochSecret{
			"group-1": {GroupID: "group-1", Epoch: 2, Secret: []byte{1, 2, 3, 4}, MessageKey: []byte{5, 6, 7, 8}, DerivedAt: now},
		},
		Consents: map[string]ConsentRecord{
			ConsentKey(ConsentEntityInboxID, "inbox-2"): {
				EntityType: ConsentEntityInboxID, EntityID: "inbox-2", State: ConsentStateAllowed, UpdatedAt: now,
			},
		},
		WelcomeCursors: map[string]int64{"inst-1": now.UnixNano()},
	}

	if err := store.Persist(snapshot); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	reload := NewMLSStore()
	reload.Configure(path, "test-secret")
	got, err := reload.Bootstrap()
	if err != nil {
		t.Fatalf("reload bootstrap failed: %v", err)
	}
	if len(got.KeyPackages["inst-1"]) != 1 || got.KeyPackages["inst-1"][0].ID != "kp-1" {
		t.Fatalf("unexpected key packages: %+v", got.KeyPackages)
	}
	if len(got.Intents["group-1"]) != 1 || got.Intents["group-1"][0].ID != "intent-1" {
		t.Fatalf("unexpected intents: %+v", got.Intents)
	}
	if got.EpochSecrets["group-1"].Epoch != 2 {
		t.Fatalf("unexpected epoch secret: %+v", got.EpochSecrets["group-1"])
	}
	consent := got.Consents[ConsentKey(ConsentEntityInboxID, "inbox-2")]
	if consent.State != ConsentStateAllowed {
		t.Fatalf("unexpected consent record: %+v", consent)
	}
	if got.WelcomeCursors["inst-1"] != now.UnixNano() {
		t.Fatalf("unexpected welcome cursor: %d", got.WelcomeCursors["inst-1"])
	}
}

func TestMLSStorePersistRejectsInvalidKeyPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mls.enc")
	store := NewMLSStore()
	store.Configure(path, "test-secret")

	snapshot := MLSSnapshot{
		KeyPackages: map[string][]KeyPackage{
			"inst-1": {
				{ID: "", InstallationID: "inst-1", InboxID: "inbox-1", PublicKey: []byte{1}},
			},
		},
	}
	if err := store.Persist(snapshot); err != ErrInvalidKeyPackageID {
		t.Fatalf("expected ErrInvalidKeyPackageID, got %v", err)
	}
}

func TestMLSStorePersistRejectsMismatchedConsentKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mls.enc")
	store := NewMLSStore()
	store.Configure(path, "test-secret")

	snapshot := MLSSnapshot{
		Consents: map[string]ConsentRecord{
			"wrong-key": {EntityType: ConsentEntityInboxID, EntityID: "inbox-2", State: ConsentStateAllowed},
		},
	}
	if err := store.Persist(snapshot); err == nil {
		t.Fatal("expected error for consent record stored under the wrong key")
	}
}

func TestMLSStoreBootstrapCorruptedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mls.enc")
	if err := os.WriteFile(path, []byte("corrupted"), 0o600); err != nil {
		t.Fatalf("write corrupted payload failed: %v", err)
	}

	store := NewMLSStore()
	store.Configure(path, "test-secret")
	if _, err := store.Bootstrap(); err == nil {
		t.Fatal("expected bootstrap error for corrupted payload")
	}
}

func TestMLSStorePersistCreatesPrivateDir(t *testing.T) {
	baseDir := t.TempDir()
	path := filepath.Join(baseDir, "secure", "mls.enc")
	store := NewMLSStore()
	store.Configure(path, "test-secret")

	if err := store.Persist(EmptyMLSSnapshot()); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	fsperm.AssertPrivateDirPerm(t, filepath.Dir(path))
}

func TestMLSStoreWipeRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mls.enc")
	store := NewMLSStore()
	store.Configure(path, "test-secret")
	if err := store.Persist(EmptyMLSSnapshot()); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	if err := store.Wipe(); err != nil {
		t.Fatalf("wipe failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected mls state file removed, err=%v", err)
	}

	if err := store.Wipe(); err != nil {
		t.Fatalf("second wipe on an already-removed file should be a no-op: %v", err)
	}
}
