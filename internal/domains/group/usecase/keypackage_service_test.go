package usecase

import (
	"errors"
	"testing"
	"time"
)

func fakeKeyPairGen(counter *int) func() ([]byte, []byte, error) {
	return func() ([]byte, []byte, error) {
		*counter++
		pub := make([]byte, 32)
		pub[0] = byte(*counter)
		priv := make([]byte, 32)
		priv[0] = byte(*counter)
		return pub, priv, nil
	}
}

func idGen(counter *int) func(prefix string) (string, error) {
	return func(prefix string) (string, error) {
		*counter++
		return prefix + "-" + time.Now().UTC().Format("150405") + "-" + string(rune('a'+*counter)), nil
	}
}

func newTestKeyPackageManager(store map[string][]KeyPackage) (*KeyPackageManager, *int) {
	keyCounter := 0
	idCounter := 0
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mgr := &KeyPackageManager{
		InstallationID:  "inst-1",
		InboxID:         "inbox-1",
		Now:             func() time.Time { return now },
		GenerateID:      idGen(&idCounter),
		GenerateKeyPair: fakeKeyPairGen(&keyCounter),
		ListForInstallation: func(id string) ([]KeyPackage, error) {
			return store[id], nil
		},
		Save: func(kp KeyPackage) error {
			store[kp.InstallationID] = append(store[kp.InstallationID], kp)
			return nil
		},
		MarkConsumed: func(id, groupID string, consumedAt time.Time) error {
			for installationID, kps := range store {
				for i, kp := range kps {
					if kp.ID == id {
						kp.ConsumedAt = consumedAt
						kp.ConsumedByGroup = groupID
						kps[i] = kp
						store[installationID] = kps
						return nil
					}
				}
			}
			return errors.New("not found")
		},
	}
	return mgr, &keyCounter
}

func TestKeyPackageManagerPublishLastResort(t *testing.T) {
	store := map[string][]KeyPackage{}
	mgr, _ := newTestKeyPackageManager(store)

	kp, err := mgr.PublishLastResort()
	if err != nil {
		t.Fatalf("publish last resort failed: %v", err)
	}
	if !kp.LastResort {
		t.Fatalf("expected last resort flag set")
	}
	if !kp.ExpiresAt.IsZero() {
		t.Fatalf("last resort key packages should never expire")
	}
	if len(store["inst-1"]) != 1 {
		t.Fatalf("expected key package persisted, got %d", len(store["inst-1"]))
	}
}

func TestKeyPackageManagerPublishRetainsPrivateKey(t *testing.T) {
	store := map[string][]KeyPackage{}
	mgr, _ := newTestKeyPackageManager(store)

	kp, err := mgr.PublishLastResort()
	if err != nil {
		t.Fatalf("publish last resort failed: %v", err)
	}
	if len(kp.PrivateKey) == 0 {
		t.Fatalf("expected published key package to retain its private key for later welcome decryption")
	}
	if len(store["inst-1"]) != 1 || len(store["inst-1"][0].PrivateKey) == 0 {
		t.Fatalf("expected persisted key package to carry the private key too")
	}
}

func TestKeyPackageManagerRotateBelowWaterMark(t *testing.T) {
	store := map[string][]KeyPackage{}
	mgr, _ := newTestKeyPackageManager(store)

	_, rotated, err := mgr.Rotate()
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if !rotated {
		t.Fatalf("expected rotation when pool is empty")
	}
}

func TestKeyPackageManagerRotateAboveWaterMark(t *testing.T) {
	store := map[string][]KeyPackage{}
	mgr, _ := newTestKeyPackageManager(store)
	for i := 0; i < MinKeyPackagePoolSize+1; i++ {
		if _, _, err := mgr.Rotate(); err != nil {
			t.Fatalf("seed rotate %d failed: %v", i, err)
		}
	}

	_, rotated, err := mgr.Rotate()
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if rotated {
		t.Fatalf("expected no rotation once pool exceeds the low-water mark")
	}
}

func TestKeyPackageManagerSelectForWelcomePrefersOldestRotationPackage(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	store := map[string][]KeyPackage{
		"target": {
			{ID: "kp-old", InstallationID: "target", InboxID: "inbox-x", PublicKey: []byte{1}, CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
			{ID: "kp-new", InstallationID: "target", InboxID: "inbox-x", PublicKey: []byte{2}, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
			{ID: "kp-lastresort", InstallationID: "target", InboxID: "inbox-x", PublicKey: []byte{3}, CreatedAt: now.Add(-2 * time.Hour), LastResort: true},
		},
	}
	mgr, _ := newTestKeyPackageManager(store)

	kp, err := mgr.SelectForWelcome("target")
	if err != nil {
		t.Fatalf("select for welcome failed: %v", err)
	}
	if kp.ID != "kp-old" {
		t.Fatalf("expected oldest rotation package, got %q", kp.ID)
	}
}

func TestKeyPackageManagerSelectForWelcomeFallsBackToLastResort(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	store := map[string][]KeyPackage{
		"target": {
			{ID: "kp-lastresort", InstallationID: "target", InboxID: "inbox-x", PublicKey: []byte{3}, CreatedAt: now.Add(-2 * time.Hour), LastResort: true},
		},
	}
	mgr, _ := newTestKeyPackageManager(store)

	kp, err := mgr.SelectForWelcome("target")
	if err != nil {
		t.Fatalf("select for welcome failed: %v", err)
	}
	if kp.ID != "kp-lastresort" {
		t.Fatalf("expected fallback to last-resort package, got %q", kp.ID)
	}
}

func TestKeyPackageManagerSelectForWelcomeNoneAvailable(t *testing.T) {
	store := map[string][]KeyPackage{}
	mgr, _ := newTestKeyPackageManager(store)

	if _, err := mgr.SelectForWelcome("target"); err != ErrGroupNotFound {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
}

func TestKeyPackageManagerConsumeSkipsLastResort(t *testing.T) {
	store := map[string][]KeyPackage{}
	mgr, _ := newTestKeyPackageManager(store)
	kp, err := mgr.PublishLastResort()
	if err != nil {
		t.Fatalf("publish last resort failed: %v", err)
	}

	if err := mgr.Consume(kp, "group-1"); err != nil {
		t.Fatalf("consume should be a no-op for last-resort packages: %v", err)
	}
	if store["inst-1"][0].Consumed() {
		t.Fatalf("last resort package should never be marked consumed")
	}
}

func TestKeyPackageManagerConsumeMarksRotationPackage(t *testing.T) {
	store := map[string][]KeyPackage{}
	mgr, _ := newTestKeyPackageManager(store)
	kp, _, err := mgr.Rotate()
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	if err := mgr.Consume(kp, "group-1"); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if !store["inst-1"][0].Consumed() {
		t.Fatalf("expected rotation package to be marked consumed")
	}
	if store["inst-1"][0].ConsumedByGroup != "group-1" {
		t.Fatalf("expected consumed_by_group set to group-1, got %q", store["inst-1"][0].ConsumedByGroup)
	}
}
