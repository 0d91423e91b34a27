package group

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"aim-chat/go-backend/internal/crypto"
	"aim-chat/go-backend/internal/securestore"
)

// MLSStore persists the per-installation MLS state the Group State Machine
// needs across a restart that the event-sourced GroupState snapshot in
// state_store.go does not cover: the key package inventory, the local
// intent queue, each group's committed epoch secret, the consent ledger,
// and the per-installation welcome cursors. It follows SnapshotStore's
// exact read-decrypt/write-encrypt discipline (one encrypted JSON blob,
// versioned payload) rather than inventing a second persistence mechanism.
type MLSStore struct {
	path   string
	secret string
}

func NewMLSStore() *MLSStore {
	return &MLSStore{}
}

func (s *MLSStore) Configure(path, secret string) {
	s.path, s.secret = securestore.NormalizeStorageConfig(path, secret)
}

// MLSSnapshot is the full in-memory MLS pipeline state written per persist
// call, matching SnapshotStore.Persist's whole-state-per-write contract.
type MLSSnapshot struct {
	KeyPackages    map[string][]KeyPackage            `json:"key_packages"`    // by installation id
	Intents        map[string][]Intent                `json:"intents"`         // by group id
	EpochSecrets   map[string]crypto.GroupEpochSecret `json:"epoch_secrets"`   // by group id, last committed
	Consents       map[string]ConsentRecord           `json:"consents"`        // by ConsentKey
	WelcomeCursors map[string]int64                   `json:"welcome_cursors"` // by installation id, last processed ns
}

// EmptyMLSSnapshot returns a snapshot with every collection allocated.
func EmptyMLSSnapshot() MLSSnapshot {
	return MLSSnapshot{
		KeyPackages:    map[string][]KeyPackage{},
		Intents:        map[string][]Intent{},
		EpochSecrets:   map[string]crypto.GroupEpochSecret{},
		Consents:       map[string]ConsentRecord{},
		WelcomeCursors: map[string]int64{},
	}
}

type persistedMLSState struct {
	Version int `json:"version"`
	MLSSnapshot
}

// Bootstrap loads the persisted MLS state, or returns an empty snapshot
// (and writes an initial empty file) the first time a data directory is
// used, mirroring SnapshotStore.Bootstrap. A version-1 payload written
// before the consent/welcome-cursor collections existed loads with those
// maps empty.
func (s *MLSStore) Bootstrap() (MLSSnapshot, error) {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return EmptyMLSSnapshot(), nil
	}
	plaintext, err := securestore.ReadDecryptedFile(s.path, s.secret)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			snapshot := EmptyMLSSnapshot()
			if err := s.Persist(snapshot); err != nil {
				return MLSSnapshot{}, err
			}
			return snapshot, nil
		}
		return MLSSnapshot{}, err
	}

	var state persistedMLSState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return MLSSnapshot{}, err
	}
	if state.Version != 1 {
		return MLSSnapshot{}, errors.New("mls state persistence payload is invalid")
	}
	return normalizeMLSSnapshot(state.MLSSnapshot)
}

// Persist writes a full snapshot of the MLS pipeline state. Callers pass
// the complete in-memory collections each time.
func (s *MLSStore) Persist(snapshot MLSSnapshot) error {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return nil
	}
	normalized, err := normalizeMLSSnapshot(snapshot)
	if err != nil {
		return err
	}
	state := persistedMLSState{Version: 1, MLSSnapshot: normalized}
	return securestore.WriteEncryptedJSON(s.path, s.secret, state)
}

func (s *MLSStore) Wipe() error {
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func normalizeMLSSnapshot(in MLSSnapshot) (MLSSnapshot, error) {
	out := MLSSnapshot{
		KeyPackages:    cloneKeyPackages(in.KeyPackages),
		Intents:        cloneIntents(in.Intents),
		EpochSecrets:   cloneEpochSecrets(in.EpochSecrets),
		Consents:       cloneConsents(in.Consents),
		WelcomeCursors: cloneWelcomeCursors(in.WelcomeCursors),
	}
	if out.KeyPackages == nil {
		out.KeyPackages = map[string][]KeyPackage{}
	}
	for installationID, kps := range out.KeyPackages {
		installationID = strings.TrimSpace(installationID)
		if installationID == "" {
			return MLSSnapshot{}, ErrInvalidInstallationID
		}
		for i := range kps {
			if err := ValidateKeyPackage(kps[i]); err != nil {
				return MLSSnapshot{}, err
			}
			if strings.TrimSpace(kps[i].InstallationID) != installationID {
				return MLSSnapshot{}, ErrInvalidInstallationID
			}
		}
		sort.Slice(kps, func(i, j int) bool { return kps[i].CreatedAt.Before(kps[j].CreatedAt) })
		out.KeyPackages[installationID] = kps
	}

	if out.Intents == nil {
		out.Intents = map[string][]Intent{}
	}
	for groupID, list := range out.Intents {
		groupID = strings.TrimSpace(groupID)
		if groupID == "" {
			return MLSSnapshot{}, ErrInvalidGroupID
		}
		for i := range list {
			if err := ValidateIntent(list[i]); err != nil {
				return MLSSnapshot{}, err
			}
			if list[i].GroupID != groupID {
				return MLSSnapshot{}, ErrInvalidGroupID
			}
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
		out.Intents[groupID] = list
	}

	if out.EpochSecrets == nil {
		out.EpochSecrets = map[string]crypto.GroupEpochSecret{}
	}
	for groupID, secret := range out.EpochSecrets {
		groupID = strings.TrimSpace(groupID)
		if groupID == "" {
			return MLSSnapshot{}, ErrInvalidGroupID
		}
		if secret.GroupID != groupID {
			return MLSSnapshot{}, ErrInvalidGroupID
		}
	}

	if out.Consents == nil {
		out.Consents = map[string]ConsentRecord{}
	}
	for key, record := range out.Consents {
		if err := ValidateConsentRecord(record); err != nil {
			return MLSSnapshot{}, err
		}
		if key != ConsentKey(record.EntityType, record.EntityID) {
			return MLSSnapshot{}, ErrInvalidConsentEntity
		}
	}

	if out.WelcomeCursors == nil {
		out.WelcomeCursors = map[string]int64{}
	}
	for installationID := range out.WelcomeCursors {
		if strings.TrimSpace(installationID) == "" {
			return MLSSnapshot{}, ErrInvalidInstallationID
		}
	}

	return out, nil
}

func cloneKeyPackages(src map[string][]KeyPackage) map[string][]KeyPackage {
	if src == nil {
		return nil
	}
	out := make(map[string][]KeyPackage, len(src))
	for id, kps := range src {
		cloned := make([]KeyPackage, len(kps))
		copy(cloned, kps)
		out[id] = cloned
	}
	return out
}

func cloneIntents(src map[string][]Intent) map[string][]Intent {
	if src == nil {
		return nil
	}
	out := make(map[string][]Intent, len(src))
	for id, list := range src {
		cloned := make([]Intent, len(list))
		copy(cloned, list)
		out[id] = cloned
	}
	return out
}

func cloneEpochSecrets(src map[string]crypto.GroupEpochSecret) map[string]crypto.GroupEpochSecret {
	if src == nil {
		return nil
	}
	out := make(map[string]crypto.GroupEpochSecret, len(src))
	for id, secret := range src {
		out[id] = secret
	}
	return out
}

func cloneConsents(src map[string]ConsentRecord) map[string]ConsentRecord {
	if src == nil {
		return nil
	}
	out := make(map[string]ConsentRecord, len(src))
	for key, record := range src {
		out[key] = record
	}
	return out
}

func cloneWelcomeCursors(src map[string]int64) map[string]int64 {
	if src == nil {
		return nil
	}
	out := make(map[string]int64, len(src))
	for id, ns := range src {
		out[id] = ns
	}
	return out
}
