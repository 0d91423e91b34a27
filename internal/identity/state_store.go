package identity

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"aim-chat/go-backend/internal/securestore"
)

// StateStore persists the identity manager's signing key between daemon
// restarts, encrypted with the same securestore discipline the group
// stores use. Only the key is persisted: the identity id and the primary
// installation re-derive from it on restore. Installations added with
// AddDevice, revocations and contacts are not persisted, and a restore
// leaves the primary installation as the only device.
type StateStore struct {
	path   string
	secret string
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) Configure(path, secret string) {
	s.path = strings.TrimSpace(path)
	s.secret = strings.TrimSpace(secret)
}

type persistedIdentityState struct {
	Version           int    `json:"version"`
	SigningPrivateKey []byte `json:"signing_private_key"`
}

// Bootstrap restores a previously persisted identity into the manager, or
// persists the manager's freshly generated identity the first time a data
// directory is used.
func (s *StateStore) Bootstrap(manager *Manager) error {
	if strings.TrimSpace(s.path) == "" || strings.TrimSpace(s.secret) == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.Persist(manager)
		}
		return err
	}
	plaintext, err := securestore.Decrypt(s.secret, raw)
	if err != nil {
		return err
	}
	var state persistedIdentityState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return err
	}
	if state.Version != 1 || len(state.SigningPrivateKey) == 0 {
		return errors.New("identity persistence payload is invalid")
	}
	return manager.RestoreIdentityPrivateKey(state.SigningPrivateKey)
}

func (s *StateStore) Persist(manager *Manager) error {
	if strings.TrimSpace(s.path) == "" || strings.TrimSpace(s.secret) == "" {
		return nil
	}
	_, privateKey := manager.SnapshotIdentityKeys()
	payload, err := json.Marshal(persistedIdentityState{Version: 1, SigningPrivateKey: privateKey})
	if err != nil {
		return err
	}
	encrypted, err := securestore.Encrypt(s.secret, payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, encrypted, 0o600)
}

func (s *StateStore) Wipe() error {
	if strings.TrimSpace(s.path) == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
