package daemon

import (
	"path/filepath"

	"aim-chat/go-backend/internal/storage"
)

// StorageBundle collects the encrypted stores and store paths the daemon
// mounts for the group core: message history, the identity signing key,
// the event-sourced group snapshot, and the MLS pipeline blob.
type StorageBundle struct {
	MessageStore   *storage.MessageStore
	IdentityPath   string
	GroupStatePath string
	MLSStatePath   string
}

func BuildStorageBundle(dataDir, secret string) (StorageBundle, error) {
	msgStore, err := storage.NewEncryptedPersistentMessageStore(filepath.Join(dataDir, "messages.json"), secret)
	if err != nil {
		return StorageBundle{}, err
	}
	return StorageBundle{
		MessageStore:   msgStore,
		IdentityPath:   filepath.Join(dataDir, "identity.enc"),
		GroupStatePath: filepath.Join(dataDir, "groups.enc"),
		MLSStatePath:   filepath.Join(dataDir, "mls.enc"),
	}, nil
}
