package daemon

import (
	"errors"
	"strings"
)

const DefaultDataDir = "go-backend/data"

// ResolveStorage resolves the data directory, its storage passphrase, and
// the store bundle built from both. When existing encrypted data cannot be
// opened with the resolved passphrase, an explicitly provided legacy
// secret (AIM_LEGACY_STORAGE_PASSPHRASE) is tried once and, on success,
// promoted to the persisted storage key.
func ResolveStorage(dataDir string) (resolvedDir, secret string, bundle StorageBundle, err error) {
	resolvedDir = strings.TrimSpace(dataDir)
	if resolvedDir == "" {
		resolvedDir = DefaultDataDir
	}

	secret, err = StoragePassphrase(resolvedDir)
	if err != nil {
		legacy := LegacyMigrationSecret()
		if legacy == "" || !errors.Is(err, ErrLegacyStorageSecretRequired) {
			return "", "", StorageBundle{}, err
		}
		bundle, err = BuildStorageBundle(resolvedDir, legacy)
		if err != nil {
			return "", "", StorageBundle{}, err
		}
		if werr := WriteStorageKey(resolvedDir, legacy); werr != nil {
			return "", "", StorageBundle{}, werr
		}
		return resolvedDir, legacy, bundle, nil
	}

	bundle, err = BuildStorageBundle(resolvedDir, secret)
	if err == nil {
		return resolvedDir, secret, bundle, nil
	}
	legacy := LegacyMigrationSecret()
	if legacy == "" || legacy == secret {
		return "", "", StorageBundle{}, err
	}
	bundle, err = BuildStorageBundle(resolvedDir, legacy)
	if err != nil {
		return "", "", StorageBundle{}, err
	}
	if werr := WriteStorageKey(resolvedDir, legacy); werr != nil {
		return "", "", StorageBundle{}, werr
	}
	return resolvedDir, legacy, bundle, nil
}
