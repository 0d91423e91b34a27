package usecase

import (
	"strings"
	"time"
)

// MinKeyPackagePoolSize is the rotation low-water mark: once an
// installation's unconsumed, unexpired key package count drops to or below
// this, the next sync pass rotates in a fresh one.
const MinKeyPackagePoolSize = 5

// RotationInterval is the time-based rotation trigger: a pool whose newest
// usable package is older than this is rotated even if it hasn't shrunk to
// the low-water mark yet.
const RotationInterval = DefaultKeyPackageLifetime / 2

// KeyPackageDeletionGracePeriod is how long a key package is kept around
// after it stops being usable (consumed, or expired unconsumed) before
// Sweep is allowed to physically delete it. The grace period lets a
// retried welcome referencing the same hash_ref still resolve to a known,
// already-consumed key package instead of an unknown one.
const KeyPackageDeletionGracePeriod = 72 * time.Hour

// KeyPackageManager owns publication, rotation, and consumption of an
// installation's key packages, following the same function-field
// dependency style as the rest of the usecase layer so it can be wired
// against whichever storage and id-generation primitives the caller has in
// hand without an interface boundary.
type KeyPackageManager struct {
	InstallationID string
	InboxID        string

	Now             func() time.Time
	GenerateID      func(prefix string) (string, error)
	GenerateKeyPair func() (public, private []byte, err error)

	// RotationEvery overrides RotationInterval when positive, letting the
	// composition layer wire the configured rotation cadence in.
	RotationEvery time.Duration

	ListForInstallation func(installationID string) ([]KeyPackage, error)
	Save                func(KeyPackage) error
	MarkConsumed        func(id, groupID string, consumedAt time.Time) error
	Delete              func(id string) error

	RecordError func(category string, err error)
}

func (m *KeyPackageManager) nowUTC() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

// Rotate publishes a fresh key package for the installation if
// needsRotation says the pool is due, mirroring the originating protocol's
// rotate_and_upload_key_package behavior.
func (m *KeyPackageManager) Rotate() (KeyPackage, bool, error) {
	if m.ListForInstallation == nil {
		return KeyPackage{}, false, nil
	}
	all, err := m.ListForInstallation(m.InstallationID)
	if err != nil {
		return KeyPackage{}, false, err
	}
	if !m.needsRotation(all) {
		return KeyPackage{}, false, nil
	}
	kp, err := m.publish(false)
	if err != nil {
		return KeyPackage{}, false, err
	}
	return kp, true, nil
}

// needsRotation applies the protocol's rotation triggers: the usable
// (unconsumed, unexpired, non-last-resort) pool has shrunk to the
// low-water mark, its newest package hasn't been topped up in
// RotationInterval, or a welcome has consumed a package more recently than
// the newest package still sitting in the pool.
func (m *KeyPackageManager) needsRotation(all []KeyPackage) bool {
	now := m.nowUTC()
	var usable int
	var newestUsable time.Time
	for _, kp := range all {
		if kp.LastResort || kp.Consumed() || kp.Expired(now) {
			continue
		}
		usable++
		if kp.CreatedAt.After(newestUsable) {
			newestUsable = kp.CreatedAt
		}
	}
	if usable <= MinKeyPackagePoolSize {
		return true
	}
	rotationEvery := m.RotationEvery
	if rotationEvery <= 0 {
		rotationEvery = RotationInterval
	}
	if !newestUsable.IsZero() && now.Sub(newestUsable) >= rotationEvery {
		return true
	}
	for _, kp := range all {
		if kp.LastResort || !kp.Consumed() {
			continue
		}
		if kp.ConsumedAt.After(newestUsable) {
			return true
		}
	}
	return false
}

// Sweep physically deletes key packages past their scheduled deletion
// instant (see scheduleDeletionBefore): consumed packages older than
// KeyPackageDeletionGracePeriod, and expired-unconsumed rotation packages
// past the same grace period beyond their expiry. Last-resort packages are
// never swept, since they are meant to be reused indefinitely.
func (m *KeyPackageManager) Sweep() (int, error) {
	if m.ListForInstallation == nil || m.Delete == nil {
		return 0, nil
	}
	all, err := m.ListForInstallation(m.InstallationID)
	if err != nil {
		return 0, err
	}
	now := m.nowUTC()
	var deleted int
	for _, kp := range all {
		deleteAt, scheduled := scheduleDeletionBefore(kp)
		if !scheduled || now.Before(deleteAt) {
			continue
		}
		if err := m.Delete(kp.ID); err != nil {
			if m.RecordError != nil {
				m.RecordError("keypackage_sweep", err)
			}
			continue
		}
		deleted++
	}
	return deleted, nil
}

// scheduleDeletionBefore returns the instant a key package becomes
// eligible for physical deletion.
func scheduleDeletionBefore(kp KeyPackage) (time.Time, bool) {
	if kp.LastResort {
		return time.Time{}, false
	}
	if kp.Consumed() {
		return kp.ConsumedAt.Add(KeyPackageDeletionGracePeriod), true
	}
	if !kp.ExpiresAt.IsZero() {
		return kp.ExpiresAt.Add(KeyPackageDeletionGracePeriod), true
	}
	return time.Time{}, false
}

// PublishLastResort installs a non-expiring, reusable key package that is
// served only when an installation's rotation pool has been fully
// consumed, trading forward secrecy for that one welcome against being
// unreachable entirely.
func (m *KeyPackageManager) PublishLastResort() (KeyPackage, error) {
	return m.publish(true)
}

func (m *KeyPackageManager) publish(lastResort bool) (KeyPackage, error) {
	if m.GenerateID == nil || m.GenerateKeyPair == nil || m.Save == nil {
		return KeyPackage{}, ErrInvalidGroupMessageContent
	}
	id, err := m.GenerateID("kp")
	if err != nil {
		return KeyPackage{}, err
	}
	public, private, err := m.GenerateKeyPair()
	if err != nil {
		return KeyPackage{}, err
	}
	now := m.nowUTC()
	kp := KeyPackage{
		ID:             id,
		InstallationID: m.InstallationID,
		InboxID:        m.InboxID,
		PublicKey:      public,
		PrivateKey:     private,
		CreatedAt:      now,
		LastResort:     lastResort,
	}
	if !lastResort {
		kp.ExpiresAt = now.Add(DefaultKeyPackageLifetime)
	}
	if err := ValidateKeyPackage(kp); err != nil {
		return KeyPackage{}, err
	}
	if err := m.Save(kp); err != nil {
		return KeyPackage{}, err
	}
	return kp, nil
}

// SelectForWelcome picks a key package to consume when inviting an
// installation into a group: prefer the oldest usable rotation package
// (so pool churn is FIFO), and fall back to a last-resort package only
// when the rotation pool is empty.
func (m *KeyPackageManager) SelectForWelcome(candidateInstallationID string) (KeyPackage, error) {
	if m.ListForInstallation == nil {
		return KeyPackage{}, ErrGroupNotFound
	}
	all, err := m.ListForInstallation(candidateInstallationID)
	if err != nil {
		return KeyPackage{}, err
	}
	now := m.nowUTC()
	var best, lastResort KeyPackage
	haveBest, haveLastResort := false, false
	for _, kp := range all {
		if kp.Consumed() || strings.TrimSpace(kp.InstallationID) != strings.TrimSpace(candidateInstallationID) {
			continue
		}
		if kp.LastResort {
			if !haveLastResort || kp.CreatedAt.Before(lastResort.CreatedAt) {
				lastResort = kp
				haveLastResort = true
			}
			continue
		}
		if kp.Expired(now) {
			continue
		}
		if !haveBest || kp.CreatedAt.Before(best.CreatedAt) {
			best = kp
			haveBest = true
		}
	}
	if haveBest {
		return best, nil
	}
	if haveLastResort {
		return lastResort, nil
	}
	return KeyPackage{}, ErrGroupNotFound
}

// Consume marks a key package used for a specific group welcome. Last
// resort packages are never marked consumed, since they are meant to be
// reused across multiple welcomes.
func (m *KeyPackageManager) Consume(kp KeyPackage, groupID string) error {
	if kp.LastResort || m.MarkConsumed == nil {
		return nil
	}
	return m.MarkConsumed(kp.ID, groupID, m.nowUTC())
}
