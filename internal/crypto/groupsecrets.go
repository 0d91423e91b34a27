package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

var (
	ErrInvalidGroupID        = errors.New("invalid group id")
	ErrEpochRollback         = errors.New("cannot roll back past the committed epoch")
	ErrGroupSecretNotStaged  = errors.New("no staged epoch secret to commit")
	ErrWelcomeDecryptFailure = errors.New("unable to decrypt welcome payload")
)

// GroupEpochSecret is the per-epoch symmetric key material derived for a
// single group. It is a group-wide schedule rather than a per-peer ratchet:
// every merged commit derives the next epoch's secret
// from the previous one plus the commit's content, the same way an MLS
// exporter secret is re-derived from the confirmed transcript hash at each
// epoch boundary.
type GroupEpochSecret struct {
	GroupID    string    `json:"group_id"`
	Epoch      uint64    `json:"epoch"`
	Secret     []byte    `json:"secret"`
	MessageKey []byte    `json:"message_key"`
	DerivedAt  time.Time `json:"derived_at"`
}

// GroupKeySchedule tracks the committed epoch secret for a single group
// plus at most one staged-but-unconfirmed next epoch, so a failed publish
// can roll back to the last committed secret without losing track of where
// the chain resumes on the next attempt.
type GroupKeySchedule struct {
	groupID   string
	committed GroupEpochSecret
	staged    *GroupEpochSecret
}

// NewGroupKeySchedule seeds a fresh schedule at epoch 0, the state before
// any member has been added, from a caller-supplied root secret (normally
// the group creator's freshly generated random bytes).
func NewGroupKeySchedule(groupID string, rootSecret []byte) (*GroupKeySchedule, error) {
	if groupID == "" {
		return nil, ErrInvalidGroupID
	}
	secret := kdf32(rootSecret, []byte("aim/mls/epoch/root/v1|"+groupID))
	epoch0 := GroupEpochSecret{
		GroupID:    groupID,
		Epoch:      0,
		Secret:     secret,
		MessageKey: kdf32(secret, []byte("aim/mls/message-key/v1")),
		DerivedAt:  time.Now().UTC(),
	}
	return &GroupKeySchedule{groupID: groupID, committed: epoch0}, nil
}

// RestoreGroupKeySchedule rehydrates a schedule from a persisted committed
// secret, e.g. after process restart.
func RestoreGroupKeySchedule(committed GroupEpochSecret) *GroupKeySchedule {
	return &GroupKeySchedule{groupID: committed.GroupID, committed: committed}
}

// Committed returns the schedule's last confirmed epoch secret.
func (s *GroupKeySchedule) Committed() GroupEpochSecret {
	return s.committed
}

// Stage derives the next epoch's secret from the committed one and a
// commit-specific transcript value (e.g. the serialized GroupEvent), but
// does not yet make it current. Mirrors the generate-commit step of the
// publish pipeline: the caller can Stage, attempt to publish, and either
// Commit on success or Rollback on failure without ever having mutated the
// schedule callers observe via Committed.
func (s *GroupKeySchedule) Stage(commitTranscript []byte) GroupEpochSecret {
	nextSecret := kdf32(append(append([]byte(nil), s.committed.Secret...), commitTranscript...), []byte("aim/mls/epoch/next/v1"))
	staged := GroupEpochSecret{
		GroupID:    s.groupID,
		Epoch:      s.committed.Epoch + 1,
		Secret:     nextSecret,
		MessageKey: kdf32(nextSecret, []byte("aim/mls/message-key/v1")),
		DerivedAt:  time.Now().UTC(),
	}
	s.staged = &staged
	return staged
}

// Commit promotes the staged epoch secret to committed. It is an error to
// call Commit without a prior Stage.
func (s *GroupKeySchedule) Commit() (GroupEpochSecret, error) {
	if s.staged == nil {
		return GroupEpochSecret{}, ErrGroupSecretNotStaged
	}
	s.committed = *s.staged
	s.staged = nil
	return s.committed, nil
}

// Rollback discards any staged epoch secret, leaving Committed unchanged.
// Safe to call with nothing staged.
func (s *GroupKeySchedule) Rollback() {
	s.staged = nil
}

// KeystoreHash returns a deterministic digest of the schedule's committed
// secret, used by callers that need to assert "the keystore is unchanged"
// around a failed operation without exposing the secret itself.
func (s *GroupKeySchedule) KeystoreHash() [32]byte {
	return sha256.Sum256(append([]byte(s.groupID+"|"), s.committed.Secret...))
}

// SealApplicationMessage encrypts plaintext under the schedule's current
// committed epoch message key. aad should bind the group id and epoch so a
// message from one epoch can never be replayed as if it belonged to
// another.
func (s *GroupKeySchedule) SealApplicationMessage(plaintext, aad []byte) ([]byte, []byte, error) {
	aead, err := chacha20poly1305.NewX(s.committed.MessageKey)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// OpenApplicationMessage decrypts a message sealed under the schedule's
// current committed epoch message key.
func (s *GroupKeySchedule) OpenApplicationMessage(ciphertext, nonce, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.committed.MessageKey)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

// WelcomeSecretBundle carries the information an invited installation
// needs to reconstruct the group key schedule from a Welcome message: the
// epoch at which they joined and the secret at that epoch, HPKE-sealed to
// their key package's public key.
type WelcomeSecretBundle struct {
	GroupID      string `json:"group_id"`
	Epoch        uint64 `json:"epoch"`
	RecipientKey []byte `json:"recipient_key"`
	EphemeralKey []byte `json:"ephemeral_key"`
	Nonce        []byte `json:"nonce"`
	Ciphertext   []byte `json:"ciphertext"`
}

// SealWelcome produces a WelcomeSecretBundle encrypting the epoch secret
// needed by a newly invited installation, addressed to its key package
// public key via a one-shot ECDH exchange with an ephemeral key and no
// ratchet: a welcome is decrypted once.
func SealWelcome(groupID string, epoch GroupEpochSecret, recipientPublicKey []byte) (WelcomeSecretBundle, error) {
	if len(recipientPublicKey) != 32 {
		return WelcomeSecretBundle{}, ErrInvalidPeerKey
	}
	ephemeralPriv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(ephemeralPriv); err != nil {
		return WelcomeSecretBundle{}, err
	}
	ephemeralPub, err := curve25519.X25519(ephemeralPriv, curve25519.Basepoint)
	if err != nil {
		return WelcomeSecretBundle{}, err
	}
	shared, err := curve25519.X25519(ephemeralPriv, recipientPublicKey)
	if err != nil {
		return WelcomeSecretBundle{}, err
	}
	wrapKey := kdf32(shared, []byte("aim/mls/welcome/v1"))
	aead, err := chacha20poly1305.NewX(wrapKey)
	if err != nil {
		return WelcomeSecretBundle{}, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return WelcomeSecretBundle{}, err
	}
	ad := appendUint64Suffix([]byte(groupID), epoch.Epoch)
	ciphertext := aead.Seal(nil, nonce, epoch.Secret, ad)
	return WelcomeSecretBundle{
		GroupID:      groupID,
		Epoch:        epoch.Epoch,
		RecipientKey: append([]byte(nil), recipientPublicKey...),
		EphemeralKey: ephemeralPub,
		Nonce:        nonce,
		Ciphertext:   ciphertext,
	}, nil
}

// OpenWelcome recovers the epoch secret from a WelcomeSecretBundle using
// the recipient's key package private key, reconstructing a
// GroupKeySchedule the invited installation can use going forward.
func OpenWelcome(bundle WelcomeSecretBundle, recipientPrivateKey []byte) (*GroupKeySchedule, error) {
	if len(recipientPrivateKey) != 32 {
		return nil, ErrInvalidPeerKey
	}
	shared, err := curve25519.X25519(recipientPrivateKey, bundle.EphemeralKey)
	if err != nil {
		return nil, err
	}
	wrapKey := kdf32(shared, []byte("aim/mls/welcome/v1"))
	aead, err := chacha20poly1305.NewX(wrapKey)
	if err != nil {
		return nil, err
	}
	ad := appendUint64Suffix([]byte(bundle.GroupID), bundle.Epoch)
	secret, err := aead.Open(nil, bundle.Nonce, bundle.Ciphertext, ad)
	if err != nil {
		return nil, ErrWelcomeDecryptFailure
	}
	epoch := GroupEpochSecret{
		GroupID:    bundle.GroupID,
		Epoch:      bundle.Epoch,
		Secret:     secret,
		MessageKey: kdf32(secret, []byte("aim/mls/message-key/v1")),
		DerivedAt:  time.Now().UTC(),
	}
	return RestoreGroupKeySchedule(epoch), nil
}
