package daemonservice

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	aimcrypto "aim-chat/go-backend/internal/crypto"
	groupdomain "aim-chat/go-backend/internal/domains/group"
	runtimeapp "aim-chat/go-backend/internal/platform/runtime"
	"aim-chat/go-backend/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/curve25519"
)

func (s *Service) groupUseCases() *groupdomain.Service {
	return &groupdomain.Service{
		IdentityID:           func() string { return s.identityManager.GetIdentity().ID },
		WithMembership:       s.withGroupMembership,
		SnapshotStates:       s.snapshotGroupStates,
		GenerateID:           runtimeapp.GeneratePrefixedID,
		GenerateEventID:      s.mustGenerateEventID,
		Now:                  time.Now,
		Abuse:                s.groupAbuse,
		IsBlockedSender:      s.isConsentDeniedInbox,
		ActiveDeviceID:       s.activeDeviceID,
		GetMessage:           s.messageStore.GetMessage,
		SaveMessage:          s.messageStore.SaveMessage,
		DeleteMessage:        s.messageStore.DeleteMessage,
		ListMessages:         s.messageStore.ListMessagesByConversation,
		ListMessagesByThread: s.messageStore.ListMessagesByConversationThread,
		PublishSealed:        s.publishSealedGroupMessage,
		QueueRetry:           s.queueGroupMessageRetry,
		UpdateStatus: func(messageID, status string) error {
			_, err := s.messageStore.UpdateMessageStatus(messageID, status)
			return err
		},
		RecordError:     s.recordError,
		Notify:          s.notify,
		RecordAggregate: s.recordGroupAggregate,
		LogInfo:         s.logger.Info,
	}
}

// isConsentDeniedInbox treats an explicit consent denial as a block: a
// denied inbox's messages are dropped and it is skipped as a send
// recipient, the consent ledger standing in for a separate blocklist.
func (s *Service) isConsentDeniedInbox(inboxID string) bool {
	return s.consentLedger().StateForActor(inboxID) == groupdomain.ConsentStateDenied
}

func (s *Service) withGroupMembership(fn func(ms *groupdomain.MembershipService) error) error {
	s.groupRuntime.StateMu.Lock()
	defer s.groupRuntime.StateMu.Unlock()
	return fn(s.groupMembershipServiceLocked())
}

func (s *Service) snapshotGroupStates() map[string]groupdomain.GroupState {
	s.groupRuntime.StateMu.RLock()
	defer s.groupRuntime.StateMu.RUnlock()
	out := make(map[string]groupdomain.GroupState, len(s.groupRuntime.States))
	for groupID, state := range s.groupRuntime.States {
		out[groupID] = groupdomain.CloneState(state)
	}
	return out
}

func (s *Service) groupMembershipServiceLocked() *groupdomain.MembershipService {
	return &groupdomain.MembershipService{
		States:   s.groupRuntime.States,
		EventLog: s.groupRuntime.EventLog,
		Persist: func(states map[string]groupdomain.GroupState, eventLog map[string][]groupdomain.GroupEvent) error {
			if s.groupStateStore == nil {
				return nil
			}
			return s.groupStateStore.Persist(states, eventLog)
		},
		Notify:          s.notifyGroupUpdated,
		GenerateEventID: s.mustGenerateEventID,
	}
}

func (s *Service) mustGenerateEventID() string {
	eventID, err := runtimeapp.GeneratePrefixedID("gevt")
	if err != nil {
		return "gevt_fallback_" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return eventID
}

// epochSecretForGroup returns the group's committed epoch secret, seeding
// one from fresh randomness the first time a group touches the pipeline,
// the same seeding GroupMutationService applies before a welcome.
func (s *Service) epochSecretForGroup(groupID string) (aimcrypto.GroupEpochSecret, error) {
	s.groupRuntime.MLSMu.Lock()
	defer s.groupRuntime.MLSMu.Unlock()
	if epoch, ok := s.groupRuntime.EpochSecrets[groupID]; ok {
		return epoch, nil
	}
	root, err := mlsRandomRoot()
	if err != nil {
		return aimcrypto.GroupEpochSecret{}, err
	}
	schedule, err := aimcrypto.NewGroupKeySchedule(groupID, root)
	if err != nil {
		return aimcrypto.GroupEpochSecret{}, err
	}
	epoch := schedule.Committed()
	if s.groupRuntime.EpochSecrets == nil {
		s.groupRuntime.EpochSecrets = make(map[string]aimcrypto.GroupEpochSecret)
	}
	s.groupRuntime.EpochSecrets[groupID] = epoch
	if err := s.persistMLSSnapshot(); err != nil {
		return aimcrypto.GroupEpochSecret{}, err
	}
	return epoch, nil
}

// storeEpochSecret retains the epoch secret a welcome delivered, so the
// installation can seal and open the group's application traffic.
func (s *Service) storeEpochSecret(groupID string, epoch aimcrypto.GroupEpochSecret) error {
	s.groupRuntime.MLSMu.Lock()
	defer s.groupRuntime.MLSMu.Unlock()
	if s.groupRuntime.EpochSecrets == nil {
		s.groupRuntime.EpochSecrets = make(map[string]aimcrypto.GroupEpochSecret)
	}
	s.groupRuntime.EpochSecrets[groupID] = epoch
	return s.persistMLSSnapshot()
}

// publishSealedGroupMessage seals a stored message's content under the
// group's committed epoch message key and broadcasts it to the group's
// content topic.
func (s *Service) publishSealedGroupMessage(msg models.Message, meta groupdomain.GroupMessageWireMeta) error {
	epoch, err := s.epochSecretForGroup(meta.GroupID)
	if err != nil {
		return err
	}
	sealed, err := groupdomain.SealGroupApplicationPayload(epoch, msg.Content)
	if err != nil {
		return err
	}
	ctx, cancel := contextWithKeepaliveTimeout(s)
	defer cancel()
	return s.groupTransport().PublishApplicationMessage(ctx, meta.GroupID, meta.EventID, msg.ContactID, meta.MembershipVersion, meta.GroupKeyVersion, meta.SenderDeviceID, sealed)
}

// publishGroupApplicationMessage re-derives the wire metadata for a stored
// message and publishes it, the retry worker's path back onto the topic.
func (s *Service) publishGroupApplicationMessage(msg models.Message) error {
	s.groupRuntime.StateMu.RLock()
	state, ok := s.groupRuntime.States[msg.ConversationID]
	s.groupRuntime.StateMu.RUnlock()
	if !ok {
		return groupdomain.ErrGroupNotFound
	}
	groupKeyVersion := state.LastKeyVersion
	if groupKeyVersion == 0 {
		groupKeyVersion = 1
	}
	deviceID, err := s.activeDeviceID()
	if err != nil {
		return err
	}
	return s.publishSealedGroupMessage(msg, groupdomain.GroupMessageWireMeta{
		GroupID:           msg.ConversationID,
		EventID:           msg.ID,
		MembershipVersion: state.Version,
		GroupKeyVersion:   groupKeyVersion,
		SenderDeviceID:    deviceID,
	})
}

func (s *Service) queueGroupMessageRetry(msg models.Message, publishErr error) error {
	return s.messageStore.AddOrUpdatePending(msg, 0, time.Now().Add(retryLoopTick), publishErr.Error())
}

// persistMLSSnapshot writes the full in-memory MLS pipeline state to disk.
// Callers must already hold groupRuntime.MLSMu.
func (s *Service) persistMLSSnapshot() error {
	if s.mlsStore == nil {
		return nil
	}
	return s.mlsStore.Persist(groupdomain.MLSSnapshot{
		KeyPackages:    s.groupRuntime.KeyPackages,
		Intents:        s.groupRuntime.Intents,
		EpochSecrets:   s.groupRuntime.EpochSecrets,
		Consents:       s.groupRuntime.Consents,
		WelcomeCursors: s.groupRuntime.WelcomeCursors,
	})
}

// generateUUIDPrefixedID mints ids for intents and key package rows. These
// ids cross installations inside welcome hash_refs and echo matching, so
// they use a full UUID rather than the shorter random suffix
// runtimeapp.GeneratePrefixedID produces for purely local rows.
func generateUUIDPrefixedID(prefix string) (string, error) {
	return prefix + "_" + uuid.NewString(), nil
}

func generateCurve25519KeyPair() (public, private []byte, err error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return nil, nil, err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// keyPackageManagerFor builds a KeyPackageManager scoped to a single
// installation, delegating storage to the in-memory runtime collection
// persisted through mlsStore, the same DI pattern groupUseCases() follows
// for the core CRUD services.
func (s *Service) keyPackageManagerFor(installationID, inboxID string) *groupdomain.KeyPackageManager {
	return &groupdomain.KeyPackageManager{
		InstallationID:  installationID,
		InboxID:         inboxID,
		Now:             time.Now,
		GenerateID:      generateUUIDPrefixedID,
		GenerateKeyPair: generateCurve25519KeyPair,
		RotationEvery:   s.mlsConf().KeyPackageRotationInterval,
		ListForInstallation: func(id string) ([]groupdomain.KeyPackage, error) {
			s.groupRuntime.MLSMu.Lock()
			defer s.groupRuntime.MLSMu.Unlock()
			out := make([]groupdomain.KeyPackage, len(s.groupRuntime.KeyPackages[id]))
			copy(out, s.groupRuntime.KeyPackages[id])
			return out, nil
		},
		Save: func(kp groupdomain.KeyPackage) error {
			s.groupRuntime.MLSMu.Lock()
			defer s.groupRuntime.MLSMu.Unlock()
			s.groupRuntime.KeyPackages[kp.InstallationID] = append(s.groupRuntime.KeyPackages[kp.InstallationID], kp)
			if err := s.persistMLSSnapshot(); err != nil {
				list := s.groupRuntime.KeyPackages[kp.InstallationID]
				s.groupRuntime.KeyPackages[kp.InstallationID] = list[:len(list)-1]
				return err
			}
			return nil
		},
		MarkConsumed: func(id, groupID string, consumedAt time.Time) error {
			s.groupRuntime.MLSMu.Lock()
			defer s.groupRuntime.MLSMu.Unlock()
			for installationID, kps := range s.groupRuntime.KeyPackages {
				for i, kp := range kps {
					if kp.ID != id {
						continue
					}
					kp.ConsumedAt = consumedAt
					kp.ConsumedByGroup = groupID
					kps[i] = kp
					s.groupRuntime.KeyPackages[installationID] = kps
					return s.persistMLSSnapshot()
				}
			}
			return groupdomain.ErrInvalidKeyPackageID
		},
		Delete: func(id string) error {
			s.groupRuntime.MLSMu.Lock()
			defer s.groupRuntime.MLSMu.Unlock()
			for installationID, kps := range s.groupRuntime.KeyPackages {
				for i, kp := range kps {
					if kp.ID != id {
						continue
					}
					s.groupRuntime.KeyPackages[installationID] = append(kps[:i], kps[i+1:]...)
					return s.persistMLSSnapshot()
				}
			}
			return groupdomain.ErrInvalidKeyPackageID
		},
		RecordError: s.recordError,
	}
}

// intentQueue returns an IntentQueue wired to the runtime's shared intent
// collection and persisted through mlsStore, scoped for the whole
// installation (every group's queue lives under one id-keyed map, matching
// IntentQueue's own per-group bucketing).
func (s *Service) intentQueue() *groupdomain.IntentQueue {
	return &groupdomain.IntentQueue{
		GenerateID:  generateUUIDPrefixedID,
		Now:         time.Now,
		MaxAttempts: s.mlsConf().MaxIntentPublishAttempts,
		Enqueued:    s.groupRuntime.Intents,
		Persist: func(enqueued map[string][]groupdomain.Intent) error {
			s.groupRuntime.MLSMu.Lock()
			defer s.groupRuntime.MLSMu.Unlock()
			s.groupRuntime.Intents = enqueued
			return s.persistMLSSnapshot()
		},
	}
}

// consentLedger returns the ConsentLedger wired against the runtime's
// shared consent map, persisted through the MLS snapshot and broadcast to
// notification subscribers on every change.
func (s *Service) consentLedger() *groupdomain.ConsentLedger {
	return &groupdomain.ConsentLedger{
		Records: s.groupRuntime.Consents,
		Now:     time.Now,
		Persist: func(records map[string]groupdomain.ConsentRecord) error {
			s.groupRuntime.MLSMu.Lock()
			defer s.groupRuntime.MLSMu.Unlock()
			s.groupRuntime.Consents = records
			return s.persistMLSSnapshot()
		},
		Notify: func(record groupdomain.ConsentRecord) {
			s.notify("notify.preferences.changed", map[string]any{
				"entity_type": record.EntityType,
				"entity_id":   record.EntityID,
				"state":       record.State,
			})
		},
	}
}

// welcomeProcessor returns a WelcomeProcessor wired against the group
// runtime's membership snapshot and the MLS store's key package inventory.
// The recipient private key and the exactly-once consumption it triggers
// both resolve by the welcome's hash_ref (RecipientKeyPackageID) against
// the same KeyPackages map keyPackageManagerFor reads and writes, so a key
// package generated by any installation can be looked up regardless of
// which installation's manager created it.
func (s *Service) welcomeProcessor() *groupdomain.WelcomeProcessor {
	return &groupdomain.WelcomeProcessor{
		States:                s.groupRuntime.States,
		EventLog:              s.groupRuntime.EventLog,
		Now:                   time.Now,
		RecipientPrivateKey:   s.recipientPrivateKeyForKeyPackage,
		ConsumeKeyPackage:     s.consumeKeyPackageByID,
		GenerateEventID:       s.mustGenerateEventID,
		FindExistingDMGroupID: s.findExistingDMGroupID,
		StoreEpochSecret:      s.storeEpochSecret,
		ConsentLookup: func(actorID string) groupdomain.ConsentState {
			return s.consentLedger().StateForActor(actorID)
		},
		Persist: func(states map[string]groupdomain.GroupState, eventLog map[string][]groupdomain.GroupEvent) error {
			if s.groupStateStore == nil {
				return nil
			}
			return s.groupStateStore.Persist(states, eventLog)
		},
		NotifyGroupJoined: func(group groupdomain.Group) {
			s.notify("notify.group.joined", map[string]any{"group_id": group.ID})
		},
	}
}

// mlsRandomRoot seeds a fresh epoch key schedule's root secret, the same
// crypto/rand source generateCurve25519KeyPair draws its private scalars
// from.
func mlsRandomRoot() ([]byte, error) {
	root := make([]byte, 32)
	if _, err := rand.Read(root); err != nil {
		return nil, err
	}
	return root, nil
}

// mutationService builds a GroupMutationService wired against the shared
// runtime/intent-queue/sync-orchestrator stack, the live entry point for
// every user-facing group RPC that must flow through the full MLS pipeline
// (permission evaluation, intent staging, commit publication, welcome
// issuance) rather than only touching local state.
func (s *Service) mutationService() *groupdomain.GroupMutationService {
	return &groupdomain.GroupMutationService{
		Runtime:              s.groupRuntime,
		Intents:              s.intentQueue(),
		Sync:                 s.mlsOrchestrator(),
		Now:                  time.Now,
		GenerateEventID:      s.mustGenerateEventID,
		LocalProtocolVersion: groupdomain.LocalProtocolVersion,
		RandomRoot:           mlsRandomRoot,
		Persist: func(states map[string]groupdomain.GroupState, eventLog map[string][]groupdomain.GroupEvent) error {
			if s.groupStateStore == nil {
				return nil
			}
			return s.groupStateStore.Persist(states, eventLog)
		},
		SelectKeyPackageForWelcome: func(candidateInstallationID string) (groupdomain.KeyPackage, error) {
			return s.keyPackageManagerFor(candidateInstallationID, "").SelectForWelcome(candidateInstallationID)
		},
		ConsumeKeyPackage: func(kp groupdomain.KeyPackage, groupID string) error {
			return s.keyPackageManagerFor(kp.InstallationID, "").Consume(kp, groupID)
		},
		PublishWelcome: s.mlsPublishWelcome,
		RecordError:    s.recordError,
	}
}

// recipientPrivateKeyForKeyPackage locates the private half of the key
// package named by a welcome's hash_ref. A key package that is missing or
// already consumed returns ErrInvalidKeyPackageID, the spec's "skip,
// idempotent re-delivery" branch for a re-sent welcome.
func (s *Service) recipientPrivateKeyForKeyPackage(keyPackageID string) ([]byte, error) {
	s.groupRuntime.MLSMu.Lock()
	defer s.groupRuntime.MLSMu.Unlock()
	for _, kps := range s.groupRuntime.KeyPackages {
		for _, kp := range kps {
			if kp.ID != keyPackageID {
				continue
			}
			if kp.Consumed() && !kp.LastResort {
				return nil, groupdomain.ErrInvalidKeyPackageID
			}
			if len(kp.PrivateKey) == 0 {
				return nil, groupdomain.ErrInvalidKeyPackageID
			}
			return kp.PrivateKey, nil
		}
	}
	return nil, groupdomain.ErrInvalidKeyPackageID
}

// consumeKeyPackageByID marks a key package used by the given group,
// searching across every installation's inventory the same way
// recipientPrivateKeyForKeyPackage does, since a welcome's hash_ref alone
// doesn't name which local installation generated it.
func (s *Service) consumeKeyPackageByID(keyPackageID, groupID string) error {
	if strings.TrimSpace(keyPackageID) == "" {
		return nil
	}
	s.groupRuntime.MLSMu.Lock()
	defer s.groupRuntime.MLSMu.Unlock()
	for installationID, kps := range s.groupRuntime.KeyPackages {
		for i, kp := range kps {
			if kp.ID != keyPackageID {
				continue
			}
			if kp.LastResort {
				return nil
			}
			kp.ConsumedAt = time.Now().UTC()
			kp.ConsumedByGroup = groupID
			kps[i] = kp
			s.groupRuntime.KeyPackages[installationID] = kps
			return s.persistMLSSnapshot()
		}
	}
	return groupdomain.ErrInvalidKeyPackageID
}

// findExistingDMGroupID implements find_or_create_dm's lookup half: scan
// the runtime's group snapshot for an existing DM whose canonical pair
// matches, so a second welcome for the same counterparty stitches onto it
// instead of spawning a sibling group.
func (s *Service) findExistingDMGroupID(counterpartyID string) (string, bool) {
	s.groupRuntime.StateMu.RLock()
	defer s.groupRuntime.StateMu.RUnlock()
	for groupID, state := range s.groupRuntime.States {
		if !state.Group.IsDM() || state.Group.Hidden {
			continue
		}
		for _, member := range state.Group.DMMembers {
			if member == counterpartyID {
				return groupdomain.ResolveStitchedGroupID(s.groupRuntime.States, groupID), true
			}
		}
	}
	return "", false
}

func (s *Service) activeDeviceID() (string, error) {
	device, _, err := s.identityManager.ActiveDeviceAuth([]byte("group-device-id"))
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(device.ID)
	if id == "" {
		return "", errors.New("active device id is empty")
	}
	return id, nil
}
