package daemonservice

import (
	"context"
	"time"

	"aim-chat/go-backend/internal/bootstrap/mlsconfig"
	groupdomain "aim-chat/go-backend/internal/domains/group"
	"aim-chat/go-backend/pkg/models"
)

// mlsConf returns the service's resolved MLS pipeline configuration. A
// Service built outside newServiceWithOptions (test literals) carries a
// zero Config; fall back to defaults so every tuning knob stays in range.
func (s *Service) mlsConf() mlsconfig.Config {
	if s.mlsCfg.MaxIntentPublishAttempts == 0 {
		return mlsconfig.DefaultConfig()
	}
	return s.mlsCfg
}

func contextWithKeepaliveTimeout(s *Service) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.mlsConf().KeepaliveTimeout)
}

// groupTransport wires the live waku node as the MLS sync pipeline's
// transport, the same node StartNetworking owns the lifecycle of.
func (s *Service) groupTransport() *groupdomain.WakuGroupTransport {
	transport := groupdomain.NewWakuGroupTransport(s.wakuNode, func() string {
		return s.identityManager.GetIdentity().ID
	})
	transport.Now = time.Now
	return transport
}

// decodeRemoteEnvelope turns a transport-level GroupWirePayload into the
// sync orchestrator's RemoteEnvelope shape. Returns false for payload kinds
// this fetch path doesn't carry (welcomes arrive over their own
// installation-addressed topic, handled by mlsFetchAllWelcomes instead).
func decodeRemoteEnvelope(p groupdomain.GroupWirePayload) (groupdomain.RemoteEnvelope, bool) {
	switch p.Kind {
	case "commit":
		return groupdomain.RemoteEnvelope{
			GroupID:  p.GroupID,
			Sequence: uint64(p.CreatedNS),
			Kind:     "event",
			Event: groupdomain.InboundGroupEventParams{
				SenderID:          p.ActorID,
				ConversationID:    p.GroupID,
				EventID:           p.EventID,
				EventType:         p.EventType,
				MembershipVersion: p.MembershipVersion,
				SenderDeviceID:    p.SenderDeviceID,
				Plain:             p.Plain,
			},
		}, true
	case "message":
		return groupdomain.RemoteEnvelope{
			GroupID:  p.GroupID,
			Sequence: uint64(p.CreatedNS),
			Kind:     "message",
			Message: groupdomain.InboundGroupMessageParams{
				MessageID:         p.EventID,
				SenderID:          p.ActorID,
				Payload:           p.Plain,
				ConversationID:    p.GroupID,
				EventID:           p.EventID,
				MembershipVersion: p.MembershipVersion,
				GroupKeyVersion:   p.GroupKeyVersion,
				SenderDeviceID:    p.SenderDeviceID,
			},
		}, true
	default:
		return groupdomain.RemoteEnvelope{}, false
	}
}

// mlsFetchRemoteEnvelopes retrieves every commit/message published to a
// group's content topic since the cursor's timestamp, decoding each into a
// RemoteEnvelope. sinceCursor is the nanosecond timestamp of the
// last-processed envelope (see GroupWirePayload.CreatedNS), since this
// transport has no central sequencer to assign real cursors against.
func (s *Service) mlsFetchRemoteEnvelopes(groupID string, sinceCursor uint64) ([]groupdomain.RemoteEnvelope, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.mlsConf().KeepaliveTimeout)
	defer cancel()
	since := time.Unix(0, int64(sinceCursor)).UTC()
	payloads, err := s.groupTransport().FetchSince(ctx, groupID, since, 500)
	if err != nil {
		return nil, err
	}
	out := make([]groupdomain.RemoteEnvelope, 0, len(payloads))
	for _, p := range payloads {
		if env, ok := decodeRemoteEnvelope(p); ok {
			out = append(out, env)
		}
	}
	return out, nil
}

// mlsFetchAllWelcomes retrieves every welcome addressed to the active
// installation since its last-processed welcome cursor, decoding each back
// into a WelcomeMessage.
func (s *Service) mlsFetchAllWelcomes() ([]groupdomain.WelcomeMessage, error) {
	installationID, err := s.activeDeviceID()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.mlsConf().KeepaliveTimeout)
	defer cancel()
	since := s.lastWelcomeCursor(installationID)
	payloads, err := s.groupTransport().FetchWelcomesSince(ctx, installationID, since, 200)
	if err != nil {
		return nil, err
	}
	out := make([]groupdomain.WelcomeMessage, 0, len(payloads))
	var maxSeen int64
	for _, p := range payloads {
		welcome, decodeErr := groupdomain.DecodeWelcome(p)
		if decodeErr != nil {
			s.recordError("mls_processing", decodeErr)
			continue
		}
		out = append(out, welcome)
		if p.CreatedNS > maxSeen {
			maxSeen = p.CreatedNS
		}
	}
	if maxSeen > 0 {
		s.setWelcomeCursor(installationID, maxSeen)
	}
	return out, nil
}

func (s *Service) lastWelcomeCursor(installationID string) time.Time {
	s.groupRuntime.MLSMu.Lock()
	defer s.groupRuntime.MLSMu.Unlock()
	if s.groupRuntime.WelcomeCursors == nil {
		return time.Time{}
	}
	return time.Unix(0, s.groupRuntime.WelcomeCursors[installationID]).UTC()
}

func (s *Service) setWelcomeCursor(installationID string, ns int64) {
	s.groupRuntime.MLSMu.Lock()
	defer s.groupRuntime.MLSMu.Unlock()
	if s.groupRuntime.WelcomeCursors == nil {
		s.groupRuntime.WelcomeCursors = make(map[string]int64)
	}
	s.groupRuntime.WelcomeCursors[installationID] = ns
	if err := s.persistMLSSnapshot(); err != nil {
		s.recordError("storage", err)
	}
}

// mlsAdvanceGroupCursor persists a group's new high-water remote cursor.
// Called by SyncOrchestrator.SyncGroup under the group's exclusive lock,
// which is this pipeline's sole serialization point for group state (see
// runtime_state.go); it does not also take groupRuntime.StateMu, which
// guards the separate legacy RPC-driven mutation path.
func (s *Service) mlsAdvanceGroupCursor(groupID string, cursor uint64) error {
	state, ok := s.groupRuntime.States[groupID]
	if !ok {
		return nil
	}
	if state.Group.Cursor == nil {
		state.Group.Cursor = make(map[string]uint64)
	}
	state.Group.Cursor["remote"] = cursor
	state.Group.UpdatedAt = time.Now().UTC()
	s.groupRuntime.States[groupID] = state
	if s.groupStateStore == nil {
		return nil
	}
	return s.groupStateStore.Persist(s.groupRuntime.States, s.groupRuntime.EventLog)
}

// mlsPublish broadcasts a staged commit over the group transport. Epoch
// conflicts are detected downstream when the echo (or a competing commit)
// is merged through ApplyEventsWithRollback's expected-version check, not
// here: this transport has no central sequencer to reject a publish
// in-flight, so Publish only ever reports transport-level failures.
func (s *Service) mlsPublish(event groupdomain.GroupEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.mlsConf().KeepaliveTimeout)
	defer cancel()
	return s.groupTransport().PublishCommit(ctx, event)
}

// mlsPublishWelcome seals and hands a welcome to the transport layer,
// addressed to the invitee's installation rather than the group's content
// topic, mirroring mlsPublish's ctx/timeout handling for the commit path.
func (s *Service) mlsPublishWelcome(recipientInstallationID string, welcome groupdomain.WelcomeMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.mlsConf().KeepaliveTimeout)
	defer cancel()
	return s.groupTransport().PublishWelcome(ctx, recipientInstallationID, welcome)
}

// mlsInboundOrchestrator builds the InboundOrchestrationService the sync
// pipeline folds every fetched envelope through: commits apply and persist
// through the shared States/EventLog, and application messages decrypt
// with the group's epoch secret and land in message history.
func (s *Service) mlsInboundOrchestrator() *groupdomain.InboundOrchestrationService {
	return &groupdomain.InboundOrchestrationService{
		States:   s.groupRuntime.States,
		EventLog: s.groupRuntime.EventLog,
		Persist: func(states map[string]groupdomain.GroupState, eventLog map[string][]groupdomain.GroupEvent) error {
			if s.groupStateStore == nil {
				return nil
			}
			return s.groupStateStore.Persist(states, eventLog)
		},
		Now:             time.Now,
		IdentityID:      func() string { return s.identityManager.GetIdentity().ID },
		IsBlockedSender: s.isConsentDeniedInbox,
		GuardReplay:     s.guardInboundGroupReplay,
		DecryptPayload: func(groupID string, payload []byte) ([]byte, string, error) {
			s.groupRuntime.MLSMu.Lock()
			epoch, ok := s.groupRuntime.EpochSecrets[groupID]
			s.groupRuntime.MLSMu.Unlock()
			if !ok {
				return nil, "", groupdomain.ErrGroupNotFound
			}
			content, err := groupdomain.OpenGroupApplicationPayload(epoch, payload)
			if err != nil {
				return nil, "", err
			}
			return content, "text", nil
		},
		BuildStoredMessage: func(in groupdomain.InboundGroupMessageParams, content []byte, contentType string, now time.Time) models.Message {
			return models.Message{
				ID:               in.MessageID,
				ContactID:        in.SenderID,
				ConversationID:   in.ConversationID,
				ConversationType: models.ConversationTypeGroup,
				Content:          content,
				Timestamp:        now,
				Direction:        "in",
				Status:           "received",
				ContentType:      contentType,
			}
		},
		SaveMessage: s.messageStore.SaveMessage,
		GetMessage:  s.messageStore.GetMessage,
		NotifyGroupMessage: func(groupID string, stored models.Message) {
			s.notify("notify.group.message.new", map[string]any{
				"group_id": groupID,
				"message":  stored,
			})
		},
		NotifyGroupUpdated:   s.notifyGroupUpdated,
		RecordError:          s.recordError,
		RecordGroupAggregate: s.recordGroupAggregate,
		Warn:                 s.mlsLog().Warnw,
		Debug:                s.mlsLog().Debugw,
		MaxPastEpochs:        s.mlsConf().MaxPastEpochs,
		MarkMaybeForked:      s.markGroupMaybeForked,
		LocalProtocolVersion: groupdomain.LocalProtocolVersion,
	}
}

// markGroupMaybeForked records an observed local/remote epoch divergence on
// the group: the maybe_forked flag sticks until an operator (or a future
// repair flow) clears it, and every distinct observation is appended to the
// group's fork log for later reconstruction.
func (s *Service) markGroupMaybeForked(groupID string, detail groupdomain.ForkDetail) {
	state, ok := s.groupRuntime.States[groupID]
	if !ok {
		return
	}
	state.Group.MaybeForked = true
	state.Group.ForkDetails = append(state.Group.ForkDetails, detail)
	state.Group.UpdatedAt = detail.DetectedAt
	s.groupRuntime.States[groupID] = state
	if s.groupStateStore != nil {
		if err := s.groupStateStore.Persist(s.groupRuntime.States, s.groupRuntime.EventLog); err != nil {
			s.recordError("storage", err)
		}
	}
}

// mlsOrchestrator composes the live transport, intent queue, welcome
// processor, and inbound orchestration service into a ready-to-drive
// SyncOrchestrator, the top-level entry point for sync_all_welcomes /
// sync_all_groups.
func (s *Service) mlsOrchestrator() *groupdomain.SyncOrchestrator {
	return &groupdomain.SyncOrchestrator{
		Runtime:              s.groupRuntime,
		Intents:              s.intentQueue(),
		Welcomes:             s.welcomeProcessor(),
		Inbound:              s.mlsInboundOrchestrator(),
		Now:                  time.Now,
		FetchRemoteEnvelopes: s.mlsFetchRemoteEnvelopes,
		FetchAllWelcomes:     s.mlsFetchAllWelcomes,
		Publish:              s.mlsPublish,
		AdvanceCursor:        s.mlsAdvanceGroupCursor,
		MaxPublishAttempts:   s.mlsConf().MaxIntentPublishAttempts,
		ListKnownGroupIDs: func() []string {
			s.groupRuntime.StateMu.RLock()
			defer s.groupRuntime.StateMu.RUnlock()
			ids := make([]string, 0, len(s.groupRuntime.States))
			for id, state := range s.groupRuntime.States {
				if state.Group.Hidden {
					continue
				}
				ids = append(ids, id)
			}
			return ids
		},
		RecordError: s.recordError,
		LogInfo:     s.mlsLog().Infow,
	}
}

// SyncMLSWelcomes drains every pending welcome addressed to this
// installation, the live entry point for the sync design's
// sync_all_welcomes.
func (s *Service) SyncMLSWelcomes() (int, error) {
	return s.mlsOrchestrator().SyncWelcomes()
}

// SyncMLSGroups drains every known group's pending inbound envelopes and
// then flushes any still-pending locally staged intents, the live entry
// point for sync_all_groups. The mutation service's BuildEventFromIntent
// re-stages each leftover intent at the group's current epoch, so a crash
// between staging and publishing recovers on the next tick instead of
// waiting for the original caller to retry.
func (s *Service) SyncMLSGroups() []error {
	return s.mlsOrchestrator().SyncAllGroups(s.mutationService().BuildEventFromIntent)
}

// SyncMLSWelcomesAndGroups composes SyncMLSWelcomes then SyncMLSGroups, the
// live entry point for sync_all_welcomes_and_groups.
func (s *Service) SyncMLSWelcomesAndGroups() (int, []error) {
	joined, err := s.SyncMLSWelcomes()
	if err != nil {
		return joined, []error{err}
	}
	return joined, s.SyncMLSGroups()
}
