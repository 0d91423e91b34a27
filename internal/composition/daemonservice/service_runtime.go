package daemonservice

import (
	"context"
	"fmt"
	"time"

	"aim-chat/go-backend/internal/domains/contracts"
	groupdomain "aim-chat/go-backend/internal/domains/group"
	"aim-chat/go-backend/pkg/models"
)

// retryLoopTick is the cadence of the background worker driving pending
// message retries and the periodic MLS sync pass.
const retryLoopTick = 5 * time.Second

// replaySeenWindow bounds how long inbound replay-guard entries are kept.
const replaySeenWindow = 24 * time.Hour

func (s *Service) StartNetworking(ctx context.Context) error {
	s.startStopMu.Lock()
	defer s.startStopMu.Unlock()

	if s.runtime.IsNetworking() {
		return nil
	}

	if err := s.wakuNode.Start(ctx); err != nil {
		s.recordError(contracts.ErrorCategoryNetwork, err)
		return err
	}
	s.wakuNode.SetIdentity(s.identityManager.GetIdentity().ID)

	networkCtx, networkCancel := context.WithCancel(ctx)
	retryCtx, retryCancel := context.WithCancel(networkCtx)
	if !s.runtime.TryActivate(networkCtx, networkCancel, retryCancel) {
		retryCancel()
		networkCancel()
		return nil
	}
	go func() {
		defer s.runtime.RetryLoopDone()
		s.runRetryLoop(retryCtx)
	}()
	s.notifyNetworkStatus(true)
	return nil
}

func (s *Service) StopNetworking(ctx context.Context) error {
	s.startStopMu.Lock()
	defer s.startStopMu.Unlock()

	retryCancel, networkCancel, wasRunning := s.runtime.Deactivate()
	if !wasRunning {
		return nil
	}
	if retryCancel != nil {
		retryCancel()
		s.runtime.WaitRetryLoop()
	}
	if networkCancel != nil {
		networkCancel()
	}
	if err := s.wakuNode.Stop(ctx); err != nil {
		s.recordError(contracts.ErrorCategoryNetwork, err)
		return err
	}
	s.notifyNetworkStatus(true)
	return nil
}

func (s *Service) runRetryLoop(ctx context.Context) {
	ticker := time.NewTicker(retryLoopTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.notifyNetworkStatus(false)
			s.retryPendingGroupMessages()
			s.runMLSSyncTick()
		}
	}
}

// retryPendingGroupMessages re-publishes application messages whose earlier
// publish failed, sealing each against the group's current epoch secret.
// A message past its retry budget is marked failed and dropped from the
// pending queue so the queue cannot grow without bound.
func (s *Service) retryPendingGroupMessages() {
	for _, pending := range s.messageStore.DuePending(time.Now()) {
		if pending.RetryCount > 8 {
			s.updateMessageStatusAndNotify(pending.Message.ID, "failed")
			if err := s.messageStore.RemovePending(pending.Message.ID); err != nil {
				s.recordError(contracts.ErrorCategoryStorage, err)
			}
			continue
		}
		if err := s.publishGroupApplicationMessage(pending.Message); err != nil {
			s.recordError(contracts.ErrorCategoryNetwork, err)
			s.metrics.RecordRetryAttempt()
			nextRetry := time.Now().Add(time.Duration(pending.RetryCount+1) * retryLoopTick)
			if perr := s.messageStore.AddOrUpdatePending(pending.Message, pending.RetryCount+1, nextRetry, err.Error()); perr != nil {
				s.recordError(contracts.ErrorCategoryStorage, perr)
			}
			continue
		}
		s.updateMessageStatusAndNotify(pending.Message.ID, "sent")
		if err := s.messageStore.RemovePending(pending.Message.ID); err != nil {
			s.recordError(contracts.ErrorCategoryStorage, err)
		}
	}
}

// runMLSSyncTick drains pending welcomes and group envelopes, best-effort:
// a sync failure is recorded but never stops the worker loop.
func (s *Service) runMLSSyncTick() {
	started := time.Now()
	joined, err := s.SyncMLSWelcomes()
	if err != nil {
		s.recordError(contracts.ErrorCategoryMlsProcessing, err)
	}
	groupErrs := s.SyncMLSGroups()
	for _, err := range groupErrs {
		s.recordError(contracts.ErrorCategoryMlsProcessing, err)
	}
	observeMLSSyncCycle(started, joined, groupErrs)
	if joined > 0 || len(groupErrs) > 0 {
		s.notify("notify.sync.worker", map[string]any{
			"welcomes_joined": joined,
			"group_errors":    len(groupErrs),
		})
	}
}

func (s *Service) notifyNetworkStatus(force bool) {
	current := s.GetNetworkStatus()
	if s.runtime.UpdateLastNetworkStatus(current, force) {
		s.notify("notify.network", current)
	}
}

func (s *Service) GetNetworkStatus() models.NetworkStatus {
	status := s.wakuNode.Status()
	return models.NetworkStatus{
		Status:    status.State,
		PeerCount: status.PeerCount,
		LastSync:  status.LastSync,
	}
}

func (s *Service) ListenAddresses() []string {
	return s.wakuNode.ListenAddresses()
}

func (s *Service) GetMetrics() models.MetricsSnapshot {
	status := s.wakuNode.Status()
	counters, groupAggregates, retries, lastAt := s.metrics.Snapshot()
	return models.MetricsSnapshot{
		PeerCount:           status.PeerCount,
		PendingQueueSize:    s.messageStore.PendingCount(),
		ErrorCounters:       counters,
		GroupAggregates:     groupAggregates,
		NetworkMetrics:      s.wakuNode.NetworkMetrics(),
		RetryAttemptsTotal:  retries,
		LastUpdatedAt:       lastAt,
		NotificationBacklog: s.notifier.BacklogSize(),
	}
}

func (s *Service) SubscribeNotifications(cursor int64) ([]contracts.NotificationEvent, <-chan contracts.NotificationEvent, func()) {
	return s.notifier.Subscribe(cursor)
}

func (s *Service) notify(method string, payload any) {
	s.notifier.Publish(method, payload)
}

func (s *Service) updateMessageStatusAndNotify(messageID, status string) {
	if _, err := s.messageStore.UpdateMessageStatus(messageID, status); err != nil {
		s.recordError(contracts.ErrorCategoryStorage, err)
		return
	}
	s.notify("notify.message.status", map[string]any{
		"message_id": messageID,
		"status":     status,
	})
}

func (s *Service) recordError(category string, err error) {
	if err == nil {
		return
	}
	s.metrics.RecordError(contracts.ErrorCategory(contracts.WrapCategorizedError(category, err)))
	s.logger.Warn("service error", "category", category, "error", err.Error())
}

func (s *Service) recordGroupAggregate(name string) {
	s.metrics.RecordGroupAggregate(name)
}

// guardInboundGroupReplay rejects an envelope whose (kind, group, device,
// id) tuple has already been processed inside the replay window, pruning
// expired entries as it goes.
func (s *Service) guardInboundGroupReplay(kind, groupID, senderDeviceID, uniqueID string, _, now time.Time) error {
	key := kind + "|" + groupID + "|" + senderDeviceID + "|" + uniqueID
	s.groupRuntime.ReplayMu.Lock()
	defer s.groupRuntime.ReplayMu.Unlock()
	if s.groupRuntime.ReplaySeen == nil {
		s.groupRuntime.ReplaySeen = make(map[string]time.Time)
	}
	for seenKey, seenAt := range s.groupRuntime.ReplaySeen {
		if now.Sub(seenAt) > replaySeenWindow {
			delete(s.groupRuntime.ReplaySeen, seenKey)
		}
	}
	if _, seen := s.groupRuntime.ReplaySeen[key]; seen {
		return fmt.Errorf("replayed group %s %q", kind, uniqueID)
	}
	s.groupRuntime.ReplaySeen[key] = now
	return nil
}

func (s *Service) notifyGroupUpdated(event groupdomain.GroupEvent) {
	s.notify("notify.group.updated", map[string]any{
		"group_id":           event.GroupID,
		"event_id":           event.ID,
		"event_type":         event.Type,
		"membership_version": event.Version,
		"actor_id":           event.ActorID,
	})
}
