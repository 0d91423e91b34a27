package group

import groupusecase "aim-chat/go-backend/internal/domains/group/usecase"

type SnapshotPersist = groupusecase.SnapshotPersist

type Service = groupusecase.Service
type MembershipService = groupusecase.MembershipService

//goland:noinspection GoNameStartsWithPackageName
type GroupReadService = groupusecase.GroupReadService

//goland:noinspection GoNameStartsWithPackageName
type GroupMessageWireMeta = groupusecase.GroupMessageWireMeta

//goland:noinspection GoNameStartsWithPackageName
type GroupMessageFanoutService = groupusecase.GroupMessageFanoutService
type InboundGroupMessageParams = groupusecase.InboundGroupMessageParams
type InboundGroupEventParams = groupusecase.InboundGroupEventParams
type InboundOrchestrationService = groupusecase.InboundOrchestrationService

func CloneState(in GroupState) GroupState {
	return groupusecase.CloneState(in)
}

func ResolveStitchedGroupID(states map[string]GroupState, groupID string) string {
	return groupusecase.ResolveStitchedGroupID(states, groupID)
}

//goland:noinspection GoNameStartsWithPackageName
type KeyPackageManager = groupusecase.KeyPackageManager

//goland:noinspection GoNameStartsWithPackageName
type WelcomeProcessor = groupusecase.WelcomeProcessor

//goland:noinspection GoNameStartsWithPackageName
type WelcomeMessage = groupusecase.WelcomeMessage

//goland:noinspection GoNameStartsWithPackageName
type IntentQueue = groupusecase.IntentQueue

//goland:noinspection GoNameStartsWithPackageName
type SyncOrchestrator = groupusecase.SyncOrchestrator

//goland:noinspection GoNameStartsWithPackageName
type RemoteEnvelope = groupusecase.RemoteEnvelope

//goland:noinspection GoNameStartsWithPackageName
type PublishIntentFunc = groupusecase.PublishIntentFunc

var ErrEpochSkew = groupusecase.ErrEpochSkew

const MinKeyPackagePoolSize = groupusecase.MinKeyPackagePoolSize

//goland:noinspection GoNameStartsWithPackageName
type ConsentLedger = groupusecase.ConsentLedger

//goland:noinspection GoNameStartsWithPackageName
type GroupMutationService = groupusecase.GroupMutationService

//goland:noinspection GoNameStartsWithPackageName
type UpdateMetadataParams = groupusecase.UpdateMetadataParams
