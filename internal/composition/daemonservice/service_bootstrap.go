package daemonservice

import (
	"time"

	daemoncomposition "aim-chat/go-backend/internal/composition/daemon"
	"aim-chat/go-backend/internal/domains/contracts"
	groupdomain "aim-chat/go-backend/internal/domains/group"
	runtimeapp "aim-chat/go-backend/internal/platform/runtime"
	"aim-chat/go-backend/internal/waku"
)

// noinspection GoUnusedExportedFunction
func NewServiceForDaemon(wakuCfg waku.Config) (*Service, error) {
	return NewServiceForDaemonWithDataDir(wakuCfg, "")
}

func NewServiceForDaemonWithDataDir(wakuCfg waku.Config, dataDir string) (*Service, error) {
	_, secret, bundle, err := daemoncomposition.ResolveStorage(dataDir)
	if err != nil {
		return nil, err
	}
	svc, err := newServiceWithOptions(wakuCfg, contracts.ServiceOptions{
		MessageStore: bundle.MessageStore,
		Logger:       runtimeapp.DefaultLogger(),
	})
	if err != nil {
		return nil, err
	}

	svc.identityState.Configure(bundle.IdentityPath, secret)
	if err := svc.identityState.Bootstrap(svc.identityManager); err != nil {
		return nil, err
	}

	svc.groupStateStore.Configure(bundle.GroupStatePath, secret)
	groupStates, groupEventLog, err := svc.groupStateStore.Bootstrap()
	if err != nil {
		svc.logger.Warn("group state bootstrap failed, using empty state", "error", err.Error())
		groupStates = map[string]groupdomain.GroupState{}
		groupEventLog = map[string][]groupdomain.GroupEvent{}
	}
	svc.groupRuntime.SetSnapshot(groupStates, groupEventLog)
	if svc.groupRuntime.ReplaySeen == nil {
		svc.groupRuntime.ReplaySeen = make(map[string]time.Time)
	}

	svc.mlsStore.Configure(bundle.MLSStatePath, secret)
	mlsSnapshot, err := svc.mlsStore.Bootstrap()
	if err != nil {
		svc.logger.Warn("mls state bootstrap failed, using empty state", "error", err.Error())
		mlsSnapshot = groupdomain.EmptyMLSSnapshot()
	}
	svc.groupRuntime.SetMLSSnapshot(mlsSnapshot.KeyPackages, mlsSnapshot.Intents, mlsSnapshot.EpochSecrets, mlsSnapshot.Consents, mlsSnapshot.WelcomeCursors)
	return svc, nil
}
