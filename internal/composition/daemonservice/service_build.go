package daemonservice

import (
	"log/slog"
	"sync"

	"aim-chat/go-backend/internal/bootstrap/mlsconfig"
	"aim-chat/go-backend/internal/domains/contracts"
	groupdomain "aim-chat/go-backend/internal/domains/group"
	identityapp "aim-chat/go-backend/internal/identity"
	"aim-chat/go-backend/internal/platform/privacylog"
	runtimeapp "aim-chat/go-backend/internal/platform/runtime"
	"aim-chat/go-backend/internal/storage"
	"aim-chat/go-backend/internal/waku"
)

func newServiceWithOptions(wakuCfg waku.Config, opts contracts.ServiceOptions) (*Service, error) {
	opts = ensureServiceOptions(opts)

	manager, err := identityapp.NewManager()
	if err != nil {
		return nil, err
	}

	svc := &Service{
		identityManager: manager,
		wakuNode:        waku.NewNode(wakuCfg),
		messageStore:    opts.MessageStore,
		notifier:        runtimeapp.NewNotificationHub(2048),
		logger:          opts.Logger,
		metrics:         runtimeapp.NewServiceMetricsState(),
		runtime:         runtimeapp.NewServiceRuntime(),
		groupRuntime:    groupdomain.NewRuntimeState(),
		identityState:   identityapp.NewStateStore(),
		groupStateStore: groupdomain.NewSnapshotStore(),
		mlsStore:        groupdomain.NewMLSStore(),
		mlsCfg:          mlsconfig.FromEnv(),
		mlsLogger:       newMLSLogger(),
		groupAbuse:      groupdomain.NewAbuseProtectionFromEnv(),
		startStopMu:     &sync.Mutex{},
	}
	svc.groupCore = svc.groupUseCases()
	return svc, nil
}

func ensureServiceOptions(opts contracts.ServiceOptions) contracts.ServiceOptions {
	if opts.MessageStore == nil {
		opts.MessageStore = storage.NewMessageStore()
	}
	if opts.Logger == nil {
		opts.Logger = runtimeapp.DefaultLogger()
	}
	opts.Logger = slog.New(privacylog.WrapHandler(opts.Logger.Handler()))
	return opts
}
