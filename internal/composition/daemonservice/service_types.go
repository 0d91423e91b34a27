// Package daemonservice composes the MLS group core with its collaborator
// seams (identity, transport, message history, encrypted storage) into the
// daemon's single service object.
package daemonservice

import (
	"log/slog"
	"sync"

	"aim-chat/go-backend/internal/bootstrap/mlsconfig"
	"aim-chat/go-backend/internal/domains/contracts"
	groupdomain "aim-chat/go-backend/internal/domains/group"
	identityapp "aim-chat/go-backend/internal/identity"
	runtimeapp "aim-chat/go-backend/internal/platform/runtime"
	"aim-chat/go-backend/pkg/models"
	"go.uber.org/zap"
)

// groupCore is the slice of the group usecase surface the Service
// re-exports as its GroupAPI; *groupdomain.Service satisfies it.
type groupCore interface {
	CreateGroup(title string) (groupdomain.Group, error)
	GetGroup(groupID string) (groupdomain.Group, error)
	ListGroups() ([]groupdomain.Group, error)
	ListGroupMembers(groupID string) ([]groupdomain.GroupMember, error)
	LeaveGroup(groupID string) (bool, error)
	InviteToGroup(groupID, memberID string) (groupdomain.GroupMember, error)
	AcceptGroupInvite(groupID string) (bool, error)
	DeclineGroupInvite(groupID string) (bool, error)
	RemoveGroupMember(groupID, memberID string) (bool, error)
	PromoteGroupMember(groupID, memberID string) (groupdomain.GroupMember, error)
	DemoteGroupMember(groupID, memberID string) (groupdomain.GroupMember, error)
	SendGroupMessage(groupID, content string) (groupdomain.GroupMessageFanoutResult, error)
	SendGroupMessageInThread(groupID, content, threadID string) (groupdomain.GroupMessageFanoutResult, error)
	ListGroupMessages(groupID string, limit, offset int) ([]models.Message, error)
	ListGroupMessagesByThread(groupID, threadID string, limit, offset int) ([]models.Message, error)
	GetGroupMessageStatus(groupID, messageID string) (models.MessageStatus, error)
	DeleteGroupMessage(groupID, messageID string) error
}

// The concrete identity manager is the interface's sole implementation;
// the service holds it concretely so identity persistence can snapshot it.
var _ contracts.IdentityDomain = (*identityapp.Manager)(nil)

type Service struct {
	identityManager *identityapp.Manager
	wakuNode        contracts.TransportNode
	messageStore    contracts.MessageRepository
	notifier        *runtimeapp.NotificationHub
	logger          *slog.Logger

	groupCore

	metrics         *runtimeapp.ServiceMetricsState
	runtime         *runtimeapp.ServiceRuntime
	groupRuntime    *groupdomain.RuntimeState
	identityState   *identityapp.StateStore
	groupStateStore *groupdomain.SnapshotStore
	mlsStore        *groupdomain.MLSStore
	mlsCfg          mlsconfig.Config
	mlsLogger       *zap.SugaredLogger
	groupAbuse      *groupdomain.AbuseProtection
	startStopMu     *sync.Mutex
}
