package ports

import (
	"context"
	"time"

	groupdomain "aim-chat/go-backend/internal/domains/group"
	"aim-chat/go-backend/pkg/models"
)

// IdentityAPI is a transport-neutral identity/account contract: the local
// inbox, its seed lifecycle, and its installations (devices).
type IdentityAPI interface {
	GetIdentity() (models.Identity, error)
	SelfContactCard(displayName string) (models.ContactCard, error)
	CreateIdentity(password string) (models.Identity, string, error)
	ExportSeed(password string) (string, error)
	ImportIdentity(mnemonic, password string) (models.Identity, error)
	ValidateMnemonic(mnemonic string) bool
	ChangePassword(oldPassword, newPassword string) error

	ListDevices() ([]models.Device, error)
	AddDevice(name string) (models.Device, error)
	RevokeDevice(deviceID string) (models.DeviceRevocation, error)
}

// GroupAPI is a transport-neutral group messaging contract.
type GroupAPI interface {
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

	RotateKeyPackage(installationID, inboxID string) (groupdomain.KeyPackage, bool, error)
	PublishLastResortKeyPackage(installationID, inboxID string) (groupdomain.KeyPackage, error)

	SyncMLSWelcomes() (int, error)
	SyncMLSGroups() []error

	FindOrCreateDM(counterpartyInboxID, counterpartyInstallationID string) (groupdomain.Group, bool, error)
	AddGroupMemberMLS(groupID, memberID, installationID, role string) (groupdomain.GroupEvent, error)
	RemoveGroupMemberMLS(groupID, memberID string) (groupdomain.GroupEvent, error)
	UpdateGroupMetadataMLS(groupID, title, description, avatar string) (groupdomain.GroupEvent, error)
	UpdateGroupMinVersionToMatchSelf(groupID string) (groupdomain.GroupEvent, error)
	UpdateGroupAdminListMLS(groupID, targetInboxID, action string) (groupdomain.GroupEvent, error)
	UpdateGroupPermissionMLS(groupID, policySetJSON string) (groupdomain.GroupEvent, error)
	LeaveGroupMLS(groupID string) (groupdomain.GroupEvent, error)
	ScheduleGroupAdminRemovals(groupID string) ([]groupdomain.GroupEvent, error)

	SetConsent(entityType, entityID, state string) (groupdomain.ConsentRecord, error)
	GetConsent(entityType, entityID string) (groupdomain.ConsentState, error)
}

type NetworkAPI interface {
	GetNetworkStatus() models.NetworkStatus
	GetMetrics() models.MetricsSnapshot
}

type DaemonService interface {
	IdentityAPI
	GroupAPI
	NetworkAPI
	StartNetworking(ctx context.Context) error
	StopNetworking(ctx context.Context) error
	SubscribeNotifications(cursor int64) ([]NotificationEvent, <-chan NotificationEvent, func())
	ListenAddresses() []string
}

type NotificationEvent struct {
	Seq       int64
	Method    string
	Payload   any
	Timestamp time.Time
}

// IdentityDomain is the identity/address-association collaborator the group
// core consults but never mutates: the local inbox identity, its contacts,
// and its installations with their signing keys.
type IdentityDomain interface {
	CreateIdentity(password string) (models.Identity, string, error)
	VerifyPassword(password string) error
	GetIdentity() models.Identity
	ExportSeed(password string) (string, error)
	ImportIdentity(mnemonic, password string) (models.Identity, error)
	ValidateMnemonic(mnemonic string) bool
	ChangePassword(oldPassword, newPassword string) error
	AddContact(card models.ContactCard) error
	VerifyContactCard(card models.ContactCard) (bool, error)
	Contacts() []models.Contact
	HasContact(contactID string) bool
	SelfContactCard(displayName string) (models.ContactCard, error)
	ContactPublicKey(contactID string) ([]byte, bool)
	ListDevices() []models.Device
	AddDevice(name string) (models.Device, error)
	RevokeDevice(deviceID string) (models.DeviceRevocation, error)
	ActiveDeviceAuth(payload []byte) (models.Device, []byte, error)
	RestoreIdentityPrivateKey(privateKey []byte) error
	SnapshotIdentityKeys() (publicKey []byte, privateKey []byte)
}

type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}
