package usecase

import (
	"strings"
	"time"

	aimcrypto "aim-chat/go-backend/internal/crypto"
)

// WelcomeMessage is the decoded wire shape of a Welcome: an encrypted
// key-schedule bundle addressed to one of the local identity's
// installations, plus enough group metadata to bootstrap local state
// without a further round trip.
type WelcomeMessage struct {
	GroupID          string
	ConversationType ConversationType
	Title            string
	CreatedBy        string
	AddedByInboxID   string
	RecipientInboxID string
	// RecipientKeyPackageID is the hash_ref naming the consumed key
	// package: the recipient installation looks its private half up by
	// this id before a welcome can be opened, and the id is marked
	// consumed exactly once on success.
	RecipientKeyPackageID string
	Bundle                aimcrypto.WelcomeSecretBundle
	InitialMembers        []GroupMember
	PolicySetJSON         []byte
	DMCounterpartyID      string
}

// WelcomeProcessor turns a received Welcome into local group state,
// following the generate-commit discipline used everywhere else in the
// state machine: the welcome's implied bootstrap event is applied to a
// freshly constructed GroupState and persisted atomically, or not applied
// at all.
type WelcomeProcessor struct {
	States   map[string]GroupState
	EventLog map[string][]GroupEvent
	Persist  SnapshotPersist

	Now func() time.Time
	// RecipientPrivateKey locates the private half of the key package
	// named by a welcome's RecipientKeyPackageID (hash_ref). Returning
	// ErrInvalidKeyPackageID for an id the local keystore no longer holds
	// (already consumed, or never issued) is the spec's "missing key
	// package -> Skip, idempotent re-delivery" branch.
	RecipientPrivateKey func(keyPackageID string) ([]byte, error)
	// ConsumeKeyPackage marks the named key package used by this group, so
	// it can never be offered again. Called only after the welcome
	// decrypts and bootstraps successfully.
	ConsumeKeyPackage func(keyPackageID, groupID string) error

	// StoreEpochSecret retains the epoch secret the welcome delivered, so
	// this installation can seal and open the group's application traffic.
	StoreEpochSecret func(groupID string, epoch aimcrypto.GroupEpochSecret) error
	GenerateEventID  func() string
	IsAutoConsented  func(actorID string) bool

	// ConsentLookup resolves the inviter's stored consent state, so a group
	// added by a previously-allowed inbox arrives pre-allowed and one added
	// by a denied inbox arrives rejected rather than Unknown. Takes
	// precedence over the coarser IsAutoConsented when both are wired.
	ConsentLookup func(actorID string) ConsentState

	// FindExistingDMGroupID looks up whether a DM already exists for a
	// counterparty, implementing find_or_create_dm: a second welcome for
	// the same pair stitches onto it instead of creating a sibling group.
	FindExistingDMGroupID func(counterpartyID string) (string, bool)

	NotifyGroupJoined func(group Group)
}

func (p *WelcomeProcessor) nowUTC() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// Process decodes a welcome's key-schedule bundle, bootstraps (or stitches
// onto) local group state, and returns the resulting GroupState along with
// the key schedule the recipient installation should retain for future
// epochs.
func (p *WelcomeProcessor) Process(msg WelcomeMessage) (GroupState, *aimcrypto.GroupKeySchedule, error) {
	if p.RecipientPrivateKey == nil {
		return GroupState{}, nil, ErrInvalidGroupMessageContent
	}
	privateKey, err := p.RecipientPrivateKey(msg.RecipientKeyPackageID)
	if err != nil {
		return GroupState{}, nil, err
	}
	schedule, err := aimcrypto.OpenWelcome(msg.Bundle, privateKey)
	if err != nil {
		return GroupState{}, nil, err
	}

	groupID := strings.TrimSpace(msg.GroupID)
	if p.States == nil {
		p.States = make(map[string]GroupState)
	}
	if msg.ConversationType == ConversationTypeDirectMessage && p.FindExistingDMGroupID != nil {
		if existingID, ok := p.FindExistingDMGroupID(msg.DMCounterpartyID); ok && existingID != groupID {
			// A sibling DM for the same pair already exists; the incoming
			// group id becomes a hidden stitch tombstone pointing at it, so
			// envelopes later addressed to the duplicate id still resolve.
			if _, known := p.States[groupID]; !known && groupID != "" {
				now := p.nowUTC()
				tombstone := NewGroupState(Group{
					ID:                  groupID,
					Title:               strings.TrimSpace(msg.Title),
					CreatedBy:           strings.TrimSpace(msg.CreatedBy),
					CreatedAt:           now,
					UpdatedAt:           now,
					ConversationType:    ConversationTypeDirectMessage,
					DMID:                CanonicalDMID(msg.RecipientInboxID, msg.DMCounterpartyID),
					StitchedIntoGroupID: existingID,
					Hidden:              true,
				})
				p.States[groupID] = tombstone
			}
			groupID = existingID
		}
	}
	groupID = ResolveStitchedGroupID(p.States, groupID)
	if p.StoreEpochSecret != nil {
		// Re-home the secret under the resolved id so a stitched welcome's
		// key material lands on the canonical group.
		epoch := schedule.Committed()
		epoch.GroupID = groupID
		if err := p.StoreEpochSecret(groupID, epoch); err != nil {
			return GroupState{}, nil, err
		}
	}
	if existing, ok := p.States[groupID]; ok {
		// Already stitched into a known group; nothing further to bootstrap.
		return existing, schedule, nil
	}

	now := p.nowUTC()
	group := Group{
		ID:               groupID,
		Title:            strings.TrimSpace(msg.Title),
		CreatedBy:        strings.TrimSpace(msg.CreatedBy),
		CreatedAt:        now,
		UpdatedAt:        now,
		ConversationType: msg.ConversationType,
		AddedByInboxID:   strings.TrimSpace(msg.AddedByInboxID),
		MembershipState:  GroupMembershipStatePending,
		ConsentState:     ConsentStateUnknown,
	}
	if msg.ConversationType == ConversationTypeDirectMessage {
		group.DMID = CanonicalDMID(msg.RecipientInboxID, msg.DMCounterpartyID)
		group.DMMembers = [2]string{msg.RecipientInboxID, msg.DMCounterpartyID}
	}
	switch {
	case p.ConsentLookup != nil:
		switch p.ConsentLookup(group.AddedByInboxID) {
		case ConsentStateAllowed:
			group.ConsentState = ConsentStateAllowed
			group.MembershipState = GroupMembershipStateAllowed
		case ConsentStateDenied:
			group.ConsentState = ConsentStateDenied
			group.MembershipState = GroupMembershipStateRejected
		}
	case p.IsAutoConsented != nil && p.IsAutoConsented(group.AddedByInboxID):
		group.ConsentState = ConsentStateAllowed
		group.MembershipState = GroupMembershipStateAllowed
	}

	state := NewGroupState(group)
	state.Version = schedule.Committed().Epoch
	for _, member := range msg.InitialMembers {
		state.Members[member.MemberID] = member
	}
	recipient, ok := state.Members[strings.TrimSpace(msg.RecipientInboxID)]
	if !ok {
		recipient = GroupMember{
			GroupID:  groupID,
			MemberID: strings.TrimSpace(msg.RecipientInboxID),
			Role:     GroupMemberRoleUser,
		}
	}
	recipient.Status = GroupMemberStatusActive
	recipient.ActivatedAt = now
	recipient.UpdatedAt = now
	state.Members[recipient.MemberID] = recipient
	state.LastKeyVersion = 1
	state.AppliedEventIDs[p.bootstrapEventID(groupID)] = struct{}{}

	p.States[groupID] = state
	if p.EventLog == nil {
		p.EventLog = make(map[string][]GroupEvent)
	}
	if p.Persist != nil {
		if err := p.Persist(p.States, p.EventLog); err != nil {
			delete(p.States, groupID)
			return GroupState{}, nil, err
		}
	}
	if p.ConsumeKeyPackage != nil {
		if err := p.ConsumeKeyPackage(msg.RecipientKeyPackageID, groupID); err != nil {
			// The bootstrap already succeeded and is persisted; a failure to
			// mark the key package consumed is logged by the caller rather
			// than rolled back here, matching the spec's "welcome processing
			// failures never block other welcomes" guidance: one installation's
			// bookkeeping miss must not undo the group the recipient now has.
			return state, schedule, err
		}
	}
	if p.NotifyGroupJoined != nil {
		p.NotifyGroupJoined(state.Group)
	}
	return state, schedule, nil
}

// ResolveStitchedGroupID follows a group's stitch chain to the canonical
// group id: a DM superseded by a sibling carries StitchedIntoGroupID, and
// chains can form when stitches themselves get stitched. Resolution is
// bounded and cycle-safe; an id with no state or no stitch marker resolves
// to itself.
func ResolveStitchedGroupID(states map[string]GroupState, groupID string) string {
	seen := map[string]struct{}{}
	for {
		if _, cycled := seen[groupID]; cycled {
			return groupID
		}
		seen[groupID] = struct{}{}
		state, ok := states[groupID]
		if !ok || strings.TrimSpace(state.Group.StitchedIntoGroupID) == "" {
			return groupID
		}
		groupID = state.Group.StitchedIntoGroupID
	}
}

func (p *WelcomeProcessor) bootstrapEventID(groupID string) string {
	if p.GenerateEventID != nil {
		return p.GenerateEventID()
	}
	return "welcome_" + groupID
}
