package policy

import (
	"sort"
	"strings"
)

// CanonicalDMID derives a deterministic identifier for the direct-message
// group between two inboxes by sorting the pair, so the same two inboxes
// always address the same group regardless of who initiated it. This
// grounds the originating protocol's find_or_create_dm de-duplication: a
// second invite between the same pair stitches onto the existing DM
// instead of creating a sibling.
func CanonicalDMID(inboxA, inboxB string) string {
	a := strings.TrimSpace(inboxA)
	b := strings.TrimSpace(inboxB)
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// ValidateDMInvariants enforces the structural rules that distinguish a
// direct-message group from an ordinary group: exactly two active or
// invited members, and both DMMembers slots set. The locked policy set is
// applied separately by EvaluateDMPermission; title and description are
// not checked here.
func ValidateDMInvariants(state GroupState) error {
	if !state.Group.IsDM() {
		return nil
	}
	active := 0
	for _, member := range state.Members {
		if member.Status == GroupMemberStatusActive || member.Status == GroupMemberStatusInvited {
			active++
		}
	}
	if active != 2 {
		return ErrDMMembershipInvariant
	}
	if state.Group.DMMembers[0] == "" || state.Group.DMMembers[1] == "" {
		return ErrDMMembershipInvariant
	}
	return nil
}

// EvaluateDMPermission short-circuits the general PolicySet evaluation for
// direct-message groups: every governed operation other than updating
// metadata locally (e.g. a local nickname) is denied. A two-party
// conversation has no meaningful admin hierarchy, and its membership is
// fixed at creation — adding or removing either member is never valid.
func EvaluateDMPermission(op PermissionOperation) error {
	switch op {
	case PermissionOperationUpdateMetadata:
		return nil
	default:
		return ErrDMPolicyLocked
	}
}
