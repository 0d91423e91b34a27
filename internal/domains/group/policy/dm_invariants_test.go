package policy

import "testing"

func TestCanonicalDMID(t *testing.T) {
	a := CanonicalDMID("inbox-b", "inbox-a")
	b := CanonicalDMID("inbox-a", "inbox-b")
	if a != b {
		t.Fatalf("canonical dm id should be order-independent: %q vs %q", a, b)
	}
	if a != "inbox-a:inbox-b" {
		t.Fatalf("unexpected canonical id: %q", a)
	}
}

func dmState(memberA, memberB string) GroupState {
	g := Group{
		ID:               "dm-1",
		ConversationType: "direct_message",
		DMMembers:        [2]string{memberA, memberB},
	}
	state := NewGroupState(g)
	state.Members[memberA] = GroupMember{GroupID: "dm-1", MemberID: memberA, Status: GroupMemberStatusActive}
	state.Members[memberB] = GroupMember{GroupID: "dm-1", MemberID: memberB, Status: GroupMemberStatusActive}
	return state
}

func TestValidateDMInvariants_NonDMGroupIsUnaffected(t *testing.T) {
	state := NewGroupState(Group{ID: "group-1"})
	if err := ValidateDMInvariants(state); err != nil {
		t.Fatalf("non-dm groups should never be rejected by the dm invariant check: %v", err)
	}
}

func TestValidateDMInvariants_ValidPair(t *testing.T) {
	state := dmState("inbox-a", "inbox-b")
	if err := ValidateDMInvariants(state); err != nil {
		t.Fatalf("expected valid dm state, got %v", err)
	}
}

func TestValidateDMInvariants_MissingMember(t *testing.T) {
	g := Group{ID: "dm-1", ConversationType: "direct_message", DMMembers: [2]string{"inbox-a", ""}}
	state := NewGroupState(g)
	if err := ValidateDMInvariants(state); err != ErrDMMembershipInvariant {
		t.Fatalf("expected ErrDMMembershipInvariant, got %v", err)
	}
}

func TestValidateDMInvariants_TooManyActiveMembers(t *testing.T) {
	state := dmState("inbox-a", "inbox-b")
	state.Members["inbox-c"] = GroupMember{GroupID: "dm-1", MemberID: "inbox-c", Status: GroupMemberStatusActive}
	if err := ValidateDMInvariants(state); err != ErrDMMembershipInvariant {
		t.Fatalf("expected ErrDMMembershipInvariant for a third member, got %v", err)
	}
}

func TestEvaluateDMPermission(t *testing.T) {
	locked := []PermissionOperation{
		PermissionOperationAddAdmin,
		PermissionOperationRemoveAdmin,
		PermissionOperationUpdatePermissions,
		PermissionOperationAddMember,
		PermissionOperationRemoveMember,
	}
	for _, op := range locked {
		if err := EvaluateDMPermission(op); err != ErrDMPolicyLocked {
			t.Fatalf("expected %q to be locked in a dm, got %v", op, err)
		}
	}

	if err := EvaluateDMPermission(PermissionOperationUpdateMetadata); err != nil {
		t.Fatalf("expected metadata updates to stay allowed in a dm, got %v", err)
	}
}
