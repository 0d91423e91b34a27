package policy

import "testing"

func stateWithMember(role func(g *Group), memberID string, status GroupMemberStatus) GroupState {
	g := Group{ID: "group-1", CreatedBy: "owner-1"}
	if role != nil {
		role(&g)
	}
	state := NewGroupState(g)
	state.Members[memberID] = GroupMember{GroupID: "group-1", MemberID: memberID, Status: status}
	state.Members["owner-1"] = GroupMember{GroupID: "group-1", MemberID: "owner-1", Status: GroupMemberStatusActive}
	return state
}

func TestRoleForActor(t *testing.T) {
	state := stateWithMember(func(g *Group) {
		g.Admins = map[string]struct{}{"admin-1": {}}
	}, "admin-1", GroupMemberStatusActive)

	role := RoleForActor(state, "admin-1")
	if !role.IsMember || !role.IsAdmin || role.IsSuperAdmin {
		t.Fatalf("unexpected role for admin: %+v", role)
	}

	ownerRole := RoleForActor(state, "owner-1")
	if !ownerRole.IsSuperAdmin {
		t.Fatalf("group creator should always be super-admin: %+v", ownerRole)
	}

	strangerRole := RoleForActor(state, "nobody")
	if strangerRole.IsMember || strangerRole.IsAdmin || strangerRole.IsSuperAdmin {
		t.Fatalf("unknown actor should have no role: %+v", strangerRole)
	}

	invitedState := stateWithMember(nil, "invited-1", GroupMemberStatusInvited)
	invitedRole := RoleForActor(invitedState, "invited-1")
	if invitedRole.IsMember {
		t.Fatalf("invited-but-not-active member should not count as a member")
	}
}

func TestEvaluatePermission_DefaultPolicySet(t *testing.T) {
	state := stateWithMember(func(g *Group) {
		g.Admins = map[string]struct{}{"admin-1": {}}
	}, "member-1", GroupMemberStatusActive)
	state.Members["admin-1"] = GroupMember{GroupID: "group-1", MemberID: "admin-1", Status: GroupMemberStatusActive}
	policySet := DefaultPolicySet()

	if err := EvaluatePermission(state, policySet, "member-1", PermissionOperationAddMember); err != nil {
		t.Fatalf("any active member should be able to add members under the default policy: %v", err)
	}

	if err := EvaluatePermission(state, policySet, "member-1", PermissionOperationRemoveMember); err != ErrGroupPermissionDenied {
		t.Fatalf("plain member removing a member should be denied, got %v", err)
	}

	if err := EvaluatePermission(state, policySet, "admin-1", PermissionOperationRemoveMember); err != nil {
		t.Fatalf("admin removing a member should be allowed: %v", err)
	}

	if err := EvaluatePermission(state, policySet, "admin-1", PermissionOperationAddAdmin); err != ErrGroupPermissionDenied {
		t.Fatalf("plain admin promoting to admin should be denied, got %v", err)
	}

	if err := EvaluatePermission(state, policySet, "owner-1", PermissionOperationAddAdmin); err != nil {
		t.Fatalf("super-admin should be able to add admins: %v", err)
	}
}

func TestEvaluatePermission_DeniedOperation(t *testing.T) {
	state := stateWithMember(nil, "member-1", GroupMemberStatusActive)
	policySet := PolicySet{Rules: map[PermissionOperation]PermissionOption{
		PermissionOperationAddMember: PermissionOptionDeny,
	}}
	if err := EvaluatePermission(state, policySet, "owner-1", PermissionOperationAddMember); err != ErrGroupOperationDisallowed {
		t.Fatalf("deny option should block even a super-admin, got %v", err)
	}
}

func TestValidatePolicySet(t *testing.T) {
	good := DefaultPolicySet()
	if err := ValidatePolicySet(good); err != nil {
		t.Fatalf("default policy set should validate, got %v", err)
	}

	locksOutOwners := PolicySet{Rules: map[PermissionOperation]PermissionOption{
		PermissionOperationUpdatePermissions: PermissionOptionAdminOnly,
	}}
	if err := ValidatePolicySet(locksOutOwners); err != ErrGroupOperationDisallowed {
		t.Fatalf("policy that loosens update_permissions below super-admin should be rejected, got %v", err)
	}

	invalidOption := PolicySet{Rules: map[PermissionOperation]PermissionOption{
		PermissionOperationAddMember: PermissionOption("bogus"),
	}}
	if err := ValidatePolicySet(invalidOption); err != ErrInvalidGroupEventPayload {
		t.Fatalf("unrecognized permission option should be rejected, got %v", err)
	}
}
