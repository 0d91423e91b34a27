package policy

import (
	"errors"
	"testing"
)

func skewTestState(version uint64, keyVersion uint32) GroupState {
	state := NewGroupState(Group{ID: "group-1", Title: "g", CreatedBy: "inbox-a"})
	state.Version = version
	state.LastKeyVersion = keyVersion
	state.Members["inbox-b"] = GroupMember{
		GroupID:  "group-1",
		MemberID: "inbox-b",
		Role:     "user",
		Status:   GroupMemberStatusActive,
	}
	return state
}

func TestValidateInboundGroupMessageStateSkewWindow(t *testing.T) {
	cases := []struct {
		name              string
		membershipVersion uint64
		groupKeyVersion   uint32
		maxPastEpochs     uint32
		wantReason        InboundGroupMessageRejectReason
		wantErr           error
	}{
		{name: "exact match accepted", membershipVersion: 5, groupKeyVersion: 3, maxPastEpochs: 0},
		{name: "one behind within window", membershipVersion: 4, groupKeyVersion: 3, maxPastEpochs: 1},
		{name: "at window edge", membershipVersion: 2, groupKeyVersion: 3, maxPastEpochs: 3},
		{
			name: "one past window rejected stale", membershipVersion: 1, groupKeyVersion: 3, maxPastEpochs: 3,
			wantReason: InboundGroupMessageReasonEpochTooStale, wantErr: ErrGroupEpochTooStale,
		},
		{
			name: "behind with zero window keeps strict mismatch", membershipVersion: 4, groupKeyVersion: 3, maxPastEpochs: 0,
			wantReason: InboundGroupMessageReasonMembershipVersionMismatch, wantErr: ErrOutOfOrderGroupEvent,
		},
		{
			name: "future membership version flags fork", membershipVersion: 6, groupKeyVersion: 3, maxPastEpochs: 3,
			wantReason: InboundGroupMessageReasonFutureEpoch, wantErr: ErrGroupMaybeForked,
		},
		{
			name: "future key version flags fork", membershipVersion: 5, groupKeyVersion: 4, maxPastEpochs: 3,
			wantReason: InboundGroupMessageReasonFutureEpoch, wantErr: ErrGroupMaybeForked,
		},
		{
			name: "stale key version past window", membershipVersion: 5, groupKeyVersion: 1, maxPastEpochs: 1,
			wantReason: InboundGroupMessageReasonEpochTooStale, wantErr: ErrGroupEpochTooStale,
		},
		{name: "stale key version within window", membershipVersion: 5, groupKeyVersion: 2, maxPastEpochs: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := skewTestState(5, 3)
			reason, err := ValidateInboundGroupMessageState(state, "inbox-b", tc.membershipVersion, tc.groupKeyVersion, tc.maxPastEpochs)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected acceptance, got reason=%q err=%v", reason, err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if reason != tc.wantReason {
				t.Fatalf("expected reason %q, got %q", tc.wantReason, reason)
			}
		})
	}
}

func TestValidateInboundGroupMessageStateRejectsNonMember(t *testing.T) {
	state := skewTestState(5, 3)
	reason, err := ValidateInboundGroupMessageState(state, "inbox-stranger", 5, 3, 3)
	if !errors.Is(err, ErrGroupPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if reason != InboundGroupMessageReasonUnauthorizedSender {
		t.Fatalf("unexpected reason %q", reason)
	}
}
