package policy

import (
	"errors"
	"testing"

	groupmodel "aim-chat/go-backend/internal/domains/group/model"
)

func TestCompareSemVer(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.4.2", "1.4.2", 0},
		{"1.4", "1.4.0", 0},
		{"1.3.9", "1.4.0", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.4", "1.4.1", -1},
		{"", "0.0.0", 0},
	}
	for _, tc := range cases {
		if got := CompareSemVer(tc.a, tc.b); got != tc.want {
			t.Fatalf("CompareSemVer(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEnforceMinVersionGate(t *testing.T) {
	unblocked := NewGroupState(Group{ID: "group-1"})
	if err := EnforceMinVersionGate(unblocked, "1.0.0"); err != nil {
		t.Fatalf("group without a min version requirement should never pause, got %v", err)
	}

	gated := NewGroupState(Group{ID: "group-1", MinSupportedProtocolVersion: "2.0.0"})
	if err := EnforceMinVersionGate(gated, "1.9.0"); !errors.Is(err, ErrGroupPausedOnVersionGate) {
		t.Fatalf("client below the required version should be paused, got %v", err)
	} else {
		var paused *groupmodel.GroupPausedError
		if !errors.As(err, &paused) || paused.RequiredVersion != "2.0.0" {
			t.Fatalf("pause error should carry the required version, got %v", err)
		}
	}
	if err := EnforceMinVersionGate(gated, "2.0.0"); err != nil {
		t.Fatalf("client matching the required version should proceed, got %v", err)
	}
	if err := EnforceMinVersionGate(gated, "2.1.0"); err != nil {
		t.Fatalf("client above the required version should proceed, got %v", err)
	}
}
