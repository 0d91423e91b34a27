package model

import (
	"errors"
	"testing"
)

func TestIntentKindValid(t *testing.T) {
	cases := []struct {
		kind IntentKind
		want bool
	}{
		{IntentKindSendMessage, true},
		{IntentKindMetadataUpdate, true},
		{IntentKindAddMembers, true},
		{IntentKindRemoveMembers, true},
		{IntentKindKeyUpdate, true},
		{IntentKindAdminListUpdate, true},
		{IntentKind("rekey"), false},
		{IntentKind(""), false},
	}
	for _, tc := range cases {
		if got := tc.kind.Valid(); got != tc.want {
			t.Fatalf("kind %q: got=%v want=%v", tc.kind, got, tc.want)
		}
	}
}

func TestIntentStateValid(t *testing.T) {
	cases := []struct {
		state IntentState
		want  bool
	}{
		{IntentStateToPublish, true},
		{IntentStatePublished, true},
		{IntentStateCommitted, true},
		{IntentStateError, true},
		{IntentState("retrying"), false},
	}
	for _, tc := range cases {
		if got := tc.state.Valid(); got != tc.want {
			t.Fatalf("state %q: got=%v want=%v", tc.state, got, tc.want)
		}
	}
}

func TestValidateIntent(t *testing.T) {
	valid := Intent{ID: "intent-1", GroupID: "group-1", Kind: IntentKindSendMessage, State: IntentStateToPublish}
	if err := ValidateIntent(valid); err != nil {
		t.Fatalf("expected valid intent, got %v", err)
	}

	missingID := valid
	missingID.ID = ""
	if !errors.Is(ValidateIntent(missingID), ErrInvalidIntentID) {
		t.Fatalf("expected ErrInvalidIntentID")
	}

	missingGroup := valid
	missingGroup.GroupID = " "
	if !errors.Is(ValidateIntent(missingGroup), ErrInvalidGroupID) {
		t.Fatalf("expected ErrInvalidGroupID")
	}

	badKind := valid
	badKind.Kind = IntentKind("bogus")
	if !errors.Is(ValidateIntent(badKind), ErrInvalidIntentKind) {
		t.Fatalf("expected ErrInvalidIntentKind")
	}

	badState := valid
	badState.State = IntentState("bogus")
	if !errors.Is(ValidateIntent(badState), ErrInvalidIntentState) {
		t.Fatalf("expected ErrInvalidIntentState")
	}
}

func TestValidateIntentStateTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    IntentState
		to      IntentState
		wantErr bool
	}{
		{"idempotent to_publish", IntentStateToPublish, IntentStateToPublish, false},
		{"to_publish to published", IntentStateToPublish, IntentStatePublished, false},
		{"to_publish to error", IntentStateToPublish, IntentStateError, false},
		{"published to committed", IntentStatePublished, IntentStateCommitted, false},
		{"published to error", IntentStatePublished, IntentStateError, false},
		{"committed to anything", IntentStateCommitted, IntentStatePublished, true},
		{"error to anything", IntentStateError, IntentStatePublished, true},
		{"to_publish straight to committed", IntentStateToPublish, IntentStateCommitted, false},
		{"published back to to_publish", IntentStatePublished, IntentStateToPublish, true},
		{"invalid from state", IntentState("bogus"), IntentStatePublished, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateIntentStateTransition(tc.from, tc.to)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %s -> %s", tc.from, tc.to)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %s -> %s: %v", tc.from, tc.to, err)
			}
		})
	}
}
