package usecase

import (
	"errors"
	"testing"
	"time"
)

func TestConsentLedgerSetAndGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var notified []ConsentRecord
	ledger := &ConsentLedger{
		Now:    func() time.Time { return now },
		Notify: func(record ConsentRecord) { notified = append(notified, record) },
	}

	record, err := ledger.Set(ConsentEntityInboxID, "inbox-a", ConsentStateAllowed)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if record.UpdatedAt != now {
		t.Fatalf("expected timestamp from Now, got %v", record.UpdatedAt)
	}
	if got := ledger.Get(ConsentEntityInboxID, "inbox-a"); got != ConsentStateAllowed {
		t.Fatalf("expected allowed, got %q", got)
	}
	if got := ledger.Get(ConsentEntityInboxID, "inbox-unknown"); got != ConsentStateUnknown {
		t.Fatalf("missing record should read Unknown, got %q", got)
	}
	if len(notified) != 1 || notified[0].EntityID != "inbox-a" {
		t.Fatalf("expected one notification, got %+v", notified)
	}
}

func TestConsentLedgerRejectsInvalidInput(t *testing.T) {
	ledger := &ConsentLedger{}
	if _, err := ledger.Set("unknown-entity", "x", ConsentStateAllowed); err == nil {
		t.Fatal("expected error for invalid entity type")
	}
	if _, err := ledger.Set(ConsentEntityInboxID, "  ", ConsentStateAllowed); err == nil {
		t.Fatal("expected error for blank entity id")
	}
	if _, err := ledger.Set(ConsentEntityInboxID, "inbox-a", "maybe"); err == nil {
		t.Fatal("expected error for invalid state")
	}
}

func TestConsentLedgerPersistFailureRollsBack(t *testing.T) {
	boom := errors.New("disk full")
	ledger := &ConsentLedger{
		Persist: func(map[string]ConsentRecord) error { return boom },
	}
	if _, err := ledger.Set(ConsentEntityInboxID, "inbox-a", ConsentStateDenied); !errors.Is(err, boom) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if got := ledger.Get(ConsentEntityInboxID, "inbox-a"); got != ConsentStateUnknown {
		t.Fatalf("failed set should leave no record, got %q", got)
	}
}

func TestConsentLedgerOverwriteRollsBackToPrevious(t *testing.T) {
	calls := 0
	boom := errors.New("disk full")
	ledger := &ConsentLedger{
		Persist: func(map[string]ConsentRecord) error {
			calls++
			if calls > 1 {
				return boom
			}
			return nil
		},
	}
	if _, err := ledger.Set(ConsentEntityInboxID, "inbox-a", ConsentStateAllowed); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if _, err := ledger.Set(ConsentEntityInboxID, "inbox-a", ConsentStateDenied); !errors.Is(err, boom) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if got := ledger.Get(ConsentEntityInboxID, "inbox-a"); got != ConsentStateAllowed {
		t.Fatalf("failed overwrite should keep prior state, got %q", got)
	}
}

func TestConsentLedgerStateForActor(t *testing.T) {
	ledger := &ConsentLedger{}
	if _, err := ledger.Set(ConsentEntityInboxID, "inbox-denied", ConsentStateDenied); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := ledger.StateForActor("inbox-denied"); got != ConsentStateDenied {
		t.Fatalf("expected denied, got %q", got)
	}
	if got := ledger.StateForActor("inbox-other"); got != ConsentStateUnknown {
		t.Fatalf("expected unknown for unseen actor, got %q", got)
	}
}
