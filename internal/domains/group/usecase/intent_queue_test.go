package usecase

import (
	"errors"
	"testing"
	"time"
)

func newTestIntentQueue() *IntentQueue {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	counter := 0
	return &IntentQueue{
		GenerateID: func(prefix string) (string, error) {
			counter++
			return prefix + "-" + time.Now().UTC().Format("150405") + "-" + string(rune('a'+counter)), nil
		},
		Now:      func() time.Time { return now },
		Enqueued: map[string][]Intent{},
	}
}

func TestIntentQueueEnqueueAndPending(t *testing.T) {
	q := newTestIntentQueue()
	intent, err := q.Enqueue("group-1", IntentKindSendMessage, []byte("hi"))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if intent.State != IntentStateToPublish {
		t.Fatalf("expected freshly enqueued intent in to_publish state, got %q", intent.State)
	}

	pending := q.Pending("group-1")
	if len(pending) != 1 || pending[0].ID != intent.ID {
		t.Fatalf("expected one pending intent, got %+v", pending)
	}
}

func TestIntentQueueMarkPublishedAndCommitted(t *testing.T) {
	q := newTestIntentQueue()
	intent, err := q.Enqueue("group-1", IntentKindAddMembers, nil)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := q.MarkPublished("group-1", intent.ID); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	published := q.Enqueued["group-1"][0]
	if published.State != IntentStatePublished {
		t.Fatalf("expected published state, got %q", published.State)
	}
	if published.PublishedAt.IsZero() {
		t.Fatalf("expected published_at to be stamped")
	}

	if err := q.MarkCommitted("group-1", intent.ID); err != nil {
		t.Fatalf("mark committed failed: %v", err)
	}
	committed := q.Enqueued["group-1"][0]
	if committed.State != IntentStateCommitted {
		t.Fatalf("expected committed state, got %q", committed.State)
	}

	pending := q.Pending("group-1")
	if len(pending) != 0 {
		t.Fatalf("committed intents should no longer be pending, got %+v", pending)
	}
}

func TestIntentQueueMarkPublishedUnknownIntent(t *testing.T) {
	q := newTestIntentQueue()
	if err := q.MarkPublished("group-1", "missing"); err != ErrGroupNotFound {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
}

func TestIntentQueueRetryOrFailEventuallyGivesUp(t *testing.T) {
	q := newTestIntentQueue()
	intent, err := q.Enqueue("group-1", IntentKindMetadataUpdate, nil)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := q.MarkPublished("group-1", intent.ID); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}

	collision := errors.New("epoch advanced")
	for i := 1; i < MaxIntentPublishAttempts; i++ {
		if err := q.RetryOrFail("group-1", intent.ID, collision); err != nil {
			t.Fatalf("retry %d should not fail yet: %v", i, err)
		}
		got := q.Enqueued["group-1"][0]
		if got.State != IntentStateToPublish {
			t.Fatalf("retry %d expected to_publish state, got %q", i, got.State)
		}
		if err := q.MarkPublished("group-1", intent.ID); err != nil {
			t.Fatalf("re-publish after retry %d failed: %v", i, err)
		}
	}

	if err := q.RetryOrFail("group-1", intent.ID, collision); err != ErrIntentStuck {
		t.Fatalf("expected ErrIntentStuck once attempts are exhausted, got %v", err)
	}
	final := q.Enqueued["group-1"][0]
	if final.State != IntentStateError {
		t.Fatalf("expected error state once stuck, got %q", final.State)
	}
	if final.Attempts != MaxIntentPublishAttempts {
		t.Fatalf("expected attempts to reach %d, got %d", MaxIntentPublishAttempts, final.Attempts)
	}
}

func TestIntentQueuePersistFailureRollsBackEnqueue(t *testing.T) {
	q := newTestIntentQueue()
	persistErr := errors.New("disk full")
	q.Persist = func(map[string][]Intent) error { return persistErr }

	if _, err := q.Enqueue("group-1", IntentKindSendMessage, nil); err != persistErr {
		t.Fatalf("expected persist error to surface, got %v", err)
	}
	if len(q.Enqueued["group-1"]) != 0 {
		t.Fatalf("expected failed enqueue to roll back, got %+v", q.Enqueued["group-1"])
	}
}
