package usecase

import (
	"time"
)

// IntentQueue stages locally-generated changes ahead of publishing them,
// so a crash between "apply locally" and "publish over the network" can be
// recovered from by replaying whatever is still sitting in ToPublish state.
type IntentQueue struct {
	GenerateID func(prefix string) (string, error)
	Now        func() time.Time

	Enqueued map[string][]Intent // keyed by group id, in FIFO order
	Persist  func(enqueued map[string][]Intent) error

	// MaxAttempts overrides MaxIntentPublishAttempts when positive.
	MaxAttempts int
}

func (q *IntentQueue) maxAttempts() int {
	if q.MaxAttempts > 0 {
		return q.MaxAttempts
	}
	return MaxIntentPublishAttempts
}

func (q *IntentQueue) nowUTC() time.Time {
	if q.Now == nil {
		return time.Now().UTC()
	}
	return q.Now().UTC()
}

// Enqueue stages a new intent for a group, returning it with its
// generated id and ToPublish state set.
func (q *IntentQueue) Enqueue(groupID string, kind IntentKind, payload []byte) (Intent, error) {
	if q.GenerateID == nil {
		return Intent{}, ErrInvalidGroupMessageContent
	}
	id, err := q.GenerateID("intent")
	if err != nil {
		return Intent{}, err
	}
	intent := Intent{
		ID:        id,
		GroupID:   groupID,
		Kind:      kind,
		State:     IntentStateToPublish,
		Payload:   payload,
		CreatedAt: q.nowUTC(),
	}
	if err := ValidateIntent(intent); err != nil {
		return Intent{}, err
	}
	if q.Enqueued == nil {
		q.Enqueued = make(map[string][]Intent)
	}
	q.Enqueued[groupID] = append(q.Enqueued[groupID], intent)
	if q.Persist != nil {
		if err := q.Persist(q.Enqueued); err != nil {
			q.Enqueued[groupID] = q.Enqueued[groupID][:len(q.Enqueued[groupID])-1]
			return Intent{}, err
		}
	}
	return intent, nil
}

// Pending returns the group's queued intents still awaiting publish or
// commit confirmation (ToPublish and Published), in the order they were
// enqueued.
func (q *IntentQueue) Pending(groupID string) []Intent {
	var pending []Intent
	for _, intent := range q.Enqueued[groupID] {
		if intent.State == IntentStateToPublish || intent.State == IntentStatePublished {
			pending = append(pending, intent)
		}
	}
	return pending
}

func (q *IntentQueue) transition(groupID, intentID string, to IntentState, lastError string) error {
	list := q.Enqueued[groupID]
	for i, intent := range list {
		if intent.ID != intentID {
			continue
		}
		if err := ValidateIntentStateTransition(intent.State, to); err != nil {
			return err
		}
		intent.State = to
		intent.LastError = lastError
		if to == IntentStatePublished {
			intent.PublishedAt = q.nowUTC()
		}
		list[i] = intent
		q.Enqueued[groupID] = list
		if q.Persist != nil {
			return q.Persist(q.Enqueued)
		}
		return nil
	}
	return ErrGroupNotFound
}

// MarkPublished records that an intent's commit was successfully
// broadcast but not yet confirmed merged.
func (q *IntentQueue) MarkPublished(groupID, intentID string) error {
	return q.transition(groupID, intentID, IntentStatePublished, "")
}

// MarkCommitted records that a previously published intent's commit has
// been confirmed merged into the group's event log at the expected epoch.
func (q *IntentQueue) MarkCommitted(groupID, intentID string) error {
	return q.transition(groupID, intentID, IntentStateCommitted, "")
}

// MarkCommittedNoop records that an intent reached Committed without a new
// commit being merged, because the mutation it staged had already been
// applied by an earlier attempt (the duplicate-intent case in the sync
// design: a retried add_members/remove_members whose prior attempt's ack
// never made it back to the caller before a crash).
func (q *IntentQueue) MarkCommittedNoop(groupID, intentID string) error {
	list := q.Enqueued[groupID]
	for i, intent := range list {
		if intent.ID != intentID {
			continue
		}
		if err := ValidateIntentStateTransition(intent.State, IntentStateCommitted); err != nil {
			return err
		}
		intent.State = IntentStateCommitted
		intent.WasNoop = true
		list[i] = intent
		q.Enqueued[groupID] = list
		if q.Persist != nil {
			return q.Persist(q.Enqueued)
		}
		return nil
	}
	return ErrGroupNotFound
}

// RetryOrFail bumps an intent's attempt counter after a publish collision
// (the epoch advanced out from under it) and either returns it to
// ToPublish for another attempt, or marks it Error once
// MaxIntentPublishAttempts is exhausted.
func (q *IntentQueue) RetryOrFail(groupID, intentID string, collisionErr error) error {
	list := q.Enqueued[groupID]
	for i, intent := range list {
		if intent.ID != intentID {
			continue
		}
		intent.Attempts++
		if intent.Attempts >= q.maxAttempts() {
			intent.State = IntentStateError
			intent.LastError = ErrIntentStuck.Error()
			list[i] = intent
			q.Enqueued[groupID] = list
			if q.Persist != nil {
				return q.Persist(q.Enqueued)
			}
			return ErrIntentStuck
		}
		intent.State = IntentStateToPublish
		if collisionErr != nil {
			intent.LastError = collisionErr.Error()
		}
		list[i] = intent
		q.Enqueued[groupID] = list
		if q.Persist != nil {
			return q.Persist(q.Enqueued)
		}
		return nil
	}
	return ErrGroupNotFound
}
