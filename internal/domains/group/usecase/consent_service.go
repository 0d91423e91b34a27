package usecase

import (
	"time"
)

// ConsentLedger owns the installation's consent preference rows, keyed by
// ConsentKey. Mutations persist the whole map and fan out through Notify
// so subscribed surfaces (conversation list, request inbox) can re-filter
// without polling, following the same function-field dependency style as
// the rest of this package.
type ConsentLedger struct {
	Records map[string]ConsentRecord

	Now     func() time.Time
	Persist func(records map[string]ConsentRecord) error
	Notify  func(record ConsentRecord)
}

func (l *ConsentLedger) nowUTC() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}

// Set installs or overwrites the consent state for an entity.
func (l *ConsentLedger) Set(entityType ConsentEntityType, entityID string, state ConsentState) (ConsentRecord, error) {
	record := ConsentRecord{
		EntityType: entityType,
		EntityID:   entityID,
		State:      state,
		UpdatedAt:  l.nowUTC(),
	}
	if err := ValidateConsentRecord(record); err != nil {
		return ConsentRecord{}, err
	}
	if l.Records == nil {
		l.Records = make(map[string]ConsentRecord)
	}
	key := ConsentKey(entityType, entityID)
	previous, hadPrevious := l.Records[key]
	l.Records[key] = record
	if l.Persist != nil {
		if err := l.Persist(l.Records); err != nil {
			if hadPrevious {
				l.Records[key] = previous
			} else {
				delete(l.Records, key)
			}
			return ConsentRecord{}, err
		}
	}
	if l.Notify != nil {
		l.Notify(record)
	}
	return record, nil
}

// Get returns the stored consent state for an entity, or Unknown when no
// record exists.
func (l *ConsentLedger) Get(entityType ConsentEntityType, entityID string) ConsentState {
	record, ok := l.Records[ConsentKey(entityType, entityID)]
	if !ok {
		return ConsentStateUnknown
	}
	return record.State
}

// StateForActor resolves the consent state welcome processing applies to a
// group added by the given inbox: an explicit inbox-level record wins,
// otherwise Unknown.
func (l *ConsentLedger) StateForActor(inboxID string) ConsentState {
	return l.Get(ConsentEntityInboxID, inboxID)
}
