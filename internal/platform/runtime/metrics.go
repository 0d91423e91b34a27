package runtime

import (
	"sync"
	"time"
)

// ServiceMetricsState aggregates error counters and per-group-operation
// tallies surfaced by metrics.get.
type ServiceMetricsState struct {
	mu              sync.RWMutex
	errorCounters   map[string]int
	groupAggregates map[string]int
	retryAttempts   int
	lastUpdatedAt   time.Time
}

func NewServiceMetricsState() *ServiceMetricsState {
	return &ServiceMetricsState{
		errorCounters:   map[string]int{},
		groupAggregates: map[string]int{},
	}
}

func (m *ServiceMetricsState) Snapshot() (counters map[string]int, groupAggregates map[string]int, retries int, lastAt time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counters = make(map[string]int, len(m.errorCounters))
	for k, v := range m.errorCounters {
		counters[k] = v
	}
	groupAggregates = make(map[string]int, len(m.groupAggregates))
	for k, v := range m.groupAggregates {
		groupAggregates[k] = v
	}
	return counters, groupAggregates, m.retryAttempts, m.lastUpdatedAt
}

func (m *ServiceMetricsState) RecordError(category string) {
	m.mu.Lock()
	m.errorCounters[category]++
	m.lastUpdatedAt = time.Now().UTC()
	m.mu.Unlock()
}

func (m *ServiceMetricsState) RecordRetryAttempt() {
	m.mu.Lock()
	m.retryAttempts++
	m.lastUpdatedAt = time.Now().UTC()
	m.mu.Unlock()
}

func (m *ServiceMetricsState) RecordGroupAggregate(name string) {
	m.mu.Lock()
	m.groupAggregates[name]++
	m.lastUpdatedAt = time.Now().UTC()
	m.mu.Unlock()
}
