package domain

import (
	"sync"
	"time"
)

// DefaultHistoryLimit is the number of records kept by a HistoryLog.
const DefaultHistoryLimit = 20

// HistoryLog is a bounded, append-only, in-memory list of past actions.
// The oldest record is dropped once the limit is reached.
type HistoryLog struct {
	mu      sync.RWMutex
	limit   int
	records []HistoryRecord
	now     func() time.Time
}

// NewHistoryLog creates a history log keeping at most limit records.
// A non-positive limit falls back to DefaultHistoryLimit.
func NewHistoryLog(limit int) *HistoryLog {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryLog{
		mu:      sync.RWMutex{},
		limit:   limit,
		records: make([]HistoryRecord, 0, limit),
		now:     time.Now,
	}
}

// Append records an action and its output.
func (h *HistoryLog) Append(action string, input string, output string) HistoryRecord {
	record := HistoryRecord{
		Timestamp: h.now().UTC(),
		Action:    action,
		Input:     input,
		Output:    output,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) == h.limit {
		copy(h.records, h.records[1:])
		h.records = h.records[:h.limit-1]
	}
	h.records = append(h.records, record)

	return record
}

// Records returns a copy of the log, oldest first.
func (h *HistoryLog) Records() []HistoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of stored records.
func (h *HistoryLog) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.records)
}
