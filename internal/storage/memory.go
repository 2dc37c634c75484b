package storage

import (
	"sort"
	"sync"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/clock"
	"github.com/nixlim/mailwatch/internal/events"
	"github.com/nixlim/mailwatch/internal/monitor"
)

const memoryEventLimit = 10000

// MemoryStore keeps history in process memory. Events beyond the newest
// 10000 and alerts beyond the newest 200 are discarded.
type MemoryStore struct {
	mu        sync.RWMutex
	clock     clock.Clock
	events    *events.RingBuffer
	summaries []monitor.EpochSummary
	alerts    []alerts.Alert
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		clock:  o.clock,
		events: events.NewRingBuffer(memoryEventLimit),
	}
}

func (m *MemoryStore) RecordEvent(e events.Event) {
	m.events.Add(e)
}

func (m *MemoryStore) PersistSummary(s monitor.EpochSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
}

func (m *MemoryStore) PersistAlert(a alerts.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	if len(m.alerts) > maxAlertRows {
		m.alerts = m.alerts[len(m.alerts)-maxAlertRows:]
	}
}

func (m *MemoryStore) QuerySummaries(days int) []monitor.EpochSummary {
	cutoff := m.clock.Now().AddDate(0, 0, -clampDays(days))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []monitor.EpochSummary
	for i := len(m.summaries) - 1; i >= 0; i-- {
		if !m.summaries[i].End.Before(cutoff) {
			out = append(out, m.summaries[i])
		}
	}
	return out
}

func (m *MemoryStore) QueryDailyActivity(days int) []DailyActivity {
	cutoff := m.clock.Now().UTC().AddDate(0, 0, -clampDays(days)).Format("2006-01-02")

	type acc struct {
		sent, failed int
		totalMs      int64
	}
	byDay := make(map[string]*acc)
	for _, e := range m.events.ListAll() {
		day := e.Timestamp.UTC().Format("2006-01-02")
		if day < cutoff {
			continue
		}
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
		}
		if e.Kind == events.KindError {
			a.failed++
		} else {
			a.sent++
		}
		a.totalMs += int64(e.ResponseTimeMs)
	}

	out := make([]DailyActivity, 0, len(byDay))
	for day, a := range byDay {
		out = append(out, DailyActivity{
			Date:              day,
			Sent:              a.sent,
			Failed:            a.failed,
			AverageResponseMs: averageMs(a.totalMs, a.sent+a.failed),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (m *MemoryStore) RecentAlerts(limit int) []alerts.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.alerts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]alerts.Alert, 0, n)
	for i := len(m.alerts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.alerts[i])
	}
	return out
}

func (m *MemoryStore) DroppedWrites() int64 { return 0 }

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
