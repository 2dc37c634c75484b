// Package storage keeps the history the in-memory monitor forgets: every
// send attempt, the summary of every closed statistics epoch and every fired
// alert. The SQLite store writes asynchronously so recording never blocks a
// sender; the memory store stands in when no database is available.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/clock"
	"github.com/nixlim/mailwatch/internal/events"
	"github.com/nixlim/mailwatch/internal/monitor"
)

const (
	writeChannelSize = 1000
	batchSize        = 50
	flushInterval    = 100 * time.Millisecond
)

// Store records monitor history.
type Store interface {
	RecordEvent(e events.Event)
	PersistSummary(s monitor.EpochSummary)
	PersistAlert(a alerts.Alert)

	// QuerySummaries returns epoch summaries that ended within the last
	// days days, newest first.
	QuerySummaries(days int) []monitor.EpochSummary
	// QueryDailyActivity returns per-day send totals for the last days days,
	// newest first.
	QueryDailyActivity(days int) []DailyActivity
	// RecentAlerts returns up to limit alerts, newest first.
	RecentAlerts(limit int) []alerts.Alert

	DroppedWrites() int64
	Close() error
}

// DailyActivity is the send volume for one UTC day.
type DailyActivity struct {
	Date              string `json:"date"`
	Sent              int    `json:"sent"`
	Failed            int    `json:"failed"`
	AverageResponseMs int    `json:"averageResponseTime"`
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	clock  clock.Clock
}

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source used for retention cutoffs.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type writeOp struct {
	opType  string
	event   *sendEventRow
	summary *summaryRow
	alert   *alertHistoryRow
}

type SQLiteStore struct {
	db              *sql.DB
	logger          zerolog.Logger
	clock           clock.Clock
	writeChan       chan writeOp
	droppedWrites   atomic.Int64
	doneChan        chan struct{}
	closed          atomic.Bool
	cancelMaint     context.CancelFunc
	maintenanceDone chan struct{}
}

func NewSQLiteStore(dbPath string, retentionDays, summaryRetentionDays int, opts ...Option) (*SQLiteStore, error) {
	return newSQLiteStoreWithChannelSize(dbPath, writeChannelSize, retentionDays, summaryRetentionDays, opts...)
}

func newSQLiteStoreWithChannelSize(dbPath string, chanSize int, retentionDays, summaryRetentionDays int, opts ...Option) (*SQLiteStore, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	o := buildOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())

	store := &SQLiteStore{
		db:              db,
		logger:          o.logger,
		clock:           o.clock,
		writeChan:       make(chan writeOp, chanSize),
		doneChan:        make(chan struct{}),
		cancelMaint:     cancel,
		maintenanceDone: make(chan struct{}),
	}

	go store.writerLoop()
	store.startMaintenance(ctx, retentionDays, summaryRetentionDays)

	return store, nil
}

// RecordEvent queues a send attempt for persistence.
func (s *SQLiteStore) RecordEvent(e events.Event) {
	row := &sendEventRow{
		Kind:       string(e.Kind),
		Timestamp:  formatTS(e.Timestamp),
		ResponseMs: e.ResponseTimeMs,
	}
	if e.Error != nil {
		row.ErrorCode = e.Error.Code
		row.ErrorMessage = e.Error.Message
	}
	s.sendWrite(writeOp{opType: "event", event: row})
}

// PersistSummary queues a closed epoch for persistence.
func (s *SQLiteStore) PersistSummary(sum monitor.EpochSummary) {
	s.sendWrite(writeOp{opType: "summary", summary: buildSummaryRow(sum)})
}

// PersistAlert implements the alerts.AlertPersister interface.
func (s *SQLiteStore) PersistAlert(alert alerts.Alert) {
	row := &alertHistoryRow{
		AlertID:  alert.ID,
		Rule:     alert.Rule,
		Severity: alert.Severity,
		Code:     alert.Code,
		Message:  alert.Message,
		FiredAt:  formatTS(alert.FiredAt),
	}
	s.sendWrite(writeOp{opType: "alertHistory", alert: row})
}

func (s *SQLiteStore) sendWrite(op writeOp) {
	if s.closed.Load() {
		return
	}
	// Close may close the channel between the check above and the send.
	defer func() { _ = recover() }()
	select {
	case s.writeChan <- op:
	default:
		s.droppedWrites.Add(1)
		s.logger.Warn().Str("type", op.opType).Msg("SQLite write channel full, dropped write")
	}
}

func (s *SQLiteStore) DroppedWrites() int64 {
	return s.droppedWrites.Load()
}

// Close stops maintenance, drains queued writes and closes the database.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.cancelMaint()
	select {
	case <-s.maintenanceDone:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("maintenance goroutine did not stop within 30s")
	}

	close(s.writeChan)

	select {
	case <-s.doneChan:
	case <-time.After(10 * time.Second):
		s.logger.Error().Msg("failed to drain writes within 10s, data may be lost")
	}

	return s.db.Close()
}

func (s *SQLiteStore) writerLoop() {
	defer close(s.doneChan)

	batch := make([]writeOp, 0, batchSize)
	flushTimer := time.NewTimer(flushInterval)
	defer flushTimer.Stop()

	for {
		select {
		case op, ok := <-s.writeChan:
			if !ok {
				if len(batch) > 0 {
					s.flushBatch(batch)
				}
				return
			}

			batch = append(batch, op)

			if len(batch) >= batchSize {
				s.flushBatch(batch)
				batch = batch[:0]
				flushTimer.Reset(flushInterval)
			}

		case <-flushTimer.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
			flushTimer.Reset(flushInterval)
		}
	}
}

func (s *SQLiteStore) flushBatch(batch []writeOp) {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range batch {
		if err := s.executeOp(tx, op); err != nil {
			s.logger.Error().Err(err).Str("type", op.opType).Msg("failed to execute write op")
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("failed to commit transaction")
	}
}

func (s *SQLiteStore) executeOp(tx *sql.Tx, op writeOp) error {
	switch op.opType {
	case "event":
		return s.writeSendEvent(tx, op.event)
	case "summary":
		return s.writeSummary(tx, op.summary)
	case "alertHistory":
		return s.writeAlertHistory(tx, op.alert)
	default:
		return fmt.Errorf("unknown op type: %s", op.opType)
	}
}

var _ Store = (*SQLiteStore)(nil)
