package repository

import (
	"time"

	"github.com/okian/stomp/pkg/logger"
)

// Option applies a configuration option to the MemoryLedger.
type Option func(*MemoryLedger)

// WithShards sets the number of lock shards.
func WithShards(n int) Option {
	return func(l *MemoryLedger) {
		if n > 0 {
			l.shardCount = n
		}
	}
}

// WithHistorySize caps the resolved history. Zero disables it.
func WithHistorySize(n int) Option {
	return func(l *MemoryLedger) {
		if n >= 0 {
			l.historySize = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLedger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *MemoryLedger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store logger.
func WithStoreLogger(lg logger.Logger) StoreOption {
	return func(s *Store) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// WithStoreClock overrides time.Now for created_at columns.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
