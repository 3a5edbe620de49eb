// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package datastore

import (
	"errors"
	"time"
)

// Option is configuration option function for the Datastore
type Option func(cfg *config) error

// WithSyncWrites makes every write wait for an fsync. Slower but
// no committed pool transition is lost on power failure.
func WithSyncWrites(sync bool) Option {
	return func(cfg *config) error {
		cfg.syncWrites = sync
		return nil
	}
}

// WithMaxTableSize sets the badger table size in bytes.
func WithMaxTableSize(size int64) Option {
	return func(cfg *config) error {
		if size <= 0 {
			return errors.New("max table size must be positive")
		}
		cfg.maxTableSize = size
		return nil
	}
}

// WithGCInterval sets how often the value log is garbage collected.
func WithGCInterval(interval time.Duration) Option {
	return func(cfg *config) error {
		cfg.gcInterval = interval
		return nil
	}
}

type config struct {
	syncWrites   bool
	maxTableSize int64
	gcInterval   time.Duration
}
