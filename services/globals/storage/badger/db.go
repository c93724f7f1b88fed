// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps an embedded BadgerDB instance with context-aware
// transaction helpers.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// ErrClosed is returned by transaction helpers after Close.
var ErrClosed = errors.New("badger: database closed")

// Config configures OpenDB.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory. Used by tests and by deployments
	// that do not want a cache directory.
	InMemory bool

	// SyncWrites fsyncs every write. Default false: cache entries are
	// recomputable.
	SyncWrites bool

	// ReadOnly opens an existing on-disk database without taking the write
	// lock, so inspection tools can run next to a live process.
	ReadOnly bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// Logger receives Badger's own log output at debug level. May be nil.
	Logger *slog.Logger
}

// DefaultConfig returns an on-disk configuration. Callers set Path.
func DefaultConfig() Config {
	return Config{GCInterval: 10 * time.Minute}
}

// InMemoryConfig returns a configuration for an in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is an opened BadgerDB.
//
// Thread Safety:
//
//	Safe for concurrent use. Each helper call runs its own transaction.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger

	closeOnce sync.Once
	stopGC    chan struct{}
	gcDone    chan struct{}
}

// OpenDB opens (creating if needed) a database.
//
// Inputs:
//
//	cfg - Path is required unless InMemory is set.
//
// Outputs:
//
//	*DB   - The caller owns it and must Close it.
//	error - Non-nil if the path is missing or Badger fails to open.
func OpenDB(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger: path is required for on-disk database")
		}
		opts = dgbadger.DefaultOptions(cfg.Path).WithReadOnly(cfg.ReadOnly)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(&slogAdapter{logger: logger})

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}

	d := &DB{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory && !cfg.ReadOnly {
		d.stopGC = make(chan struct{})
		d.gcDone = make(chan struct{})
		go d.runGC(cfg.GCInterval)
	}
	return d, nil
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.View(fn)
}

// WithTxn runs fn in a read-write transaction and commits it if fn returns
// nil.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.Update(fn)
}

// DropPrefix deletes every key starting with prefix.
func (d *DB) DropPrefix(prefix []byte) error {
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.DropPrefix(prefix)
}

// Close stops background GC and closes the database. Safe to call twice.
func (d *DB) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.stopGC != nil {
			close(d.stopGC)
			<-d.gcDone
		}
		err = d.db.Close()
	})
	return err
}

func (d *DB) runGC(interval time.Duration) {
	defer close(d.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to do.
			for d.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

// slogAdapter routes Badger's printf-style logger to slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error("badger: " + fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn("badger: " + fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug("badger: " + fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug("badger: " + fmt.Sprintf(format, args...))
}
