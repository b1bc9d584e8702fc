// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage provides the append-only review record store on BadgerDB.
//
// BadgerDB gives local embedded storage with low-latency access. Records
// are keyed by creation time so a single reverse scan yields the most
// recent records without a secondary index.
//
// The store exposes exactly two operations, Append and Recent. There is no
// update or delete: a persisted review is immutable.
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPulse/services/feedback/datatypes"
)

// DefaultRecentLimit bounds Recent when the caller passes limit <= 0.
const DefaultRecentLimit = 50

// reviewPrefix namespaces review keys: reviewPrefix + 8-byte big-endian
// createdAt millis + 16-byte record UUID. Big-endian keeps byte order and
// chronological order aligned; the UUID breaks same-millisecond ties.
var reviewPrefix = []byte("review!")

// Config holds configuration for the review store's BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// ReviewStore is the append-only persistence layer for review records.
// The underlying *badger.DB is safe for concurrent use, so a single
// ReviewStore is shared across all requests.
type ReviewStore struct {
	db *badger.DB
}

// Open creates the database directory if needed and opens the store.
// Caller must Close it on shutdown.
func Open(cfg Config) (*ReviewStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &ReviewStore{db: db}, nil
}

// Close releases the database. Safe to call once on shutdown.
func (s *ReviewStore) Close() error {
	return s.db.Close()
}

// Append persists one record and returns its store-assigned id. The
// record's ID field is overwritten; CreatedAt must already be set by the
// pipeline. Failures are always surfaced, never swallowed.
func (s *ReviewStore) Append(ctx context.Context, record datatypes.ReviewRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	id := uuid.New()
	record.ID = id.String()

	value, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal review record: %w", err)
	}

	key := make([]byte, 0, len(reviewPrefix)+8+16)
	key = append(key, reviewPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(record.CreatedAt))
	key = append(key, id[:]...)

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return "", fmt.Errorf("append review record: %w", err)
	}
	return record.ID, nil
}

// storedRecord tolerates records written before the field rename: older
// rows carried "review" instead of "reviewText" and "timestamp" instead of
// "createdAt".
type storedRecord struct {
	datatypes.ReviewRecord
	LegacyText      string `json:"review"`
	LegacyTimestamp int64  `json:"timestamp"`
}

// Recent returns up to limit records, most recent first. limit <= 0 falls
// back to DefaultRecentLimit. The scan is a bounded snapshot; it makes no
// linearizability promise against concurrent appends.
func (s *ReviewStore) Recent(ctx context.Context, limit int) ([]datatypes.ReviewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var records []datatypes.ReviewRecord
	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Reverse = true
		iopts.Prefix = reviewPrefix
		it := txn.NewIterator(iopts)
		defer it.Close()

		// Reverse iteration must seek to the end of the prefix range.
		seek := append(append([]byte{}, reviewPrefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seek); it.Valid() && len(records) < limit; it.Next() {
			var stored storedRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return fmt.Errorf("decode review record: %w", err)
			}
			records = append(records, normalize(stored))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent reviews: %w", err)
	}
	return records, nil
}

// normalize maps legacy field names onto the current record shape.
func normalize(stored storedRecord) datatypes.ReviewRecord {
	rec := stored.ReviewRecord
	if rec.ReviewText == "" && stored.LegacyText != "" {
		rec.ReviewText = stored.LegacyText
	}
	if rec.CreatedAt == 0 && stored.LegacyTimestamp != 0 {
		rec.CreatedAt = stored.LegacyTimestamp
	}
	return rec
}

// putRaw writes a pre-encoded record value at the given creation time.
// It exists so tests can seed legacy-shaped rows; production code never
// calls it.
func (s *ReviewStore) putRaw(createdAt time.Time, value []byte) error {
	id := uuid.New()
	key := make([]byte, 0, len(reviewPrefix)+8+16)
	key = append(key, reviewPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(createdAt.UnixMilli()))
	key = append(key, id[:]...)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}
