// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists rewritten module text between runs.
package cache

// =============================================================================
// TransformCacheStore
// =============================================================================
//
// Parsing and rewriting a large bundle input is the expensive part of a run,
// but the output depends only on the source bytes, the specifier map and the
// dynamic import wrapper. Entries are keyed by a SHA256 over exactly those
// inputs, so a change to any of them makes the old entry unreachable and it
// expires through Badger's native TTL.
//
// Storage layout:
//
//	globals/out/v1/{inputHash}  →  gob-encoded Entry
//	                               TTL: configured (default 7 days)

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AleutianAI/globals/services/globals/storage/badger"
	"github.com/AleutianAI/globals/services/globals/transform"
)

// DefaultTTL is the default lifetime of a cached entry.
const DefaultTTL = 7 * 24 * time.Hour

// KeyPrefix is prepended to the input hash. Versioned to allow format
// changes without collision.
const KeyPrefix = "globals/out/v1/"

var errCacheMiss = errors.New("cache miss")

// Entry is one cached transform result.
type Entry struct {
	// Code is the rendered output.
	Code string

	// Touched reports whether any import was rewritten.
	Touched bool

	// Stats are the rewrite counts of the run that produced Code.
	Stats transform.Stats
}

// TransformCacheStore persists transform results.
//
// A nil store is valid for callers: they check for nil and skip caching.
//
// Thread Safety: Implementations must be safe for concurrent use.
type TransformCacheStore interface {
	// Load returns (nil, nil) on miss, (nil, err) on storage failure.
	Load(ctx context.Context, key string) (*Entry, error)

	// Save stores entry under key with the store's TTL.
	Save(ctx context.Context, key string, entry *Entry) error

	// Purge deletes every cached entry.
	Purge(ctx context.Context) error
}

// BadgerTransformCacheStore implements TransformCacheStore on BadgerDB.
//
// Thread Safety: Safe for concurrent use. The store does not own the DB.
type BadgerTransformCacheStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerTransformCacheStore creates a store over an opened DB.
//
// Inputs:
//
//	db     - Opened DB. Must not be nil.
//	ttl    - Entry lifetime. Zero or negative uses DefaultTTL.
//	logger - May be nil.
func NewBadgerTransformCacheStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerTransformCacheStore {
	if db == nil {
		panic("NewBadgerTransformCacheStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerTransformCacheStore{db: db, ttl: ttl, logger: logger}
}

// Load implements TransformCacheStore.
func (s *BadgerTransformCacheStore) Load(ctx context.Context, key string) (*Entry, error) {
	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(storageKey(key))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errCacheMiss) {
		s.logger.Debug("transform cache: miss", slog.String("key", shortHash(key)))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transform cache load: %w", err)
	}

	entry, err := gobDecode(raw)
	if err != nil {
		return nil, fmt.Errorf("transform cache decode: %w", err)
	}
	s.logger.Debug("transform cache: hit", slog.String("key", shortHash(key)))
	return entry, nil
}

// Save implements TransformCacheStore.
func (s *BadgerTransformCacheStore) Save(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return nil
	}
	raw, err := gobEncode(entry)
	if err != nil {
		return fmt.Errorf("transform cache encode: %w", err)
	}
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry(storageKey(key), raw).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("transform cache save: %w", err)
	}
	s.logger.Debug("transform cache: saved",
		slog.String("key", shortHash(key)),
		slog.Int("bytes", len(raw)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

// Purge implements TransformCacheStore.
func (s *BadgerTransformCacheStore) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropPrefix([]byte(KeyPrefix)); err != nil {
		return fmt.Errorf("transform cache purge: %w", err)
	}
	return nil
}

// EntryInfo describes one stored entry without its code.
type EntryInfo struct {
	// Key is the input hash.
	Key string

	// ExpiresAt is zero when the entry has no TTL.
	ExpiresAt time.Time

	// Size is the encoded size in bytes.
	Size int

	// Touched and Stats are copied from the entry. DecodeErr is set instead
	// when the value cannot be decoded.
	Touched   bool
	Stats     transform.Stats
	DecodeErr error
}

// List returns every stored entry in key order.
func (s *BadgerTransformCacheStore) List(ctx context.Context) ([]EntryInfo, error) {
	var infos []EntryInfo
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(KeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			info := EntryInfo{Key: strings.TrimPrefix(string(item.Key()), KeyPrefix)}
			// ExpiresAt is Unix seconds, 0 means no expiry.
			if exp := item.ExpiresAt(); exp > 0 {
				info.ExpiresAt = time.Unix(int64(exp), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				info.DecodeErr = fmt.Errorf("copy value: %w", err)
				infos = append(infos, info)
				continue
			}
			info.Size = len(raw)
			if entry, err := gobDecode(raw); err != nil {
				info.DecodeErr = err
			} else {
				info.Touched = entry.Touched
				info.Stats = entry.Stats
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transform cache list: %w", err)
	}
	return infos, nil
}

// =============================================================================
// Input Hash
// =============================================================================

// ComputeKey hashes everything a transform result depends on.
//
// Names are sorted so map iteration order does not matter. Fields are
// length-prefixed so no two distinct inputs produce the same byte stream.
func ComputeKey(source []byte, names map[string]string, wrapper string) string {
	specs := make([]string, 0, len(names))
	for spec := range names {
		specs = append(specs, spec)
	}
	sort.Strings(specs)

	h := sha256.New()
	fmt.Fprintf(h, "source:%d\n", len(source))
	h.Write(source)
	fmt.Fprintf(h, "\nnames:%d\n", len(specs))
	for _, spec := range specs {
		fmt.Fprintf(h, "%d:%s\t%d:%s\n", len(spec), spec, len(names[spec]), names[spec])
	}
	fmt.Fprintf(h, "wrapper:%d:%s\n", len(wrapper), wrapper)
	return hex.EncodeToString(h.Sum(nil))
}

// =============================================================================
// Helpers
// =============================================================================

func storageKey(key string) []byte {
	return []byte(KeyPrefix + key)
}

// shortHash returns the first 8 characters of a hash for log display.
func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8] + "..."
	}
	return h
}

func gobEncode(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte) (*Entry, error) {
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return &entry, nil
}
