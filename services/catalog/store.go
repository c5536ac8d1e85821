// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store persists cache entries through BadgerDB so a restart does not
// begin with an empty catalog. Entries are stored as JSON documents:
//
//	{"cachedAt": "2026-01-15T09:30:00Z", "data": <payload>}
//
// The store is a warm-restart optimization only. Every operation failure
// is reported as an error but callers are expected to continue without
// persistence.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// StoreConfig holds configuration for the persistent cache store.
type StoreConfig struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, BadgerDB
	// logging is disabled.
	Logger *slog.Logger
}

// DefaultStoreConfig returns production defaults rooted at path.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{Path: path, SyncWrites: true}
}

// InMemoryStoreConfig returns a configuration for testing: no disk I/O,
// data lost on close.
func InMemoryStoreConfig() StoreConfig {
	return StoreConfig{InMemory: true}
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

// storedEntry is the on-disk document format.
type storedEntry struct {
	CachedAt time.Time       `json:"cachedAt"`
	Data     json.RawMessage `json:"data"`
}

// OpenStore opens (creating if needed) the persistent cache store.
// Callers must Close() the store when done.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
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
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return &Store{db: db, logger: cfg.Logger}, nil
}

// Save persists one cache entry under key.
func (s *Store) Save(key string, data []byte, cachedAt time.Time) error {
	doc, err := json.Marshal(storedEntry{CachedAt: cachedAt.UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), doc)
	})
	if err != nil {
		return fmt.Errorf("save cache entry %s: %w", key, err)
	}
	return nil
}

// Load reads one cache entry. The third return is false when the key does
// not exist.
func (s *Store) Load(key string) (data []byte, cachedAt time.Time, found bool, err error) {
	var doc []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		doc, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load cache entry %s: %w", key, err)
	}

	var entry storedEntry
	if err := json.Unmarshal(doc, &entry); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return entry.Data, entry.CachedAt, true, nil
}

// Hydrate loads every persisted entry younger than maxAge into the cache,
// marking each with the given ttl so staleness is computed from the
// original fetch time. Returns the number of entries loaded.
func (s *Store) Hydrate(cache *MetadataCache, maxAge, ttl time.Duration) (int, error) {
	loaded := 0
	now := time.Now()

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())

			doc, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			var entry storedEntry
			if err := json.Unmarshal(doc, &entry); err != nil {
				if s.logger != nil {
					s.logger.Warn("skipping corrupt cache entry", "key", key, "error", err)
				}
				continue
			}
			if now.Sub(entry.CachedAt) > maxAge {
				continue
			}
			cache.PutEntry(key, CacheEntry{Data: entry.Data, CachedAt: entry.CachedAt, TTL: ttl})
			loaded++
		}
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("hydrate cache: %w", err)
	}
	return loaded, nil
}

// Clear removes every persisted entry. Returns the number removed.
func (s *Store) Clear() (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear cache store: %w", err)
	}
	return len(keys), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
