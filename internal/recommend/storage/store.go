// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

// Package storage persists model snapshots in a Badger key-value store.
//
// Each model type has exactly one record, keyed by its tag. A record is a
// gob-encoded envelope holding schematized metadata (schema version, model
// version, counts, SHA-256 checksum) and the gzip-compressed gob payload.
// Put overwrites atomically, so the previous snapshot stays loadable until
// the replacement has been written in full.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pourcast/pourcast/internal/recommend"
)

// SchemaVersion is the envelope schema this build writes and accepts.
const SchemaVersion = 1

// keyPrefix namespaces snapshot records inside the Badger store.
const keyPrefix = "model/"

// Config holds snapshot store settings.
type Config struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string

	// InMemory backs the store with memory only; used by tests.
	InMemory bool
}

// Store is a Badger-backed recommend.SnapshotStore.
type Store struct {
	db *badger.DB
}

// storedSnapshot is the on-disk envelope.
type storedSnapshot struct {
	Metadata       recommend.SnapshotMetadata
	CompressedData []byte
}

//nolint:gochecknoinits // gob.Register must run before any encode/decode
func init() {
	gob.Register(recommend.ContentModelState{})
	gob.Register(recommend.FactorizationModelState{})
	gob.Register(storedSnapshot{})
}

// New opens the snapshot store.
func New(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(tag string) []byte {
	return []byte(keyPrefix + tag)
}

// Put serializes and stores a snapshot under the tag, overwriting any
// previous record. Metadata checksum, sizes and timestamps are filled here.
//
//nolint:gocritic // meta passed by value is acceptable for a write operation
func (s *Store) Put(ctx context.Context, tag string, state any, meta recommend.SnapshotMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(state); err != nil {
		return fmt.Errorf("encode model state: %w", err)
	}
	raw := payload.Bytes()

	hash := sha256.Sum256(raw)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return fmt.Errorf("compress model state: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.Tag = tag
	meta.SchemaVersion = SchemaVersion
	meta.SavedAt = time.Now()
	meta.SizeBytes = int64(compressed.Len())

	var record bytes.Buffer
	if err := gob.NewEncoder(&record).Encode(storedSnapshot{
		Metadata:       meta,
		CompressedData: compressed.Bytes(),
	}); err != nil {
		return fmt.Errorf("encode snapshot record: %w", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(tag), record.Bytes())
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads and verifies the snapshot for a tag, decoding the payload into
// target. Returns recommend.ErrSnapshotNotFound when no record exists,
// recommend.ErrSchemaVersion on an incompatible envelope and
// recommend.ErrChecksumMismatch on a corrupted payload.
func (s *Store) Load(ctx context.Context, tag string, target any) (*recommend.SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(tag))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", recommend.ErrSnapshotNotFound, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var sf storedSnapshot
	if err := gob.NewDecoder(bytes.NewReader(record)).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode snapshot record: %w", err)
	}
	if sf.Metadata.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", recommend.ErrSchemaVersion, sf.Metadata.SchemaVersion, SchemaVersion)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed snapshot: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, fmt.Errorf("%w: expected %s, got %s", recommend.ErrChecksumMismatch, sf.Metadata.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode model state: %w", err)
	}
	return &sf.Metadata, nil
}

// Delete removes the snapshot for a tag. Deleting a missing tag is a no-op.
func (s *Store) Delete(ctx context.Context, tag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(tag))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Latest returns the stored version for a tag, or false when no snapshot
// exists or the record cannot be decoded.
func (s *Store) Latest(tag string) (int, bool) {
	var version int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(tag))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var sf storedSnapshot
			if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&sf); err != nil {
				return err
			}
			version = sf.Metadata.Version
			return nil
		})
	})
	if err != nil {
		return 0, false
	}
	return version, true
}

var _ recommend.SnapshotStore = (*Store)(nil)
