// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package store implements the hierarchical append-only container backing
// the data server. Nodes form a tree of groups and datasets addressed by
// '/'-delimited paths; datasets grow along their primary axis in immutable
// blocks persisted to BadgerDB.
//
// A single store-wide write lock covers the check-exists / create / extend
// sequence of an append. Metadata stamping and notification enqueue happen
// after the lock is released, so a slow subscriber can never hold up a
// writer.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
)

// Sink receives the notification events emitted after each successful
// append. Put must never block; the notify queue satisfies this.
type Sink interface {
	Put(ev notify.Event)
}

// Config holds the settings of the Badger-backed container.
type Config struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the whole container in RAM. Used by tests.
	InMemory bool

	// SyncWrites forces an fsync on every commit.
	SyncWrites bool
}

// Store is the hierarchical append-only container. It owns the Badger
// handle and the store-wide exclusion; all access goes through its methods.
type Store struct {
	db     *badger.DB
	events Sink

	// mu is the store-wide exclusion. The write lock covers the
	// check-exists / create / extend sequence and index mutation; reads
	// take the read lock to snapshot the index.
	mu     sync.RWMutex
	nodes  map[string]*node
	closed bool

	// metaMu serializes metadata read-modify-write cycles, which run
	// outside the store-wide lock.
	metaMu sync.Mutex
}

// Open opens (or creates) the container at cfg.Path and rebuilds the node
// index from the persisted node records. The optional events sink receives
// one notification per append, two per dataset creation.
func Open(cfg Config, events Sink) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{
		db:     db,
		events: events,
		nodes:  map[string]*node{RootPath: newGroupNode()},
	}
	if err := s.loadIndex(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rebuild node index: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Int("nodes", len(s.nodes)).
		Msg("store opened")
	return s, nil
}

// loadIndex scans the n| keyspace and mirrors it into the in-memory index,
// then derives group children from the paths.
func (s *Store) loadIndex() error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixNode)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(prefix):])
			var rec nodeRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("node record %q: %w", path, err)
			}
			n := &node{kind: rec.Kind, schema: rec.Schema, rows: rec.Rows}
			if rec.Kind == NodeGroup {
				n.children = make(map[string]struct{})
			}
			s.nodes[path] = n
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, ok := s.nodes[RootPath]; !ok {
		s.nodes[RootPath] = newGroupNode()
	}
	paths := make([]string, 0, len(s.nodes))
	for path := range s.nodes {
		if path != RootPath {
			paths = append(paths, path)
		}
	}
	for _, path := range paths {
		for path != RootPath {
			parent := parentPath(path)
			p, ok := s.nodes[parent]
			if !ok {
				p = newGroupNode()
				s.nodes[parent] = p
			}
			p.children[baseName(path)] = struct{}{}
			path = parent
		}
	}
	return nil
}

// Close releases the Badger handle. All later operations fail ErrClosed.
// Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	logging.Info().Msg("store closed")
	return nil
}

// AppendResult reports what a successful Append did.
type AppendResult struct {
	// Path is the cleaned dataset path.
	Path string

	// Rows is the number of rows this append added. Zero for an
	// empty-payload no-op.
	Rows int

	// Total is the dataset length after the append.
	Total int64

	// Created is true when this append brought the dataset into
	// existence.
	Created bool
}

// Append normalizes payload against the dataset's record type, creating the
// dataset (and any missing parent groups) on first write or extending it
// otherwise, then stamps attrs into the node metadata and enqueues the
// notification events. An empty payload is a full no-op. The write either
// commits completely or not at all; a failure stamping attrs after the rows
// committed returns the error together with the result of the write.
func (s *Store) Append(path string, payload record.Payload, attrs map[string]interface{}) (AppendResult, error) {
	path, err := CleanPath(path)
	if err != nil {
		return AppendResult{}, err
	}
	if path == RootPath {
		return AppendResult{}, fmt.Errorf("append to %q: %w", path, ErrNotADataset)
	}
	if payload.Empty() {
		return AppendResult{Path: path}, nil
	}

	batch, res, err := s.write(path, payload)
	if err != nil {
		return AppendResult{}, err
	}

	// The rows are durably committed past this point. Events go out even
	// when the attrs stamping fails, so subscribers stay consistent with
	// the on-disk state; the stamping error is reported alongside the
	// result of the committed write.
	stampErr := s.stampAttrs(path, attrs, res.Created)

	if s.events != nil {
		if res.Created {
			s.events.Put(notify.Event{Path: path, Created: true})
		}
		s.events.Put(notify.Event{Path: path, Batch: batch})
	}
	return res, stampErr
}

// write runs the exclusion-protected part of an append: normalize against
// the current schema, then create or extend. Returns the converted batch
// alongside the append outcome.
func (s *Store) write(path string, payload record.Payload) (*record.Batch, AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, AppendResult{}, ErrClosed
	}

	n, ok := s.nodes[path]
	if ok && n.kind != NodeDataset {
		return nil, AppendResult{}, fmt.Errorf("append to %q: %w", path, ErrNotADataset)
	}

	if !ok {
		batch, err := record.Normalize(payload, nil)
		if err != nil {
			return nil, AppendResult{}, fmt.Errorf("append to %q: %w", path, err)
		}
		if err := s.create(path, batch); err != nil {
			return nil, AppendResult{}, err
		}
		res := AppendResult{Path: path, Rows: batch.Rows, Total: int64(batch.Rows), Created: true}
		return batch, res, nil
	}

	batch, err := record.Normalize(payload, n.schema)
	if err != nil {
		return nil, AppendResult{}, fmt.Errorf("append to %q: %w", path, err)
	}
	if err := s.extend(path, n, batch); err != nil {
		return nil, AppendResult{}, err
	}
	res := AppendResult{Path: path, Rows: batch.Rows, Total: n.rows}
	return batch, res, nil
}

// create persists the first block of a new dataset together with its node
// record and the node records of any missing parent groups, all in one
// transaction, then commits the same change to the index. Caller holds the
// write lock.
func (s *Store) create(path string, batch *record.Batch) error {
	var missing []string
	for p := parentPath(path); ; p = parentPath(p) {
		if n, ok := s.nodes[p]; ok {
			if n.kind != NodeGroup {
				return fmt.Errorf("parent %q of %q: %w", p, path, ErrNotAGroup)
			}
			break
		}
		missing = append(missing, p)
	}

	recBytes, err := json.Marshal(nodeRecord{Kind: NodeDataset, Schema: batch.Schema, Rows: int64(batch.Rows)})
	if err != nil {
		return fmt.Errorf("encode node record %q: %w", path, err)
	}
	groupBytes, err := json.Marshal(nodeRecord{Kind: NodeGroup})
	if err != nil {
		return fmt.Errorf("encode group record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, p := range missing {
			if err := txn.Set(nodeKey(p), groupBytes); err != nil {
				return err
			}
		}
		if err := txn.Set(nodeKey(path), recBytes); err != nil {
			return err
		}
		return txn.Set(blockKey(path, 0), encodeBlock(batch))
	})
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}

	for _, p := range missing {
		s.nodes[p] = newGroupNode()
	}
	s.nodes[path] = &node{kind: NodeDataset, schema: batch.Schema, rows: int64(batch.Rows)}
	child := path
	for _, p := range missing {
		s.nodes[p].children[baseName(child)] = struct{}{}
		child = p
	}
	s.nodes[parentPath(child)].children[baseName(child)] = struct{}{}

	logging.Debug().
		Str("path", path).
		Int("rows", batch.Rows).
		Bool("compound", batch.Schema.Compound()).
		Msg("dataset created")
	return nil
}

// extend persists one more block and the updated row count in one
// transaction, then bumps the index. Caller holds the write lock.
func (s *Store) extend(path string, n *node, batch *record.Batch) error {
	recBytes, err := json.Marshal(nodeRecord{Kind: NodeDataset, Schema: n.schema, Rows: n.rows + int64(batch.Rows)})
	if err != nil {
		return fmt.Errorf("encode node record %q: %w", path, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(path, n.rows), encodeBlock(batch)); err != nil {
			return err
		}
		return txn.Set(nodeKey(path), recBytes)
	})
	if err != nil {
		return fmt.Errorf("extend %q: %w", path, err)
	}
	n.rows += int64(batch.Rows)
	return nil
}

// stampAttrs merges attrs into the node metadata and, at creation time,
// stamps created_on once. Runs outside the store-wide lock.
func (s *Store) stampAttrs(path string, attrs map[string]interface{}, created bool) error {
	if len(attrs) == 0 && !created {
		return nil
	}

	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		meta := make(map[string]interface{})
		item, err := txn.Get(metaKey(path))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return fmt.Errorf("decode metadata: %w", err)
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("get metadata: %w", err)
		}

		if created {
			if _, ok := meta["created_on"]; !ok {
				meta["created_on"] = time.Now().UTC().Format(time.RFC3339)
			}
		}
		for k, v := range attrs {
			meta[k] = v
		}

		buf, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		return txn.Set(metaKey(path), buf)
	})
	if err != nil {
		return fmt.Errorf("stamp attrs %q: %w", path, err)
	}
	return nil
}

// Node returns the kind, record type, and row count of the node at path.
func (s *Store) Node(path string) (NodeInfo, error) {
	path, err := CleanPath(path)
	if err != nil {
		return NodeInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return NodeInfo{}, ErrClosed
	}
	n, ok := s.nodes[path]
	if !ok {
		return NodeInfo{}, fmt.Errorf("node %q: %w", path, ErrNotFound)
	}
	return NodeInfo{Path: path, Kind: n.kind, Schema: n.schema, Rows: n.rows}, nil
}

// Keys returns the sorted child names of the group at path.
func (s *Store) Keys(path string) ([]string, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	n, ok := s.nodes[path]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", path, ErrNotFound)
	}
	if n.kind != NodeGroup {
		return nil, fmt.Errorf("node %q: %w", path, ErrNotAGroup)
	}
	return n.childNames(), nil
}

// Attrs returns the metadata map of the node at path. A node that never
// received attributes yields an empty map.
func (s *Store) Attrs(path string) (map[string]interface{}, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	_, ok := s.nodes[path]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("node %q: %w", path, ErrNotFound)
	}

	meta := make(map[string]interface{})
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("attrs %q: %w", path, err)
	}
	return meta, nil
}

// Values reads rows [start, stop) of the dataset at path. Nil bounds select
// the full range, negative bounds count from the end, and both clamp to the
// dataset length. A non-empty field selects one column of a compound
// dataset; the returned batch then carries a single-field schema.
func (s *Store) Values(path string, start, stop *int, field string) (*record.Batch, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	n, ok := s.nodes[path]
	var (
		kind   NodeKind
		schema *record.Schema
		rows   int64
	)
	if ok {
		kind, schema, rows = n.kind, n.schema, n.rows
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("node %q: %w", path, ErrNotFound)
	}
	if kind != NodeDataset {
		return nil, fmt.Errorf("node %q: %w", path, ErrNotADataset)
	}

	resultSchema := schema
	colIdx := -1
	if field != "" {
		if !schema.Compound() {
			return nil, fmt.Errorf("field %q of %q: %w", field, path, record.ErrUnknownField)
		}
		colIdx = schema.FieldIndex(field)
		if colIdx < 0 {
			return nil, fmt.Errorf("field %q of %q: %w", field, path, record.ErrUnknownField)
		}
		resultSchema = &record.Schema{Fields: []record.Field{schema.Fields[colIdx]}}
	}

	lo, hi := sliceRange(start, stop, int(rows))
	out := &record.Batch{Schema: resultSchema}
	if lo >= hi {
		out.Cols = columnsFor(resultSchema)
		return out, nil
	}

	// Blocks are immutable and the index snapshot bounds the range, so the
	// scan runs without the store-wide lock.
	prefix := blockKeyPrefix(path)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			first := blockStart(item.Key(), prefix)
			if first >= int64(hi) {
				break
			}
			var block *record.Batch
			if err := item.Value(func(val []byte) error {
				b, derr := decodeBlock(schema, val)
				if derr != nil {
					return derr
				}
				block = b
				return nil
			}); err != nil {
				return fmt.Errorf("block at row %d: %w", first, err)
			}
			if first+int64(block.Rows) <= int64(lo) {
				continue
			}
			l := int(max(int64(lo)-first, 0))
			h := int(min(int64(hi)-first, int64(block.Rows)))
			if err := out.Append(sliceBatch(block, l, h, colIdx, resultSchema)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("values %q: %w", path, err)
	}
	return out, nil
}

// sliceBatch cuts rows [lo, hi) out of a decoded block, optionally keeping
// only the column at colIdx.
func sliceBatch(b *record.Batch, lo, hi, colIdx int, schema *record.Schema) *record.Batch {
	out := &record.Batch{Schema: schema, Rows: hi - lo}
	if colIdx >= 0 {
		out.Cols = []record.Column{b.Cols[colIdx].Slice(lo, hi)}
		return out
	}
	cols := make([]record.Column, len(b.Cols))
	for i := range b.Cols {
		cols[i] = b.Cols[i].Slice(lo, hi)
	}
	out.Cols = cols
	return out
}

// sliceRange resolves optional bounds against n rows with sequence-slicing
// rules: nil selects the full range, negative counts from the end, and
// out-of-range values clamp.
func sliceRange(start, stop *int, n int) (int, int) {
	lo, hi := 0, n
	if start != nil {
		lo = *start
		if lo < 0 {
			lo += n
		}
		lo = max(min(lo, n), 0)
	}
	if stop != nil {
		hi = *stop
		if hi < 0 {
			hi += n
		}
		hi = max(min(hi, n), 0)
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
