// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/logging"
)

// Config holds BadgerDB settings shared by the item and profile stores.
type Config struct {
	// Path is the directory where BadgerDB stores its files. Ignored when
	// InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps everything in RAM. Used by tests and ephemeral runs.
	InMemory bool `koanf:"in_memory"`

	SyncWrites       bool  `koanf:"sync_writes"`
	Compression      bool  `koanf:"compression"`
	MemTableSize     int64 `koanf:"memtable_size"`
	ValueLogFileSize int64 `koanf:"vlog_size"`
	NumCompactors    int   `koanf:"num_compactors"`

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`

	// MaxConflictRetries bounds the read-modify-write loop in ProfileStore.Mutate.
	MaxConflictRetries int `koanf:"max_conflict_retries"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Path:               "/data/recsync",
		SyncWrites:         true,
		Compression:        true,
		MemTableSize:       64 << 20,
		ValueLogFileSize:   256 << 20,
		NumCompactors:      2,
		GCInterval:         10 * time.Minute,
		GCRatio:            0.5,
		MaxConflictRetries: 5,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("store path is required unless in_memory is set")
	}
	if c.NumCompactors != 0 && c.NumCompactors < 2 {
		return fmt.Errorf("num_compactors must be at least 2, got %d", c.NumCompactors)
	}
	if c.GCRatio < 0 || c.GCRatio >= 1 {
		return fmt.Errorf("gc_ratio must be in [0, 1), got %v", c.GCRatio)
	}
	if c.MaxConflictRetries < 0 {
		return fmt.Errorf("max_conflict_retries must be non-negative, got %d", c.MaxConflictRetries)
	}
	return nil
}

// DB owns the BadgerDB handle used by both stores.
type DB struct {
	db     *badger.DB
	config Config

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites && !cfg.InMemory
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumCompactors > 0 {
		opts.NumCompactors = cfg.NumCompactors
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Feature store opened")

	return &DB{db: db, config: cfg}, nil
}

// OpenInMemory opens an in-memory database with default retry settings.
func OpenInMemory() (*DB, error) {
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.Path = ""
	cfg.GCInterval = 0
	return Open(cfg)
}

// Config returns the store configuration.
func (d *DB) Config() Config {
	return d.config
}

// Close flushes and closes the database. Safe to call more than once.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// RunGC runs value log GC until nothing is left to rewrite.
func (d *DB) RunGC() error {
	if d.config.InMemory {
		return nil
	}
	ratio := d.config.GCRatio
	if ratio == 0 {
		ratio = 0.5
	}
	for {
		err := d.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Key layout:
//
//	item:<uuid>                       -> ItemFeature JSON
//	pop:<inverted popularity><uuid>   -> empty (secondary index)
//	profile:<uuid>                    -> UserProfile JSON
//
// The popularity index key sorts by popularity descending, then item id
// ascending, so a forward prefix scan yields FindMostPopular order.
var (
	prefixItem    = []byte("item:")
	prefixPop     = []byte("pop:")
	prefixProfile = []byte("profile:")
)

func itemKey(id uuid.UUID) []byte {
	return append(append(make([]byte, 0, len(prefixItem)+16), prefixItem...), id[:]...)
}

func profileKey(id uuid.UUID) []byte {
	return append(append(make([]byte, 0, len(prefixProfile)+16), prefixProfile...), id[:]...)
}

func popKey(score float64, id uuid.UUID) []byte {
	k := make([]byte, 0, len(prefixPop)+8+16)
	k = append(k, prefixPop...)
	k = binary.BigEndian.AppendUint64(k, ^sortableFloat(score))
	return append(k, id[:]...)
}

func idFromPopKey(k []byte) (uuid.UUID, bool) {
	if len(k) != len(prefixPop)+8+16 {
		return uuid.Nil, false
	}
	id, err := uuid.FromBytes(k[len(prefixPop)+8:])
	return id, err == nil
}

// sortableFloat maps a float64 onto a uint64 whose unsigned order matches
// the numeric order of the input.
func sortableFloat(f float64) uint64 {
	if f == 0 {
		f = 0 // fold -0 into +0
	}
	b := math.Float64bits(f)
	if b&(1<<63) != 0 {
		return ^b
	}
	return b | 1<<63
}
