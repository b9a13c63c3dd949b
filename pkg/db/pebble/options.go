package pebble

import (
	"github.com/rs/zerolog"

	"github.com/matter-labs/matterdb/pkg/log"
)

const (
	defaultCacheSize    = 64 << 20 // 64MB
	defaultMemTableSize = 32 << 20 // 32MB
)

type options struct {
	path         string
	cacheSize    int64
	memTableSize uint64
	readOnly     bool
	logger       *zerolog.Logger
}

// Option configures a KVStore.
type Option func(*options)

// WithPath opens the store on disk at path. Without it the store lives in memory
// and is discarded on Close.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithCacheSize sets the block cache size in bytes.
func WithCacheSize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.cacheSize = size
		}
	}
}

// WithMemTableSize sets the memtable size in bytes.
func WithMemTableSize(size uint64) Option {
	return func(o *options) {
		if size > 0 {
			o.memTableSize = size
		}
	}
}

// WithReadOnly opens an on-disk store without write access.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithLogger sets the logger for pebble's internal messages. It defaults to
// the storage component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

func defaultOptions() *options {
	return &options{
		cacheSize:    defaultCacheSize,
		memTableSize: defaultMemTableSize,
	}
}
