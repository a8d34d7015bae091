package ledger

import (
	"context"
	"fmt"
)

// Backend names a Store implementation
type Backend string

const (
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
)

// StoreOptions selects and configures a Store
type StoreOptions struct {
	Backend Backend
	// Path is the JSON file (file) or database file (sqlite)
	Path string
	// RedisAddr, RedisDB and Key configure the redis backend
	RedisAddr string
	RedisDB   int
	Key       string
}

// OpenStore creates the store named by opts.Backend
func OpenStore(ctx context.Context, opts StoreOptions) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.Path), nil
	case BackendRedis:
		s := NewRedisStore(opts.RedisAddr, opts.RedisDB, opts.Key)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("redis ledger at %s: %w", opts.RedisAddr, err)
		}
		return s, nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", opts.Backend)
	}
}
