package search

import (
	"context"
	"fmt"

	"github.com/ralt/pkgfeed/internal/database"
)

// Config selects and configures an Index
type Config struct {
	Type    string
	Address string
	Prefix  string
}

// NewIndex creates the index named by cfg.Type. db backs the "database"
// index and may be nil for the others.
func NewIndex(ctx context.Context, cfg Config, db *database.DB) (Index, error) {
	switch cfg.Type {
	case "", "database":
		if db == nil {
			return nil, fmt.Errorf("database search index needs a database")
		}
		index, err := NewDatabaseIndex(ctx, db)
		if err != nil {
			return nil, err
		}
		return index, nil
	case "redis":
		if cfg.Address == "" {
			return nil, fmt.Errorf("redis search index needs an address")
		}
		index, err := DialRedisIndex(ctx, cfg.Address, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return index, nil
	case "null", "none":
		return NullIndex{}, nil
	default:
		return nil, fmt.Errorf("unknown search type %q", cfg.Type)
	}
}
