package cache

import (
	"time"

	"github.com/goliatone/go-modelxml/internal/cacheinfra"
)

// Document tier defaults. Hot entries are parsed documents, so capacity counts
// documents, not bytes.
const (
	DefaultHotCapacity = 5000
	DefaultHotTTL      = 5 * time.Minute
)

// Config tunes the hot tier Tiered keeps in front of a backing DocumentCache.
//
// Writes made through Tiered delete the affected hot keys, so TTL only bounds how
// long a change made to the backing store by another process stays invisible.
// Misses are remembered by Tiered itself and sturdyc never refreshes entries in
// the background: a refetch after an invalidation would race the write that
// caused it.
type Config struct {
	// Capacity is the maximum number of hot documents across all versions.
	Capacity int
	// NumShards must be greater than 0 and not exceed Capacity.
	NumShards int
	// TTL bounds how long a hot document is served without reading the backing store.
	TTL time.Duration
	// EvictionPercentage is the share of documents dropped when a shard is full (1-100).
	EvictionPercentage int
	// EvictionInterval is how often expired documents are swept. Zero uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns the hot-tier defaults for cached documents.
func DefaultConfig() Config {
	base := cacheinfra.DefaultConfig()
	return Config{
		Capacity:           DefaultHotCapacity,
		NumShards:          base.NumShards,
		TTL:                DefaultHotTTL,
		EvictionPercentage: base.EvictionPercentage,
		EvictionInterval:   base.EvictionInterval,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.NumShards > c.Capacity && c.Capacity > 0 {
		return &cacheinfra.ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	}
	return c.toInternal().Validate()
}

// NewCacheService builds the sturdyc hot tier used by Tiered.
func NewCacheService(cfg Config) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}
