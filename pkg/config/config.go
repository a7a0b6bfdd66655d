// Package config loads the YAML configuration of a model document service.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	exprlang "github.com/expr-lang/expr"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	yaml "gopkg.in/yaml.v3"

	"github.com/goliatone/go-modelxml/cache"
	"github.com/goliatone/go-modelxml/internal/cacheinfra"
	"github.com/goliatone/go-modelxml/strategy"
)

var ErrConfigNotFound = errors.New("config file is not found")
var ErrConfigInvalid = errors.New("config is invalid")

// Cache storage modes.
const (
	CacheMemory     = "memory"
	CachePersistent = "persistent"
	CacheTiered     = "tiered"
)

type Config struct {
	Cache       CacheConfig       `yaml:"cache"`
	Database    DatabaseConfig    `yaml:"database"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Consistency ConsistencyConfig `yaml:"consistency"`
	HTTP        HTTPConfig        `yaml:"http"`

	// SchemaPath is an optional XSD every generated document is validated against.
	SchemaPath string `yaml:"schema,omitempty"`
}

// CacheConfig selects where documents are kept. Hot tier settings only apply to
// the tiered mode.
type CacheConfig struct {
	Mode               string        `yaml:"mode"`
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"numShards"`
	TTL                time.Duration `yaml:"ttl"`
	EvictionPercentage int           `yaml:"evictionPercentage"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type StrategyConfig struct {
	BaseURI       string            `yaml:"baseURI"`
	RootName      string            `yaml:"rootName,omitempty"`
	ResourceNames map[string]string `yaml:"resourceNames,omitempty"`
	ExcludeFields []string          `yaml:"excludeFields,omitempty"`
	ExcludeEmpty  bool              `yaml:"excludeEmpty"`
}

type ConsistencyConfig struct {
	// Rule is an expr boolean expression over entity attributes. Empty means every
	// entity is eligible.
	Rule string `yaml:"rule,omitempty"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	BodyLimit string `yaml:"bodyLimit,omitempty"`

	// Version served when a request does not ask for one, "1.0" or "2.0".
	DefaultVersion string `yaml:"defaultVersion,omitempty"`
}

// Default returns an in-memory configuration listening on :8080.
func Default() Config {
	hot := cache.DefaultConfig()
	return Config{
		Cache: CacheConfig{
			Mode:               CacheMemory,
			Capacity:           hot.Capacity,
			NumShards:          hot.NumShards,
			TTL:                hot.TTL,
			EvictionPercentage: hot.EvictionPercentage,
		},
		Database: DatabaseConfig{
			Driver: cacheinfra.DriverSQLite,
			DSN:    ":memory:",
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			BodyLimit:      "1M",
			DefaultVersion: strategy.VersionA.Version(),
		},
	}
}

// Load reads path and fills in defaults for every key it does not set.
func Load(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w at %s", ErrConfigNotFound, path)
		}
		return Config{}, err
	}
	return Unmarshal(buf)
}

// Unmarshal decodes YAML over Default and validates the result. Unknown keys are
// rejected.
func Unmarshal(buf []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and the schema path.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Cache),
		validation.Field(&c.Database),
		validation.Field(&c.Strategy),
		validation.Field(&c.Consistency),
		validation.Field(&c.HTTP),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}

// Validate checks the cache mode and, for tiered mode, the hot-tier settings.
func (c CacheConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(CacheMemory, CachePersistent, CacheTiered)),
	)
	if err != nil || c.Mode != CacheTiered {
		return err
	}
	return c.Hot().Validate()
}

// Hot returns the sturdyc settings of the tiered mode.
func (c CacheConfig) Hot() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = c.Capacity
	cfg.NumShards = c.NumShards
	cfg.TTL = c.TTL
	cfg.EvictionPercentage = c.EvictionPercentage
	return cfg
}

// Validate checks the driver name and requires a DSN.
func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(cacheinfra.DriverSQLite, cacheinfra.DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
	)
}

// Validate checks the root name, excluded fields and resource settings.
func (s StrategyConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.BaseURI, validation.When(len(s.ResourceNames) > 0, validation.Required)),
		validation.Field(&s.RootName, validation.By(noSpace)),
		validation.Field(&s.ExcludeFields, validation.Each(validation.Required)),
	)
}

// Validate compiles the eligibility rule when one is set.
func (c ConsistencyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Rule, validation.By(func(value any) error {
			rule, _ := value.(string)
			if rule == "" {
				return nil
			}
			_, err := exprlang.Compile(rule, exprlang.AllowUndefinedVariables(), exprlang.AsBool())
			return err
		})),
	)
}

// Validate checks the listen address and the default version.
func (h HTTPConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Addr, validation.Required),
		validation.Field(&h.DefaultVersion, validation.By(func(value any) error {
			v, _ := value.(string)
			if v == "" {
				return nil
			}
			_, err := strategy.ParseKind(v)
			return err
		})),
	)
}

// Options translates the strategy section into strategy context options.
func (s StrategyConfig) Options() []strategy.Option {
	opts := []strategy.Option{
		strategy.WithExcludeEmpty(s.ExcludeEmpty),
	}
	if s.BaseURI != "" {
		opts = append(opts, strategy.WithBaseURI(s.BaseURI))
	}
	if s.RootName != "" {
		opts = append(opts, strategy.WithRootName(s.RootName))
	}
	if len(s.ResourceNames) > 0 {
		opts = append(opts, strategy.WithResourceNames(s.ResourceNames))
	}
	if len(s.ExcludeFields) > 0 {
		opts = append(opts, strategy.WithExcludeFields(s.ExcludeFields...))
	}
	return opts
}

// DefaultKind returns the strategy kind named by DefaultVersion.
func (h HTTPConfig) DefaultKind() strategy.Kind {
	if kind, err := strategy.ParseKind(h.DefaultVersion); err == nil {
		return kind
	}
	return strategy.VersionA
}

func noSpace(value any) error {
	v, _ := value.(string)
	if strings.ContainsAny(v, " \t\n<>") {
		return errors.New("must be a valid element name")
	}
	return nil
}
