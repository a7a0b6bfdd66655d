package di

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-modelxml/cache"
	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/pkg/config"
	"github.com/goliatone/go-modelxml/strategy"
)

func testRegistry() *model.Registry {
	return model.NewRegistry(model.NewType("Article", model.Linkable, model.Scalar("Title")))
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults(testRegistry())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	if container.Engine() == nil {
		t.Fatal("expected an engine")
	}
	if _, ok := container.Documents().(*cache.Memory); !ok {
		t.Errorf("expected memory cache, got %T", container.Documents())
	}
	if container.DB() != nil {
		t.Error("expected no database in memory mode")
	}
	if container.Config().Cache.Mode != config.CacheMemory {
		t.Errorf("expected memory mode, got %s", container.Config().Cache.Mode)
	}
	if container.Engine().Cache() != container.Documents() {
		t.Error("expected engine to use the container cache")
	}
}

func TestNewContainer_CacheModes(t *testing.T) {
	tests := []struct {
		mode   string
		check  func(cache.DocumentCache) bool
		withDB bool
	}{
		{config.CacheMemory, func(d cache.DocumentCache) bool { _, ok := d.(*cache.Memory); return ok }, false},
		{config.CachePersistent, func(d cache.DocumentCache) bool { _, ok := d.(*cache.Persistent); return ok }, true},
		{config.CacheTiered, func(d cache.DocumentCache) bool { _, ok := d.(*cache.Tiered); return ok }, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache.Mode = tt.mode

			container, err := NewContainer(context.Background(), cfg, testRegistry())
			if err != nil {
				t.Fatalf("NewContainer() failed: %v", err)
			}
			if !tt.check(container.Documents()) {
				t.Errorf("unexpected cache type %T", container.Documents())
			}
			if (container.DB() != nil) != tt.withDB {
				t.Errorf("expected database %v, got %v", tt.withDB, container.DB() != nil)
			}
			if err := container.Close(); err != nil {
				t.Errorf("Close() failed: %v", err)
			}
		})
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Mode = config.CacheTiered
	cfg.Cache.Capacity = 0

	_, err := NewContainer(context.Background(), cfg, testRegistry())
	if !errors.Is(err, config.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestNewContainer_UnsupportedDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Mode = config.CachePersistent
	cfg.Database.Driver = "mysql"

	if _, err := NewContainer(context.Background(), cfg, testRegistry()); err == nil {
		t.Error("expected an error for an unsupported driver")
	}
}

func TestNewContainer_MissingSchema(t *testing.T) {
	cfg := config.Default()
	cfg.SchemaPath = filepath.Join(t.TempDir(), "missing.xsd")

	if _, err := NewContainer(context.Background(), cfg, testRegistry()); err == nil {
		t.Error("expected an error for a missing schema")
	}
}

func TestNewContainer_StrategyOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Strategy.RootName = "Export"

	container, err := NewContainer(context.Background(), cfg, testRegistry())
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	m, _ := container.Registry().New("Article")
	out, err := container.Engine().Render(context.Background(), m.(*model.Record).MustSet("Title", "x"), strategy.VersionA)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if want := `<Export version="1.0"`; !strings.Contains(out, want) {
		t.Errorf("expected %s in %s", want, out)
	}
}

func TestNewServer_RequiresLoader(t *testing.T) {
	container, err := NewContainerWithDefaults(testRegistry())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	if _, err := container.NewServer(); err == nil {
		t.Error("expected an error without a loader")
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults(testRegistry())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	if container.Engine() != container.Engine() {
		t.Error("Engine() should return the same instance")
	}
	if container.Documents() != container.Documents() {
		t.Error("Documents() should return the same instance")
	}
}
