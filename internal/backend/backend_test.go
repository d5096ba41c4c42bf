package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"freelance/internal/analytics"
	"freelance/internal/cache"
	"freelance/internal/config"
	"freelance/internal/core"
	"freelance/internal/payments"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"redis without url", Config{Type: MemoryBackend, CacheBackend: config.BackendRedis}, true},
		{"bad cache", Config{Type: MemoryBackend, CacheBackend: "memcached"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.Defaults()
	app.DataBackend = "sqlite"
	app.SQLiteDBPath = "/tmp/x.db"

	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.StatsCacheTTL != app.StatsCacheTTL {
		t.Fatalf("cfg = %+v", cfg)
	}

	app.DataBackend = "postgres"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestCreateBackend(t *testing.T) {
	for _, cfg := range []Config{
		{Type: MemoryBackend, StatsCacheTTL: time.Minute},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "f.db"), StatsCacheTTL: time.Minute},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			ctx := context.Background()
			b, err := NewFactory(nil).CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer b.Cleanup()

			if b.Events != nil {
				t.Error("no AMQP URL configured, Events should be nil")
			}
			if _, ok := b.StatsCache.(*cache.LRUCache[analytics.Stats]); !ok {
				t.Errorf("StatsCache = %T, want LRU", b.StatsCache)
			}
			u, err := b.Store.CreateUser(ctx, core.User{Email: "a@example.com", Name: "A", Plan: core.PlanFree})
			if err != nil || u.ID == 0 {
				t.Fatalf("CreateUser = %+v, %v", u, err)
			}
			if err := b.Store.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}
		})
	}
}

func TestNewPaymentRegistry(t *testing.T) {
	app := config.Defaults()
	if got := NewPaymentRegistry(app).Gateways(); len(got) != 0 {
		t.Fatalf("no keys configured, gateways = %v", got)
	}
	app.EsewaSecretKey = "secret"
	app.KhaltiSecretKey = "key"
	got := NewPaymentRegistry(app).Gateways()
	if len(got) != 2 || got[0] != payments.GatewayEsewa || got[1] != payments.GatewayKhalti {
		t.Fatalf("gateways = %v", got)
	}
}
