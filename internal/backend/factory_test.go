package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"conti/internal/config"
	"conti/internal/core"
	"conti/internal/events"
	"conti/internal/events/kafka"
	"conti/internal/storage/memory"
	"conti/internal/storage/sqlstore"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    BackendType
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "memory", cfg: &config.Config{DataBackend: "memory"}, want: MemoryBackend},
		{name: "sqlite", cfg: &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"}, want: SQLiteBackend},
		{name: "postgres", cfg: &config.Config{DataBackend: "postgres", PostgresDSN: "postgres://"}, want: PostgresBackend},
		{name: "unknown", cfg: &config.Config{DataBackend: "sheets"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Type != tt.want {
				t.Errorf("FromAppConfig() type = %v, want %v", got.Type, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "memory", cfg: Config{Type: MemoryBackend}},
		{name: "sqlite without path", cfg: Config{Type: SQLiteBackend}, wantErr: true},
		{name: "postgres without dsn", cfg: Config{Type: PostgresBackend}, wantErr: true},
		{name: "invalid type", cfg: Config{Type: "mongo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	want := []string{"memory", "sqlite", "postgres"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestCreateStore(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateStore(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatalf("CreateStore() error = %v", err)
		}
		if _, ok := res.Store.(*memory.Store); !ok {
			t.Errorf("store type = %T, want *memory.Store", res.Store)
		}
		if res.Cleanup != nil {
			t.Error("memory backend needs no cleanup")
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conti.db")
		res, err := f.CreateStore(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
		if err != nil {
			t.Fatalf("CreateStore() error = %v", err)
		}
		defer res.Cleanup()

		if _, ok := res.Store.(*sqlstore.Store); !ok {
			t.Errorf("store type = %T, want *sqlstore.Store", res.Store)
		}
		if err := res.Store.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := f.CreateStore(ctx, Config{Type: "mongo"}); err == nil {
			t.Error("expected error for invalid backend")
		}
	})
}

func TestCreatePublisher(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	pub, err := f.CreatePublisher(ctx, &config.Config{EventsBackend: config.EventsNone})
	if err != nil {
		t.Fatalf("CreatePublisher(none) error = %v", err)
	}
	if _, ok := pub.(events.Nop); !ok {
		t.Errorf("publisher type = %T, want events.Nop", pub)
	}

	pub, err = f.CreatePublisher(ctx, &config.Config{
		EventsBackend: config.EventsKafka,
		KafkaBrokers:  []string{"localhost:9092"},
		KafkaTopic:    "account-events",
	})
	if err != nil {
		t.Fatalf("CreatePublisher(kafka) error = %v", err)
	}
	if _, ok := pub.(*kafka.Publisher); !ok {
		t.Errorf("publisher type = %T, want *kafka.Publisher", pub)
	}
	_ = pub.Close()

	if _, err := f.CreatePublisher(ctx, &config.Config{EventsBackend: "nats"}); err == nil {
		t.Error("expected error for unknown events backend")
	}
}

func TestCreateSummaryCacheLRU(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	res, err := f.CreateSummaryCache(ctx, &config.Config{SummaryCacheSize: 10, SummaryCacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("CreateSummaryCache() error = %v", err)
	}
	defer res.Cleanup()

	want := core.Summary{TotalBudget: core.MustMoney("10"), SpentByType: map[string]core.Money{}}
	if err := res.Cache.Set(ctx, "owner", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := res.Cache.Get(ctx, "owner")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if !got.TotalBudget.Equal(want.TotalBudget) {
		t.Errorf("TotalBudget = %v, want %v", got.TotalBudget, want.TotalBudget)
	}
}

func TestSweepInterval(t *testing.T) {
	if got := sweepInterval(500 * time.Millisecond); got != time.Second {
		t.Errorf("sweepInterval(500ms) = %v, want 1s", got)
	}
	if got := sweepInterval(10 * time.Minute); got != 5*time.Minute {
		t.Errorf("sweepInterval(10m) = %v, want 5m", got)
	}
}
