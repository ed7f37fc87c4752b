package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/starquery/starquery/internal/query"
)

type fakeRedis struct {
	entries map[string]string
	setTTL  time.Duration
	getErr  error
	setErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{entries: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	payload, ok := f.entries[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(payload)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.setErr != nil {
		cmd.SetErr(f.setErr)
		return cmd
	}
	f.entries[key] = string(value.([]byte))
	f.setTTL = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "ping")
	cmd.SetVal("PONG")
	return cmd
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCacheRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	cache := NewWithClient(fake, time.Minute, testLogger())

	original := query.Result{
		Columns:  []string{"total"},
		Rows:     []query.Row{{"total": float64(3)}},
		RowCount: 1,
	}
	cache.Put(context.Background(), "k1", original)
	if fake.setTTL != time.Minute {
		t.Fatalf("TTL = %s, want 1m", fake.setTTL)
	}

	got, ok := cache.Get(context.Background(), "k1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.RowCount != 1 || len(got.Columns) != 1 || got.Columns[0] != "total" {
		t.Fatalf("got = %+v", got)
	}
	if got.Rows[0]["total"] != float64(3) {
		t.Fatalf("total = %#v", got.Rows[0]["total"])
	}
}

func TestCacheHitPreservesValueTypes(t *testing.T) {
	fake := newFakeRedis()
	cache := NewWithClient(fake, time.Minute, testLogger())

	// A hit must be indistinguishable from a fresh execution: integers stay
	// int64 even beyond float64's exact range, timestamps stay time.Time.
	bigCount := int64(1<<53 + 1)
	occurred := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	original := query.Result{
		Columns: []string{"user_id", "total", "amount", "occurred_at", "flagged", "note"},
		Rows: []query.Row{{
			"user_id":     int64(3),
			"total":       bigCount,
			"amount":      19.99,
			"occurred_at": occurred,
			"flagged":     true,
			"note":        nil,
		}},
		RowCount: 1,
	}
	cache.Put(context.Background(), "k1", original)

	got, ok := cache.Get(context.Background(), "k1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	row := got.Rows[0]
	if v, ok := row["user_id"].(int64); !ok || v != 3 {
		t.Fatalf("user_id = %#v, want int64(3)", row["user_id"])
	}
	if v, ok := row["total"].(int64); !ok || v != bigCount {
		t.Fatalf("total = %#v, want int64(%d)", row["total"], bigCount)
	}
	if v, ok := row["amount"].(float64); !ok || v != 19.99 {
		t.Fatalf("amount = %#v, want float64(19.99)", row["amount"])
	}
	if v, ok := row["occurred_at"].(time.Time); !ok || !v.Equal(occurred) {
		t.Fatalf("occurred_at = %#v, want %s", row["occurred_at"], occurred)
	}
	if v, ok := row["flagged"].(bool); !ok || !v {
		t.Fatalf("flagged = %#v, want true", row["flagged"])
	}
	if row["note"] != nil {
		t.Fatalf("note = %#v, want nil", row["note"])
	}
}

func TestCacheMiss(t *testing.T) {
	cache := NewWithClient(newFakeRedis(), time.Minute, testLogger())
	if _, ok := cache.Get(context.Background(), "absent"); ok {
		t.Fatal("expected miss")
	}
}

func TestCacheGetErrorDegradesToMiss(t *testing.T) {
	fake := newFakeRedis()
	fake.getErr = errors.New("connection refused")
	cache := NewWithClient(fake, time.Minute, testLogger())

	if _, ok := cache.Get(context.Background(), "k1"); ok {
		t.Fatal("expected miss on backend error")
	}
}

func TestCachePutErrorIsSwallowed(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	cache := NewWithClient(fake, time.Minute, testLogger())

	cache.Put(context.Background(), "k1", query.Result{})
	if len(fake.entries) != 0 {
		t.Fatalf("entries = %v, want none", fake.entries)
	}
}

func TestCacheUndecodableEntryIsMiss(t *testing.T) {
	fake := newFakeRedis()
	fake.entries["k1"] = "not a gob stream"
	cache := NewWithClient(fake, time.Minute, testLogger())

	if _, ok := cache.Get(context.Background(), "k1"); ok {
		t.Fatal("expected miss for corrupt entry")
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	fake := newFakeRedis()
	cache := NewWithClient(fake, 0, testLogger())
	cache.Put(context.Background(), "k1", query.Result{})
	if fake.setTTL != 5*time.Minute {
		t.Fatalf("TTL = %s, want 5m", fake.setTTL)
	}
}
