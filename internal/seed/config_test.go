package seed

import (
	"strings"
	"testing"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.GoldPrefix != "gold" {
		t.Fatalf("GoldPrefix = %q", cfg.GoldPrefix)
	}
	if cfg.Transactions <= 0 || cfg.Users <= 0 {
		t.Fatalf("counts = %d/%d", cfg.Transactions, cfg.Users)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"STARQUERY_SEED_GOLD_PREFIX":  "warehouse/gold",
		"STARQUERY_SEED_TRANSACTIONS": "500",
		"STARQUERY_SEED_USERS":        "42",
		"STARQUERY_SEED_SEED":         "99",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.GoldPrefix != "warehouse/gold" {
		t.Fatalf("GoldPrefix = %q", cfg.GoldPrefix)
	}
	if cfg.Transactions != 500 || cfg.Users != 42 || cfg.Seed != 99 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigFromEnvRejectsZeroTransactions(t *testing.T) {
	_, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"STARQUERY_SEED_TRANSACTIONS": "0",
	}))
	if err == nil || !strings.Contains(err.Error(), "STARQUERY_SEED_TRANSACTIONS") {
		t.Fatalf("error = %v, want transactions validation error", err)
	}
}
