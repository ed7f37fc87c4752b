package seed

import (
	"fmt"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "STARQUERY_SEED_GOLD_PREFIX", &cfg.GoldPrefix); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_SEED_TRANSACTIONS", &cfg.Transactions); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_SEED_USERS", &cfg.Users); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "STARQUERY_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.GoldPrefix) == "" {
		return Config{}, fmt.Errorf("STARQUERY_SEED_GOLD_PREFIX is required")
	}
	if cfg.Transactions <= 0 {
		return Config{}, fmt.Errorf("STARQUERY_SEED_TRANSACTIONS must be > 0")
	}
	if cfg.Users <= 0 {
		return Config{}, fmt.Errorf("STARQUERY_SEED_USERS must be > 0")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
