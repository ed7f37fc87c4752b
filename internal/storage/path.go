package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildGoldObjectPath returns the object key for one gold-layer table,
// e.g. "gold/transaction_fact.parquet".
func BuildGoldObjectPath(prefix, tableName string) (string, error) {
	if err := validateTableName(tableName); err != nil {
		return "", err
	}
	return path.Join(prefix, tableName+".parquet"), nil
}

// TableFromGoldPath recovers the table name from a gold object key. Keys that
// are not single parquet files directly under the prefix are skipped by
// returning ok=false.
func TableFromGoldPath(prefix, key string) (string, bool) {
	trimmed := strings.TrimPrefix(key, strings.TrimSuffix(prefix, "/")+"/")
	if trimmed == key && prefix != "" {
		return "", false
	}
	if strings.Contains(trimmed, "/") {
		return "", false
	}
	name, found := strings.CutSuffix(trimmed, ".parquet")
	if !found || !tableNamePattern.MatchString(name) {
		return "", false
	}
	return name, true
}

func validateTableName(value string) error {
	if !tableNamePattern.MatchString(value) {
		return fmt.Errorf("invalid table name: %q", value)
	}
	return nil
}
