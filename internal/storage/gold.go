package storage

import (
	"context"
	"fmt"
)

// DiscoverGoldTables lists the gold prefix and returns table name to object
// key for every parquet file directly under it. Keys with other extensions or
// nested layouts are ignored.
func DiscoverGoldTables(ctx context.Context, store ObjectStore, prefix string) (map[string]string, error) {
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover gold tables: %w", err)
	}
	tables := make(map[string]string)
	for _, info := range infos {
		name, ok := TableFromGoldPath(prefix, info.Key)
		if !ok {
			continue
		}
		tables[name] = info.Key
	}
	return tables, nil
}
