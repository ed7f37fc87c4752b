package storage

import (
	"context"
	"io"
	"testing"
)

type fakeStore struct {
	objects []ObjectInfo
	listErr error
}

func (f *fakeStore) Put(context.Context, string, io.Reader, int64, PutOptions) (ObjectInfo, error) {
	return ObjectInfo{}, nil
}

func (f *fakeStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrObjectNotFound
}

func (f *fakeStore) Stat(context.Context, string) (ObjectInfo, error) {
	return ObjectInfo{}, ErrObjectNotFound
}

func (f *fakeStore) List(context.Context, string) ([]ObjectInfo, error) {
	return f.objects, f.listErr
}

func (f *fakeStore) Delete(context.Context, string) error {
	return nil
}

func TestDiscoverGoldTables(t *testing.T) {
	store := &fakeStore{objects: []ObjectInfo{
		{Key: "gold/transaction_fact.parquet"},
		{Key: "gold/dim_user.parquet"},
		{Key: "gold/dim_user.csv"},
		{Key: "gold/archive/dim_old.parquet"},
	}}

	tables, err := DiscoverGoldTables(context.Background(), store, "gold")
	if err != nil {
		t.Fatalf("DiscoverGoldTables() error = %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("tables = %v, want 2 entries", tables)
	}
	if tables["transaction_fact"] != "gold/transaction_fact.parquet" {
		t.Fatalf("transaction_fact key = %q", tables["transaction_fact"])
	}
	if tables["dim_user"] != "gold/dim_user.parquet" {
		t.Fatalf("dim_user key = %q", tables["dim_user"])
	}
}
