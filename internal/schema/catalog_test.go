package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogHasStarTables(t *testing.T) {
	catalog := Default()

	for _, name := range []string{"transaction_fact", "dim_user", "dim_category", "dim_payment", "dim_date"} {
		if !catalog.Has(name) {
			t.Fatalf("Has(%q) = false", name)
		}
	}
	if catalog.Has("not_a_real_table") {
		t.Fatal("Has(not_a_real_table) = true")
	}
}

func TestHasIsCaseInsensitive(t *testing.T) {
	catalog := Default()
	if !catalog.Has("Transaction_Fact") {
		t.Fatal("Has(Transaction_Fact) = false")
	}
	if !catalog.Has("  DIM_USER  ") {
		t.Fatal("Has(DIM_USER) = false")
	}
}

func TestNewRejectsDuplicateTables(t *testing.T) {
	tables := []Table{
		{Name: "t", Columns: []Column{{Name: "a"}}},
		{Name: "T", Columns: []Column{{Name: "b"}}},
	}
	if _, err := New(tables, nil); err == nil {
		t.Fatal("New() expected duplicate table error")
	}
}

func TestNewRejectsRelationshipToUnknownTable(t *testing.T) {
	tables := []Table{{Name: "t", Columns: []Column{{Name: "a"}}}}
	rels := []Relationship{{FromTable: "t", FromColumn: "a", ToTable: "missing", ToColumn: "a"}}
	if _, err := New(tables, rels); err == nil {
		t.Fatal("New() expected unknown relationship table error")
	}
}

func TestPromptContextListsFactBeforeDimensions(t *testing.T) {
	context := Default().PromptContext()

	factIdx := strings.Index(context, "transaction_fact")
	dimIdx := strings.Index(context, "dim_user")
	if factIdx < 0 || dimIdx < 0 {
		t.Fatalf("prompt context missing tables:\n%s", context)
	}
	if factIdx > dimIdx {
		t.Fatal("fact table should be rendered before dimensions")
	}
	if !strings.Contains(context, "transaction_fact.category_id -> dim_category.category_id") {
		t.Fatal("prompt context missing relationship line")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	payload := `{
		"tables": [
			{"name": "sales_fact", "fact": true, "columns": [{"name": "amount", "type": "DOUBLE", "description": "sale amount"}]},
			{"name": "dim_store", "columns": [{"name": "store_id", "type": "BIGINT", "description": "store key"}]}
		],
		"relationships": []
	}`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}

	catalog, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !catalog.Has("sales_fact") || !catalog.Has("dim_store") {
		t.Fatalf("loaded catalog tables = %v", catalog.TableNames())
	}
	if catalog.Has("transaction_fact") {
		t.Fatal("loaded catalog should replace the default tables")
	}
}

func TestLoadFileRejectsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{"tables": [{"name": "t", "columns": []}]}`), 0o600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() expected error for table without columns")
	}
}
