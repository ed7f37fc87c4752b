// Package schema holds the process-wide star schema catalog. The catalog is
// loaded once at startup and treated as immutable: the validator uses it for
// relation-existence checks and the generator uses it as prompt context.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Table struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fact        bool     `json:"fact"`
	Columns     []Column `json:"columns"`
}

type Relationship struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

type Catalog struct {
	tables        []Table
	relationships []Relationship
	byName        map[string]Table
}

func New(tables []Table, relationships []Relationship) (*Catalog, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}
	byName := make(map[string]Table, len(tables))
	for _, table := range tables {
		name := strings.ToLower(strings.TrimSpace(table.Name))
		if name == "" {
			return nil, fmt.Errorf("table name is required")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("duplicate table name %q", table.Name)
		}
		if len(table.Columns) == 0 {
			return nil, fmt.Errorf("table %q has no columns", table.Name)
		}
		byName[name] = table
	}
	for _, rel := range relationships {
		if _, ok := byName[strings.ToLower(rel.FromTable)]; !ok {
			return nil, fmt.Errorf("relationship references unknown table %q", rel.FromTable)
		}
		if _, ok := byName[strings.ToLower(rel.ToTable)]; !ok {
			return nil, fmt.Errorf("relationship references unknown table %q", rel.ToTable)
		}
	}
	return &Catalog{tables: tables, relationships: relationships, byName: byName}, nil
}

// LoadFile reads a catalog definition from a JSON file. Used to override the
// built-in star schema without a rebuild.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var payload struct {
		Tables        []Table        `json:"tables"`
		Relationships []Relationship `json:"relationships"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode catalog file %q: %w", path, err)
	}
	return New(payload.Tables, payload.Relationships)
}

func (c *Catalog) Tables() []Table {
	out := make([]Table, len(c.tables))
	copy(out, c.tables)
	return out
}

func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for _, table := range c.tables {
		names = append(names, table.Name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a relation name is part of the catalog. DuckDB folds
// unquoted identifiers to lower case, so the lookup is case-insensitive.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// PromptContext renders the catalog as markdown for the SQL generator prompt.
func (c *Catalog) PromptContext() string {
	var b strings.Builder
	b.WriteString("# Data Warehouse Star Schema\n")
	for _, table := range c.tables {
		if !table.Fact {
			continue
		}
		writeTableContext(&b, "## Fact Table", table)
	}
	for _, table := range c.tables {
		if table.Fact {
			continue
		}
		writeTableContext(&b, "## Dimension Table", table)
	}
	if len(c.relationships) > 0 {
		b.WriteString("\n## Relationships\n")
		for _, rel := range c.relationships {
			fmt.Fprintf(&b, "- %s.%s -> %s.%s\n", rel.FromTable, rel.FromColumn, rel.ToTable, rel.ToColumn)
		}
	}
	return b.String()
}

func writeTableContext(b *strings.Builder, heading string, table Table) {
	fmt.Fprintf(b, "\n%s: %s\n", heading, table.Name)
	if table.Description != "" {
		b.WriteString(table.Description + "\n")
	}
	b.WriteString("Columns:\n")
	for _, column := range table.Columns {
		fmt.Fprintf(b, "- %s (%s): %s\n", column.Name, column.Type, column.Description)
	}
}

// Default returns the built-in transaction star schema.
func Default() *Catalog {
	catalog, err := New(defaultTables(), defaultRelationships())
	if err != nil {
		panic(fmt.Sprintf("default catalog invalid: %v", err))
	}
	return catalog
}

func defaultTables() []Table {
	return []Table{
		{
			Name:        "transaction_fact",
			Description: "The main fact table containing transaction records.",
			Fact:        true,
			Columns: []Column{
				{Name: "transaction_id", Type: "VARCHAR", Description: "Unique transaction identifier"},
				{Name: "category_id", Type: "BIGINT", Description: "Links to dim_category"},
				{Name: "date_id", Type: "BIGINT", Description: "Links to dim_date"},
				{Name: "user_id", Type: "VARCHAR", Description: "Links to dim_user"},
				{Name: "payment_id", Type: "BIGINT", Description: "Links to dim_payment"},
				{Name: "transaction_amount", Type: "DECIMAL(18,2)", Description: "Transaction amount"},
			},
		},
		{
			Name:        "dim_user",
			Description: "User and customer information.",
			Columns: []Column{
				{Name: "user_id", Type: "VARCHAR", Description: "Unique user identifier"},
				{Name: "name", Type: "VARCHAR", Description: "User's full name"},
				{Name: "address", Type: "VARCHAR", Description: "Street address"},
				{Name: "phone_number", Type: "VARCHAR", Description: "Contact phone number"},
				{Name: "city", Type: "VARCHAR", Description: "City name"},
				{Name: "country", Type: "VARCHAR", Description: "Country name"},
				{Name: "email", Type: "VARCHAR", Description: "Email address"},
			},
		},
		{
			Name:        "dim_category",
			Description: "Transaction category and merchant information.",
			Columns: []Column{
				{Name: "category_id", Type: "BIGINT", Description: "Unique category identifier"},
				{Name: "category_type", Type: "VARCHAR", Description: "Type of transaction category, e.g. Food, Shopping, Transport"},
				{Name: "merchant", Type: "VARCHAR", Description: "Merchant or vendor name"},
			},
		},
		{
			Name:        "dim_payment",
			Description: "Payment method and currency information.",
			Columns: []Column{
				{Name: "payment_id", Type: "BIGINT", Description: "Unique payment identifier"},
				{Name: "payment_type", Type: "VARCHAR", Description: "Type of payment, e.g. credit, debit, cash"},
				{Name: "payment_currency", Type: "VARCHAR", Description: "Currency code, e.g. USD, EUR"},
				{Name: "payment_method", Type: "VARCHAR", Description: "Payment method, e.g. card, transfer, wallet"},
			},
		},
		{
			Name:        "dim_date",
			Description: "Date and time dimension for temporal analysis.",
			Columns: []Column{
				{Name: "date_id", Type: "BIGINT", Description: "Date identifier in format YYYYMMDDHHMM"},
				{Name: "year", Type: "INT", Description: "Year"},
				{Name: "quarter", Type: "INT", Description: "Quarter (1-4)"},
				{Name: "month", Type: "INT", Description: "Month (1-12)"},
				{Name: "weekday", Type: "VARCHAR", Description: "Day of week name"},
				{Name: "day", Type: "INT", Description: "Day of month (1-31)"},
				{Name: "hour", Type: "INT", Description: "Hour of day (0-23)"},
				{Name: "minute", Type: "INT", Description: "Minute (0-59)"},
			},
		},
	}
}

func defaultRelationships() []Relationship {
	return []Relationship{
		{FromTable: "transaction_fact", FromColumn: "category_id", ToTable: "dim_category", ToColumn: "category_id"},
		{FromTable: "transaction_fact", FromColumn: "date_id", ToTable: "dim_date", ToColumn: "date_id"},
		{FromTable: "transaction_fact", FromColumn: "user_id", ToTable: "dim_user", ToColumn: "user_id"},
		{FromTable: "transaction_fact", FromColumn: "payment_id", ToTable: "dim_payment", ToColumn: "payment_id"},
	}
}
