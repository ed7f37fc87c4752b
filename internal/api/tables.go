package api

import (
	"net/http"

	"github.com/starquery/starquery/internal/schema"
)

type tableColumn struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type tableInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Fact        bool          `json:"fact"`
	Columns     []tableColumn `json:"columns"`
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CATALOG_NOT_CONFIGURED", "schema catalog is not configured", false, nil)
		return
	}

	tables := deps.Catalog.Tables()
	payload := make([]tableInfo, 0, len(tables))
	for _, table := range tables {
		payload = append(payload, toTableInfo(table))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": payload})
}

func toTableInfo(table schema.Table) tableInfo {
	columns := make([]tableColumn, 0, len(table.Columns))
	for _, column := range table.Columns {
		columns = append(columns, tableColumn{
			Name:        column.Name,
			Type:        column.Type,
			Description: column.Description,
		})
	}
	return tableInfo{
		Name:        table.Name,
		Description: table.Description,
		Fact:        table.Fact,
		Columns:     columns,
	}
}
