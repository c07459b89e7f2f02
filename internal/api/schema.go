package api

import (
	"net/http"

	"github.com/recruitsql/recruitsql/internal/auth"
	"github.com/recruitsql/recruitsql/internal/schema"
)

type schemaResponse struct {
	Version  string                `json:"version"`
	Tables   []schema.TableDef     `json:"tables"`
	Synonyms []schema.SynonymGroup `json:"synonyms"`
	Notes    []string              `json:"notes"`
	DDL      string                `json:"ddl"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if len(deps.Schema.Tables) == 0 {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema descriptor is not loaded", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	writeJSON(w, http.StatusOK, schemaResponse{
		Version:  deps.Schema.Version,
		Tables:   deps.Schema.Tables,
		Synonyms: deps.Schema.SynonymGroups(),
		Notes:    deps.Schema.Notes,
		DDL:      deps.Schema.DDL(),
	})
}
