package schema

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDescriptorDescribesRecruitingTables(t *testing.T) {
	descriptor, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	names := descriptor.TableNames()
	want := []string{"clients", "job_descriptions", "resumes"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("TableNames() = %v, want %v", names, want)
	}

	resumes, ok := descriptor.Table("resumes")
	if !ok {
		t.Fatalf("Table(resumes) not found")
	}
	if _, ok := resumes.Column("status"); !ok {
		t.Fatalf("resumes.status not declared")
	}

	groups := descriptor.SynonymGroups()
	if len(groups) != 2 {
		t.Fatalf("SynonymGroups() len = %d, want 2", len(groups))
	}
	if groups[0].Table != "resumes" || groups[0].Terms[0] != "candidates" {
		t.Fatalf("first synonym group = %+v", groups[0])
	}
	if strings.Join(groups[1].Terms, ",") != "requirements,positions" {
		t.Fatalf("job_descriptions synonyms = %v", groups[1].Terms)
	}
}

func TestDDLIncludesForeignKeysAndJoinHints(t *testing.T) {
	descriptor, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	ddl := descriptor.DDL()

	for _, fragment := range []string{
		"CREATE TABLE clients (\n    client_id BINARY(16) NOT NULL,\n    client_name VARCHAR(255) NOT NULL,\n    PRIMARY KEY (client_id)\n);",
		"FOREIGN KEY (client_id) REFERENCES clients(client_id)",
		"FOREIGN KEY (jd_id) REFERENCES job_descriptions(jd_id)",
		"timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
		"-- resumes.jd_id can be joined with job_descriptions.jd_id",
		"-- job_descriptions.client_id can be joined with clients.client_id",
	} {
		if !strings.Contains(ddl, fragment) {
			t.Fatalf("DDL() missing %q\n%s", fragment, ddl)
		}
	}
}

func TestTableDDL(t *testing.T) {
	table := TableDef{
		Name: "notes",
		Columns: []ColumnDef{
			{Name: "id", Type: "BIGINT", PrimaryKey: true},
			{Name: "body", Type: "TEXT", Nullable: true},
		},
	}
	want := "CREATE TABLE notes (\n    id BIGINT NOT NULL,\n    body TEXT,\n    PRIMARY KEY (id)\n);\n"
	if got := table.DDL(); got != want {
		t.Fatalf("DDL() = %q, want %q", got, want)
	}
}

func TestValidateRejectsDanglingForeignKey(t *testing.T) {
	descriptor := Descriptor{
		Version: "1",
		Tables: []TableDef{
			{
				Name:        "resumes",
				Columns:     []ColumnDef{{Name: "resume_id", Type: "VARCHAR(32)"}},
				ForeignKeys: []ForeignKeyDef{{Column: "jd_id", RefTable: "job_descriptions", RefColumn: "jd_id"}},
			},
		},
		Synonyms: []Synonym{{Term: "applicants", Table: "candidates"}},
	}

	err := descriptor.Validate()
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("Validate() error = %v, want ErrInvalidDescriptor", err)
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(validationErr.Problems) != 3 {
		t.Fatalf("problems = %v, want 3 entries", validationErr.Problems)
	}
}

func TestValidateRejectsDuplicatesAndBadIdentifiers(t *testing.T) {
	descriptor := Descriptor{
		Version: "1",
		Tables: []TableDef{
			{Name: "clients", Columns: []ColumnDef{{Name: "id", Type: "INT"}, {Name: "ID", Type: "INT"}}},
			{Name: "clients", Columns: []ColumnDef{{Name: "id", Type: "INT"}}},
			{Name: "drop table", Columns: []ColumnDef{{Name: "id", Type: "INT"}}},
		},
	}
	err := descriptor.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, fragment := range []string{"clients.ID is declared more than once", `table "clients" is declared more than once`, `"drop table" is not a valid identifier`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error %q missing %q", err.Error(), fragment)
		}
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"version":"1","tables":[{"name":"a","columns":[{"name":"b","type":"INT"}]}],"owner":"x"}`))
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("Parse() error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestLoadFromFileAndObjectStore(t *testing.T) {
	descriptor, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	raw, err := Encode(descriptor)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	fromFile, err := Load(context.Background(), "file:"+path, nil)
	if err != nil {
		t.Fatalf("Load(file) error = %v", err)
	}
	if fromFile.DDL() != descriptor.DDL() {
		t.Fatalf("file descriptor DDL differs from embedded")
	}

	store := fakeObjectReader{objects: map[string]string{"schemas/recruiting.json": string(raw)}}
	fromObject, err := Load(context.Background(), "object:schemas/recruiting.json", store)
	if err != nil {
		t.Fatalf("Load(object) error = %v", err)
	}
	if fromObject.Version != descriptor.Version {
		t.Fatalf("object descriptor version = %q, want %q", fromObject.Version, descriptor.Version)
	}

	if _, err := Load(context.Background(), "object:missing.json", store); err == nil {
		t.Fatalf("expected missing object error")
	}
	if _, err := Load(context.Background(), "object:schemas/recruiting.json", nil); err == nil {
		t.Fatalf("expected error without object store")
	}
	if _, err := Load(context.Background(), "http://example.com/schema.json", nil); err == nil {
		t.Fatalf("expected unsupported source error")
	}
}

type fakeObjectReader struct {
	objects map[string]string
}

func (f fakeObjectReader) Get(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}
