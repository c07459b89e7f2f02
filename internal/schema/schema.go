package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidDescriptor = errors.New("invalid schema descriptor")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Descriptor is the read-only description of the tables the question
// answering pipeline may query.
type Descriptor struct {
	Version  string     `json:"version"`
	Tables   []TableDef `json:"tables"`
	Synonyms []Synonym  `json:"synonyms,omitempty"`
	Notes    []string   `json:"notes,omitempty"`
}

type TableDef struct {
	Name        string          `json:"name"`
	Columns     []ColumnDef     `json:"columns"`
	ForeignKeys []ForeignKeyDef `json:"foreign_keys,omitempty"`
}

type ColumnDef struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	Default    string `json:"default,omitempty"`
}

type ForeignKeyDef struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Synonym maps a word users say to the table it means.
type Synonym struct {
	Term  string `json:"term"`
	Table string `json:"table"`
}

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDescriptor, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDescriptor
}

func (d Descriptor) Table(name string) (TableDef, bool) {
	for _, table := range d.Tables {
		if strings.EqualFold(table.Name, name) {
			return table, true
		}
	}
	return TableDef{}, false
}

func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.Name)
	}
	return names
}

func (t TableDef) Column(name string) (ColumnDef, bool) {
	for _, column := range t.Columns {
		if strings.EqualFold(column.Name, name) {
			return column, true
		}
	}
	return ColumnDef{}, false
}

// Validate reports every structural problem in the descriptor at once.
func (d Descriptor) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(d.Version) == "" {
		addf("version is required")
	}
	if len(d.Tables) == 0 {
		addf("at least one table is required")
	}

	seenTables := make(map[string]struct{}, len(d.Tables))
	for _, table := range d.Tables {
		if !identifierPattern.MatchString(table.Name) {
			addf("table name %q is not a valid identifier", table.Name)
			continue
		}
		key := strings.ToLower(table.Name)
		if _, exists := seenTables[key]; exists {
			addf("table %q is declared more than once", table.Name)
		}
		seenTables[key] = struct{}{}

		if len(table.Columns) == 0 {
			addf("table %q has no columns", table.Name)
		}
		seenColumns := make(map[string]struct{}, len(table.Columns))
		for _, column := range table.Columns {
			if !identifierPattern.MatchString(column.Name) {
				addf("column %q in table %q is not a valid identifier", column.Name, table.Name)
				continue
			}
			columnKey := strings.ToLower(column.Name)
			if _, exists := seenColumns[columnKey]; exists {
				addf("column %s.%s is declared more than once", table.Name, column.Name)
			}
			seenColumns[columnKey] = struct{}{}
			if strings.TrimSpace(column.Type) == "" {
				addf("column %s.%s has no type", table.Name, column.Name)
			}
			if column.PrimaryKey && column.Nullable {
				addf("primary key column %s.%s cannot be nullable", table.Name, column.Name)
			}
		}
	}

	for _, table := range d.Tables {
		for _, fk := range table.ForeignKeys {
			if _, ok := table.Column(fk.Column); !ok {
				addf("foreign key on %s references missing source column %q", table.Name, fk.Column)
			}
			target, ok := d.Table(fk.RefTable)
			if !ok {
				addf("foreign key %s.%s references undeclared table %q", table.Name, fk.Column, fk.RefTable)
				continue
			}
			if _, ok := target.Column(fk.RefColumn); !ok {
				addf("foreign key %s.%s references undeclared column %s.%s", table.Name, fk.Column, fk.RefTable, fk.RefColumn)
			}
		}
	}

	for _, synonym := range d.Synonyms {
		if strings.TrimSpace(synonym.Term) == "" {
			addf("synonym for table %q has an empty term", synonym.Table)
		}
		if _, ok := d.Table(synonym.Table); !ok {
			addf("synonym %q references undeclared table %q", synonym.Term, synonym.Table)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// DDL renders the descriptor as MySQL CREATE TABLE statements followed by
// one comment line per join path.
func (d Descriptor) DDL() string {
	var b strings.Builder
	for i, table := range d.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(table.DDL())
	}
	hints := d.JoinHints()
	if len(hints) > 0 {
		b.WriteString("\n")
		for _, hint := range hints {
			b.WriteString("-- ")
			b.WriteString(hint)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (t TableDef) DDL() string {
	lines := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	primaryKey := make([]string, 0, 1)
	for _, column := range t.Columns {
		line := "    " + column.Name + " " + column.Type
		if !column.Nullable {
			line += " NOT NULL"
		}
		if column.Default != "" {
			line += " DEFAULT " + column.Default
		}
		lines = append(lines, line)
		if column.PrimaryKey {
			primaryKey = append(primaryKey, column.Name)
		}
	}
	if len(primaryKey) > 0 {
		lines = append(lines, "    PRIMARY KEY ("+strings.Join(primaryKey, ", ")+")")
	}
	for _, fk := range t.ForeignKeys {
		lines = append(lines, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s(%s)", fk.Column, fk.RefTable, fk.RefColumn))
	}
	return "CREATE TABLE " + t.Name + " (\n" + strings.Join(lines, ",\n") + "\n);\n"
}

func (d Descriptor) JoinHints() []string {
	hints := make([]string, 0)
	for _, table := range d.Tables {
		for _, fk := range table.ForeignKeys {
			hints = append(hints, fmt.Sprintf("%s.%s can be joined with %s.%s", table.Name, fk.Column, fk.RefTable, fk.RefColumn))
		}
	}
	return hints
}

type SynonymGroup struct {
	Table string   `json:"table"`
	Terms []string `json:"terms"`
}

// SynonymGroups groups synonyms by table, in declaration order.
func (d Descriptor) SynonymGroups() []SynonymGroup {
	groups := make([]SynonymGroup, 0)
	index := make(map[string]int)
	for _, synonym := range d.Synonyms {
		i, ok := index[synonym.Table]
		if !ok {
			i = len(groups)
			index[synonym.Table] = i
			groups = append(groups, SynonymGroup{Table: synonym.Table})
		}
		groups[i].Terms = append(groups[i].Terms, synonym.Term)
	}
	return groups
}
