package nl2sql

import (
	"errors"
	"strings"

	"github.com/recruitsql/recruitsql/internal/schema"
)

const (
	SQLMarker    = "[SQL]"
	SQLEndMarker = "[/SQL]"
	// RefusalPhrase is what the model is told to answer when the schema
	// cannot answer the question.
	RefusalPhrase = "I do not know"
)

var ErrEmptyQuestion = errors.New("question is required")

// BuildPrompt renders the generation prompt for question against the
// descriptor. The result ends with SQLMarker so completion-style models
// continue with the query.
func BuildPrompt(question string, descriptor schema.Descriptor) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	var b strings.Builder
	b.WriteString("### Task\n")
	b.WriteString("Generate a PostgreSQL query to answer [QUESTION]")
	b.WriteString(question)
	b.WriteString("[/QUESTION]\n\n")

	b.WriteString("### Instructions\n")
	for _, line := range instructions(descriptor) {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n### Database Schema\n")
	b.WriteString("This query will run on a database whose schema is represented in this string:\n")
	b.WriteString(descriptor.DDL())

	b.WriteString("\n### Answer\n")
	b.WriteString("Given the database schema, here is the PostgreSQL query that answers [QUESTION]")
	b.WriteString(question)
	b.WriteString("[/QUESTION]\n")
	b.WriteString(SQLMarker)
	return b.String(), nil
}

func instructions(descriptor schema.Descriptor) []string {
	lines := []string{
		"The query is translated to MySQL before it runs, so only use constructs MySQL can express",
		"Do not use ILIKE, use LIKE instead",
		"Write boolean values as 1 and 0 instead of true and false",
		"Only use the tables and columns listed in the database schema",
	}
	lines = append(lines, descriptor.Notes...)
	for _, group := range descriptor.SynonymGroups() {
		lines = append(lines, "Users may refer to the "+group.Table+" table as "+strings.Join(group.Terms, " or "))
	}
	lines = append(lines,
		"If you cannot answer the question with the available database schema, return '"+RefusalPhrase+"'",
		"Answer with "+SQLMarker+" followed by the query and end it with "+SQLEndMarker,
	)
	return lines
}
