package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/recruitsql/recruitsql/internal/auth"
	"github.com/recruitsql/recruitsql/internal/pipeline"
	"github.com/recruitsql/recruitsql/internal/query"
)

// StatusClientClosedRequest is reported when the caller went away before
// the answer was ready.
const StatusClientClosedRequest = 499

const truncatedHeader = "X-Result-Truncated"

type translateResponse struct {
	Question      string `json:"question"`
	CandidateSQL  string `json:"candidate_sql"`
	SQL           string `json:"sql"`
	SourceDialect string `json:"source_dialect"`
	TargetDialect string `json:"target_dialect"`
	Model         string `json:"model"`
	Cached        bool   `json:"cached"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "no model provider is configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	result, err := deps.Pipeline.Invoke(r.Context(), r.URL.Query().Get("question"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	w.Header().Set(truncatedHeader, strconv.FormatBool(result.Truncated))
	writeJSON(w, http.StatusOK, orderedRows(result))
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "no model provider is configured", false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	translation, err := deps.Pipeline.Translate(r.Context(), r.URL.Query().Get("question"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{
		Question:      translation.Question,
		CandidateSQL:  translation.Candidate.RawText,
		SQL:           translation.Executable.Text,
		SourceDialect: string(translation.Candidate.SourceDialect),
		TargetDialect: string(translation.Executable.TargetDialect),
		Model:         deps.Pipeline.ModelName(),
		Cached:        translation.Cached,
	})
}

// writeFailure renders a pipeline failure. A question the schema cannot
// answer is not an error for the caller: it gets 200 with a Failed field.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var failure *pipeline.Failure
	if !errors.As(err, &failure) {
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", err.Error(), false, nil)
		return
	}
	if failure.Kind == pipeline.KindNoAnswer {
		writeJSON(w, http.StatusOK, map[string]any{"Failed": failure.Message})
		return
	}
	writeError(r.Context(), w, statusForKind(failure.Kind), string(failure.Kind), failure.Message, failure.Retryable(), map[string]any{
		"stage": string(failure.Stage),
	})
}

func statusForKind(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindSynthesisTruncated, pipeline.KindMalformedModelOutput, pipeline.KindUnparseableQuery, pipeline.KindModelError:
		return http.StatusBadGateway
	case pipeline.KindUnsafeQuery:
		return http.StatusUnprocessableEntity
	case pipeline.KindTimeout:
		return http.StatusGatewayTimeout
	case pipeline.KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// orderedRow renders a row as a JSON object whose keys follow the result's
// column order.
type orderedRow struct {
	columns []string
	row     query.Row
}

func (o orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]struct{}, len(o.columns))
	for _, column := range o.columns {
		if _, dup := seen[column]; dup {
			continue
		}
		seen[column] = struct{}{}
		if len(seen) > 1 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(o.row[column])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func orderedRows(result query.Result) []orderedRow {
	rows := make([]orderedRow, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, orderedRow{columns: result.Columns, row: row})
	}
	return rows
}
