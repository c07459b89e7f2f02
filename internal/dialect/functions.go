package dialect

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// postgresOnlyFunctions have no MySQL function of the same meaning. Passing
// them through would fail at execution with a less useful message.
var postgresOnlyFunctions = map[string]struct{}{
	"age":                  {},
	"array_agg":            {},
	"array_length":         {},
	"generate_series":      {},
	"initcap":              {},
	"split_part":           {},
	"string_to_array":      {},
	"to_char":              {},
	"to_date":              {},
	"to_timestamp":         {},
	"unnest":               {},
	"regexp_matches":       {},
	"jsonb_array_elements": {},
}

var renamedFunctions = map[string]string{
	"length":             "CHAR_LENGTH",
	"char_length":        "CHAR_LENGTH",
	"character_length":   "CHAR_LENGTH",
	"random":             "RAND",
	"ceiling":            "CEILING",
	"power":              "POWER",
	"json_build_object":  "JSON_OBJECT",
	"jsonb_build_object": "JSON_OBJECT",
	"json_agg":           "JSON_ARRAYAGG",
	"jsonb_agg":          "JSON_ARRAYAGG",
}

var extractFields = map[string]string{
	"year":    "YEAR",
	"quarter": "QUARTER",
	"month":   "MONTH",
	"week":    "WEEK",
	"day":     "DAY",
	"hour":    "HOUR",
	"minute":  "MINUTE",
	"second":  "SECOND",
}

var truncFormats = map[string]string{
	"year":   "%Y-01-01",
	"month":  "%Y-%m-01",
	"hour":   "%Y-%m-%d %H:00:00",
	"minute": "%Y-%m-%d %H:%i:00",
}

func functionName(names []*pg_query.Node) string {
	return strings.ToLower(operatorName(names))
}

func (e *mysqlEmitter) funcCall(call *pg_query.FuncCall) string {
	names := call.GetFuncname()
	if len(names) > 1 {
		if schema := names[0].GetString_().GetSval(); len(names) > 2 || schema != "pg_catalog" {
			return e.unsupported("schema-qualified function %s", schema)
		}
	}
	name := functionName(names)
	if call.GetFuncVariadic() {
		return e.unsupported("VARIADIC arguments to %s", name)
	}
	if call.GetAggWithinGroup() {
		return e.unsupported("WITHIN GROUP on %s", name)
	}
	if _, ok := postgresOnlyFunctions[name]; ok {
		return e.unsupported("function %s", name)
	}

	var out string
	switch name {
	case "string_agg":
		out = e.groupConcat(call)
	case "extract", "date_part":
		out = e.extract(call)
	case "date_trunc":
		out = e.dateTrunc(call)
	case "position", "strpos":
		args := call.GetArgs()
		if len(args) != 2 {
			return e.unsupported("%s with %d arguments", name, len(args))
		}
		out = "LOCATE(" + e.expr(args[1]) + ", " + e.expr(args[0]) + ")"
	case "btrim":
		if len(call.GetArgs()) != 1 {
			return e.unsupported("btrim with a character set")
		}
		out = "TRIM(" + e.expr(call.GetArgs()[0]) + ")"
	case "trunc":
		args := call.GetArgs()
		switch len(args) {
		case 1:
			out = "TRUNCATE(" + e.expr(args[0]) + ", 0)"
		case 2:
			out = "TRUNCATE(" + e.expr(args[0]) + ", " + e.expr(args[1]) + ")"
		default:
			return e.unsupported("trunc with %d arguments", len(args))
		}
	default:
		upper, ok := renamedFunctions[name]
		if !ok {
			upper = strings.ToUpper(name)
		}
		out = e.genericCall(upper, call)
	}

	if over := call.GetOver(); over != nil {
		out += " OVER " + e.window(over)
	}
	return out
}

func (e *mysqlEmitter) genericCall(name string, call *pg_query.FuncCall) string {
	if len(call.GetAggOrder()) > 0 {
		return e.unsupported("ORDER BY inside %s", name)
	}
	filter := call.GetAggFilter()
	if call.GetAggStar() {
		if filter != nil {
			return name + "(CASE WHEN " + e.expr(filter) + " THEN 1 END)"
		}
		return name + "(*)"
	}

	args := make([]string, 0, len(call.GetArgs()))
	for _, arg := range call.GetArgs() {
		args = append(args, e.expr(arg))
	}
	if filter != nil {
		if len(args) != 1 {
			return e.unsupported("FILTER on %s with %d arguments", name, len(args))
		}
		args[0] = "CASE WHEN " + e.expr(filter) + " THEN " + args[0] + " END"
	}
	prefix := ""
	if call.GetAggDistinct() {
		prefix = "DISTINCT "
	}
	return name + "(" + prefix + strings.Join(args, ", ") + ")"
}

func (e *mysqlEmitter) groupConcat(call *pg_query.FuncCall) string {
	args := call.GetArgs()
	if len(args) != 2 {
		return e.unsupported("string_agg with %d arguments", len(args))
	}
	separator := args[1].GetAConst().GetSval()
	if separator == nil {
		return e.unsupported("string_agg with a non-literal separator")
	}

	value := e.expr(args[0])
	if filter := call.GetAggFilter(); filter != nil {
		value = "CASE WHEN " + e.expr(filter) + " THEN " + value + " END"
	}
	var b strings.Builder
	b.WriteString("GROUP_CONCAT(")
	if call.GetAggDistinct() {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(value)
	if order := call.GetAggOrder(); len(order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(e.sortList(order))
	}
	b.WriteString(" SEPARATOR ")
	b.WriteString(quoteString(separator.GetSval()))
	b.WriteString(")")
	return b.String()
}

func (e *mysqlEmitter) extract(call *pg_query.FuncCall) string {
	args := call.GetArgs()
	if len(args) != 2 {
		return e.unsupported("extract with %d arguments", len(args))
	}
	field := args[0].GetAConst().GetSval()
	if field == nil {
		return e.unsupported("extract with a non-literal field")
	}
	source := e.expr(args[1])
	switch name := strings.ToLower(field.GetSval()); name {
	case "dow":
		return "(DAYOFWEEK(" + source + ") - 1)"
	case "doy":
		return "DAYOFYEAR(" + source + ")"
	case "epoch":
		return "UNIX_TIMESTAMP(" + source + ")"
	default:
		unit, ok := extractFields[name]
		if !ok {
			return e.unsupported("extract field %q", field.GetSval())
		}
		return "EXTRACT(" + unit + " FROM " + source + ")"
	}
}

func (e *mysqlEmitter) dateTrunc(call *pg_query.FuncCall) string {
	args := call.GetArgs()
	if len(args) != 2 {
		return e.unsupported("date_trunc with %d arguments", len(args))
	}
	unit := args[0].GetAConst().GetSval()
	if unit == nil {
		return e.unsupported("date_trunc with a non-literal unit")
	}
	source := e.expr(args[1])
	name := strings.ToLower(unit.GetSval())
	if name == "day" {
		return "DATE(" + source + ")"
	}
	format, ok := truncFormats[name]
	if !ok {
		return e.unsupported("date_trunc unit %q", unit.GetSval())
	}
	return "DATE_FORMAT(" + source + ", " + quoteString(format) + ")"
}

func (e *mysqlEmitter) window(def *pg_query.WindowDef) string {
	if def.GetName() != "" || def.GetRefname() != "" {
		return e.unsupported("named windows")
	}
	if def.GetFrameOptions()&frameOptionNonDefault != 0 {
		return e.unsupported("explicit window frames")
	}
	parts := make([]string, 0, 2)
	if partition := def.GetPartitionClause(); len(partition) > 0 {
		parts = append(parts, "PARTITION BY "+e.exprList(partition))
	}
	if order := def.GetOrderClause(); len(order) > 0 {
		parts = append(parts, "ORDER BY "+e.sortList(order))
	}
	return "(" + strings.Join(parts, " ") + ")"
}
