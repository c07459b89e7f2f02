package dialect

import (
	"regexp"
	"strings"
)

var plainIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// mysqlKeywords are identifiers that must be backquoted. It is the MySQL 8
// reserved word list plus the non-reserved words that show up as column
// names in this domain.
var mysqlKeywords = toSet(
	"accessible", "add", "all", "alter", "analyze", "and", "as", "asc", "asensitive",
	"before", "between", "bigint", "binary", "blob", "both", "by",
	"call", "cascade", "case", "change", "char", "character", "check", "collate", "column",
	"condition", "constraint", "continue", "convert", "create", "cross", "cube", "cume_dist",
	"current_date", "current_time", "current_timestamp", "current_user", "cursor",
	"database", "databases", "day_hour", "day_microsecond", "day_minute", "day_second",
	"dec", "decimal", "declare", "default", "delayed", "delete", "dense_rank", "desc",
	"describe", "deterministic", "distinct", "distinctrow", "div", "double", "drop", "dual",
	"each", "else", "elseif", "empty", "enclosed", "escaped", "except", "exists", "exit",
	"explain", "false", "fetch", "first_value", "float", "float4", "float8", "for", "force",
	"foreign", "from", "fulltext", "function", "generated", "get", "grant", "group",
	"grouping", "groups", "having", "high_priority", "hour_microsecond", "hour_minute",
	"hour_second", "if", "ignore", "in", "index", "infile", "inner", "inout", "insensitive",
	"insert", "int", "int1", "int2", "int3", "int4", "int8", "integer", "intersect", "interval",
	"into", "io_after_gtids", "io_before_gtids", "is", "iterate", "join", "json_table", "key",
	"keys", "kill", "lag", "last_value", "lateral", "lead", "leading", "leave", "left", "like",
	"limit", "linear", "lines", "load", "localtime", "localtimestamp", "lock", "long",
	"longblob", "longtext", "loop", "low_priority", "master_bind",
	"master_ssl_verify_server_cert", "match", "maxvalue", "mediumblob", "mediumint",
	"mediumtext", "middleint", "minute_microsecond", "minute_second", "mod", "modifies",
	"natural", "not", "no_write_to_binlog", "nth_value", "ntile", "null", "numeric", "of",
	"on", "optimize", "optimizer_costs", "option", "optionally", "or", "order", "out",
	"outer", "outfile", "over", "partition", "percent_rank", "precision", "primary",
	"procedure", "purge", "range", "rank", "read", "reads", "read_write", "real",
	"recursive", "references", "regexp", "release", "rename", "repeat", "replace",
	"require", "resignal", "restrict", "return", "revoke", "right", "rlike", "row",
	"row_number", "rows", "schema", "schemas", "second_microsecond", "select", "sensitive",
	"separator", "set", "show", "signal", "smallint", "spatial", "specific", "sql",
	"sqlexception", "sqlstate", "sqlwarning", "sql_big_result", "sql_calc_found_rows",
	"sql_small_result", "ssl", "starting", "stored", "straight_join", "system", "table",
	"terminated", "then", "tinyblob", "tinyint", "tinytext", "to", "trailing", "trigger",
	"true", "undo", "union", "unique", "unlock", "unsigned", "update", "usage", "use",
	"using", "utc_date", "utc_time", "utc_timestamp", "values", "varbinary", "varchar",
	"varcharacter", "varying", "virtual", "when", "where", "while", "window", "with",
	"write", "xor", "year_month", "zerofill",
	"date", "time", "timestamp", "status", "text", "year", "month", "day", "hour",
	"minute", "second", "type", "value", "comment", "level", "data",
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, word := range words {
		out[word] = struct{}{}
	}
	return out
}

func quoteIdent(name string) string {
	if plainIdentifier.MatchString(name) {
		if _, reserved := mysqlKeywords[name]; !reserved {
			return name
		}
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// quoteString writes a MySQL string literal. MySQL treats backslash as an
// escape inside quotes unless NO_BACKSLASH_ESCAPES is set, so it is doubled.
func quoteString(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", "''")
	return "'" + escaped + "'"
}

// bitStringLiteral converts the parser's b1010 / xFF form to MySQL syntax.
func bitStringLiteral(value string) string {
	if value == "" {
		return "''"
	}
	switch value[0] {
	case 'x', 'X':
		return "X'" + value[1:] + "'"
	default:
		return "b'" + value[1:] + "'"
	}
}
