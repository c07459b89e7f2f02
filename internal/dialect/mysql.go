package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// mysqlMaxLimit is what MySQL documents for "OFFSET without LIMIT".
const mysqlMaxLimit = "18446744073709551615"

// frameOptionNonDefault is FRAMEOPTION_NONDEFAULT from parsenodes.h.
const frameOptionNonDefault = 0x00001

// mysqlEmitter walks a PostgreSQL parse tree and writes MySQL text. The first
// failure is kept in err and the walk keeps going so callers check err once.
type mysqlEmitter struct {
	err        error
	derivedSeq int
}

func (e *mysqlEmitter) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *mysqlEmitter) unsupported(format string, args ...any) string {
	e.fail(fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...)))
	return ""
}

func (e *mysqlEmitter) unsafe(format string, args ...any) string {
	e.fail(fmt.Errorf("%w: %s", ErrUnsafe, fmt.Sprintf(format, args...)))
	return ""
}

func (e *mysqlEmitter) selectStmt(stmt *pg_query.SelectStmt) string {
	if stmt == nil {
		return e.unsupported("empty select")
	}
	if stmt.GetIntoClause() != nil {
		return e.unsafe("SELECT INTO creates a table")
	}
	if len(stmt.GetLockingClause()) > 0 {
		return e.unsafe("row locking clauses are not allowed")
	}

	var b strings.Builder
	if with := stmt.GetWithClause(); with != nil {
		b.WriteString(e.withClause(with))
		b.WriteString(" ")
	}

	switch stmt.GetOp() {
	case pg_query.SetOperation_SETOP_UNION, pg_query.SetOperation_SETOP_INTERSECT, pg_query.SetOperation_SETOP_EXCEPT:
		b.WriteString(e.setOperand(stmt.GetLarg(), false))
		b.WriteString(" ")
		b.WriteString(setOperationKeyword(stmt.GetOp()))
		if stmt.GetAll() {
			b.WriteString(" ALL")
		}
		b.WriteString(" ")
		b.WriteString(e.setOperand(stmt.GetRarg(), true))
	default:
		if len(stmt.GetValuesLists()) > 0 {
			return e.unsupported("VALUES lists")
		}
		b.WriteString(e.simpleSelect(stmt))
	}

	b.WriteString(e.orderAndLimit(stmt))
	return b.String()
}

func setOperationKeyword(op pg_query.SetOperation) string {
	switch op {
	case pg_query.SetOperation_SETOP_INTERSECT:
		return "INTERSECT"
	case pg_query.SetOperation_SETOP_EXCEPT:
		return "EXCEPT"
	default:
		return "UNION"
	}
}

func (e *mysqlEmitter) setOperand(stmt *pg_query.SelectStmt, right bool) string {
	text := e.selectStmt(stmt)
	if stmt == nil {
		return text
	}
	nested := stmt.GetOp() != pg_query.SetOperation_SETOP_NONE
	if len(stmt.GetSortClause()) > 0 || stmt.GetLimitCount() != nil || stmt.GetLimitOffset() != nil || stmt.GetWithClause() != nil || (right && nested) {
		return "(" + text + ")"
	}
	return text
}

func (e *mysqlEmitter) simpleSelect(stmt *pg_query.SelectStmt) string {
	var b strings.Builder
	b.WriteString("SELECT ")

	if distinct := stmt.GetDistinctClause(); len(distinct) > 0 {
		for _, item := range distinct {
			if item != nil && item.GetNode() != nil {
				return e.unsupported("DISTINCT ON")
			}
		}
		b.WriteString("DISTINCT ")
	}

	targets := make([]string, 0, len(stmt.GetTargetList()))
	for _, target := range stmt.GetTargetList() {
		targets = append(targets, e.resTarget(target))
	}
	b.WriteString(strings.Join(targets, ", "))

	if from := stmt.GetFromClause(); len(from) > 0 {
		items := make([]string, 0, len(from))
		for _, item := range from {
			items = append(items, e.fromItem(item))
		}
		b.WriteString(" FROM ")
		b.WriteString(strings.Join(items, ", "))
	}
	if where := stmt.GetWhereClause(); where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(e.expr(where))
	}
	if group := stmt.GetGroupClause(); len(group) > 0 {
		if stmt.GetGroupDistinct() {
			return e.unsupported("GROUP BY DISTINCT")
		}
		items := make([]string, 0, len(group))
		for _, item := range group {
			if item.GetGroupingSet() != nil {
				return e.unsupported("grouping sets")
			}
			items = append(items, e.expr(item))
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(items, ", "))
	}
	if having := stmt.GetHavingClause(); having != nil {
		b.WriteString(" HAVING ")
		b.WriteString(e.expr(having))
	}
	if len(stmt.GetWindowClause()) > 0 {
		return e.unsupported("named WINDOW clauses")
	}
	return b.String()
}

func (e *mysqlEmitter) resTarget(node *pg_query.Node) string {
	target := node.GetResTarget()
	if target == nil {
		return e.unsupported("select target %s", nodeName(node))
	}
	if len(target.GetIndirection()) > 0 {
		return e.unsupported("subscripted select target")
	}
	out := e.expr(target.GetVal())
	if name := target.GetName(); name != "" {
		out += " AS " + quoteIdent(name)
	}
	return out
}

func (e *mysqlEmitter) withClause(with *pg_query.WithClause) string {
	parts := make([]string, 0, len(with.GetCtes()))
	for _, node := range with.GetCtes() {
		cte := node.GetCommonTableExpr()
		if cte == nil {
			return e.unsupported("WITH item %s", nodeName(node))
		}
		body := cte.GetCtequery().GetSelectStmt()
		if body == nil {
			return e.unsafe("data-modifying WITH %s (%s)", cte.GetCtename(), nodeName(cte.GetCtequery()))
		}
		if cte.GetSearchClause() != nil || cte.GetCycleClause() != nil {
			return e.unsupported("SEARCH or CYCLE in recursive WITH")
		}
		part := quoteIdent(cte.GetCtename())
		if cols := cte.GetAliascolnames(); len(cols) > 0 {
			part += " (" + e.identList(cols) + ")"
		}
		part += " AS (" + e.selectStmt(body) + ")"
		parts = append(parts, part)
	}
	keyword := "WITH "
	if with.GetRecursive() {
		keyword = "WITH RECURSIVE "
	}
	return keyword + strings.Join(parts, ", ")
}

func (e *mysqlEmitter) orderAndLimit(stmt *pg_query.SelectStmt) string {
	var b strings.Builder
	if sort := stmt.GetSortClause(); len(sort) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(e.sortList(sort))
	}
	if stmt.GetLimitOption() == pg_query.LimitOption_LIMIT_OPTION_WITH_TIES {
		return e.unsupported("FETCH ... WITH TIES")
	}

	limit := ""
	if count := stmt.GetLimitCount(); count != nil && !isNullConst(count) {
		limit = e.expr(count)
	}
	if offset := stmt.GetLimitOffset(); offset != nil {
		if limit == "" {
			limit = mysqlMaxLimit
		}
		b.WriteString(" LIMIT " + limit + " OFFSET " + e.expr(offset))
	} else if limit != "" {
		b.WriteString(" LIMIT " + limit)
	}
	return b.String()
}

func (e *mysqlEmitter) sortList(items []*pg_query.Node) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, e.sortBy(item))
	}
	return strings.Join(parts, ", ")
}

func (e *mysqlEmitter) sortBy(node *pg_query.Node) string {
	sort := node.GetSortBy()
	if sort == nil {
		return e.unsupported("sort item %s", nodeName(node))
	}
	direction := ""
	switch sort.GetSortbyDir() {
	case pg_query.SortByDir_SORTBY_ASC:
		direction = " ASC"
	case pg_query.SortByDir_SORTBY_DESC:
		direction = " DESC"
	case pg_query.SortByDir_SORTBY_USING:
		return e.unsupported("ORDER BY ... USING")
	}

	key := e.expr(sort.GetNode())
	switch sort.GetSortbyNulls() {
	case pg_query.SortByNulls_SORTBY_NULLS_FIRST, pg_query.SortByNulls_SORTBY_NULLS_LAST:
		if sort.GetNode().GetAConst() != nil {
			return e.unsupported("NULLS FIRST/LAST on a positional ORDER BY")
		}
		nullOrder := " IS NULL ASC"
		if sort.GetSortbyNulls() == pg_query.SortByNulls_SORTBY_NULLS_FIRST {
			nullOrder = " IS NULL DESC"
		}
		return key + nullOrder + ", " + key + direction
	}
	return key + direction
}

func (e *mysqlEmitter) fromItem(node *pg_query.Node) string {
	switch item := node.GetNode().(type) {
	case *pg_query.Node_RangeVar:
		return e.rangeVar(item.RangeVar)
	case *pg_query.Node_JoinExpr:
		return e.joinExpr(item.JoinExpr)
	case *pg_query.Node_RangeSubselect:
		return e.rangeSubselect(item.RangeSubselect)
	default:
		return e.unsupported("FROM item %s", nodeName(node))
	}
}

func (e *mysqlEmitter) rangeVar(rv *pg_query.RangeVar) string {
	if rv.GetCatalogname() != "" {
		return e.unsupported("catalog-qualified table %s", rv.GetRelname())
	}
	out := quoteIdent(rv.GetRelname())
	if schema := rv.GetSchemaname(); schema != "" {
		out = quoteIdent(schema) + "." + out
	}
	if alias := rv.GetAlias(); alias != nil {
		if len(alias.GetColnames()) > 0 {
			return e.unsupported("column aliases on table %s", rv.GetRelname())
		}
		out += " AS " + quoteIdent(alias.GetAliasname())
	}
	return out
}

func (e *mysqlEmitter) joinExpr(join *pg_query.JoinExpr) string {
	if join.GetAlias() != nil || join.GetJoinUsingAlias() != nil {
		return e.unsupported("aliased join")
	}

	left := e.fromItem(join.GetLarg())
	right := e.fromItem(join.GetRarg())
	if join.GetRarg().GetJoinExpr() != nil {
		right = "(" + right + ")"
	}

	hasCondition := join.GetQuals() != nil || len(join.GetUsingClause()) > 0
	var keyword string
	switch join.GetJointype() {
	case pg_query.JoinType_JOIN_INNER:
		keyword = "JOIN"
		if !hasCondition && !join.GetIsNatural() {
			keyword = "CROSS JOIN"
		}
	case pg_query.JoinType_JOIN_LEFT:
		keyword = "LEFT JOIN"
	case pg_query.JoinType_JOIN_RIGHT:
		keyword = "RIGHT JOIN"
	case pg_query.JoinType_JOIN_FULL:
		return e.unsupported("FULL OUTER JOIN")
	default:
		return e.unsupported("join type %s", join.GetJointype())
	}
	if join.GetIsNatural() {
		keyword = "NATURAL " + keyword
	}

	out := left + " " + keyword + " " + right
	if using := join.GetUsingClause(); len(using) > 0 {
		out += " USING (" + e.identList(using) + ")"
	} else if quals := join.GetQuals(); quals != nil {
		out += " ON " + e.expr(quals)
	}
	return out
}

func (e *mysqlEmitter) rangeSubselect(sub *pg_query.RangeSubselect) string {
	body := sub.GetSubquery().GetSelectStmt()
	if body == nil {
		return e.unsupported("derived table %s", nodeName(sub.GetSubquery()))
	}
	out := "(" + e.selectStmt(body) + ")"
	if sub.GetLateral() {
		out = "LATERAL " + out
	}
	alias := sub.GetAlias()
	if alias == nil {
		// MySQL requires every derived table to have a name.
		e.derivedSeq++
		return out + " AS derived_" + strconv.Itoa(e.derivedSeq)
	}
	out += " AS " + quoteIdent(alias.GetAliasname())
	if cols := alias.GetColnames(); len(cols) > 0 {
		out += " (" + e.identList(cols) + ")"
	}
	return out
}

func (e *mysqlEmitter) identList(nodes []*pg_query.Node) string {
	names := make([]string, 0, len(nodes))
	for _, node := range nodes {
		str := node.GetString_()
		if str == nil {
			return e.unsupported("identifier %s", nodeName(node))
		}
		names = append(names, quoteIdent(str.GetSval()))
	}
	return strings.Join(names, ", ")
}

func (e *mysqlEmitter) exprList(nodes []*pg_query.Node) string {
	parts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		parts = append(parts, e.expr(node))
	}
	return strings.Join(parts, ", ")
}

func (e *mysqlEmitter) expr(node *pg_query.Node) string {
	if node == nil || node.GetNode() == nil {
		return e.unsupported("missing expression")
	}
	switch n := node.GetNode().(type) {
	case *pg_query.Node_ColumnRef:
		return e.columnRef(n.ColumnRef)
	case *pg_query.Node_AConst:
		return e.constant(n.AConst)
	case *pg_query.Node_AExpr:
		return e.aExpr(n.AExpr)
	case *pg_query.Node_BoolExpr:
		return e.boolExpr(n.BoolExpr)
	case *pg_query.Node_FuncCall:
		return e.funcCall(n.FuncCall)
	case *pg_query.Node_TypeCast:
		return e.typeCast(n.TypeCast)
	case *pg_query.Node_NullTest:
		if n.NullTest.GetNulltesttype() == pg_query.NullTestType_IS_NOT_NULL {
			return e.operand(n.NullTest.GetArg()) + " IS NOT NULL"
		}
		return e.operand(n.NullTest.GetArg()) + " IS NULL"
	case *pg_query.Node_BooleanTest:
		return e.booleanTest(n.BooleanTest)
	case *pg_query.Node_CaseExpr:
		return e.caseExpr(n.CaseExpr)
	case *pg_query.Node_CoalesceExpr:
		return "COALESCE(" + e.exprList(n.CoalesceExpr.GetArgs()) + ")"
	case *pg_query.Node_MinMaxExpr:
		name := "GREATEST"
		if n.MinMaxExpr.GetOp() == pg_query.MinMaxOp_IS_LEAST {
			name = "LEAST"
		}
		return name + "(" + e.exprList(n.MinMaxExpr.GetArgs()) + ")"
	case *pg_query.Node_SubLink:
		return e.subLink(n.SubLink)
	case *pg_query.Node_SqlvalueFunction:
		return e.sqlValueFunction(n.SqlvalueFunction)
	case *pg_query.Node_RowExpr:
		return "(" + e.exprList(n.RowExpr.GetArgs()) + ")"
	case *pg_query.Node_AStar:
		return "*"
	case *pg_query.Node_ParamRef:
		return e.unsupported("query parameters")
	case *pg_query.Node_AArrayExpr:
		return e.unsupported("array constructors")
	default:
		return e.unsupported("expression %s", nodeName(node))
	}
}

// operand renders an operator argument, parenthesizing anything that could
// bind differently under MySQL precedence.
func (e *mysqlEmitter) operand(node *pg_query.Node) string {
	text := e.expr(node)
	switch n := node.GetNode().(type) {
	case *pg_query.Node_BoolExpr, *pg_query.Node_NullTest, *pg_query.Node_BooleanTest:
		return "(" + text + ")"
	case *pg_query.Node_AExpr:
		if n.AExpr.GetKind() == pg_query.A_Expr_Kind_AEXPR_OP && n.AExpr.GetLexpr() == nil {
			return text
		}
		if n.AExpr.GetKind() == pg_query.A_Expr_Kind_AEXPR_OP && operatorName(n.AExpr.GetName()) == "||" {
			return text
		}
		return "(" + text + ")"
	case *pg_query.Node_SubLink:
		if n.SubLink.GetSubLinkType() != pg_query.SubLinkType_EXPR_SUBLINK {
			return "(" + text + ")"
		}
	}
	return text
}

func (e *mysqlEmitter) columnRef(ref *pg_query.ColumnRef) string {
	parts := make([]string, 0, len(ref.GetFields()))
	for _, field := range ref.GetFields() {
		switch f := field.GetNode().(type) {
		case *pg_query.Node_String_:
			parts = append(parts, quoteIdent(f.String_.GetSval()))
		case *pg_query.Node_AStar:
			parts = append(parts, "*")
		default:
			return e.unsupported("column reference part %s", nodeName(field))
		}
	}
	return strings.Join(parts, ".")
}

func (e *mysqlEmitter) constant(c *pg_query.A_Const) string {
	if c.GetIsnull() {
		return "NULL"
	}
	switch v := c.GetVal().(type) {
	case *pg_query.A_Const_Ival:
		return strconv.FormatInt(int64(v.Ival.GetIval()), 10)
	case *pg_query.A_Const_Fval:
		return v.Fval.GetFval()
	case *pg_query.A_Const_Boolval:
		if v.Boolval.GetBoolval() {
			return "1"
		}
		return "0"
	case *pg_query.A_Const_Sval:
		return quoteString(v.Sval.GetSval())
	case *pg_query.A_Const_Bsval:
		return bitStringLiteral(v.Bsval.GetBsval())
	default:
		return e.unsupported("constant of type %T", c.GetVal())
	}
}

func isNullConst(node *pg_query.Node) bool {
	c := node.GetAConst()
	return c != nil && c.GetIsnull()
}

func operatorName(names []*pg_query.Node) string {
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1].GetString_().GetSval()
}

func (e *mysqlEmitter) aExpr(a *pg_query.A_Expr) string {
	op := operatorName(a.GetName())
	switch a.GetKind() {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		if a.GetLexpr() == nil {
			return e.prefixOperator(op, a.GetRexpr())
		}
		return e.binaryOperator(op, a.GetLexpr(), a.GetRexpr())
	case pg_query.A_Expr_Kind_AEXPR_OP_ANY, pg_query.A_Expr_Kind_AEXPR_OP_ALL:
		return e.arrayComparison(a, op)
	case pg_query.A_Expr_Kind_AEXPR_DISTINCT:
		return "NOT (" + e.operand(a.GetLexpr()) + " <=> " + e.operand(a.GetRexpr()) + ")"
	case pg_query.A_Expr_Kind_AEXPR_NOT_DISTINCT:
		return e.operand(a.GetLexpr()) + " <=> " + e.operand(a.GetRexpr())
	case pg_query.A_Expr_Kind_AEXPR_NULLIF:
		return "NULLIF(" + e.expr(a.GetLexpr()) + ", " + e.expr(a.GetRexpr()) + ")"
	case pg_query.A_Expr_Kind_AEXPR_IN:
		list := a.GetRexpr().GetList()
		if list == nil {
			return e.unsupported("IN with %s", nodeName(a.GetRexpr()))
		}
		keyword := " IN ("
		if op == "<>" {
			keyword = " NOT IN ("
		}
		return e.operand(a.GetLexpr()) + keyword + e.exprList(list.GetItems()) + ")"
	case pg_query.A_Expr_Kind_AEXPR_LIKE:
		return e.like(a, strings.HasPrefix(op, "!"), false)
	case pg_query.A_Expr_Kind_AEXPR_ILIKE:
		return e.like(a, strings.HasPrefix(op, "!"), true)
	case pg_query.A_Expr_Kind_AEXPR_SIMILAR:
		return e.unsupported("SIMILAR TO")
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN:
		bounds := a.GetRexpr().GetList().GetItems()
		if len(bounds) != 2 {
			return e.unsupported("BETWEEN with %d bounds", len(bounds))
		}
		keyword := " BETWEEN "
		if a.GetKind() == pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN {
			keyword = " NOT BETWEEN "
		}
		return e.operand(a.GetLexpr()) + keyword + e.operand(bounds[0]) + " AND " + e.operand(bounds[1])
	default:
		return e.unsupported("operator kind %s", a.GetKind())
	}
}

func (e *mysqlEmitter) prefixOperator(op string, arg *pg_query.Node) string {
	switch op {
	case "-", "+", "~":
		return op + e.operand(arg)
	case "@":
		return "ABS(" + e.expr(arg) + ")"
	default:
		return e.unsupported("prefix operator %s", op)
	}
}

func (e *mysqlEmitter) binaryOperator(op string, left, right *pg_query.Node) string {
	switch op {
	case "=", "<", ">", "<=", ">=", "+", "-", "*", "/", "%", "&", "|", "<<", ">>":
		return e.operand(left) + " " + op + " " + e.operand(right)
	case "<>", "!=":
		return e.operand(left) + " <> " + e.operand(right)
	case "||":
		return "CONCAT(" + e.exprList(e.concatArgs(left, right)) + ")"
	case "^":
		return "POWER(" + e.expr(left) + ", " + e.expr(right) + ")"
	case "~~":
		return e.operand(left) + " LIKE " + e.operand(right)
	case "!~~":
		return e.operand(left) + " NOT LIKE " + e.operand(right)
	case "~~*":
		return "LOWER(" + e.expr(left) + ") LIKE LOWER(" + e.expr(right) + ")"
	case "!~~*":
		return "LOWER(" + e.expr(left) + ") NOT LIKE LOWER(" + e.expr(right) + ")"
	case "~":
		return "REGEXP_LIKE(" + e.expr(left) + ", " + e.expr(right) + ", 'c')"
	case "~*":
		return "REGEXP_LIKE(" + e.expr(left) + ", " + e.expr(right) + ", 'i')"
	case "!~":
		return "NOT REGEXP_LIKE(" + e.expr(left) + ", " + e.expr(right) + ", 'c')"
	case "!~*":
		return "NOT REGEXP_LIKE(" + e.expr(left) + ", " + e.expr(right) + ", 'i')"
	default:
		return e.unsupported("operator %s", op)
	}
}

// concatArgs flattens a chain of || into one argument list.
func (e *mysqlEmitter) concatArgs(nodes ...*pg_query.Node) []*pg_query.Node {
	out := make([]*pg_query.Node, 0, len(nodes))
	for _, node := range nodes {
		if inner := node.GetAExpr(); inner != nil && inner.GetKind() == pg_query.A_Expr_Kind_AEXPR_OP && inner.GetLexpr() != nil && operatorName(inner.GetName()) == "||" {
			out = append(out, e.concatArgs(inner.GetLexpr(), inner.GetRexpr())...)
			continue
		}
		out = append(out, node)
	}
	return out
}

func (e *mysqlEmitter) like(a *pg_query.A_Expr, negated, caseInsensitive bool) string {
	pattern := a.GetRexpr()
	escape := ""
	if call := pattern.GetFuncCall(); call != nil && functionName(call.GetFuncname()) == "like_escape" {
		args := call.GetArgs()
		if len(args) != 2 {
			return e.unsupported("LIKE ... ESCAPE with %d arguments", len(args))
		}
		pattern = args[0]
		escape = " ESCAPE " + e.expr(args[1])
	}

	keyword := " LIKE "
	if negated {
		keyword = " NOT LIKE "
	}
	if caseInsensitive {
		return "LOWER(" + e.expr(a.GetLexpr()) + ")" + keyword + "LOWER(" + e.expr(pattern) + ")" + escape
	}
	return e.operand(a.GetLexpr()) + keyword + e.operand(pattern) + escape
}

func (e *mysqlEmitter) arrayComparison(a *pg_query.A_Expr, op string) string {
	array := a.GetRexpr().GetAArrayExpr()
	if array == nil {
		return e.unsupported("%s against a non-literal array", op)
	}
	isAny := a.GetKind() == pg_query.A_Expr_Kind_AEXPR_OP_ANY
	switch {
	case isAny && op == "=":
		return e.operand(a.GetLexpr()) + " IN (" + e.exprList(array.GetElements()) + ")"
	case !isAny && (op == "<>" || op == "!="):
		return e.operand(a.GetLexpr()) + " NOT IN (" + e.exprList(array.GetElements()) + ")"
	default:
		return e.unsupported("%s with array operand", op)
	}
}

func (e *mysqlEmitter) boolExpr(b *pg_query.BoolExpr) string {
	args := b.GetArgs()
	switch b.GetBoolop() {
	case pg_query.BoolExprType_AND_EXPR, pg_query.BoolExprType_OR_EXPR:
		keyword := " AND "
		if b.GetBoolop() == pg_query.BoolExprType_OR_EXPR {
			keyword = " OR "
		}
		parts := make([]string, 0, len(args))
		for _, arg := range args {
			text := e.expr(arg)
			if child := arg.GetBoolExpr(); child != nil && child.GetBoolop() != b.GetBoolop() && child.GetBoolop() != pg_query.BoolExprType_NOT_EXPR {
				text = "(" + text + ")"
			}
			parts = append(parts, text)
		}
		return strings.Join(parts, keyword)
	case pg_query.BoolExprType_NOT_EXPR:
		if len(args) != 1 {
			return e.unsupported("NOT with %d arguments", len(args))
		}
		arg := args[0]
		text := e.expr(arg)
		switch {
		case arg.GetColumnRef() != nil, arg.GetFuncCall() != nil, arg.GetAConst() != nil:
			return "NOT " + text
		case arg.GetSubLink() != nil && arg.GetSubLink().GetSubLinkType() == pg_query.SubLinkType_EXISTS_SUBLINK:
			return "NOT " + text
		}
		return "NOT (" + text + ")"
	default:
		return e.unsupported("boolean operator %s", b.GetBoolop())
	}
}

func (e *mysqlEmitter) booleanTest(test *pg_query.BooleanTest) string {
	arg := e.operand(test.GetArg())
	switch test.GetBooltesttype() {
	case pg_query.BoolTestType_IS_TRUE:
		return arg + " IS TRUE"
	case pg_query.BoolTestType_IS_NOT_TRUE:
		return arg + " IS NOT TRUE"
	case pg_query.BoolTestType_IS_FALSE:
		return arg + " IS FALSE"
	case pg_query.BoolTestType_IS_NOT_FALSE:
		return arg + " IS NOT FALSE"
	case pg_query.BoolTestType_IS_UNKNOWN:
		return arg + " IS NULL"
	case pg_query.BoolTestType_IS_NOT_UNKNOWN:
		return arg + " IS NOT NULL"
	default:
		return e.unsupported("boolean test %s", test.GetBooltesttype())
	}
}

func (e *mysqlEmitter) caseExpr(c *pg_query.CaseExpr) string {
	var b strings.Builder
	b.WriteString("CASE")
	if arg := c.GetArg(); arg != nil {
		b.WriteString(" " + e.expr(arg))
	}
	for _, node := range c.GetArgs() {
		when := node.GetCaseWhen()
		if when == nil {
			return e.unsupported("CASE branch %s", nodeName(node))
		}
		b.WriteString(" WHEN " + e.expr(when.GetExpr()) + " THEN " + e.expr(when.GetResult()))
	}
	if def := c.GetDefresult(); def != nil {
		b.WriteString(" ELSE " + e.expr(def))
	}
	b.WriteString(" END")
	return b.String()
}

func (e *mysqlEmitter) subLink(link *pg_query.SubLink) string {
	body := link.GetSubselect().GetSelectStmt()
	if body == nil {
		return e.unsupported("subquery %s", nodeName(link.GetSubselect()))
	}
	sub := "(" + e.selectStmt(body) + ")"

	switch link.GetSubLinkType() {
	case pg_query.SubLinkType_EXISTS_SUBLINK:
		return "EXISTS " + sub
	case pg_query.SubLinkType_EXPR_SUBLINK:
		return sub
	case pg_query.SubLinkType_ANY_SUBLINK:
		if len(link.GetOperName()) == 0 {
			return e.operand(link.GetTestexpr()) + " IN " + sub
		}
		return e.operand(link.GetTestexpr()) + " " + comparisonOperator(operatorName(link.GetOperName())) + " ANY " + sub
	case pg_query.SubLinkType_ALL_SUBLINK:
		return e.operand(link.GetTestexpr()) + " " + comparisonOperator(operatorName(link.GetOperName())) + " ALL " + sub
	default:
		return e.unsupported("subquery kind %s", link.GetSubLinkType())
	}
}

func comparisonOperator(op string) string {
	if op == "!=" {
		return "<>"
	}
	return op
}

func (e *mysqlEmitter) sqlValueFunction(fn *pg_query.SQLValueFunction) string {
	switch fn.GetOp() {
	case pg_query.SQLValueFunctionOp_SVFOP_CURRENT_DATE:
		return "CURRENT_DATE"
	case pg_query.SQLValueFunctionOp_SVFOP_CURRENT_TIME:
		return "CURRENT_TIME"
	case pg_query.SQLValueFunctionOp_SVFOP_CURRENT_TIMESTAMP:
		return "CURRENT_TIMESTAMP"
	case pg_query.SQLValueFunctionOp_SVFOP_LOCALTIME:
		return "LOCALTIME"
	case pg_query.SQLValueFunctionOp_SVFOP_LOCALTIMESTAMP:
		return "LOCALTIMESTAMP"
	default:
		return e.unsupported("SQL value function %s", fn.GetOp())
	}
}

var intervalPattern = regexp.MustCompile(`^\s*([+-]?\d+)\s*([A-Za-z]+)\s*$`)

var intervalUnits = map[string]string{
	"microsecond": "MICROSECOND",
	"second":      "SECOND",
	"sec":         "SECOND",
	"minute":      "MINUTE",
	"min":         "MINUTE",
	"hour":        "HOUR",
	"hr":          "HOUR",
	"day":         "DAY",
	"week":        "WEEK",
	"month":       "MONTH",
	"mon":         "MONTH",
	"quarter":     "QUARTER",
	"year":        "YEAR",
	"yr":          "YEAR",
}

func (e *mysqlEmitter) typeCast(cast *pg_query.TypeCast) string {
	typeName := cast.GetTypeName()
	if len(typeName.GetArrayBounds()) > 0 {
		return e.unsupported("array casts")
	}
	name := functionName(typeName.GetNames())

	switch name {
	case "bool", "boolean":
		if str := cast.GetArg().GetAConst().GetSval(); str != nil {
			return e.booleanLiteral(str.GetSval())
		}
		return e.expr(cast.GetArg())
	case "interval":
		return e.interval(cast)
	}

	target, ok := mysqlCastTypes[name]
	if !ok {
		return e.unsupported("cast to %s", name)
	}
	if target == "DECIMAL" {
		if mods := e.typmods(typeName.GetTypmods()); len(mods) > 0 {
			target += "(" + strings.Join(mods, ", ") + ")"
		}
	}
	return "CAST(" + e.expr(cast.GetArg()) + " AS " + target + ")"
}

var mysqlCastTypes = map[string]string{
	"int2":        "SIGNED",
	"int4":        "SIGNED",
	"int8":        "SIGNED",
	"int":         "SIGNED",
	"integer":     "SIGNED",
	"smallint":    "SIGNED",
	"bigint":      "SIGNED",
	"numeric":     "DECIMAL",
	"decimal":     "DECIMAL",
	"float4":      "FLOAT",
	"real":        "FLOAT",
	"float8":      "DOUBLE",
	"text":        "CHAR",
	"varchar":     "CHAR",
	"bpchar":      "CHAR",
	"char":        "CHAR",
	"date":        "DATE",
	"timestamp":   "DATETIME",
	"timestamptz": "DATETIME",
	"time":        "TIME",
	"timetz":      "TIME",
	"json":        "JSON",
	"jsonb":       "JSON",
}

func (e *mysqlEmitter) typmods(nodes []*pg_query.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		value := node.GetAConst().GetIval()
		if value == nil {
			e.unsupported("type modifier %s", nodeName(node))
			return nil
		}
		out = append(out, strconv.FormatInt(int64(value.GetIval()), 10))
	}
	return out
}

func (e *mysqlEmitter) booleanLiteral(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "t", "true", "y", "yes", "on", "1":
		return "1"
	case "f", "false", "n", "no", "off", "0":
		return "0"
	default:
		return e.unsupported("boolean literal %q", value)
	}
}

func (e *mysqlEmitter) interval(cast *pg_query.TypeCast) string {
	if len(cast.GetTypeName().GetTypmods()) > 0 {
		return e.unsupported("interval field qualifiers")
	}
	str := cast.GetArg().GetAConst().GetSval()
	if str == nil {
		return e.unsupported("non-literal interval")
	}
	match := intervalPattern.FindStringSubmatch(str.GetSval())
	if match == nil {
		return e.unsupported("interval %q", str.GetSval())
	}
	unitName := strings.ToLower(match[2])
	unit, ok := intervalUnits[unitName]
	if !ok {
		unit, ok = intervalUnits[strings.TrimSuffix(unitName, "s")]
	}
	if !ok {
		return e.unsupported("interval unit %q", match[2])
	}
	return "INTERVAL " + strings.TrimPrefix(match[1], "+") + " " + unit
}
