package repository

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/vxgate/vxgate/internal/document"
)

const documentsTable = "documents"

// dialect captures the differences between the SQL document stores.
type dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	// fieldExpr returns the SQL expression extracting a top-level JSON field.
	fieldExpr func(field string) string
	// param wraps a bound value placeholder, e.g. "?::jsonb".
	param string
	// bind converts a filter value into the driver argument compared with fieldExpr.
	bind func(v any) (any, error)
	// isNull matches a missing or JSON null field.
	isNull  func(expr string) string
	ascNull string
	dscNull string
	docIn   string
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: sq.Dollar,
	fieldExpr: func(field string) string {
		return "doc->" + pq.QuoteLiteral(field)
	},
	param: "?::jsonb",
	bind: func(v any) (any, error) {
		raw, err := json.Marshal(normalizeValue(v))
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	},
	isNull: func(expr string) string {
		return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", expr, expr)
	},
	ascNull: " NULLS FIRST",
	dscNull: " NULLS LAST",
	docIn:   "?::jsonb",
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: sq.Question,
	fieldExpr: func(field string) string {
		return "json_extract(doc, " + pq.QuoteLiteral("$."+field) + ")"
	},
	param: "?",
	bind:  sqliteValue,
	isNull: func(expr string) string {
		return expr + " IS NULL"
	},
	docIn: "json(?)",
}

// sqliteValue converts v to the scalar json_extract yields for the same JSON value.
func sqliteValue(v any) (any, error) {
	switch t := normalizeValue(v).(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return t.Float64()
	case string, int, int64, int32, float64, float32:
		return t, nil
	default:
		return nil, fmt.Errorf("sqlite filters support scalar values only, got %T", v)
	}
}

type queryBuilder struct {
	d  dialect
	sb sq.StatementBuilderType
}

func newQueryBuilder(d dialect) queryBuilder {
	return queryBuilder{d: d, sb: sq.StatementBuilder.PlaceholderFormat(d.placeholder)}
}

func (q queryBuilder) expr(field string) string {
	if field == document.IDField {
		return "id"
	}
	return q.d.fieldExpr(field)
}

func (q queryBuilder) condition(c Condition) (sq.Sqlizer, error) {
	if err := ValidateField(c.Field); err != nil {
		return nil, err
	}

	if c.Field == document.IDField {
		return idCondition(c)
	}

	expr := q.expr(c.Field)

	if c.Value == nil && (c.Op == OpEq || c.Op == OpNe) {
		if c.Op == OpEq {
			return sq.Expr(q.d.isNull(expr)), nil
		}
		return sq.Expr("NOT " + q.d.isNull(expr)), nil
	}

	switch c.Op {
	case OpIn:
		items, ok := c.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("operator in on %q needs a []any value", c.Field)
		}
		if len(items) == 0 {
			return sq.Expr("1 = 0"), nil
		}
		args := make([]any, 0, len(items))
		for _, item := range items {
			arg, err := q.d.bind(item)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		marks := strings.TrimSuffix(strings.Repeat(q.d.param+", ", len(items)), ", ")
		return sq.Expr(fmt.Sprintf("%s IN (%s)", expr, marks), args...), nil
	case OpNe:
		arg, err := q.d.bind(c.Value)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("(%s OR %s <> %s)", q.d.isNull(expr), expr, q.d.param), arg), nil
	}

	sqlOp, err := comparison(c.Op)
	if err != nil {
		return nil, err
	}
	arg, err := q.d.bind(c.Value)
	if err != nil {
		return nil, err
	}
	return sq.Expr(fmt.Sprintf("%s %s %s", expr, sqlOp, q.d.param), arg), nil
}

func idCondition(c Condition) (sq.Sqlizer, error) {
	switch c.Op {
	case OpEq:
		return sq.Eq{"id": c.Value}, nil
	case OpNe:
		return sq.NotEq{"id": c.Value}, nil
	case OpLt:
		return sq.Lt{"id": c.Value}, nil
	case OpLte:
		return sq.LtOrEq{"id": c.Value}, nil
	case OpGt:
		return sq.Gt{"id": c.Value}, nil
	case OpGte:
		return sq.GtOrEq{"id": c.Value}, nil
	case OpIn:
		items, ok := c.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("operator in on %q needs a []any value", c.Field)
		}
		if len(items) == 0 {
			return sq.Expr("1 = 0"), nil
		}
		return sq.Eq{"id": items}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", c.Op)
}

func comparison(op Op) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpLt:
		return "<", nil
	case OpLte:
		return "<=", nil
	case OpGt:
		return ">", nil
	case OpGte:
		return ">=", nil
	}
	return "", fmt.Errorf("unsupported operator %q", op)
}

func (q queryBuilder) where(collection string, filter Filter) (sq.And, error) {
	conds := sq.And{sq.Eq{"collection": collection}}
	for _, c := range filter {
		cond, err := q.condition(c)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func (q queryBuilder) selectDocs(collection string, filter Filter, opts FindOptions) (string, []any, error) {
	where, err := q.where(collection, filter)
	if err != nil {
		return "", nil, err
	}

	b := q.sb.Select("id", "doc").From(documentsTable).Where(where)

	for _, sf := range opts.Sort {
		if err := ValidateField(sf.Field); err != nil {
			return "", nil, err
		}
		if sf.Desc {
			b = b.OrderBy(q.expr(sf.Field) + " DESC" + q.d.dscNull)
		} else {
			b = b.OrderBy(q.expr(sf.Field) + " ASC" + q.d.ascNull)
		}
	}
	b = b.OrderBy("id ASC")

	switch {
	case opts.Limit > 0:
		b = b.Limit(uint64(opts.Limit))
	case opts.Skip > 0:
		// OFFSET without LIMIT is not valid in every dialect.
		b = b.Limit(math.MaxInt64)
	}
	if opts.Skip > 0 {
		b = b.Offset(uint64(opts.Skip))
	}

	return b.ToSql()
}

func (q queryBuilder) countDocs(collection string, filter Filter) (string, []any, error) {
	where, err := q.where(collection, filter)
	if err != nil {
		return "", nil, err
	}
	return q.sb.Select("COUNT(*)").From(documentsTable).Where(where).ToSql()
}

func (q queryBuilder) deleteDocs(collection string, filter Filter) (string, []any, error) {
	where, err := q.where(collection, filter)
	if err != nil {
		return "", nil, err
	}
	return q.sb.Delete(documentsTable).Where(where).ToSql()
}

func (q queryBuilder) upsertDoc(collection, id string, raw []byte) (string, []any, error) {
	return q.sb.Insert(documentsTable).
		Columns("collection", "id", "doc").
		Values(collection, id, sq.Expr(q.d.docIn, string(raw))).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET doc = excluded.doc").
		ToSql()
}
