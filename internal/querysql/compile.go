// Package querysql compiles queryir queries to parameterized SQL.
//
// CRITICAL: values are never interpolated into the SQL text. Every literal,
// including LIMIT and OFFSET, is bound as a parameter. Identifiers are
// checked with queryir.Validate before rendering.
package querysql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/querier/internal/queryir"
)

// Dialect selects the placeholder style.
type Dialect int

const (
	// SQLite uses "?" placeholders.
	SQLite Dialect = iota

	// Postgres uses "$1", "$2", ... placeholders.
	Postgres
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// ParseDialect parses a dialect name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	default:
		return 0, fmt.Errorf("unknown SQL dialect %q", name)
	}
}

// Compiler compiles queryir queries.
type Compiler struct {
	Dialect Dialect

	// TieBreaker is appended to every ORDER BY (and used alone when the query
	// has none) so pages are stable. Empty disables it.
	TieBreaker string
}

// NewCompiler creates a Compiler for dialect.
func NewCompiler(dialect Dialect) *Compiler {
	return &Compiler{Dialect: dialect}
}

// Compile converts a query to SQL and its parameters.
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	result := queryir.Validate(q)
	if !result.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(result.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// compilation accumulates parameters for one statement.
type compilation struct {
	dialect Dialect
	params  []any
}

// bind records a parameter and returns its placeholder.
func (c *compilation) bind(v any) string {
	c.params = append(c.params, v)
	if c.dialect == Postgres {
		return "$" + strconv.Itoa(len(c.params))
	}
	return "?"
}

func (c *Compiler) compileSelect(q queryir.Select) (string, []any, error) {
	comp := &compilation{dialect: c.Dialect}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.Columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(q.From)

	if q.Filter != nil {
		where, err := comp.predicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if orderBy := c.orderBy(q.OrderBy); orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}

	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ")
		b.WriteString(comp.bind(int64(q.Limit)))
		b.WriteString(" OFFSET ")
		b.WriteString(comp.bind(int64(q.Offset)))
	case q.Offset > 0 && c.Dialect == SQLite:
		// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
		b.WriteString(" LIMIT -1 OFFSET ")
		b.WriteString(comp.bind(int64(q.Offset)))
	case q.Offset > 0:
		b.WriteString(" OFFSET ")
		b.WriteString(comp.bind(int64(q.Offset)))
	}

	return b.String(), comp.params, nil
}

func (c *Compiler) orderBy(orders []queryir.Order) string {
	parts := make([]string, 0, len(orders)+1)
	tieBroken := c.TieBreaker == ""
	for _, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, o.Field+" "+dir)
		if o.Field == c.TieBreaker {
			tieBroken = true
		}
	}
	if !tieBroken {
		parts = append(parts, c.TieBreaker+" ASC")
	}
	return strings.Join(parts, ", ")
}

func (c *compilation) predicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return c.compare(pred)
	case queryir.In:
		return c.in(pred)
	case queryir.Like:
		op := "LIKE"
		if pred.Negate {
			op = "NOT LIKE"
		}
		return pred.Field + " " + op + " " + c.bind(pred.Pattern), nil
	case queryir.IsNull:
		if pred.Negate {
			return pred.Field + " IS NOT NULL", nil
		}
		return pred.Field + " IS NULL", nil
	case queryir.And:
		return c.and(pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *compilation) compare(cmp queryir.Compare) (string, error) {
	if cmp.Value == nil {
		switch cmp.Op {
		case queryir.OpEq:
			return cmp.Field + " IS NULL", nil
		case queryir.OpNe:
			return cmp.Field + " IS NOT NULL", nil
		default:
			return "", fmt.Errorf("%s: cannot compare NULL with %s", cmp.Field, cmp.Op)
		}
	}
	param, err := toParam(cmp.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cmp.Field, err)
	}
	return cmp.Field + " " + string(cmp.Op) + " " + c.bind(param), nil
}

func (c *compilation) in(in queryir.In) (string, error) {
	if len(in.Values) == 0 {
		if in.Negate {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	}
	placeholders := make([]string, len(in.Values))
	for i, v := range in.Values {
		param, err := toParam(v)
		if err != nil {
			return "", fmt.Errorf("%s[%d]: %w", in.Field, i, err)
		}
		placeholders[i] = c.bind(param)
	}
	op := "IN"
	if in.Negate {
		op = "NOT IN"
	}
	return in.Field + " " + op + " (" + strings.Join(placeholders, ", ") + ")", nil
}

func (c *compilation) and(and queryir.And) (string, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(and.Predicates))
	for _, sub := range and.Predicates {
		sql, err := c.predicate(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

// toParam converts a predicate value to a driver parameter. Lists and
// objects cannot be bound.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, []byte, float64, float32:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		return val.Float64()
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
