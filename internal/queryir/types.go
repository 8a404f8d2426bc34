package queryir

// Query is a query the compiler can render.
//
// This is a sealed interface: only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate is a WHERE condition.
//
// This is a sealed interface: only types in this package implement it.
//
// Predicate types:
//   - Compare: field <op> value
//   - In: field [NOT] IN (values)
//   - Like: field [NOT] LIKE pattern
//   - IsNull: field IS [NOT] NULL
//   - And: all predicates must hold
type Predicate interface {
	predicateNode()
}

// CompareOp is a binary comparison operator.
type CompareOp string

// Comparison operators.
const (
	OpEq  CompareOp = "="
	OpNe  CompareOp = "!="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
)

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// Select reads rows from a single table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order_by> LIMIT <limit> OFFSET <offset>
//
// Empty Columns selects every column. A nil Filter selects every row. A zero
// Limit means no LIMIT clause; Offset is only rendered together with Limit.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []Order
	Limit   int
	Offset  int
}

func (Select) queryNode() {}

// NewSelect starts a query over table.
func NewSelect(table string, columns ...string) Select {
	return Select{From: table, Columns: columns}
}

// Where returns a copy of s with p added to its filter. Multiple conditions
// are combined with And.
func (s Select) Where(p Predicate) Select {
	switch existing := s.Filter.(type) {
	case nil:
		s.Filter = p
	case And:
		preds := make([]Predicate, 0, len(existing.Predicates)+1)
		preds = append(preds, existing.Predicates...)
		s.Filter = And{Predicates: append(preds, p)}
	default:
		s.Filter = And{Predicates: []Predicate{existing, p}}
	}
	return s
}

// OrderByField returns a copy of s with an ORDER BY term appended.
func (s Select) OrderByField(field string, desc bool) Select {
	orders := make([]Order, 0, len(s.OrderBy)+1)
	orders = append(orders, s.OrderBy...)
	s.OrderBy = append(orders, Order{Field: field, Desc: desc})
	return s
}

// Paginate returns a copy of s with LIMIT and OFFSET set.
func (s Select) Paginate(limit, offset int) Select {
	s.Limit = limit
	s.Offset = offset
	return s
}

// Compare is a binary comparison of a field with a value.
//
// Example:
//
//	Compare{Field: "age", Op: OpGte, Value: int64(18)}
//
// Translates to SQL:
//
//	age >= ?
type Compare struct {
	Field string
	Op    CompareOp
	Value any
}

func (Compare) predicateNode() {}

// In tests membership in a value list. An empty list matches nothing (or
// everything, when negated).
type In struct {
	Field  string
	Values []any
	Negate bool
}

func (In) predicateNode() {}

// Like matches a field against a SQL LIKE pattern.
type Like struct {
	Field   string
	Pattern string
	Negate  bool
}

func (Like) predicateNode() {}

// IsNull tests a field for NULL.
type IsNull struct {
	Field  string
	Negate bool
}

func (IsNull) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
