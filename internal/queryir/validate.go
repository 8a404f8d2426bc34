package queryir

import (
	"fmt"
	"regexp"
)

// identPattern accepts plain and table-qualified SQL identifiers.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes every rejected construct, in traversal order.
	Problems []string
}

// Validate checks that a query can be rendered safely: every identifier is
// a plain SQL identifier, comparison operators are known, and pagination is
// non-negative.
//
// Validate is a pure function and reports every problem it finds.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// IsIdentifier reports whether name can be written into SQL unquoted.
func IsIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) ident(kind, name string) {
	if !IsIdentifier(name) {
		v.addProblem("invalid %s identifier %q", kind, name)
	}
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.ident("table", sel.From)
	for _, col := range sel.Columns {
		v.ident("column", col)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
	for _, o := range sel.OrderBy {
		v.ident("order", o.Field)
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	if sel.Offset < 0 {
		v.addProblem("negative offset %d", sel.Offset)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Compare:
		v.ident("field", pred.Field)
		switch pred.Op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		default:
			v.addProblem("unknown comparison operator %q on %s", pred.Op, pred.Field)
		}
	case In:
		v.ident("field", pred.Field)
	case Like:
		v.ident("field", pred.Field)
	case IsNull:
		v.ident("field", pred.Field)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case nil:
		v.addProblem("nil predicate")
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}
