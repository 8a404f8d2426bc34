package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_SimpleSelect(t *testing.T) {
	query := Select{
		From:    "people",
		Columns: []string{"id", "name"},
		Filter:  Compare{Field: "age", Op: OpGte, Value: int64(18)},
		OrderBy: []Order{{Field: "people.age", Desc: true}},
		Limit:   20,
	}

	result := Validate(query)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
}

func TestValidate_Pointer(t *testing.T) {
	result := Validate(&Select{From: "people"})
	assert.True(t, result.Valid)

	var nilSelect *Select
	result = Validate(nilSelect)
	assert.False(t, result.Valid)
}

func TestValidate_BadIdentifiers(t *testing.T) {
	query := Select{
		From:    "people; DROP TABLE people",
		Columns: []string{"name"},
		Filter: And{Predicates: []Predicate{
			Compare{Field: "age = 1 OR 1", Op: OpEq, Value: 1},
			Like{Field: "name", Pattern: "%"},
		}},
		OrderBy: []Order{{Field: "1"}},
	}

	result := Validate(query)

	assert.False(t, result.Valid)
	require.Len(t, result.Problems, 3, "should accumulate every problem")
	assert.Contains(t, result.Problems[0], "table")
	assert.Contains(t, result.Problems[1], "field")
	assert.Contains(t, result.Problems[2], "order")
}

func TestValidate_UnknownOperator(t *testing.T) {
	result := Validate(Select{From: "t", Filter: Compare{Field: "a", Op: "~", Value: 1}})
	assert.False(t, result.Valid)
	require.Len(t, result.Problems, 1)
	assert.Contains(t, result.Problems[0], `"~"`)
}

func TestValidate_NegativePagination(t *testing.T) {
	result := Validate(Select{From: "t", Limit: -1, Offset: -5})
	assert.False(t, result.Valid)
	assert.Len(t, result.Problems, 2)
}

func TestValidate_NilQueryAndPredicate(t *testing.T) {
	assert.False(t, Validate(nil).Valid)
	assert.False(t, Validate(Select{From: "t", Filter: And{Predicates: []Predicate{nil}}}).Valid)
}

func TestIsIdentifier(t *testing.T) {
	for _, ok := range []string{"a", "_a1", "people.age", "Col_2"} {
		assert.True(t, IsIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1a", "a b", "a.b.c", "a;", `"a"`, "a-b"} {
		assert.False(t, IsIdentifier(bad), bad)
	}
}

func TestSelect_BuildersDoNotMutate(t *testing.T) {
	base := NewSelect("people")
	withAge := base.Where(Compare{Field: "age", Op: OpEq, Value: 30})
	withBoth := withAge.Where(IsNull{Field: "deleted_at"})
	branch := withAge.Where(Like{Field: "name", Pattern: "b%"})

	assert.Nil(t, base.Filter)
	assert.Equal(t, Compare{Field: "age", Op: OpEq, Value: 30}, withAge.Filter)

	both, ok := withBoth.Filter.(And)
	require.True(t, ok)
	require.Len(t, both.Predicates, 2)
	assert.Equal(t, IsNull{Field: "deleted_at"}, both.Predicates[1])

	other, ok := branch.Filter.(And)
	require.True(t, ok)
	assert.Equal(t, Like{Field: "name", Pattern: "b%"}, other.Predicates[1])

	three := withBoth.Where(In{Field: "id", Values: []any{1}})
	assert.Len(t, three.Filter.(And).Predicates, 3)
	assert.Len(t, withBoth.Filter.(And).Predicates, 2)

	ordered := base.OrderByField("age", false)
	ordered2 := ordered.OrderByField("name", true)
	assert.Empty(t, base.OrderBy)
	assert.Len(t, ordered.OrderBy, 1)
	assert.Equal(t, []Order{{Field: "age"}, {Field: "name", Desc: true}}, ordered2.OrderBy)

	paged := base.Paginate(20, 40)
	assert.Equal(t, 0, base.Limit)
	assert.Equal(t, 20, paged.Limit)
	assert.Equal(t, 40, paged.Offset)
}

func TestSelect_ImplementsQuery(t *testing.T) {
	var q Query = Select{From: "t"}
	switch q.(type) {
	case Select:
	default:
		t.Fatal("unexpected type")
	}

	preds := []Predicate{Compare{}, In{}, Like{}, IsNull{}, And{}}
	assert.Len(t, preds, 5)
}
