package sqladapter

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/queryir"
	"github.com/roach88/querier/internal/querysql"
	"github.com/roach88/querier/internal/validator"
)

func assertGoldenSQL(t *testing.T, name string, dialect querysql.Dialect, q queryir.Select) {
	t.Helper()
	sql, params, err := querysql.NewCompiler(dialect).Compile(q)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(querysql.Format(sql, params)))
}

func referenceQuery(t *testing.T) queryir.Select {
	t.Helper()
	a := New()
	q := queryir.NewSelect("people")

	var err error
	q, err = a.Filter(q, descriptor.Filter{Name: "age", Field: "age", Operator: "=", Value: int64(30)})
	require.NoError(t, err)
	q, err = a.Sort(q, descriptor.Sort{Name: "age", Field: "age", Order: descriptor.Asc})
	require.NoError(t, err)
	q, err = a.Page(q, descriptor.Page{Size: 20, Number: 2, Offset: 20})
	require.NoError(t, err)
	return q
}

func TestAdapter_GoldenReference(t *testing.T) {
	assertGoldenSQL(t, "reference", querysql.SQLite, referenceQuery(t))
}

func TestAdapter_GoldenPostgres(t *testing.T) {
	assertGoldenSQL(t, "postgres_reference", querysql.Postgres, referenceQuery(t))
}

func TestAdapter_GoldenOperators(t *testing.T) {
	a := New()
	q := queryir.NewSelect("people", "id", "name")

	filters := []descriptor.Filter{
		{Name: "age", Field: "age", Operator: OpGte, Value: int64(18)},
		{Name: "name", Field: "name", Operator: OpNeAlt, Value: "x"},
		{Name: "id", Field: "id", Operator: OpIn, Value: []any{int64(1), int64(2)}},
		{Name: "tag", Field: "tag", Operator: OpNotIn, Value: []string{"a"}},
		{Name: "name", Field: "name", Operator: OpLike, Value: "b%"},
		{Name: "name", Field: "name", Operator: OpNotLike, Value: "%z"},
		{Name: "deleted", Field: "deleted_at", Operator: OpNull, Value: true},
		{Name: "email", Field: "email", Operator: OpNull, Value: false},
	}
	var err error
	for _, f := range filters {
		q, err = a.Filter(q, f)
		require.NoError(t, err, f.Operator)
	}
	q, err = a.Sort(q, descriptor.Sort{Name: "name", Field: "name", Order: descriptor.Desc})
	require.NoError(t, err)
	q, err = a.Sort(q, descriptor.Sort{Name: "id", Field: "id", Order: descriptor.Asc})
	require.NoError(t, err)

	assertGoldenSQL(t, "operators", querysql.SQLite, q)
}

func TestAdapter_FilterTypeErrors(t *testing.T) {
	a := New()
	base := queryir.NewSelect("people")

	tests := []descriptor.Filter{
		{Name: "id", Field: "id", Operator: OpIn, Value: 1},
		{Name: "name", Field: "name", Operator: OpLike, Value: 1},
		{Name: "x", Field: "x", Operator: OpNull, Value: "yes"},
		{Name: "x", Field: "x", Operator: "~", Value: 1},
	}
	for _, f := range tests {
		t.Run(f.Operator, func(t *testing.T) {
			q, err := a.Filter(base, f)
			require.Error(t, err)
			assert.Nil(t, q.Filter)
		})
	}
}

func TestAdapter_Config(t *testing.T) {
	c := New().Config()
	assert.Equal(t, "=", c.DefaultFilterOperator)
	for _, op := range []string{"=", "!=", "<>", ">", ">=", "<", "<=", "in", "nin", "like", "nlike", "null"} {
		assert.True(t, c.Supports(op), op)
	}
	assert.False(t, c.Supports("~"))
}

func TestAdapter_ValidatorConvertsValues(t *testing.T) {
	v := New().Validator()

	filters := ordmap.New[descriptor.Filter]()
	filters.Set("filter:age[=]", descriptor.Filter{Name: "age", Field: "age", Operator: "=", Value: "30"})
	filters.Set("filter:id[in]", descriptor.Filter{Name: "id", Field: "id", Operator: "in", Value: []any{"1", "x"}})
	filters.Set("filter:deleted[null]", descriptor.Filter{Name: "deleted", Field: "deleted_at", Operator: "null", Value: "true"})

	out, err := v.ValidateFilters(filters)
	require.NoError(t, err)

	age, _ := out.Get("filter:age[=]")
	assert.Equal(t, int64(30), age.Value)
	ids, _ := out.Get("filter:id[in]")
	assert.Equal(t, []any{int64(1), "x"}, ids.Value)
	deleted, _ := out.Get("filter:deleted[null]")
	assert.Equal(t, true, deleted.Value)
}

func TestAdapter_ValidatorKeepsTextSpelling(t *testing.T) {
	v := New().Validator()

	tests := []struct {
		in   any
		want any
	}{
		{"02134", "02134"},
		{"1e3", "1e3"},
		{"30.0", "30.0"},
		{"-7", int64(-7)},
		{"0.5", 0.5},
		{float64(12), int64(12)},
		{true, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			filters := ordmap.New[descriptor.Filter]()
			filters.Set("filter:code[=]", descriptor.Filter{Name: "code", Field: "code", Operator: "=", Value: tt.in})
			filters.Set("filter:code[in]", descriptor.Filter{Name: "code", Field: "code", Operator: "in", Value: []any{tt.in}})

			out, err := v.ValidateFilters(filters)
			require.NoError(t, err)
			eq, _ := out.Get("filter:code[=]")
			assert.Equal(t, tt.want, eq.Value)
			in, _ := out.Get("filter:code[in]")
			assert.Equal(t, []any{tt.want}, in.Value)
		})
	}
}

func TestAdapter_ValidatorRejects(t *testing.T) {
	v := New().Validator()

	filters := ordmap.New[descriptor.Filter]()
	filters.Set("filter:name[like]", descriptor.Filter{Name: "name", Field: "name", Operator: "like", Value: int64(3)})
	_, err := v.ValidateFilters(filters)
	require.Error(t, err)
	assert.Equal(t, "filter:name[like] must be a string", err.Error())

	filters = ordmap.New[descriptor.Filter]()
	filters.Set("filter:id[in]", descriptor.Filter{Name: "id", Field: "id", Operator: "in", Value: "1"})
	_, err = v.ValidateFilters(filters)
	require.Error(t, err)
	assert.Equal(t, "filter:id[in] must be an array", err.Error())

	page := ordmap.New[descriptor.PageField]()
	page.Set("size", descriptor.PageField{Field: "size", Value: 5000})
	page.Set("number", descriptor.PageField{Field: "number", Value: 1})
	page.Set("offset", descriptor.PageField{Field: "offset", Value: 0})
	_, err = v.ValidatePage("page", page)
	require.Error(t, err)
	assert.Equal(t, "page:size must be less than or equal to 1000", err.Error())
	ve, ok := validator.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, validator.LayerAdapter, ve.Layer)
}
