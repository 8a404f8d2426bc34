package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querier/internal/adapter"
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/rule"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/validator"
)

// recorder is an adapter whose builder is a log of applied operations.
type recorder struct {
	validator validator.Facets
	filterErr error
	calls     int
}

func (r *recorder) Filter(b []string, f descriptor.Filter) ([]string, error) {
	r.calls++
	if r.filterErr != nil {
		return b, r.filterErr
	}
	return append(b, fmt.Sprintf("filter %s %s %v", f.Field, f.Operator, f.Value)), nil
}

func (r *recorder) Sort(b []string, s descriptor.Sort) ([]string, error) {
	r.calls++
	return append(b, fmt.Sprintf("sort %s %s", s.Field, s.Order)), nil
}

func (r *recorder) Page(b []string, p descriptor.Page) ([]string, error) {
	r.calls++
	return append(b, fmt.Sprintf("page %d %d %d", p.Size, p.Number, p.Offset)), nil
}

func (r *recorder) Config() adapter.Config {
	return adapter.Config{FilterOperators: []string{"=", ">"}, DefaultFilterOperator: "="}
}

func (r *recorder) Validator() validator.Facets {
	return r.validator
}

func obj(kv ...any) *ordmap.Map[any] {
	m := ordmap.New[any]()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1])
	}
	return m
}

func testEnv(a adapter.Adapter[[]string]) Env[[]string] {
	return Env[[]string]{
		Adapter: a,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestFilterer_AppliesInSchemaOrder(t *testing.T) {
	s := schema.New().
		Filter("a", schema.Ops("=")).
		Filter("b", schema.Ops("=", ">"))
	o := New(Filterer[[]string](FilterKey, "="), obj("b", obj(">", 1, "=", 3), "a", 2), s, testEnv(&recorder{}))

	got, err := o.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"filter a = 2", "filter b = 3", "filter b > 1"}, got)
}

func TestSorter_AppliesInQueryOrder(t *testing.T) {
	s := schema.New().Sort("a").Sort("b", schema.SortField("b_col"))

	got, err := New(Sorter[[]string](SortKey), []any{"b", "a"}, s, testEnv(&recorder{})).Run(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sort b_col asc", "sort a asc"}, got)

	got, err = New(Sorter[[]string](SortKey), obj("a", "DESC", "b", "asc"), s, testEnv(&recorder{})).Run(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sort a desc", "sort b_col asc"}, got)
}

func TestPager_AppliesOnce(t *testing.T) {
	s := schema.New().Page(true)
	r := &recorder{}

	got, err := New(Pager[[]string](PageKey), 2, s, testEnv(r)).Run(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"page 20 2 20"}, got)
	assert.Equal(t, 1, r.calls)
}

func TestPager_SilentQueryAppliesDefaults(t *testing.T) {
	s := schema.New().Page(true, schema.PageSize(30))

	got, err := New(Pager[[]string](PageKey), nil, s, testEnv(&recorder{})).Run(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"page 30 1 0"}, got)

	r := &recorder{validator: validator.NewAdapterValidator(validator.AdapterSchemas{
		Page: map[string]rule.Schema{descriptor.PageSizeField: rule.Number().Max(25)},
	})}
	_, err = New(Pager[[]string](PageKey), nil, s, testEnv(r)).Run(nil)
	require.Error(t, err)
	assert.Equal(t, "page:size must be less than or equal to 25", err.Error())
	assert.Equal(t, 0, r.calls)
}

func TestOrchestrator_ParseAndValidateAreCached(t *testing.T) {
	s := schema.New().Filter("age", schema.Ops("="))
	r := &recorder{validator: validator.NewAdapterValidator(validator.AdapterSchemas{
		Filters: map[string]rule.Schema{"=": rule.Number()},
	})}
	o := New(Filterer[[]string](FilterKey, "="), obj("age", "30"), s, testEnv(r))

	parsed1, err := o.Parse()
	require.NoError(t, err)
	parsed2, err := o.Parse()
	require.NoError(t, err)
	assert.Same(t, parsed1, parsed2)

	validated1, err := o.Validate()
	require.NoError(t, err)
	validated2, err := o.Validate()
	require.NoError(t, err)
	assert.Same(t, validated1, validated2)

	_, err = o.Run(nil)
	require.NoError(t, err)
	_, err = o.Run(nil)
	require.NoError(t, err)

	assert.Equal(t, 1, o.Parser().Runs())
}

func TestOrchestrator_ValidationLayersThreadValues(t *testing.T) {
	s := schema.New().Filter("age", schema.Ops("="))
	r := &recorder{validator: validator.NewAdapterValidator(validator.AdapterSchemas{
		Filters: map[string]rule.Schema{"=": rule.Number()},
	})}
	env := testEnv(r)
	// Strict numbers only pass when the adapter layer has converted "30".
	env.Consumer = validator.NewConsumerValidator(validator.NewRuleSchema(
		rule.Key("filter:age[=]", rule.Number().Strict().Min(18)),
	))

	o := New(Filterer[[]string](FilterKey, "="), obj("age", "30"), s, env)
	got, err := o.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"filter age = 30"}, got)

	parsed, _ := o.Parse()
	f, _ := parsed.Get("filter:age[=]")
	assert.Equal(t, "30", f.Value, "parsed set must not be modified")

	validated, _ := o.Validate()
	f, _ = validated.Get("filter:age[=]")
	assert.Equal(t, int64(30), f.Value)
}

func TestOrchestrator_ConsumerRejects(t *testing.T) {
	s := schema.New().Filter("age", schema.Ops("="))
	r := &recorder{}
	env := testEnv(r)
	env.Consumer = validator.NewConsumerValidator(validator.NewRuleSchema(
		rule.Key("filter:age[=]", rule.Number().Min(18)),
	))

	got, err := New(Filterer[[]string](FilterKey, "="), obj("age", 10), s, env).Run([]string{"start"})
	require.Error(t, err)
	assert.Equal(t, "filter:age[=] must be greater than or equal to 18", err.Error())
	assert.Equal(t, []string{"start"}, got)
	assert.Zero(t, r.calls)
}

func TestOrchestrator_Disabled(t *testing.T) {
	tests := []struct {
		name    string
		run     func() error
		message string
	}{
		{"filter", func() error {
			_, err := New(Filterer[[]string](FilterKey, "="), obj("a", 1), schema.New(), testEnv(&recorder{})).Parse()
			return err
		}, "filter is disabled"},
		{"sort with invalid content", func() error {
			_, err := New(Sorter[[]string](SortKey), obj("a", "bogus"), schema.New(), testEnv(&recorder{})).Validate()
			return err
		}, "sort is disabled"},
		{"page", func() error {
			_, err := New(Pager[[]string](PageKey), 2, schema.New(), testEnv(&recorder{})).Run(nil)
			return err
		}, "page is disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			ve, ok := validator.AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, validator.LayerDisabled, ve.Layer)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestOrchestrator_DisabledAndSilent(t *testing.T) {
	o := New(Pager[[]string](PageKey), nil, schema.New(), testEnv(&recorder{}))
	parsed, err := o.Parse()
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Len())

	got, err := o.Run([]string{"start"})
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, got)
	assert.Nil(t, o.Parser())
}

func TestOrchestrator_EmptyQueryNeverValidates(t *testing.T) {
	s := schema.New().Filter("age", schema.Ops("="))
	o := New(Filterer[[]string](FilterKey, "="), nil, s, testEnv(&recorder{}))

	got, err := o.Run(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, o.Parser().Runs())
}

func TestOrchestrator_Overrides(t *testing.T) {
	s := schema.New().
		Filter("age", schema.Ops("=")).
		Filter("name", schema.Ops("=")).
		Sort("age").
		Page(true)
	env := testEnv(&recorder{})
	env.Overrides = adapter.Overrides[[]string]{
		Filters: map[string]adapter.FilterFunc[[]string]{
			"filter:name[=]": func(b []string, f descriptor.Filter) ([]string, error) {
				return append(b, "custom name "+fmt.Sprint(f.Value)), nil
			},
		},
		Sorts: map[string]adapter.SortFunc[[]string]{
			"sort:age": func(b []string, srt descriptor.Sort) ([]string, error) {
				return append(b, "custom sort "+srt.Order), nil
			},
		},
		Page: func(b []string, p descriptor.Page) ([]string, error) {
			return append(b, fmt.Sprintf("custom page %d", p.Offset)), nil
		},
	}

	b, err := New(Filterer[[]string](FilterKey, "="), obj("name", "bo", "age", 3), s, env).Run(nil)
	require.NoError(t, err)
	b, err = New(Sorter[[]string](SortKey), "age", s, env).Run(b)
	require.NoError(t, err)
	b, err = New(Pager[[]string](PageKey), obj("number", 3, "size", 5), s, env).Run(b)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"filter age = 3",
		"custom name bo",
		"custom sort asc",
		"custom page 10",
	}, b)
}

func TestOrchestrator_AdapterErrorPropagates(t *testing.T) {
	s := schema.New().Filter("age", schema.Ops("="))
	boom := errors.New("boom")
	_, err := New(Filterer[[]string](FilterKey, "="), obj("age", 1), s, testEnv(&recorder{filterErr: boom})).Run(nil)
	assert.ErrorIs(t, err, boom)
}

func TestOrchestrator_UnimplementedAdapter(t *testing.T) {
	s := schema.New().Filter("age", schema.Ops("="))
	env := testEnv(adapter.Unimplemented[[]string]{})

	_, err := New(Filterer[[]string](FilterKey, "="), obj("age", 1), s, env).Run(nil)
	require.Error(t, err)
	assert.True(t, validator.IsProgrammerError(err))
	assert.False(t, validator.IsValidationError(err))
}

func TestOrchestrator_CustomQueryKey(t *testing.T) {
	s := schema.New().Filter("age", schema.Ops("="))
	o := New(Filterer[[]string]("where", "="), obj("age", 1), s, testEnv(&recorder{}))

	parsed, err := o.Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"where:age[=]"}, parsed.Keys())

	got, err := o.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"filter age = 1"}, got)

	_, err = New(Filterer[[]string]("where", "="), obj("nope", 1), s, testEnv(&recorder{})).Run(nil)
	require.Error(t, err)
	assert.Equal(t, "where:nope is not allowed", err.Error())
}
