package qs

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/validator"
)

func parseJSON(t *testing.T, raw string) string {
	t.Helper()
	got, err := Parse(raw)
	require.NoError(t, err)
	out, err := json.Marshal(got)
	require.NoError(t, err)
	return string(out)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", `{}`},
		{"question mark", "?", `{}`},
		{"flat", "sort=age", `{"sort":"age"}`},
		{"nested", "filter[age][>]=30&filter[name]=bob", `{"filter":{"age":{">":"30"},"name":"bob"}}`},
		{"append", "sort[]=age&sort[]=name", `{"sort":["age","name"]}`},
		{"single append", "sort[]=age", `{"sort":["age"]}`},
		{"repeated", "sort=b&sort=a&sort=c", `{"sort":["b","a","c"]}`},
		{"indexed", "sort[1]=name&sort[0]=age", `{"sort":["age","name"]}`},
		{"sparse index stays object", "sort[0]=age&sort[2]=name", `{"sort":{"0":"age","2":"name"}}`},
		{"object order", "sort[b]=desc&sort[a]=asc", `{"sort":{"b":"desc","a":"asc"}}`},
		{"page", "page[size]=10&page[number]=2", `{"page":{"size":"10","number":"2"}}`},
		{"escaped", "filter%5Bname%5D=a+b%26c", `{"filter":{"name":"a b&c"}}`},
		{"no value", "filter[flag]&x=", `{"filter":{"flag":""},"x":""}`},
		{"skips empty pairs", "a=1&&b=2&", `{"a":"1","b":"2"}`},
		{"malformed bracket kept whole", "a[b=1&c]d[=2", `{"a[b":"1","c]d[":"2"}`},
		{"trailing text kept whole", "a[b]c=1", `{"a[b]c":"1"}`},
		{"in list", "filter[id][in][]=1&filter[id][in][]=2", `{"filter":{"id":{"in":["1","2"]}}}`},
		{"top level numeric keys stay", "0=a&1=b", `{"0":"a","1":"b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, parseJSON(t, tt.raw))
		})
	}
}

func TestParse_PreservesKeyOrder(t *testing.T) {
	got, err := Parse("sort[name]=desc&sort[age]=asc&sort[id]=asc&filter[b]=1&filter[a]=2")
	require.NoError(t, err)
	assert.Equal(t, []string{"sort", "filter"}, got.Keys())

	sort, ok := got.Get("sort")
	require.True(t, ok)
	sortObj, ok := sort.(*ordmap.Map[any])
	require.True(t, ok)
	assert.Equal(t, []string{"name", "age", "id"}, sortObj.Keys())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"scalar then object", "filter=1&filter[age]=2", "filter has conflicting values"},
		{"object then scalar", "filter[age]=2&filter=1", "filter has conflicting values"},
		{"nested conflict", "filter[age]=1&filter[age][>]=2", "filter:age has conflicting values"},
		{"nest below append", "filter[][age]=1", "filter must not nest below []"},
		{"too deep", "a[1][2][3][4][5][6]=x", "a must be nested at most 5 levels deep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.True(t, validator.IsValidationError(err))
		})
	}

	_, err := Parse("a=%zz")
	require.Error(t, err)
	assert.False(t, validator.IsValidationError(err))

	_, err = Parse(strings.Repeat("a=1&", MaxParams+1))
	require.Error(t, err)
	assert.True(t, validator.IsValidationError(err))
}
