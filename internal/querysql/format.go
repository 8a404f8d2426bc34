package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders a compiled statement for display: the SQL on one line and
// its parameters on the next as a SQL comment.
func Format(sql string, params []any) string {
	if len(params) == 0 {
		return sql + "\n-- params: none\n"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatParam(p)
	}
	return sql + "\n-- params: " + strings.Join(parts, ", ") + "\n"
}

func formatParam(p any) string {
	switch v := p.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(v)
	case []byte:
		return strconv.Quote(string(v))
	default:
		return fmt.Sprint(v)
	}
}
