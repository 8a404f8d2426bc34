package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t,
		"SELECT * FROM t WHERE a = ? AND b = ?\n-- params: \"x\", 3, true, NULL, 1.5\n",
		Format("SELECT * FROM t WHERE a = ? AND b = ?", []any{"x", int64(3), true, nil, 1.5}),
	)
	assert.Equal(t, "SELECT * FROM t\n-- params: none\n", Format("SELECT * FROM t", nil))
}
