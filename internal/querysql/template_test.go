package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountPlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"single", "SELECT * FROM users WHERE id = ?", 1},
		{"none", "SELECT * FROM users", 0},
		{"two", "SELECT * FROM users WHERE id = ? OR name = ?", 2},
		{"inside single quotes", "SELECT '?' FROM users WHERE id = ?", 1},
		{"escaped quote", "SELECT 'it''s ?' FROM users WHERE id = ?", 1},
		{"inside double quotes", `SELECT "a?b" FROM users WHERE id = ?`, 1},
		{"line comment", "SELECT * FROM users -- where x = ?\nWHERE id = ?", 1},
		{"block comment", "SELECT /* ? ? */ * FROM users WHERE id = ?", 1},
		{"unterminated literal", "SELECT '? FROM users", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountPlaceholders(tt.query))
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("SELECT name FROM users WHERE id = ?"))

	err := Validate("SELECT name FROM users")
	require.Error(t, err)

	var te *TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.Found)
	assert.Contains(t, err.Error(), "exactly one ? placeholder")

	err = Validate("SELECT ? , ?")
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Found)
}
