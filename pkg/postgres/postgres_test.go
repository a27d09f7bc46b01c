package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@localhost:5432/db?sslmode=disable", want: "pgx://u:p@localhost:5432/db?sslmode=disable"},
		{in: "postgresql://u@db/x", want: "pgx://u@db/x"},
		{in: "pgx://already", want: "pgx://already"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MigrateDSN(tt.in))
	}
}
