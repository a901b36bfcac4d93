package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_RejectsEmptyDSN(t *testing.T) {
	_, err := Connect(Config{DSN: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestAdminTarget(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		wantOK    bool
		wantDB    string
		wantAdmin string
	}{
		{
			name:      "url dsn",
			dsn:       "postgres://bot:secret@db:5432/mentions?sslmode=disable",
			wantOK:    true,
			wantDB:    "mentions",
			wantAdmin: "postgres://bot:secret@db:5432/postgres?sslmode=disable",
		},
		{name: "maintenance database", dsn: "postgres://bot@db/postgres"},
		{name: "no database", dsn: "postgres://bot@db"},
		{name: "key value dsn", dsn: "host=db user=bot dbname=mentions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin, db, ok := adminTarget(tt.dsn)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDB, db)
			assert.Equal(t, tt.wantAdmin, admin)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"mentions"`, quoteIdentifier("mentions"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}
