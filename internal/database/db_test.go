package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"app@tcp(db:3306)/rooms?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true",
		DSN("app", "", "db", "3306", "rooms"))
	assert.Equal(t,
		"app:secret@tcp(db:3306)/rooms?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true",
		DSN("app", "secret", "db", "3306", "rooms"))
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
