package database

import (
	"strings"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN_FromEnvironment(t *testing.T) {
	t.Setenv("DB_USER", "hangar")
	t.Setenv("DB_PASSWORD", "p@ss:w/rd")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "hangarlinks")

	cfg, err := mysqldriver.ParseDSN(DSN())
	require.NoError(t, err)
	assert.Equal(t, "hangar", cfg.User)
	assert.Equal(t, "p@ss:w/rd", cfg.Passwd)
	assert.Equal(t, "db:3307", cfg.Addr)
	assert.Equal(t, "hangarlinks", cfg.DBName)
	assert.True(t, cfg.ParseTime)
}

func TestMigrationURL(t *testing.T) {
	t.Setenv("DB_USER", "hangar")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "hangarlinks")

	url := MigrationURL()
	require.True(t, strings.HasPrefix(url, "mysql://"))
	cfg, err := mysqldriver.ParseDSN(strings.TrimPrefix(url, "mysql://"))
	require.NoError(t, err)
	assert.True(t, cfg.MultiStatements)
	assert.Equal(t, "hangarlinks", cfg.DBName)
}
