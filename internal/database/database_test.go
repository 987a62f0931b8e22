package database

import (
	"testing"

	"github.com/richardliu001/funding-ledger/internal/config"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	gdb, err := Open(config.PostgresConfig{
		Driver:      "sqlite",
		DSN:         "file:database_open?mode=memory&cache=shared",
		AutoMigrate: true,
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	for _, m := range model.All() {
		assert.True(t, gdb.Migrator().HasTable(m), "%T", m)
	}
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}
