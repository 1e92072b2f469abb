// Package dbtest opens migrated databases for tests: in-memory SQLite by
// default and MySQL when a DSN is provided.
package dbtest

import (
	"os"
	"testing"

	"github.com/remnashop/backoffice/internal/pkg/database"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a fresh schema. A single connection keeps the in-memory
// database alive and shared by nested transactions.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// MySQLDSNEnv names the DSN MySQL opens. Tests that need real row locks skip
// when it is unset or the server is unreachable.
const MySQLDSNEnv = "TEST_MYSQL_DSN"

// MySQL returns a migrated handle on the server named by TEST_MYSQL_DSN.
// Rows are not cleaned up, so callers use unique keys.
func MySQL(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(MySQLDSNEnv)
	if dsn == "" {
		t.Skipf("Skipping MySQL test, %s is not set", MySQLDSNEnv)
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping MySQL test, cannot connect: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		t.Skipf("Skipping MySQL test, ping failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}
