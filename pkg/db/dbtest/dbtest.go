// Package dbtest opens migrated databases for repository tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	"github.com/ledgerline/ledgerline-backend/pkg/migrate"
)

// EnvPostgresDSN points Postgres-backed tests at a disposable database.
const EnvPostgresDSN = "LEDGERLINE_TEST_DB_DSN"

// OpenSQLite returns a private in-memory SQLite database with the schema
// applied. The pool is pinned to one connection so writers serialize instead
// of failing with SQLITE_BUSY.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:ledgerline_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// OpenPostgres connects to the database named by LEDGERLINE_TEST_DB_DSN and
// migrates it. The test is skipped when the variable is unset.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s is not set", EnvPostgresDSN)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Run(context.Background(), sqlDB, "postgres", "up"); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return conn
}
