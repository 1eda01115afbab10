// Package database はSQLデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// マイグレーションファイルはドライバごとのディレクトリから読み込む。
func NewMigrator(driver, databaseURL string) (*migrate.Migrate, error) {
	if driver != DriverPostgres && driver != DriverSQLite3 {
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(driver, databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(driver, databaseURL string) error {
	m, err := NewMigrator(driver, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migrationURL はgolang-migrateが解釈できる接続URLを返す。
func migrationURL(driver, databaseURL string) string {
	if driver == DriverSQLite3 && !strings.HasPrefix(databaseURL, sqliteScheme) {
		return sqliteScheme + databaseURL
	}
	return databaseURL
}
