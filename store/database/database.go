package database

import (
	"context"
	"embed"
	"io/fs"

	"github.com/itu-mlops/playtime-pipeline/store"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"
	"github.com/maragudk/migrate"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// WireSet provides a wire set for this package
var WireSet = wire.NewSet(
	ProvideDatabase,
	ProvideStageRunStore,
)

// ProvideDatabase provides a database connection.
func ProvideDatabase(driver, datasource string) (*sqlx.DB, error) {
	return Connect(driver, datasource)
}

// ProvideStageRunStore provides a stage run store. The sqlite driver
// does not tolerate concurrent writers, so it is wrapped in the sync
// store.
func ProvideStageRunStore(db *sqlx.DB) store.StageRunStore {
	switch db.DriverName() {
	case "postgres":
		return NewStageRunStore(db)
	default:
		return NewStageRunStoreSync(
			NewStageRunStore(db),
		)
	}
}

// Connect opens a database connection and migrates the schema.
func Connect(driver, datasource string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, datasource)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrateUp(db *sqlx.DB) error {
	dir := "migrations/sqlite"
	if db.DriverName() == "postgres" {
		dir = "migrations/postgres"
	}
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	return migrate.Up(context.Background(), db.DB, sub)
}
