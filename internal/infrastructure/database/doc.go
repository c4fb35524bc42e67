// Package database provides SQLite connectivity for the presence engine's
// persistent state, currently the event log.
//
// The connection runs with WAL mode (when enabled), a busy timeout and
// foreign keys on. SQLite allows a single writer so the pool holds one
// connection.
//
// Migrations are read from any fs.FS, typically an embed.FS:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql with an optional
// matching .down.sql. Migrations are additive: new columns must be NULLABLE
// or carry a DEFAULT.
package database
