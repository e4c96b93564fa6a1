// Package database provides SQLite connectivity for the homesim journal.
//
// This package manages:
//   - Connections to a file or in-memory (":memory:", the default) database
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Connection pooling and lifecycle management
//
// The simulated homes themselves are never stored here; the database only
// holds the append-only activity and alert journal, and with the default
// in-memory path it disappears with the process.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: files are named NNNN_description.up.sql with an
// optional matching .down.sql, applied in version order, one transaction each.
package database
