// Package database provides the SQLite connection behind the bridge journal.
//
// It opens the database with go-sqlite3 pragmas (busy timeout, foreign
// keys, optional WAL), limits the pool to a single connection and applies
// the embedded SQL migrations registered by the migrations package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
