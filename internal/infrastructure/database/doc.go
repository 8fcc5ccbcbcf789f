// Package database provides the SQLite connection behind the node's
// settings store.
//
// On an embedded board this plays the role of non-volatile storage: it is
// opened and migrated once at boot before any networking starts.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
