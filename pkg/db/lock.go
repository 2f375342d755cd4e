package db

import (
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock to the statement. sqlite has no row locks and
// serializes writers, so the clause is skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if isSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// SnapshotTxOptions returns options for a read-only transaction in which every
// statement sees the same snapshot. sqlite transactions already do, and its
// driver rejects isolation levels, so nil is returned there.
func SnapshotTxOptions(tx *gorm.DB) *sql.TxOptions {
	if isSQLite(tx) {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func isSQLite(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector != nil && tx.Dialector.Name() == "sqlite"
}
