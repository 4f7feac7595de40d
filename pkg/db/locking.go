package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate appends a row-level FOR UPDATE lock on dialects that support it.
// SQLite, which backs the test suite, has a single writer and rejects the
// clause, so it is skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}
