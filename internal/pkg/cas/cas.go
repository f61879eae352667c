package cas

import (
	"gorm.io/gorm"
)

// UpdateCounter performs a single-statement compare-and-swap on an integer
// column: the write succeeds only if the stored value still equals expected.
// This is the only concurrency primitive the credit ledgers rely on --
// correctness comes from the statement being atomic at the storage layer,
// not from any in-process coordination.
//
// Returns false when zero rows were affected, meaning a concurrent writer
// changed the value first. Callers must treat that as an ordinary business
// outcome (insufficient credits), never retry silently.
func UpdateCounter(db *gorm.DB, model interface{}, column string, expected, next int, keyQuery string, keyArgs ...interface{}) (bool, error) {
	tx := db.Model(model).
		Where(keyQuery, keyArgs...).
		Where(column+" = ?", expected).
		UpdateColumn(column, next)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}
