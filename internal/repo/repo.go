// Package repo holds the GORM persistence layer. Methods return raw gorm
// errors (gorm.ErrRecordNotFound included); the service layer translates
// them into apperr kinds.
package repo

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// WithTx returns a repo bound to the given transaction handle so multi-step
// workflows can run every read and write on one transaction.
func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

// forUpdate adds a FOR UPDATE locking clause on dialects that support it.
// SQLite serializes writers at the database level already.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
