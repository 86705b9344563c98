package services

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mutateAtomic runs fn in a single transaction. An error or panic from fn
// rolls back every write fn made.
func mutateAtomic(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return Internal("begin transaction", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return Internal("commit transaction", err)
	}
	return nil
}

// mutateThenBestEffort commits primary atomically and only then runs
// secondary on its own. A secondary failure goes to onErr and the call still
// succeeds.
func mutateThenBestEffort(
	ctx context.Context,
	db *gorm.DB,
	primary func(tx *gorm.DB) error,
	secondary func(db *gorm.DB) error,
	onErr func(error),
) error {
	if err := mutateAtomic(ctx, db, primary); err != nil {
		return err
	}
	if secondary == nil {
		return nil
	}
	if err := secondary(db.WithContext(ctx)); err != nil && onErr != nil {
		onErr(err)
	}
	return nil
}

// forUpdate locks the selected rows on dialects that support it.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
