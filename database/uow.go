package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// UnitOfWork tracks entities created in a forked session until Flush writes them.
type UnitOfWork struct {
	db      *gorm.DB
	pending []interface{}
}

// Fork starts a unit of work on a fresh session of db. Nothing chained on
// the returned session leaks back into db.
func Fork(ctx context.Context, db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db.Session(&gorm.Session{NewDB: true, Context: ctx})}
}

// Fork starts another unit of work on the same connection with nothing pending.
func (u *UnitOfWork) Fork() *UnitOfWork {
	return Fork(u.db.Statement.Context, u.db)
}

// DB returns the session for queries.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}

// Persist queues entities for the next Flush. Order is kept: persist
// referenced entities before the ones pointing at them.
func (u *UnitOfWork) Persist(entities ...interface{}) {
	u.pending = append(u.pending, entities...)
}

// Pending reports how many entities are waiting for Flush.
func (u *UnitOfWork) Pending() int {
	return len(u.pending)
}

// Flush creates every pending entity, with its associations, in one
// transaction. On failure nothing is written and the entities stay pending.
func (u *UnitOfWork) Flush() error {
	if len(u.pending) == 0 {
		return nil
	}
	err := u.db.Transaction(func(tx *gorm.DB) error {
		for _, e := range u.pending {
			if err := tx.Create(e).Error; err != nil {
				return fmt.Errorf("flush %T: %w", e, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	u.pending = nil
	return nil
}
