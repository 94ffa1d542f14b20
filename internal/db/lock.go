package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Advisory lock namespaces keep per-user locks of different aggregates apart.
const (
	LockNamespaceUser        int64 = 1
	LockNamespaceNextOfKin   int64 = 2
	LockNamespaceBankAccount int64 = 3
)

// LockUser takes a transaction-scoped advisory lock for one user's aggregate.
// It must be called on a transaction handle. SQLite needs no lock because
// the connection pool holds a single writer.
func LockUser(tx *gorm.DB, namespace int64, userID uint64) error {
	if tx == nil {
		return fmt.Errorf("db: lock user: nil transaction")
	}
	if IsSQLite(tx) {
		return nil
	}
	key := namespace<<48 | int64(userID&0xFFFFFFFFFFFF)
	if errLock := tx.Exec("SELECT pg_advisory_xact_lock(?)", key).Error; errLock != nil {
		return fmt.Errorf("db: lock user %d: %w", userID, errLock)
	}
	return nil
}
