// Package repository defines the storage contract used by the booking
// service and its MySQL implementation.  The sentinel values below are the
// only errors callers need to distinguish; everything else is a storage
// failure.  ErrNotFound signals that a referenced row does not exist, while
// ErrConflict signals a lost race with a concurrent writer (a stale ledger
// version, a deadlock or a lock-wait timeout) and is safe to retry.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a room, reservation, cancellation or user
// with the requested id does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write lost a race with a concurrent
// writer.  Callers may retry the whole transaction.
var ErrConflict = errors.New("conflict")

// MySQL error numbers that indicate a retryable lock collision.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDuplicateEntry  = 1062
)

// classify maps driver errors onto the repository sentinels.  Deadlocks
// and lock-wait timeouts become ErrConflict; other errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
