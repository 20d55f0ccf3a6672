// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// queue service and handlers to distinguish between different failure
// scenarios. ErrConflict signals that a concurrent writer changed the
// state a transaction depended on; the whole transaction is rolled back
// and may be retried.
package repository

import (
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// ErrConflict is returned when a compare-and-swap update changed no rows
// or when MySQL reports a duplicate key or a deadlock. Callers retry the
// transaction a bounded number of times.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("not found")

const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
)

// classify maps driver errors that indicate contention onto ErrConflict.
// Other errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry, mysqlDeadlock:
			return errors.Wrap(ErrConflict, me.Message)
		}
	}
	return err
}
