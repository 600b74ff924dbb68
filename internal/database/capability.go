// internal/database/capability.go
package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres error codes for schema objects that do not exist.
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// Capability is the outcome of probing whether an optional table or column
// is provisioned. A degraded capability carries the reason it is missing.
type Capability struct {
	Supported bool
	Reason    string
}

func Supported() Capability {
	return Capability{Supported: true}
}

func Degraded(reason string) Capability {
	return Capability{Reason: reason}
}

// ProbeTable checks that table exists.
func ProbeTable(db *gorm.DB, table string) Capability {
	if !db.Migrator().HasTable(table) {
		return Degraded(fmt.Sprintf("table %s is not provisioned", table))
	}
	return Supported()
}

// ProbeColumn checks that table exists and has column.
func ProbeColumn(db *gorm.DB, table, column string) Capability {
	if c := ProbeTable(db, table); !c.Supported {
		return c
	}
	if !db.Migrator().HasColumn(table, column) {
		return Degraded(fmt.Sprintf("column %s.%s is not provisioned", table, column))
	}
	return Supported()
}

// IsSchemaMissing reports whether err means a table or column does not
// exist, as opposed to any other failure.
func IsSchemaMissing(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable || pgErr.Code == pgUndefinedColumn
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "has no column named")
}
