// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// sqliteConflictMarkers are substrings of driver errors that indicate
// another connection holds the database lock.
var sqliteConflictMarkers = []string{
	"SQLITE_BUSY",
	"database is locked",
}

// IsSQLiteConflictError reports whether err is a SQLite lock contention
// error that warrants a retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range sqliteConflictMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
