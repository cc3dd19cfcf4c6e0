// Package models defines server-side data models persisted in the database.
package models

import (
	"database/sql"
	"time"
)

// User is a locally managed credential record. ID is the subject identifier
// carried in issued tokens.
type User struct {
	ID           string
	UserName     string
	Email        sql.NullString
	PasswordHash string
	CreatedAt    time.Time
}
