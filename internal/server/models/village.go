package models

import (
	"database/sql"
	"time"
)

// Village is a record owned by a single subject. UserID is set at creation
// and never changes.
type Village struct {
	ID        int64
	UserID    string
	NameKH    string
	NameEN    string
	Age       int
	Gender    string
	DOB       string
	ImagePath sql.NullString
	CreatedAt time.Time
}

// OwnerID reports the owning subject.
func (v *Village) OwnerID() string {
	if v == nil {
		return ""
	}
	return v.UserID
}
