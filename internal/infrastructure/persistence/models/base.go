package models

import (
	"time"
)

// BaseModel provides the identity and creation timestamp of a row.
// ID is assigned by the database sequence.
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
}
