// internal/models/common.go
package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Base model with an auto-increment id. Venue data is never soft-deleted:
// merge sources are removed for good.
type BaseModel struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StringList is a text array on postgres and a text column elsewhere. Both
// use the postgres array literal encoding.
type StringList pq.StringArray

func (s StringList) Value() (driver.Value, error) {
	return pq.StringArray(s).Value()
}

func (s *StringList) Scan(src interface{}) error {
	return (*pq.StringArray)(s).Scan(src)
}

func (StringList) GormDataType() string {
	return "text"
}

func (StringList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Enums
type StoreSource string

const (
	StoreSourceManual StoreSource = "manual"
	StoreSourceSearch StoreSource = "search"
	StoreSourceImport StoreSource = "import"
)

type ReviewSource string

const (
	ReviewSourceExternal ReviewSource = "external"
	ReviewSourceInApp    ReviewSource = "in_app"
)
