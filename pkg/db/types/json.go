package dbtypes

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON stores an arbitrary JSON document in a jsonb column. A nil or empty
// value is written as SQL NULL.
type JSON json.RawMessage

func (j *JSON) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = append([]byte(nil), v...)
	default:
		return fmt.Errorf("JSON: unsupported Scan type %T", src)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("JSON: invalid document")
	}
	*j = JSON(raw)
	return nil
}

// Value writes the document as text so both jsonb and TEXT columns accept it.
func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("JSON: invalid document")
	}
	return string(j), nil
}

// IsNull reports whether the value holds no document or a literal null.
func (j JSON) IsNull() bool {
	trimmed := bytes.TrimSpace(j)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j.IsNull() {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// GormDataType keeps AutoMigrate portable between Postgres and SQLite.
func (JSON) GormDataType() string {
	return "json"
}

// GormDBDataType picks the dialect specific column type.
func (JSON) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}
