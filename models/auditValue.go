package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// AuditValue is the JSON encoding of one audited field value. It is stored in
// a JSON column, but SQLite hands scalar JSON back as a number, so Scan also
// accepts int64 and float64.
type AuditValue []byte

func (v AuditValue) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return string(v), nil
}

func (v *AuditValue) Scan(value interface{}) error {
	switch x := value.(type) {
	case nil:
		*v = nil
	case []byte:
		*v = append(AuditValue(nil), x...)
	case string:
		*v = AuditValue(x)
	case int64:
		*v = AuditValue(strconv.FormatInt(x, 10))
	case float64:
		*v = AuditValue(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*v = AuditValue(strconv.FormatBool(x))
	default:
		return fmt.Errorf("audit value: unsupported type %T", value)
	}
	return nil
}

func (v AuditValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(v).MarshalJSON()
}

func (v *AuditValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = nil
		return nil
	}
	*v = append(AuditValue(nil), b...)
	return nil
}

func (AuditValue) GormDataType() string {
	return datatypes.JSON{}.GormDataType()
}

func (AuditValue) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return datatypes.JSON{}.GormDBDataType(db, field)
}

func (v AuditValue) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	return datatypes.JSON(v).GormValue(ctx, db)
}
