// Package sqltype provides the closed set of scalar kinds the query builders
// understand, the mapping from declared SQL column types to those kinds, and
// strict per-kind parsers for request-supplied string values.
package sqltype

import (
	"strings"
)

// Kind is the scalar kind of a column's system type.
type Kind int

const (
	// KindString is the default kind for text and unknown SQL types.
	KindString Kind = iota
	KindBytes
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindUUID
	KindDate
	KindTime
	KindDuration
	KindDateTime
)

// String returns the system type name used in error messages and logs.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindBool:
		return "Boolean"
	case KindInt8:
		return "Byte"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindFloat32:
		return "Single"
	case KindFloat64:
		return "Double"
	case KindDecimal:
		return "Decimal"
	case KindUUID:
		return "Uuid"
	case KindDate:
		return "Date"
	case KindTime:
		return "TimeOnly"
	case KindDuration:
		return "Duration"
	case KindDateTime:
		return "DateTime"
	default:
		return "Unknown"
	}
}

// IsNumeric reports whether the kind supports SUM/AVG aggregation.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindFloat32, KindFloat64, KindDecimal:
		return true
	default:
		return false
	}
}

// MapColumnType converts a declared SQL data type into its scalar kind.
// Handles both bare base types ("bigint") and full column types
// ("bigint(20) unsigned").
func MapColumnType(sqlType string) Kind {
	raw := strings.ToLower(strings.TrimSpace(sqlType))
	normalized := raw
	if idx := strings.IndexAny(normalized, "( "); idx > 0 {
		normalized = normalized[:idx]
	}

	switch normalized {
	case "bool", "boolean":
		return KindBool
	case "tinyint":
		// tinyint(1) is the conventional MySQL boolean
		if strings.HasPrefix(raw, "tinyint(1)") {
			return KindBool
		}
		return KindInt8
	case "smallint":
		return KindInt16
	case "mediumint", "int", "integer":
		return KindInt32
	case "bigint":
		return KindInt64
	case "float":
		return KindFloat32
	case "double", "real":
		return KindFloat64
	case "decimal", "numeric":
		return KindDecimal
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob", "bit":
		return KindBytes
	case "uuid", "uniqueidentifier":
		return KindUUID
	case "date":
		return KindDate
	case "time":
		return KindTime
	case "datetime", "timestamp":
		return KindDateTime
	default:
		return KindString
	}
}
