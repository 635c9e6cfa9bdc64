package sqltype

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	timeLayoutFrac = "15:04:05.999999"
)

// ParseParam parses a request-supplied string into the native value for the
// given kind. The switch is exhaustive over the closed Kind set; an
// unrecognized kind is a programming error surfaced by the default arm.
func ParseParam(kind Kind, raw string) (interface{}, error) {
	switch kind {
	case KindString:
		return raw, nil
	case KindBytes:
		return parseBytes(raw)
	case KindBool:
		return parseBool(raw)
	case KindInt8:
		return parseInt8(raw)
	case KindInt16:
		return parseInt16(raw)
	case KindInt32:
		return parseInt32(raw)
	case KindInt64:
		return parseInt64(raw)
	case KindFloat32:
		return parseFloat32(raw)
	case KindFloat64:
		return parseFloat64(raw)
	case KindDecimal:
		return parseDecimal(raw)
	case KindUUID:
		return parseUUID(raw)
	case KindDate:
		return parseDate(raw)
	case KindTime:
		return parseTimeOnly(raw)
	case KindDuration:
		return parseDuration(raw)
	case KindDateTime:
		return parseDateTime(raw)
	default:
		return nil, fmt.Errorf("unrecognized scalar kind %d", int(kind))
	}
}

// KindOfValue infers the scalar kind of an already-typed runtime value, used
// when a parameter arrives as a decoded GraphQL variable rather than a string.
func KindOfValue(value interface{}) Kind {
	switch value.(type) {
	case nil:
		return KindString
	case bool:
		return KindBool
	case int8:
		return KindInt8
	case int16:
		return KindInt16
	case int, int32:
		return KindInt32
	case int64:
		return KindInt64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case []byte:
		return KindBytes
	case time.Time:
		return KindDateTime
	case time.Duration:
		return KindDuration
	case uuid.UUID:
		return KindUUID
	default:
		return KindString
	}
}

// CoerceValue converts a loosely typed request value into the native value
// for a column's kind. String inputs go through the strict parsers; numeric
// inputs are widened or narrowed through cast with overflow checks.
func CoerceValue(kind Kind, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if raw, ok := value.(string); ok && kind != KindString {
		return ParseParam(kind, raw)
	}

	switch kind {
	case KindString:
		return cast.ToStringE(value)
	case KindBool:
		return cast.ToBoolE(value)
	case KindInt8:
		parsed, err := cast.ToInt64E(value)
		if err != nil {
			return nil, err
		}
		if parsed < math.MinInt8 || parsed > math.MaxInt8 {
			return nil, fmt.Errorf("value %d overflows byte", parsed)
		}
		return int8(parsed), nil
	case KindInt16:
		parsed, err := cast.ToInt64E(value)
		if err != nil {
			return nil, err
		}
		if parsed < math.MinInt16 || parsed > math.MaxInt16 {
			return nil, fmt.Errorf("value %d overflows int16", parsed)
		}
		return int16(parsed), nil
	case KindInt32:
		parsed, err := cast.ToInt64E(value)
		if err != nil {
			return nil, err
		}
		if parsed < math.MinInt32 || parsed > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows int32", parsed)
		}
		return int32(parsed), nil
	case KindInt64:
		return cast.ToInt64E(value)
	case KindFloat32:
		parsed, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, err
		}
		return float32(parsed), nil
	case KindFloat64:
		return cast.ToFloat64E(value)
	case KindDecimal:
		// Decimals travel as strings to preserve precision.
		return cast.ToStringE(value)
	case KindBytes:
		if b, ok := value.([]byte); ok {
			return b, nil
		}
		return nil, fmt.Errorf("bytes value must be a base64 string or byte slice")
	case KindUUID:
		if id, ok := value.(uuid.UUID); ok {
			return id.String(), nil
		}
		return nil, fmt.Errorf("uuid value must be a string")
	case KindDate, KindTime, KindDateTime:
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
		return nil, fmt.Errorf("%s value must be a string or time", kind)
	case KindDuration:
		if d, ok := value.(time.Duration); ok {
			return d, nil
		}
		return nil, fmt.Errorf("duration value must be a string or duration")
	default:
		return nil, fmt.Errorf("unrecognized scalar kind %d", int(kind))
	}
}

func parseBytes(raw string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 value: %w", err)
	}
	return decoded, nil
}

func parseBool(raw string) (bool, error) {
	parsed, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, fmt.Errorf("invalid boolean value %q", raw)
	}
	return parsed, nil
}

func parseInt8(raw string) (int8, error) {
	parsed, err := strconv.ParseInt(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte value %q", raw)
	}
	return int8(parsed), nil
}

func parseInt16(raw string) (int16, error) {
	parsed, err := strconv.ParseInt(raw, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid int16 value %q", raw)
	}
	return int16(parsed), nil
}

func parseInt32(raw string) (int32, error) {
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid int32 value %q", raw)
	}
	return int32(parsed), nil
}

func parseInt64(raw string) (int64, error) {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid int64 value %q", raw)
	}
	return parsed, nil
}

func parseFloat32(raw string) (float32, error) {
	parsed, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid float value %q", raw)
	}
	return float32(parsed), nil
}

func parseFloat64(raw string) (float64, error) {
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid double value %q", raw)
	}
	return parsed, nil
}

func parseDecimal(raw string) (string, error) {
	// Validated but kept as text so the driver preserves precision.
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return "", fmt.Errorf("invalid decimal value %q", raw)
	}
	return raw, nil
}

func parseUUID(raw string) (string, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid uuid value %q", raw)
	}
	return parsed.String(), nil
}

func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date value %q", raw)
	}
	return parsed, nil
}

func parseTimeOnly(raw string) (time.Time, error) {
	for _, layout := range []string{timeLayout, timeLayoutFrac} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time value %q", raw)
}

// parseDuration is intentionally distinct from parseTimeOnly. Durations and
// times of day are different semantic domains even though both commonly
// arrive as HH:MM:SS text.
func parseDuration(raw string) (time.Duration, error) {
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) == 3 {
		hours, errH := strconv.Atoi(parts[0])
		minutes, errM := strconv.Atoi(parts[1])
		seconds, errS := strconv.ParseFloat(parts[2], 64)
		if errH == nil && errM == nil && errS == nil {
			return time.Duration(hours)*time.Hour +
				time.Duration(minutes)*time.Minute +
				time.Duration(seconds*float64(time.Second)), nil
		}
	}
	return 0, fmt.Errorf("invalid duration value %q", raw)
}

func parseDateTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", dateLayout} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime value %q", raw)
}
