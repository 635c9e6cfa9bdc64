// Package cursor encodes and decodes opaque keyset-pagination cursors.
// Cursors are base64-encoded JSON payloads carrying the entity, the
// order-by identity, per-column directions, and string-coerced values for
// the last-seen row's sort key.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dataapi/internal/sqltype"
)

type payload struct {
	Version    int      `json:"v"`
	Entity     string   `json:"e"`
	OrderByKey string   `json:"k"`
	Directions []string `json:"d"`
	Values     []string `json:"vals"`
}

const version = 1

// Encode builds an opaque cursor. Values are string-coerced for JSON safety
// (avoids float64 precision loss on int64 keys).
func Encode(entity, orderByKey string, directions []string, values ...interface{}) string {
	normalized := make([]string, len(directions))
	for i, direction := range directions {
		normalized[i] = strings.ToUpper(direction)
	}
	stringValues := make([]string, 0, len(values))
	for _, v := range values {
		stringValues = append(stringValues, coerceToString(v))
	}
	data, err := json.Marshal(payload{
		Version:    version,
		Entity:     entity,
		OrderByKey: orderByKey,
		Directions: normalized,
		Values:     stringValues,
	})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a cursor into its components.
func Decode(raw string) (entity, orderByKey string, directions, values []string, err error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", nil, nil, fmt.Errorf("invalid cursor format")
	}
	if p.Version != version {
		return "", "", nil, nil, fmt.Errorf("invalid cursor version")
	}
	if p.Entity == "" || p.OrderByKey == "" {
		return "", "", nil, nil, fmt.Errorf("invalid cursor: missing entity or order-by key")
	}
	if len(p.Directions) == 0 || len(p.Values) != len(p.Directions) {
		return "", "", nil, nil, fmt.Errorf("invalid cursor: value count mismatch for order-by columns")
	}
	for i, direction := range p.Directions {
		direction = strings.ToUpper(direction)
		if direction != "ASC" && direction != "DESC" {
			return "", "", nil, nil, fmt.Errorf("invalid cursor: direction %d must be ASC or DESC", i)
		}
		p.Directions[i] = direction
	}
	return p.Entity, p.OrderByKey, p.Directions, p.Values, nil
}

// Validate confirms a decoded cursor matches the query it is applied to.
// A cursor minted for a different entity or ordering must be rejected,
// not silently reinterpreted.
func Validate(expectedEntity, expectedOrderByKey string, expectedDirections []string, entity, orderByKey string, directions []string) error {
	if entity != expectedEntity {
		return fmt.Errorf("cursor entity mismatch: expected %s, got %s", expectedEntity, entity)
	}
	if orderByKey != expectedOrderByKey {
		return fmt.Errorf("cursor order-by mismatch: expected %s, got %s", expectedOrderByKey, orderByKey)
	}
	if len(directions) != len(expectedDirections) {
		return fmt.Errorf("cursor direction count mismatch: expected %d, got %d", len(expectedDirections), len(directions))
	}
	for i := range expectedDirections {
		if !strings.EqualFold(directions[i], expectedDirections[i]) {
			return fmt.Errorf("cursor direction mismatch at position %d", i)
		}
	}
	return nil
}

// ParseValues converts string-encoded cursor values into native values
// using the scalar kind of each order-by column.
func ParseValues(stringVals []string, kinds []sqltype.Kind) ([]interface{}, error) {
	if len(stringVals) != len(kinds) {
		return nil, fmt.Errorf("cursor value count mismatch: expected %d, got %d", len(kinds), len(stringVals))
	}
	result := make([]interface{}, len(stringVals))
	for i, sv := range stringVals {
		parsed, err := sqltype.ParseParam(kinds[i], sv)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor value at position %d: %w", i, err)
		}
		result[i] = parsed
	}
	return result, nil
}

func coerceToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case float32:
		return fmt.Sprintf("%g", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
