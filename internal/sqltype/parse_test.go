package sqltype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapColumnType(t *testing.T) {
	tests := []struct {
		sqlType string
		kind    Kind
	}{
		{"varchar", KindString},
		{"varchar(255)", KindString},
		{"text", KindString},
		{"bigint", KindInt64},
		{"bigint(20) unsigned", KindInt64},
		{"int", KindInt32},
		{"mediumint", KindInt32},
		{"smallint", KindInt16},
		{"tinyint", KindInt8},
		{"tinyint(1)", KindBool},
		{"boolean", KindBool},
		{"float", KindFloat32},
		{"double", KindFloat64},
		{"decimal(10,2)", KindDecimal},
		{"varbinary(16)", KindBytes},
		{"uuid", KindUUID},
		{"date", KindDate},
		{"time", KindTime},
		{"datetime", KindDateTime},
		{"timestamp", KindDateTime},
		{"geometry", KindString},
	}
	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			assert.Equal(t, tt.kind, MapColumnType(tt.sqlType))
		})
	}
}

func TestParseParam(t *testing.T) {
	v, err := ParseParam(KindInt32, "42")
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	v, err = ParseParam(KindInt64, "9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), v)

	v, err = ParseParam(KindBool, "TRUE")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ParseParam(KindDecimal, "10.25")
	require.NoError(t, err)
	assert.Equal(t, "10.25", v)

	v, err = ParseParam(KindUUID, "6BB9A8F2-5B7E-4F3C-9A34-6A2B12D480A1")
	require.NoError(t, err)
	assert.Equal(t, "6bb9a8f2-5b7e-4f3c-9a34-6a2b12d480a1", v)

	v, err = ParseParam(KindDate, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), v)
}

func TestParseParam_Overflow(t *testing.T) {
	_, err := ParseParam(KindInt8, "200")
	assert.ErrorContains(t, err, "invalid byte value")

	_, err = ParseParam(KindInt32, "4294967296")
	assert.ErrorContains(t, err, "invalid int32 value")
}

func TestParseParam_DurationIsNotTimeOfDay(t *testing.T) {
	// Both arrive as HH:MM:SS text but parse into distinct types.
	d, err := ParseParam(KindDuration, "01:30:00")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = ParseParam(KindDuration, "1h30m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	tod, err := ParseParam(KindTime, "01:30:00")
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, tod)

	_, err = ParseParam(KindDuration, "bogus")
	assert.ErrorContains(t, err, "invalid duration value")
}

func TestParseParam_DateTimeLayouts(t *testing.T) {
	for _, raw := range []string{
		"2026-03-01T12:30:00Z",
		"2026-03-01 12:30:00",
		"2026-03-01T12:30:00",
	} {
		v, err := ParseParam(KindDateTime, raw)
		require.NoError(t, err, raw)
		parsed := v.(time.Time)
		assert.Equal(t, 12, parsed.Hour())
	}

	_, err := ParseParam(KindDateTime, "March 1st")
	assert.Error(t, err)
}

func TestCoerceValue(t *testing.T) {
	v, err := CoerceValue(KindInt32, int64(7))
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	v, err = CoerceValue(KindInt32, "7")
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	v, err = CoerceValue(KindString, 10)
	require.NoError(t, err)
	assert.Equal(t, "10", v)

	v, err = CoerceValue(KindInt64, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = CoerceValue(KindInt8, 1000)
	assert.ErrorContains(t, err, "overflows byte")

	_, err = CoerceValue(KindInt32, 4294967296)
	assert.ErrorContains(t, err, "overflows int32")
}

func TestKindOfValue(t *testing.T) {
	assert.Equal(t, KindInt32, KindOfValue(5))
	assert.Equal(t, KindInt64, KindOfValue(int64(5)))
	assert.Equal(t, KindFloat64, KindOfValue(2.5))
	assert.Equal(t, KindBool, KindOfValue(true))
	assert.Equal(t, KindString, KindOfValue("x"))
	assert.Equal(t, KindBytes, KindOfValue([]byte{1}))
	assert.Equal(t, KindDateTime, KindOfValue(time.Now()))
	assert.Equal(t, KindString, KindOfValue(nil))
}

func TestKindStringAndNumeric(t *testing.T) {
	assert.Equal(t, "Int32", KindInt32.String())
	assert.Equal(t, "TimeOnly", KindTime.String())
	assert.True(t, KindDecimal.IsNumeric())
	assert.False(t, KindString.IsNumeric())
	assert.False(t, KindDateTime.IsNumeric())
}
