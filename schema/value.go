package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Konsultn-Engineering/txscope/database"
)

// Value reads column from row as T. A missing column or NULL yields the zero
// value. Integer and float widths are converted; driver byte slices convert
// to string; strings convert to uuid.UUID.
func Value[T any](row database.Row, column string) (T, error) {
	var out T
	v, ok := row[column]
	if !ok || v == nil {
		return out, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	var (
		converted any
		err       error
	)
	switch any(out).(type) {
	case string:
		converted, err = toString(v)
	case int64:
		converted, err = toInt64(v)
	case int:
		var n int64
		n, err = toInt64(v)
		converted = int(n)
	case float64:
		converted, err = toFloat64(v)
	case bool:
		converted, err = toBool(v)
	case time.Time:
		converted, err = toTime(v)
	case uuid.UUID:
		converted, err = toUUID(v)
	default:
		err = fmt.Errorf("unsupported conversion from %T to %T", v, out)
	}
	if err != nil {
		return out, fmt.Errorf("column %s: %w", column, err)
	}
	return converted.(T), nil
}

// MustValue is Value for columns known to hold T. It panics on conversion
// failure.
func MustValue[T any](row database.Row, column string) T {
	v, err := Value[T](row, column)
	if err != nil {
		panic(err)
	}
	return v
}

func toString(v any) (string, error) {
	switch val := v.(type) {
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	case [16]byte:
		return uuid.UUID(val).String(), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float64:
		return int64(val), nil
	case string:
		return strconv.ParseInt(val, 10, 64)
	case []byte:
		return strconv.ParseInt(string(val), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}

func toFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(val, 64)
	case []byte:
		return strconv.ParseFloat(string(val), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to float64", v)
}

func toBool(v any) (bool, error) {
	switch val := v.(type) {
	case int64:
		return val != 0, nil
	case string:
		return strconv.ParseBool(val)
	case []byte:
		return strconv.ParseBool(string(val))
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

func toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case *time.Time:
		if val == nil {
			return time.Time{}, nil
		}
		return *val, nil
	case string:
		return time.Parse(time.RFC3339Nano, val)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(val))
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", v)
}

func toUUID(v any) (uuid.UUID, error) {
	switch val := v.(type) {
	case string:
		return uuid.Parse(val)
	case []byte:
		if len(val) == 16 {
			return uuid.FromBytes(val)
		}
		return uuid.ParseBytes(val)
	case [16]byte:
		return uuid.UUID(val), nil
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to uuid.UUID", v)
}
