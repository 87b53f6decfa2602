package dialect

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Postgres renders $N placeholders and PostgreSQL literals.
type Postgres struct{}

func NewPostgresDialect() Dialect {
	return Postgres{}
}

func (Postgres) Name() string {
	return "postgres"
}

func (Postgres) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

const timestampLayout = "2006-01-02 15:04:05.000000"

// RenderValue formats v as a literal for display. Unknown types fall back to
// their fmt representation, quoted.
func (Postgres) RenderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteLiteral(val)
	case bool:
		return strings.ToUpper(strconv.FormatBool(val))
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return quoteLiteral(val.UTC().Format(timestampLayout))
	case *time.Time:
		if val == nil {
			return "NULL"
		}
		return quoteLiteral(val.UTC().Format(timestampLayout))
	case []byte:
		return `'\x` + hex.EncodeToString(val) + "'"
	default:
		return quoteLiteral(fmt.Sprint(val))
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
