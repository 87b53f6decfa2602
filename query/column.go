package query

import (
	"strings"

	"github.com/Konsultn-Engineering/txscope/cache"
)

// selectField is a parsed select-list entry.
type selectField struct {
	expr  string
	alias string
}

var selectFieldCache = cache.NewParseCache[selectField](cache.DefaultParseCacheSize)

// parseSelectField splits "expr AS alias". The keyword is matched without
// regard to case and the last occurrence wins, so "CAST(x AS int) AS n"
// yields alias n. An entry whose trailing word is not a plain identifier
// has no alias.
func parseSelectField(entry string) selectField {
	return selectFieldCache.GetOrParse(entry, parseSelectFieldUncached)
}

func parseSelectFieldUncached(entry string) selectField {
	entry = strings.TrimSpace(entry)
	asIdx := strings.LastIndex(strings.ToUpper(entry), " AS ")
	if asIdx <= 0 {
		return selectField{expr: entry}
	}
	alias := strings.TrimSpace(entry[asIdx+4:])
	if !isIdentifier(alias) {
		return selectField{expr: entry}
	}
	return selectField{
		expr:  strings.TrimSpace(entry[:asIdx]),
		alias: alias,
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '_', 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z':
		case '0' <= ch && ch <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
