package dialect

// Dialect renders the driver-specific parts of a statement.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	Placeholder(n int) string
	RenderValue(v any) string
}

// Interpolate inlines params into sql for display. The output is meant for
// logs and debugging only and must never be sent to a server.
func Interpolate(d Dialect, sql string, params []any) string {
	return RewritePlaceholders(sql, func(n int, token string) string {
		if n < 1 || n > len(params) {
			return token
		}
		return d.RenderValue(params[n-1])
	})
}
