package dialect

import (
	"strconv"
	"strings"
)

// RewritePlaceholders returns sql with every positional $N placeholder
// replaced by replace(N, token), where token is the placeholder as written.
//
// Placeholders are only recognised in plain statement text. String literals
// (including E'' escape strings), quoted identifiers, dollar-quoted bodies and
// comments are copied through untouched, and so are identifiers that embed a
// '$' such as foo$1.
func RewritePlaceholders(sql string, replace func(n int, token string) string) string {
	if !strings.Contains(sql, "$") {
		return sql
	}
	s := &placeholderScanner{sql: sql}
	s.out.Grow(len(sql) + 8)
	s.scan(replace)
	return s.out.String()
}

type placeholderScanner struct {
	sql string
	pos int
	out strings.Builder
}

func (s *placeholderScanner) scan(replace func(int, string) string) {
	for s.pos < len(s.sql) {
		ch := s.sql[s.pos]
		switch {
		case ch == '\'':
			s.copyQuoted('\'', s.isEscapeString())
		case ch == '"':
			s.copyQuoted('"', false)
		case ch == '-' && s.peek(1) == '-':
			s.copyLineComment()
		case ch == '/' && s.peek(1) == '*':
			s.copyBlockComment()
		case ch == '$':
			if n, token, ok := s.readPlaceholder(); ok {
				s.out.WriteString(replace(n, token))
				continue
			}
			if tag, ok := s.readDollarTag(); ok {
				s.copyDollarQuoted(tag)
				continue
			}
			s.copyByte()
		default:
			s.copyByte()
		}
	}
}

func (s *placeholderScanner) peek(offset int) byte {
	if s.pos+offset >= len(s.sql) || s.pos+offset < 0 {
		return 0
	}
	return s.sql[s.pos+offset]
}

func (s *placeholderScanner) copyByte() {
	s.out.WriteByte(s.sql[s.pos])
	s.pos++
}

// isEscapeString reports whether the quote at pos opens an E'...' literal.
func (s *placeholderScanner) isEscapeString() bool {
	prev := s.peek(-1)
	if prev != 'E' && prev != 'e' {
		return false
	}
	return !isIdentByte(s.peek(-2))
}

func (s *placeholderScanner) copyQuoted(quote byte, backslashEscapes bool) {
	s.copyByte()
	for s.pos < len(s.sql) {
		ch := s.sql[s.pos]
		if backslashEscapes && ch == '\\' && s.pos+1 < len(s.sql) {
			s.copyByte()
			s.copyByte()
			continue
		}
		s.copyByte()
		if ch != quote {
			continue
		}
		if s.pos < len(s.sql) && s.sql[s.pos] == quote {
			s.copyByte()
			continue
		}
		return
	}
}

func (s *placeholderScanner) copyLineComment() {
	end := strings.IndexByte(s.sql[s.pos:], '\n')
	if end < 0 {
		s.out.WriteString(s.sql[s.pos:])
		s.pos = len(s.sql)
		return
	}
	s.out.WriteString(s.sql[s.pos : s.pos+end+1])
	s.pos += end + 1
}

// Block comments nest in PostgreSQL.
func (s *placeholderScanner) copyBlockComment() {
	depth := 0
	for s.pos < len(s.sql) {
		switch {
		case s.sql[s.pos] == '/' && s.peek(1) == '*':
			depth++
			s.copyByte()
			s.copyByte()
		case s.sql[s.pos] == '*' && s.peek(1) == '/':
			depth--
			s.copyByte()
			s.copyByte()
			if depth == 0 {
				return
			}
		default:
			s.copyByte()
		}
	}
}

func (s *placeholderScanner) readPlaceholder() (int, string, bool) {
	if isIdentByte(s.peek(-1)) || !isDigit(s.peek(1)) {
		return 0, "", false
	}
	end := s.pos + 1
	for end < len(s.sql) && isDigit(s.sql[end]) {
		end++
	}
	token := s.sql[s.pos:end]
	n, err := strconv.Atoi(token[1:])
	if err != nil {
		return 0, "", false
	}
	s.pos = end
	return n, token, true
}

// readDollarTag recognises the opening $tag$ (or $$) of a dollar-quoted body.
func (s *placeholderScanner) readDollarTag() (string, bool) {
	if isIdentByte(s.peek(-1)) {
		return "", false
	}
	end := s.pos + 1
	for end < len(s.sql) && s.sql[end] != '$' {
		if !isIdentByte(s.sql[end]) {
			return "", false
		}
		end++
	}
	if end >= len(s.sql) {
		return "", false
	}
	return s.sql[s.pos : end+1], true
}

func (s *placeholderScanner) copyDollarQuoted(tag string) {
	body := s.pos + len(tag)
	closing := strings.Index(s.sql[body:], tag)
	if closing < 0 {
		s.out.WriteString(s.sql[s.pos:])
		s.pos = len(s.sql)
		return
	}
	end := body + closing + len(tag)
	s.out.WriteString(s.sql[s.pos:end])
	s.pos = end
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isIdentByte(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch == '$' || isDigit(ch) || ch >= 0x80
}
