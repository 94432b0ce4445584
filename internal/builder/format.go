package builder

import (
	"strings"
)

// keywords uppercased for display. Only bare words outside quotes are
// touched; quoted identifiers and string literals pass through untouched.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true,
	"by": true, "limit": true, "offset": true, "join": true, "inner": true,
	"left": true, "right": true, "full": true, "outer": true, "on": true,
	"as": true, "and": true, "or": true, "not": true, "in": true,
	"between": true, "like": true, "ilike": true, "is": true, "null": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"with": true, "union": true, "all": true, "distinct": true,
	"having": true, "asc": true, "desc": true, "cast": true, "interval": true,
}

// clause starters that begin a new display line.
var clauseStarters = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true,
	"ORDER": true, "LIMIT": true, "HAVING": true, "WITH": true,
	"UNION": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "FULL": true,
}

// Format renders compiled SQL for display: keywords uppercased, one clause
// per line. The result stays valid, directly re-executable SQL; only
// whitespace and keyword casing change.
//
// Callers persisting the formatted text should skip the write when it equals
// the previously stored value, so an unchanged query does not flip back to a
// pending-execution state.
func Format(sql string) string {
	toks := tokenizeSQL(sql)

	var b strings.Builder
	lineStart := true
	for i, t := range toks {
		word := t
		if !isQuoted(t) {
			if upper := strings.ToUpper(t); sqlKeywords[strings.ToLower(t)] {
				word = upper
			}
		}

		newline := false
		if i > 0 && clauseStarters[strings.ToUpper(word)] && !isQuoted(t) {
			// "GROUP BY" / "ORDER BY" break on the first word only.
			prev := strings.ToUpper(toks[i-1])
			if prev != "GROUP" && prev != "ORDER" && prev != "UNION" {
				newline = true
			}
		}

		if newline {
			b.WriteByte('\n')
			lineStart = true
		}
		if !lineStart {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		lineStart = false
	}
	return b.String()
}

func isQuoted(t string) bool {
	if t == "" {
		return false
	}
	switch t[0] {
	case '\'', '"', '`':
		return true
	}
	return false
}

// tokenizeSQL splits statement text on whitespace while keeping quoted
// runs (single, double, or backtick quoted) intact as single tokens.
func tokenizeSQL(sql string) []string {
	var toks []string
	var cur strings.Builder
	var quote byte

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			cur.WriteByte(c)
			quote = c
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return toks
}
