package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/qdef"
)

// allowedPrefixes is the authoritative whitelist for restricted and
// native-SQL contexts. Anything else is rejected, including statements
// that would parse cleanly.
var allowedPrefixes = []string{"select", "with", "explain"}

// Gate rejects any statement that is not read-only. The prefix whitelist
// is the security boundary; the parser pass behind it is best effort and
// can only reject further, never admit.
func Gate(stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return &SafetyError{Message: "empty statement"}
	}
	lower := strings.ToLower(trimmed)
	ok := false
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(lower, p) {
			// Prefix must be a whole word: "selection" is not "select".
			rest := lower[len(p):]
			if rest == "" || !isWordByte(rest[0]) {
				ok = true
				break
			}
		}
	}
	if !ok {
		return &SafetyError{Message: "only SELECT statements are allowed"}
	}

	switch sqlparser.Preview(trimmed) {
	case sqlparser.StmtInsert, sqlparser.StmtReplace, sqlparser.StmtUpdate,
		sqlparser.StmtDelete, sqlparser.StmtDDL, sqlparser.StmtSet,
		sqlparser.StmtUse, sqlparser.StmtBegin, sqlparser.StmtCommit,
		sqlparser.StmtRollback:
		return &SafetyError{Message: "only SELECT statements are allowed"}
	}
	return nil
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// HardLimit wraps a statement so it can never return more than n rows,
// regardless of any LIMIT the statement itself carries.
func HardLimit(stmt string, n int) string {
	return fmt.Sprintf("WITH limited AS (%s) SELECT * FROM limited LIMIT %d", stmt, n)
}

// templateTag matches {{ QRY_xxx }} placeholders in native statements.
// The tag names another saved query; its compiled SQL is spliced in as a
// parenthesized subquery.
var templateTag = regexp.MustCompile(`\{\{\s*(QRY[\w-]*)\s*\}\}`)

// TemplateLookup resolves a template tag name to compiled SQL.
type TemplateLookup func(name string) (string, error)

// SubstituteTemplates replaces every {{ QRY_xxx }} tag with the referenced
// query's compiled SQL. An unresolvable tag aborts the whole statement;
// partial substitution would execute against the wrong relation.
func SubstituteTemplates(stmt string, lookup TemplateLookup) (string, error) {
	if lookup == nil || !strings.Contains(stmt, "{{") {
		return stmt, nil
	}
	var lookupErr error
	out := templateTag.ReplaceAllStringFunc(stmt, func(tag string) string {
		if lookupErr != nil {
			return tag
		}
		name := templateTag.FindStringSubmatch(tag)[1]
		sql, err := lookup(name)
		if err != nil {
			lookupErr = fmt.Errorf("template tag %q: %w", name, err)
			return tag
		}
		return "(" + sql + ")"
	})
	if lookupErr != nil {
		return "", lookupErr
	}
	return out, nil
}

// normalizePercents collapses doubled percent signs in MySQL-family
// statements. Saved native statements written for printf-style database
// transports carry %% for a literal %; database/sql sends text verbatim,
// so the doubling must be undone before execution.
func normalizePercents(d *dialect.Dialect, stmt string) string {
	if d == nil || !d.EscapePercent {
		return stmt
	}
	return strings.ReplaceAll(stmt, "%%", "%")
}

// PrepareOptions controls statement preparation.
type PrepareOptions struct {
	// Limit is the effective row cap. Zero means the default limit.
	Limit int

	// Download lifts the interactive cap (the export cap still applies)
	// and always bypasses the result cache.
	Download bool

	// Native marks hand-written SQL, which must pass the safety gate.
	Native bool

	// Templates resolves {{ QRY_xxx }} tags, when present.
	Templates TemplateLookup
}

// Prepare runs the statement pipeline: hard-limit wrap, template
// substitution, percent normalization, then the safety gate for native
// text. The returned statement is what actually executes.
func Prepare(d *dialect.Dialect, stmt string, opts PrepareOptions) (string, error) {
	hard := qdef.MaxInteractiveLimit
	if opts.Download {
		hard = qdef.MaxExportLimit
	}
	limit := opts.Limit
	if limit <= 0 || limit > hard {
		limit = hard
	}
	out := HardLimit(stmt, limit)

	out, err := SubstituteTemplates(out, opts.Templates)
	if err != nil {
		return "", err
	}
	out = normalizePercents(d, out)

	if opts.Native {
		if err := Gate(stmt); err != nil {
			return "", err
		}
	}
	return out, nil
}
