package source

import (
	"database/sql"
	"fmt"

	"github.com/quarrydata/quarry/internal/resolver"
)

// DBSchema introspects a live connection to answer schema questions. It
// implements resolver.SchemaStore for the pipeline builder, which needs
// explicit column lists to compile rename/remove steps.
type DBSchema struct {
	DB   *sql.DB
	Kind string
}

// Columns returns the ordered column list of a physical table.
func (s *DBSchema) Columns(table string) ([]resolver.ColumnInfo, error) {
	query, args := s.columnsQuery(table)
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []resolver.ColumnInfo
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("introspect %s: %w", table, err)
		}
		cols = append(cols, resolver.ColumnInfo{Name: name, Type: semanticType(typ)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q does not exist or has no columns", table)
	}
	return cols, nil
}

func (s *DBSchema) columnsQuery(table string) (string, []any) {
	switch s.Kind {
	case "postgres", "postgresql":
		return `SELECT column_name, data_type FROM information_schema.columns
			WHERE table_name = $1 ORDER BY ordinal_position`, []any{table}
	case "mysql", "mariadb":
		return `SELECT column_name, data_type FROM information_schema.columns
			WHERE table_name = ? AND table_schema = DATABASE() ORDER BY ordinal_position`, []any{table}
	default:
		// SQLite and the warehouse.
		return `SELECT name, type FROM pragma_table_info(?)`, []any{table}
	}
}

// semanticType folds backend type names into the small semantic set used
// by definitions. Unknown names map to the empty string so inference can
// run on the results instead.
func semanticType(dbType string) string {
	switch normalizeType(dbType) {
	case "int", "integer", "bigint", "smallint", "tinyint", "mediumint", "serial", "bigserial":
		return "Integer"
	case "decimal", "numeric", "float", "double", "real", "double precision", "money":
		return "Decimal"
	case "date":
		return "Date"
	case "datetime", "timestamp", "timestamp without time zone", "timestamp with time zone":
		return "Datetime"
	case "time", "time without time zone":
		return "Time"
	case "varchar", "char", "text", "character varying", "character", "mediumtext", "longtext", "uuid", "json", "jsonb":
		return "String"
	default:
		return ""
	}
}

func normalizeType(t string) string {
	out := make([]byte, 0, len(t))
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c == '(' {
			break
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}
