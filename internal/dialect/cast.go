package dialect

// CastType maps a semantic column type to the backend's CAST target.
// Returns "" for unknown or empty types: no cast is emitted and the value
// keeps its natural type.
func (d *Dialect) CastType(semantic string) string {
	switch semantic {
	case "Integer":
		return "INTEGER"
	case "Decimal":
		switch d.GoquName {
		case "postgres":
			return "NUMERIC"
		case "mysql":
			return "DECIMAL(38, 6)"
		default:
			return "REAL"
		}
	case "String", "Text":
		switch d.GoquName {
		case "mysql":
			return "CHAR"
		default:
			return "TEXT"
		}
	case "Date":
		return "DATE"
	case "Datetime":
		switch d.GoquName {
		case "mysql":
			return "DATETIME"
		case "postgres":
			return "TIMESTAMP"
		default:
			return "DATETIME"
		}
	default:
		return ""
	}
}
