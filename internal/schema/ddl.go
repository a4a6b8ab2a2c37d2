package schema

import (
	"strings"
)

// CreateSQL renders a CREATE TABLE IF NOT EXISTS statement for the table.
// Existing tables are left untouched.
func (t Table) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.Name)
	b.WriteString(" (")

	parts := make([]string, 0, len(t.Columns)+len(t.UniqueKeys))
	for _, c := range t.Columns {
		def := c.Name + " " + string(c.Type)
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		parts = append(parts, def)
	}
	for _, key := range t.UniqueKeys {
		parts = append(parts, "UNIQUE ("+strings.Join(key, ", ")+")")
	}

	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(")")
	return b.String()
}
