package schema

import (
	"fmt"

	"github.com/koustreak/sqlguard/internal/database"
)

type sqliteDialect struct{}

func (sqliteDialect) defaultSchema() string { return "main" }

func (sqliteDialect) listTables(schema string) string {
	return fmt.Sprintf(`
		SELECT name
		FROM %s.sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite\_%%' ESCAPE '\'
		ORDER BY name`, database.QuoteIdent(schema))
}

func (sqliteDialect) tableExists(schema, table string) string {
	return fmt.Sprintf(`
		SELECT COUNT(*) > 0
		FROM %s.sqlite_master
		WHERE type = 'table' AND name = %s`, database.QuoteIdent(schema), literal(table))
}

// columns reads pragma_table_info. A column counts as unique when a unique,
// non primary key index covers exactly that column.
func (sqliteDialect) columns(schema, table string) string {
	s, t := literal(schema), literal(table)
	return fmt.Sprintf(`
		SELECT
			c.name,
			c.type,
			c."notnull" = 0,
			c.dflt_value IS NOT NULL,
			COALESCE(c.dflt_value, ''),
			c.pk > 0,
			EXISTS (
				SELECT 1
				FROM pragma_index_list(%[2]s, %[1]s) AS il
				WHERE il."unique" = 1
				  AND il.origin <> 'pk'
				  AND (SELECT COUNT(*) FROM pragma_index_info(il.name, %[1]s)) = 1
				  AND (SELECT ii.name FROM pragma_index_info(il.name, %[1]s) AS ii) = c.name
			)
		FROM pragma_table_info(%[2]s, %[1]s) AS c
		ORDER BY c.cid`, s, t)
}

func (sqliteDialect) foreignKeys(schema string) string {
	return fmt.Sprintf(`
		SELECT
			'fk_' || m.name || '_' || f.id,
			m.name,
			f."from",
			f."table",
			COALESCE(f."to", '')
		FROM %s.sqlite_master AS m
		JOIN pragma_foreign_key_list(m.name, %s) AS f
		WHERE m.type = 'table'
		ORDER BY m.name, f.id, f.seq`, database.QuoteIdent(schema), literal(schema))
}
