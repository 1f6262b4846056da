package schema

import "fmt"

// mysqlDialect treats schema as the database name. The empty schema means
// the connection's current database.
type mysqlDialect struct{}

func (mysqlDialect) defaultSchema() string { return "" }

func schemaExpr(schema string) string {
	if schema == "" {
		return "DATABASE()"
	}
	return literal(schema)
}

func (mysqlDialect) listTables(schema string) string {
	return fmt.Sprintf(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = %s
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schemaExpr(schema))
}

func (mysqlDialect) tableExists(schema, table string) string {
	return fmt.Sprintf(`
		SELECT COUNT(*) > 0
		FROM information_schema.tables
		WHERE table_schema = %s AND table_name = %s`, schemaExpr(schema), literal(table))
}

func (mysqlDialect) columns(schema, table string) string {
	return fmt.Sprintf(`
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			c.column_default IS NOT NULL,
			COALESCE(c.column_default, ''),
			c.column_key = 'PRI',
			c.column_key = 'UNI'
		FROM information_schema.columns c
		WHERE c.table_schema = %s AND c.table_name = %s
		ORDER BY c.ordinal_position`, schemaExpr(schema), literal(table))
}

func (mysqlDialect) foreignKeys(schema string) string {
	return fmt.Sprintf(`
		SELECT
			rc.constraint_name,
			kcu.table_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON rc.constraint_name = kcu.constraint_name
			AND rc.constraint_schema = kcu.table_schema
		WHERE rc.constraint_schema = %s
		ORDER BY rc.constraint_name, kcu.ordinal_position`, schemaExpr(schema))
}
