package schema

import "fmt"

type postgresDialect struct{}

func (postgresDialect) defaultSchema() string { return "public" }

func (postgresDialect) listTables(schema string) string {
	return fmt.Sprintf(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = %s
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`, literal(schema))
}

func (postgresDialect) tableExists(schema, table string) string {
	return fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = %s AND table_name = %s
		)`, literal(schema), literal(table))
}

func (postgresDialect) columns(schema, table string) string {
	return fmt.Sprintf(`
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			c.column_default IS NOT NULL,
			COALESCE(c.column_default, ''),
			COALESCE(pk.is_pk, false),
			COALESCE(uq.is_unique, false)
		FROM information_schema.columns c

		LEFT JOIN (
			SELECT kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = %[1]s
			  AND tc.table_name   = %[2]s
		) pk ON pk.column_name = c.column_name

		LEFT JOIN (
			SELECT kcu.column_name, true AS is_unique
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'UNIQUE'
			  AND tc.table_schema = %[1]s
			  AND tc.table_name   = %[2]s
		) uq ON uq.column_name = c.column_name

		WHERE c.table_schema = %[1]s AND c.table_name = %[2]s
		ORDER BY c.ordinal_position`, literal(schema), literal(table))
}

func (postgresDialect) foreignKeys(schema string) string {
	return fmt.Sprintf(`
		SELECT
			tc.constraint_name,
			kcu.table_name,
			kcu.column_name,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = %s
		ORDER BY tc.constraint_name`, literal(schema))
}
