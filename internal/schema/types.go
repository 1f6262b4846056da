package schema

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name         string
	DataType     string // declared type as the engine reports it: TEXT, integer, varchar, ...
	IsNullable   bool
	IsPrimaryKey bool
	IsUnique     bool
	DefaultValue *string // nil if no default
}

// TableInfo describes a table and its columns
type TableInfo struct {
	Schema  string
	Name    string
	Columns []ColumnInfo
}

// Column returns the column called name, or nil.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ForeignKey describes a relationship between two tables.
// ToColumn is empty when a SQLite key references the parent's primary key
// implicitly.
type ForeignKey struct {
	Name       string
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// SchemaInfo is the full introspected database schema
type SchemaInfo struct {
	Tables      []TableInfo
	ForeignKeys []ForeignKey
}
