package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/hatlonely/sqltable/schema"
	"github.com/hatlonely/sqltable/sqltype"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// 方言名，sqlite3 和 sqlite 分别对应 mattn/go-sqlite3 和 modernc.org/sqlite 驱动，生成的 DDL 相同
const (
	DialectSQLite3  = "sqlite3"
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

type dialect string

func parseDialect(name string) (dialect, error) {
	switch name {
	case DialectSQLite3, DialectSQLite:
		return DialectSQLite, nil
	case DialectMySQL:
		return DialectMySQL, nil
	case DialectPostgres, "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return "", errors.Wrapf(ErrUnsupportedDialect, "%q", name)
}

// CreateTableSQL 生成建表语句
func CreateTableSQL(dialectName string, table *Table) (string, error) {
	d, err := parseDialect(dialectName)
	if err != nil {
		return "", err
	}
	return d.createTable(table)
}

// CreateIndexSQL 生成建索引语句，MySQL 不支持 IF NOT EXISTS
func CreateIndexSQL(dialectName string, table string, index Index) (string, error) {
	d, err := parseDialect(dialectName)
	if err != nil {
		return "", err
	}
	return d.createIndex(table, index), nil
}

// DropTableSQL 生成删表语句
func DropTableSQL(dialectName string, table string) (string, error) {
	d, err := parseDialect(dialectName)
	if err != nil {
		return "", err
	}
	return "DROP TABLE IF EXISTS " + d.quote(table), nil
}

// MigrationSQL 建表需要执行的全部语句：建表、建索引，PostgreSQL 还包括列注释
func MigrationSQL(dialectName string, table *Table) ([]string, error) {
	d, err := parseDialect(dialectName)
	if err != nil {
		return nil, err
	}

	create, err := d.createTable(table)
	if err != nil {
		return nil, err
	}
	stmts := []string{create}
	for _, index := range table.Indexes {
		stmts = append(stmts, d.createIndex(table.Name, index))
	}
	if d == DialectPostgres {
		for _, c := range table.Columns {
			if comment := c.Comment(); comment != "" {
				stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
					d.quote(table.Name), d.quote(c.Name), pq.QuoteLiteral(comment)))
			}
		}
	}
	return stmts, nil
}

func (d dialect) createTable(table *Table) (string, error) {
	var defs []string
	for _, c := range table.Columns {
		def, err := d.columnDefinition(c)
		if err != nil {
			return "", errors.WithMessagef(err, "table %s column %s", table.Name, c.Name)
		}
		defs = append(defs, def)
	}

	if len(table.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", d.quoteAll(table.PrimaryKey)))
	}
	for _, fk := range table.ForeignKeys {
		def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.quote(fk.Column), d.quote(fk.Table), d.quote(fk.ForeignKeyConstraint.Column))
		if fk.OnDelete != "" {
			def += " ON DELETE " + fk.OnDelete
		}
		if fk.OnUpdate != "" {
			def += " ON UPDATE " + fk.OnUpdate
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		d.quote(table.Name), strings.Join(defs, ",\n  ")), nil
}

func (d dialect) columnDefinition(c *schema.ColumnDef) (string, error) {
	typ, err := d.columnType(c.Type)
	if err != nil {
		return "", err
	}

	parts := []string{d.quote(c.Name), typ}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	// 有索引时唯一性由唯一索引保证
	if c.Unique && !c.Index {
		parts = append(parts, "UNIQUE")
	}
	if v, ok := c.Default(); ok {
		parts = append(parts, "DEFAULT "+d.literal(v))
	}
	if enum, ok := c.Type.(sqltype.Enum); ok && d != DialectMySQL {
		values := make([]string, len(enum.Values))
		for i, v := range enum.Values {
			values[i] = d.literal(v)
		}
		parts = append(parts, fmt.Sprintf("CHECK (%s IN (%s))", d.quote(c.Name), strings.Join(values, ", ")))
	}
	for _, check := range c.Checks() {
		parts = append(parts, fmt.Sprintf("CHECK (%s)", check.Expr))
	}
	if comment := c.Comment(); comment != "" && d == DialectMySQL {
		parts = append(parts, "COMMENT "+d.literal(comment))
	}
	return strings.Join(parts, " "), nil
}

// columnType 将存储类型映射为方言的列类型
func (d dialect) columnType(t sqltype.Type) (string, error) {
	switch v := t.(type) {
	case sqltype.Boolean:
		if d == DialectSQLite {
			return "INTEGER", nil
		}
		return "BOOLEAN", nil
	case sqltype.Integer:
		if d == DialectSQLite {
			return "INTEGER", nil
		}
		return "BIGINT", nil
	case sqltype.Float:
		switch d {
		case DialectSQLite:
			return "REAL", nil
		case DialectPostgres:
			return "DOUBLE PRECISION", nil
		}
		return "DOUBLE", nil
	case sqltype.String:
		if d == DialectSQLite {
			return "TEXT", nil
		}
		return fmt.Sprintf("VARCHAR(%d)", v.Length), nil
	case sqltype.AutoString:
		if d == DialectMySQL {
			return "VARCHAR(255)", nil
		}
		return "TEXT", nil
	case sqltype.Binary:
		switch d {
		case DialectSQLite:
			return "BLOB", nil
		case DialectPostgres:
			return "BYTEA", nil
		}
		if v.Length > 0 {
			return fmt.Sprintf("BINARY(%d)", v.Length), nil
		}
		return "VARBINARY(255)", nil
	case sqltype.LargeBinary:
		switch d {
		case DialectSQLite:
			return "BLOB", nil
		case DialectPostgres:
			return "BYTEA", nil
		}
		return "LONGBLOB", nil
	case sqltype.DateTime:
		switch d {
		case DialectPostgres:
			if v.Timezone {
				return "TIMESTAMP WITH TIME ZONE", nil
			}
			return "TIMESTAMP WITHOUT TIME ZONE", nil
		case DialectMySQL:
			return "DATETIME(6)", nil
		}
		return "DATETIME", nil
	case sqltype.Date:
		return "DATE", nil
	case sqltype.Decimal:
		name := "DECIMAL"
		if d != DialectMySQL {
			name = "NUMERIC"
		}
		if v.Precision > 0 {
			return fmt.Sprintf("%s(%d,%d)", name, v.Precision, v.Scale), nil
		}
		return name, nil
	case sqltype.Enum:
		if d == DialectMySQL {
			values := make([]string, len(v.Values))
			for i, value := range v.Values {
				values[i] = d.literal(value)
			}
			return fmt.Sprintf("ENUM(%s)", strings.Join(values, ",")), nil
		}
		if d == DialectSQLite {
			return "TEXT", nil
		}
		n := 1
		for _, value := range v.Values {
			n = max(n, len(value))
		}
		return fmt.Sprintf("VARCHAR(%d)", n), nil
	case sqltype.UUID:
		switch d {
		case DialectPostgres:
			return "UUID", nil
		case DialectMySQL:
			return "CHAR(36)", nil
		}
		return "TEXT", nil
	case sqltype.JSON:
		switch d {
		case DialectPostgres:
			return "JSONB", nil
		case DialectMySQL:
			return "JSON", nil
		}
		return "TEXT", nil
	case nil:
		return "", errors.Wrap(ErrUnsupportedSQLType, "nil type")
	}
	// Hook 返回的自定义类型直接使用其 SQL 表示
	return t.String(), nil
}

func (d dialect) createIndex(table string, index Index) string {
	kind := "INDEX"
	if index.Unique {
		kind = "UNIQUE INDEX"
	}
	if d == DialectMySQL {
		return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, d.quote(index.Name), d.quote(table), d.quoteAll(index.Columns))
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, d.quote(index.Name), d.quote(table), d.quoteAll(index.Columns))
}

func (d dialect) quote(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(name)
}

func (d dialect) quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = d.quote(name)
	}
	return strings.Join(quoted, ", ")
}

// literal 格式化 DEFAULT、注释和枚举值中的字面量
func (d dialect) literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		if d == DialectPostgres {
			return pq.QuoteLiteral(v)
		}
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if d == DialectPostgres {
			return strings.ToUpper(fmt.Sprint(v))
		}
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return d.literal(v.Format(time.RFC3339))
	case fmt.Stringer:
		return d.literal(v.String())
	}
	return fmt.Sprint(value)
}
