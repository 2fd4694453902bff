package registry

import (
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/hatlonely/sqltable/codec"
	"github.com/hatlonely/sqltable/schema"
	"github.com/pkg/errors"
)

// 表名生成规则
const (
	NamingLower       = "lower"
	NamingSnakePlural = "snake_plural"
)

// Tabler 自定义表名
type Tabler interface {
	TableName() string
}

// Index 索引，由 index 标记的列生成，每列一个
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey 表级外键约束
type ForeignKey struct {
	Column string
	*schema.ForeignKeyConstraint
}

// Table 已注册结构体对应的表
type Table struct {
	Name          string
	Type          reflect.Type
	Schema        *schema.Schema
	Columns       []*schema.ColumnDef
	PrimaryKey    []string
	Indexes       []Index
	ForeignKeys   []ForeignKey
	Relationships []*schema.RelationshipDef
}

// Column 按列名查找
func (t *Table) Column(name string) (*schema.ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Relationship 按字段名查找关联关系，不区分大小写
func (t *Table) Relationship(field string) (*schema.RelationshipDef, bool) {
	for _, r := range t.Relationships {
		if strings.EqualFold(r.Field, field) {
			return r, true
		}
	}
	return nil, false
}

func newTable(name string, t reflect.Type, s *schema.Schema) (*Table, error) {
	table := &Table{
		Name:          name,
		Type:          t,
		Schema:        s,
		Columns:       s.Columns(),
		Relationships: s.Relationships(),
	}

	for _, c := range table.Columns {
		if c.PrimaryKey {
			table.PrimaryKey = append(table.PrimaryKey, c.Name)
		}
		if c.Index {
			prefix := "ix_"
			if c.Unique {
				prefix = "uq_"
			}
			table.Indexes = append(table.Indexes, Index{
				Name:    prefix + name + "_" + c.Name,
				Columns: []string{c.Name},
				Unique:  c.Unique,
			})
		}
		for _, fk := range c.ForeignKeys() {
			table.ForeignKeys = append(table.ForeignKeys, ForeignKey{Column: c.Name, ForeignKeyConstraint: fk})
		}
	}

	if len(table.PrimaryKey) == 0 {
		return nil, errors.Wrapf(ErrNoPrimaryKey, "table %s (%v)", name, t)
	}
	return table, nil
}

// tableName 结构体实现 Tabler 时使用其返回值，否则按命名规则由类型名生成
func tableName(t reflect.Type, naming string) string {
	if t.Implements(tablerType) {
		return reflect.Zero(t).Interface().(Tabler).TableName()
	}
	if reflect.PointerTo(t).Implements(tablerType) {
		return reflect.New(t).Interface().(Tabler).TableName()
	}

	name := t.Name()
	// 泛型实例化的类型名形如 Box[int]
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		name = name[:idx]
	}
	if naming == NamingSnakePlural {
		return inflect.Pluralize(codec.SnakeCase(name))
	}
	return strings.ToLower(name)
}

var tablerType = reflect.TypeOf((*Tabler)(nil)).Elem()
